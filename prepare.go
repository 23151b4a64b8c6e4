package pklbridge
// Preparing Go values for ogórek encoder.

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	ogórek "github.com/kisielk/og-rek"
)

var (
	typeTime   = reflect.TypeOf(time.Time{})
	typeBigInt = reflect.TypeOf(big.Int{})
	typeTuple  = reflect.TypeOf(ogórek.Tuple{})
	typeCall   = reflect.TypeOf(ogórek.Call{})
	typeNone   = reflect.TypeOf(ogórek.None{})
	typeClass  = reflect.TypeOf(ogórek.Class{})
	typeRef    = reflect.TypeOf(ogórek.Ref{})
)

// visit identifies a container on the current path of preparer walk.
//
// Slices are told apart by length too: a prefix of a slice shares its
// backing array, but walking it terminates.
type visit struct {
	ptr uintptr
	len int
	typ reflect.Type
}

// preparer turns arbitrary Go value into a tree ogórek encoder handles.
//
// It rejects values pickle cannot represent and reference cycles, which the
// encoder would otherwise recurse into forever. Lists, maps and structs are
// rebuilt as []any and map[any]any, and time.Time is replaced with the
// equivalent of Python datetime.datetime.
type preparer struct {
	persistentRef func(obj interface{}) *ogórek.Ref
	active        map[visit]struct{}
}

// prepare returns obj ready to be encoded.
func prepare(obj any, persistentRef func(obj interface{}) *ogórek.Ref) (any, error) {
	p := &preparer{
		persistentRef: persistentRef,
		active:        make(map[visit]struct{}),
	}
	return p.value(reflect.ValueOf(obj), "obj")
}

func (p *preparer) value(rv reflect.Value, path string) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}

	if p.persistentRef != nil && rv.CanInterface() {
		if ref := p.persistentRef(rv.Interface()); ref != nil {
			return *ref, nil
		}
	}

	switch rv.Type() {
	case typeTime:
		t := rv.Interface().(time.Time)
		if y := t.Year(); y < 1 || y > 9999 {
			return nil, errors.Wrapf(ErrUnsupportedType, "%s: year %d out of datetime range", path, y)
		}
		return pydatetime(t), nil

	case typeBigInt:
		x := new(big.Int)
		bi := rv.Interface().(big.Int)
		return x.Set(&bi), nil

	case typeTuple:
		return p.tuple(rv, path)

	case typeCall:
		call := rv.Interface().(ogórek.Call)
		args, err := p.tuple(reflect.ValueOf(call.Args), path+".Args")
		if err != nil {
			return nil, err
		}
		call.Args = args
		return call, nil
	}

	switch rk := rv.Kind(); rk {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.Interface(), nil

	case reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return p.value(rv.Elem(), path)

	case reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem() == typeBigInt {
			return rv.Interface(), nil
		}
		leave, err := p.enter(rv, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return p.value(rv.Elem(), path)

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface(), nil
		}
		if rv.Len() == 0 {
			return []any{}, nil
		}
		leave, err := p.enter(rv, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return p.list(rv, path)

	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			data := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(data), rv)
			return data, nil
		}
		return p.list(rv, path)

	case reflect.Map:
		if rv.IsNil() {
			return map[any]any{}, nil
		}
		leave, err := p.enter(rv, path)
		if err != nil {
			return nil, err
		}
		defer leave()
		return p.dict(rv, path)

	case reflect.Struct:
		switch x := rv.Interface().(type) {
		case ogórek.None, ogórek.Class, ogórek.Ref:
			return x, nil
		case ogórek.Dict:
			if rv.IsZero() {
				return ogórek.NewDict(), nil
			}
			leave, err := p.enter(rv, path)
			if err != nil {
				return nil, err
			}
			defer leave()
			return p.pydict(x, path)
		}
		return p.object(rv, path)

	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%s: %s", path, rv.Type())
	}
}

// enter marks container rv as being walked and returns func to unmark it.
//
// It fails with ErrCycle if rv is already being walked.
func (p *preparer) enter(rv reflect.Value, path string) (leave func(), err error) {
	v := visit{typ: rv.Type()}
	switch rv.Kind() {
	case reflect.Struct: // ogórek.Dict
		v.ptr = rv.Field(0).Pointer()
	case reflect.Slice:
		v.ptr, v.len = rv.Pointer(), rv.Len()
	default:
		v.ptr = rv.Pointer()
	}
	if _, ok := p.active[v]; ok {
		return nil, errors.Wrapf(ErrCycle, "%s: %s refers to itself", path, rv.Type())
	}
	p.active[v] = struct{}{}
	return func() { delete(p.active, v) }, nil
}

func (p *preparer) list(rv reflect.Value, path string) ([]any, error) {
	l := make([]any, rv.Len())
	for i := range l {
		x, err := p.value(rv.Index(i), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		l[i] = x
	}
	return l, nil
}

func (p *preparer) tuple(rv reflect.Value, path string) (ogórek.Tuple, error) {
	l, err := p.list(rv, path)
	if err != nil {
		return nil, err
	}
	return ogórek.Tuple(l), nil
}

// dict rebuilds map rv as map[any]any.
//
// Keys are kept as they are; they only must not be of unsupported kind.
func (p *preparer) dict(rv reflect.Value, path string) (map[any]any, error) {
	d := make(map[any]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		err := checkKey(k, path)
		if err != nil {
			return nil, err
		}

		v, err := p.value(iter.Value(), fmt.Sprintf("%s[%v]", path, k))
		if err != nil {
			return nil, err
		}
		d[k.Interface()] = v
	}
	return d, nil
}

// pydict rebuilds ogórek.Dict d with prepared values.
func (p *preparer) pydict(d ogórek.Dict, path string) (ogórek.Dict, error) {
	out := ogórek.NewDictWithSizeHint(d.Len())
	var err error
	d.Iter()(func(k, v any) bool {
		err = checkKey(reflect.ValueOf(k), path)
		if err != nil {
			return false
		}
		var x any
		x, err = p.value(reflect.ValueOf(v), fmt.Sprintf("%s[%v]", path, k))
		if err != nil {
			return false
		}
		out.Set(k, x)
		return true
	})
	if err != nil {
		return ogórek.Dict{}, err
	}
	return out, nil
}

// checkKey verifies that k can be pickled as a key of Python dict.
//
// Python keys must be hashable: lists, dicts, sets and objects pickled as
// dicts are not, and neither is anything pickle cannot represent at all.
// Tuples are accepted if all their items are.
func checkKey(k reflect.Value, path string) error {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if !k.IsValid() {
		return nil
	}

	switch k.Type() {
	case typeNone, typeClass, typeRef:
		return nil
	case typeTuple:
		for i := 0; i < k.Len(); i++ {
			err := checkKey(k.Index(i), path)
			if err != nil {
				return err
			}
		}
		return nil
	}

	switch k.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128,
		reflect.UnsafePointer, reflect.Uintptr,
		reflect.Array, reflect.Slice, reflect.Map, reflect.Struct:
		return errors.Wrapf(ErrUnsupportedType, "%s: key %s", path, k.Type())
	case reflect.Ptr:
		if k.Type().Elem() != typeBigInt {
			return errors.Wrapf(ErrUnsupportedType, "%s: key %s", path, k.Type())
		}
	}
	return nil
}

// object rebuilds struct rv as dict of its exported fields.
//
// As with ogórek encoder, if any field has `pickle:"name"` tag, only tagged
// fields are pickled, keyed by their tags. Otherwise all exported fields are
// pickled, keyed by field names. Fields tagged `pickle:"-"` are skipped.
func (p *preparer) object(rv reflect.Value, path string) (map[any]any, error) {
	typ := rv.Type()
	tagged := false
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("pickle"); tag != "" && tag != "-" {
			tagged = true
			break
		}
	}

	d := make(map[any]any, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("pickle")
		if name == "-" || (tagged && name == "") {
			continue
		}
		if name == "" {
			name = f.Name
		}

		v, err := p.value(rv.Field(i), path+"."+f.Name)
		if err != nil {
			return nil, err
		}
		d[name] = v
	}
	return d, nil
}
