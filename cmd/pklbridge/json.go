package main

import (
	"io"
	"math"
	"math/big"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kisielk/pklbridge"
	ogórek "github.com/kisielk/og-rek"
	"github.com/samber/lo"
)

// jsonAPI decodes JSON integers as int64, so they are pickled as Python int,
// and emits object keys sorted.
var jsonAPI = sonic.Config{
	UseInt64:    true,
	SortMapKeys: true,
}.Froze()

func printJSON(w io.Writer, v any) error {
	data, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// jsonable converts unpickled value to something JSON can represent.
//
// Dict keys become labels, tuples become arrays, NaN and infinities become
// null and datetimes are formatted as RFC 3339. Values without JSON counterpart,
// e.g. calls to unknown classes, are rendered with Repr.
func jsonable(x any) any {
	switch x := x.(type) {
	case nil, ogórek.None:
		return nil
	case bool, int64, string, *big.Int:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case ogórek.ByteString:
		return string(x)
	case ogórek.Bytes:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case ogórek.Call:
		if t, err := pklbridge.AsTime(x); err == nil {
			return t.Format(time.RFC3339Nano)
		}
	case ogórek.Tuple:
		return lo.Map(x, func(v any, _ int) any { return jsonable(v) })
	case []any:
		return lo.Map(x, func(v any, _ int) any { return jsonable(v) })
	case map[any]any:
		return lo.MapEntries(x, func(k any, v any) (string, any) {
			return pklbridge.AsLabel(k), jsonable(v)
		})
	case map[string]any:
		return lo.MapValues(x, func(v any, _ string) any { return jsonable(v) })
	}
	return pklbridge.Repr(x)
}
