package pklbridge
// Rendering unpickled values the way Python repr does.

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	ogórek "github.com/kisielk/og-rek"
)

// Repr returns Python representation of unpickled value x.
//
// The result is what Python repr gives for the corresponding Python object,
// so it can be copy/pasted into Python to reproduce x. Dict keys are sorted
// by their representation to keep the output stable. Calls and classes
// that were not handled by the decoder are rendered as module.name(args).
func Repr(x any) string {
	var b strings.Builder
	repr(&b, x)
	return b.String()
}

func repr(b *strings.Builder, x any) {
	switch x := x.(type) {
	case nil, ogórek.None:
		b.WriteString("None")
	case bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case *big.Int:
		b.WriteString(x.String())
	case float64:
		b.WriteString(pyfloat(x))
	case string:
		b.WriteString(pyquote(x))
	case ogórek.ByteString:
		b.WriteString(pyquote(string(x)))
	case ogórek.Bytes:
		b.WriteString(pyquoteBytes(string(x)))
	case []byte:
		b.WriteString("bytearray(" + pyquoteBytes(string(x)) + ")")
	case ogórek.Tuple:
		b.WriteByte('(')
		for i, v := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			repr(b, v)
		}
		if len(x) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case ogórek.Class:
		b.WriteString(x.Module + "." + x.Name)
	case ogórek.Call:
		b.WriteString(x.Callable.Module + "." + x.Callable.Name)
		b.WriteByte('(')
		for i, v := range x.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			repr(b, v)
		}
		b.WriteByte(')')
	case ogórek.Ref:
		b.WriteString("persistent_load(")
		repr(b, x.Pid)
		b.WriteByte(')')
	case time.Time:
		b.WriteString(pydatetimeRepr(x))
	default:
		reprValue(b, reflect.ValueOf(x))
	}
}

// reprValue handles lists, dicts and Go values ogórek never produces on decoding.
func reprValue(b *strings.Builder, rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			repr(b, rv.Index(i).Interface())
		}
		b.WriteByte(']')

	case reflect.Map:
		type item struct{ k, v string }
		items := make([]item, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			items = append(items, item{
				Repr(iter.Key().Interface()),
				Repr(iter.Value().Interface()),
			})
		}
		slices.SortFunc(items, func(a, b item) int { return strings.Compare(a.k, b.k) })

		b.WriteByte('{')
		for i, it := range items {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(it.k + ": " + it.v)
		}
		b.WriteByte('}')

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		b.WriteString(pyfloat(rv.Float()))
	case reflect.String:
		b.WriteString(pyquote(rv.String()))

	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("None")
			return
		}
		repr(b, rv.Elem().Interface())

	default:
		fmt.Fprintf(b, "%v", rv.Interface())
	}
}

// pyfloat formats f as Python repr(float) does.
//
// Python uses the shortest representation that round-trips, switching to
// exponent notation for exponents < -4 or >= 16, and always keeps ".0" for
// integral values.
func pyfloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, +1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	e := strconv.FormatFloat(f, 'e', -1, 64) // e.g. 1.5e+07
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return e
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// pyquote, similarly to strconv.Quote, quotes s, but the way Python repr(str) does.
//
// ' is used as quote unless s contains ' and does not contain ". Printable
// characters are emitted as is, control characters as \t \n \r or \xXX,
// and other non-printable characters as \uXXXX or \UXXXXXXXX. Bytes of
// invalid UTF-8 go in numeric byte escapes.
func pyquote(s string) string {
	const hexdigits = "0123456789abcdef"
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	out := make([]byte, 0, len(s)+2)
	out = append(out, quote)
	for {
		r, width := utf8.DecodeRuneInString(s)
		if width == 0 {
			break
		}

		switch {
		case r == utf8.RuneError && width == 1:
			out = append(out, '\\', 'x', hexdigits[s[0]>>4], hexdigits[s[0]&0xf])

		case r == '\\' || r == rune(quote):
			out = append(out, '\\', byte(r))

		case r == '\t':
			out = append(out, '\\', 't')
		case r == '\n':
			out = append(out, '\\', 'n')
		case r == '\r':
			out = append(out, '\\', 'r')

		case r < ' ' || r == 0x7f:
			out = append(out, '\\', 'x', hexdigits[r>>4], hexdigits[r&0xf])

		case strconv.IsPrint(r):
			out = append(out, s[:width]...)

		case r <= 0xff:
			out = append(out, fmt.Sprintf(`\x%02x`, r)...)
		case r <= 0xffff:
			out = append(out, fmt.Sprintf(`\u%04x`, r)...)
		default:
			out = append(out, fmt.Sprintf(`\U%08x`, r)...)
		}

		s = s[width:]
	}
	out = append(out, quote)
	return string(out)
}

// pyquoteBytes quotes s as Python repr(bytes) does, e.g. b'a\x00'.
func pyquoteBytes(s string) string {
	const hexdigits = "0123456789abcdef"
	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		quote = '"'
	}

	out := make([]byte, 0, len(s)+3)
	out = append(out, 'b', quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' || c == quote:
			out = append(out, '\\', c)
		case c == '\t':
			out = append(out, '\\', 't')
		case c == '\n':
			out = append(out, '\\', 'n')
		case c == '\r':
			out = append(out, '\\', 'r')
		case c < ' ' || c >= 0x7f:
			out = append(out, '\\', 'x', hexdigits[c>>4], hexdigits[c&0xf])
		default:
			out = append(out, c)
		}
	}
	out = append(out, quote)
	return string(out)
}

// pydatetimeRepr renders t as Python repr(datetime.datetime).
//
// Trailing zero microsecond and second are omitted as Python does. Times
// not in UTC get their fixed offset as datetime.timezone.
func pydatetimeRepr(t time.Time) string {
	fields := []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond() / 1000}
	for n := 0; n < 2 && fields[len(fields)-1] == 0; n++ {
		fields = fields[:len(fields)-1]
	}

	var b strings.Builder
	b.WriteString("datetime.datetime(")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(f))
	}
	if t.Location() != time.UTC {
		_, offset := t.Zone()
		b.WriteString(", tzinfo=" + pytimezoneRepr(offset))
	}
	b.WriteByte(')')
	return b.String()
}

// pytimezoneRepr renders datetime.timezone with offset seconds east of UTC.
func pytimezoneRepr(offset int) string {
	if offset == 0 {
		return "datetime.timezone.utc"
	}
	days, secs := offset/86400, offset%86400
	if secs < 0 {
		days--
		secs += 86400
	}
	delta := fmt.Sprintf("seconds=%d", secs)
	if days != 0 {
		delta = fmt.Sprintf("days=%d, %s", days, delta)
	}
	return "datetime.timezone(datetime.timedelta(" + delta + "))"
}
