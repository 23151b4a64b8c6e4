package pklbridge

import (
	"encoding/base64"
	"io"
	"math/big"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	ogórek "github.com/kisielk/og-rek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// pickles produced on Python side with
//
//	codecs.encode(pickle.dumps(obj, protocol=N), "base64").decode()
//
// for obj = {"a": [1, 2.5, None], "b": "héllo", "c": b"\x00\x01", "d": (1, True)}
const (
	pyText5 = "gAWVOAAAAAAAAAB9lCiMAWGUXZQoSwFHQAQAAAAAAABOZYwBYpSMBmjDqWxsb5SMAWOUQwIAAZSM\n" +
		"AWSUSwGIhpR1Lg==\n"
	pyText2 = "gAJ9cQAoWAEAAABhcQFdcQIoSwFHQAQAAAAAAABOZVgBAAAAYnEDWAYAAABow6lsbG9xBFgBAAAA\n" +
		"Y3EFY19jb2RlY3MKZW5jb2RlCnEGWAIAAAAAAXEHWAYAAABsYXRpbjFxCIZxCVJxClgBAAAAZHEL\n" +
		"SwGIhnEMdS4=\n"
)

var pyObject = map[any]any{
	"a": []any{int64(1), 2.5, ogórek.None{}},
	"b": "héllo",
	"c": ogórek.Bytes("\x00\x01"),
	"d": ogórek.Tuple{int64(1), true},
}

// list(range(40)) pickled with protocol 4; wraps into 2 lines.
const pyTextRange = "gASVVQAAAAAAAABdlChLAEsBSwJLA0sESwVLBksHSwhLCUsKSwtLDEsNSw5LD0sQSxFLEksTSxRL\n" +
	"FUsWSxdLGEsZSxpLG0scSx1LHksfSyBLIUsiSyNLJEslSyZLJ2Uu\n"

func TestLoadString(t *testing.T) {
	testv := []struct {
		name string
		in   string
		out  any
	}{
		{"protocol 5", pyText5, pyObject},
		{"protocol 2", pyText2, pyObject},
		{"unwrapped", strings.ReplaceAll(pyText5, "\n", ""), pyObject},
		{"crlf", strings.ReplaceAll(pyText5, "\n", "\r\n"), pyObject},
		{"scalar", base64.StdEncoding.EncodeToString([]byte("\x80\x04K*.")), int64(42)},
	}

	for _, tt := range testv {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := LoadString(tt.in)
			require.NoError(t, err)
			if !reflect.DeepEqual(obj, tt.out) {
				t.Errorf("have: %#v\nwant: %#v", obj, tt.out)
			}
		})
	}

	obj, err := LoadString(pyTextRange)
	require.NoError(t, err)
	l, ok := obj.([]any)
	require.True(t, ok, "%T", obj)
	require.Len(t, l, 40)
	for i, x := range l {
		assert.Equal(t, int64(i), x)
	}
}

func TestLoadStringError(t *testing.T) {
	b64 := func(pickle string) string {
		return base64.StdEncoding.EncodeToString([]byte(pickle))
	}

	t.Run("not base64", func(t *testing.T) {
		for _, in := range []string{"not base64!", "gAWV*AAA", "gAW", "=AAA"} {
			obj, err := LoadString(in)
			var corrupt base64.CorruptInputError
			if !errors.As(err, &corrupt) {
				t.Errorf("%q: error %v  ; want base64.CorruptInputError", in, err)
			}
			if obj != nil {
				t.Errorf("%q: partial result %#v", in, obj)
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := LoadString("")
		assert.True(t, errors.Is(err, io.EOF), "%v", err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := LoadString(b64("\x80\x04K"))
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "%v", err)
	})

	t.Run("unknown opcode", func(t *testing.T) {
		_, err := LoadString(b64("\xff"))
		var opErr ogórek.OpcodeError
		assert.True(t, errors.As(err, &opErr), "%v", err)
	})

	t.Run("bad protocol", func(t *testing.T) {
		_, err := LoadString(b64("\x80\xffN."))
		assert.True(t, errors.Is(err, ogórek.ErrInvalidPickleVersion), "%v", err)
	})
}

type point struct {
	X, Y  int
	Label string
	note  string
}

type tagged struct {
	A    int `pickle:"a"`
	B    int
	Skip int `pickle:"-"`
}

func TestDumpStringRoundTrip(t *testing.T) {
	decimal := ogórek.Call{
		Callable: ogórek.Class{Module: "decimal", Name: "Decimal"},
		Args:     ogórek.Tuple{"3.14"},
	}

	testv := []struct {
		name    string
		in, out any
	}{
		{"int", int64(42), int64(42)},
		{"negative int", int64(-70000), int64(-70000)},
		{"float", 3.5, 3.5},
		{"bool", true, true},
		{"none", nil, ogórek.None{}},
		{"str", "héllo", "héllo"},
		{"bytes", ogórek.Bytes("\x00\x01\xff"), ogórek.Bytes("\x00\x01\xff")},
		{"list", []any{int64(1), "a", nil}, []any{int64(1), "a", ogórek.None{}}},
		{"typed list", []int{1, 2}, []any{int64(1), int64(2)}},
		{"tuple", ogórek.Tuple{int64(1), 2.0}, ogórek.Tuple{int64(1), 2.0}},
		{"dict", map[any]any{"k": []any{int64(1)}}, map[any]any{"k": []any{int64(1)}}},
		{"typed dict", map[string]int{"a": 1}, map[any]any{"a": int64(1)}},
		{"struct", point{1, 2, "p", "skipped"}, map[any]any{"X": int64(1), "Y": int64(2), "Label": "p"}},
		{"pointer", &point{3, 4, "q", ""}, map[any]any{"X": int64(3), "Y": int64(4), "Label": "q"}},
		{"tagged struct", tagged{1, 2, 3}, map[any]any{"a": int64(1)}},
		{"Dict", ogórek.NewDictWithData("a", int64(1), "b", []int{2}),
			map[any]any{"a": int64(1), "b": []any{int64(2)}}},
		{"empty Dict", ogórek.Dict{}, map[any]any{}},
		{"prefix slice", prefixSlice(), []any{ogórek.None{}, []any{ogórek.None{}}}},
		{"call", decimal, decimal},
		{"class", decimal.Callable, decimal.Callable},
	}

	for _, tt := range testv {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DumpString(tt.in)
			require.NoError(t, err)

			obj, err := LoadString(s)
			require.NoError(t, err)
			if !reflect.DeepEqual(obj, tt.out) {
				t.Errorf("%#v -> %q -> %#v  ; want %#v", tt.in, s, obj, tt.out)
			}
		})
	}
}

func TestDumpStringBigAndTime(t *testing.T) {
	n, _ := new(big.Int).SetString("1180591620717411303424", 10) // 2**70
	s, err := DumpString(n)
	require.NoError(t, err)
	obj, err := LoadString(s)
	require.NoError(t, err)
	m, ok := obj.(*big.Int)
	require.True(t, ok, "%T", obj)
	assert.Zero(t, n.Cmp(m))

	for _, tm := range []time.Time{
		time.Date(2024, 3, 5, 14, 30, 15, 250000000, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.FixedZone("EST", -5*3600)),
	} {
		s, err := DumpString(tm)
		require.NoError(t, err)
		obj, err := LoadString(s)
		require.NoError(t, err)

		call, ok := obj.(ogórek.Call)
		require.True(t, ok, "%T", obj)
		assert.Equal(t, classDatetime, call.Callable)

		back, err := AsTime(obj)
		require.NoError(t, err)
		assert.True(t, back.Equal(tm), "%v != %v", back, tm)
	}
}

func TestDumpStringLayout(t *testing.T) {
	l := make([]any, 100)
	for i := range l {
		l[i] = int64(i)
	}

	s, err := DumpString(l)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(s, "\n"))
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	require.Greater(t, len(lines), 1)
	for i, line := range lines {
		if i < len(lines)-1 {
			assert.Len(t, line, DefaultLineWidth)
		} else {
			assert.LessOrEqual(t, len(line), DefaultLineWidth)
		}
	}

	flat, err := NewWithConfig(&Config{LineWidth: -1}).DumpString(l)
	require.NoError(t, err)
	assert.NotContains(t, flat, "\n")
	assert.Equal(t, strings.ReplaceAll(s, "\n", ""), flat)

	obj, err := LoadString(flat)
	require.NoError(t, err)
	assert.Equal(t, l, obj)
}

func TestWrapBase64(t *testing.T) {
	testv := []struct {
		data  string
		width int
		out   string
	}{
		{"", 76, ""},
		{"abc", 76, "YWJj\n"},
		{strings.Repeat("\x00", 60), 76, strings.Repeat("A", 76) + "\n" + "AAAA\n"},
		{strings.Repeat("\x00", 57), 76, strings.Repeat("A", 76) + "\n"},
		{"abcdef", 4, "YWJj\nZGVm\n"},
		{"abcdef", -1, "YWJjZGVm"},
	}

	for _, tt := range testv {
		out := wrapBase64([]byte(tt.data), tt.width)
		if out != tt.out {
			t.Errorf("%q/%d -> unexpected:\nhave: %q\nwant: %q", tt.data, tt.width, out, tt.out)
		}
	}
}

func TestDumpStringError(t *testing.T) {
	self := []any{nil}
	self[0] = self

	dict := map[string]any{}
	dict["self"] = dict

	type node struct{ Next *node }
	ring := &node{}
	ring.Next = &node{Next: ring}

	testv := []struct {
		name string
		in   any
		err  error
	}{
		{"func", func() {}, ErrUnsupportedType},
		{"chan", make(chan int), ErrUnsupportedType},
		{"complex", 1 + 2i, ErrUnsupportedType},
		{"nested func", map[string]any{"f": []any{1, func() {}}}, ErrUnsupportedType},
		{"pointer key", map[any]int{new(int): 1}, ErrUnsupportedType},
		{"array key", map[[2]int]int{{1, 2}: 3}, ErrUnsupportedType},
		{"struct key", map[struct{ A int }]int{{1}: 2}, ErrUnsupportedType},
		{"Dict list value", ogórek.NewDictWithData("f", []any{func() {}}), ErrUnsupportedType},
		{"Dict tuple key", ogórek.NewDictWithData(ogórek.Tuple{int64(1), 1 + 2i}, int64(1)), ErrUnsupportedType},
		{"Dict cycle", pydictCycle(), ErrCycle},
		{"year 0", time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC), ErrUnsupportedType},
		{"list cycle", self, ErrCycle},
		{"dict cycle", dict, ErrCycle},
		{"pointer cycle", ring, ErrCycle},
	}

	for _, tt := range testv {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DumpString(tt.in)
			assert.True(t, errors.Is(err, tt.err), "error %v  ; want %v", err, tt.err)
			assert.Empty(t, s)
		})
	}

	t.Run("shared is not cycle", func(t *testing.T) {
		shared := []any{int64(1)}
		s, err := DumpString([]any{shared, shared})
		require.NoError(t, err)
		obj, err := LoadString(s)
		require.NoError(t, err)
		assert.Equal(t, []any{shared, shared}, obj)
	})

	t.Run("protocol", func(t *testing.T) {
		for _, proto := range []int{1, 2, 5} {
			_, err := NewWithConfig(&Config{Protocol: proto}).DumpString(1)
			assert.True(t, errors.Is(err, ErrProtocol), "protocol %d: %v", proto, err)
		}
	})
}

func TestPersistentReferences(t *testing.T) {
	type record struct{ Oid string }

	b := NewWithConfig(&Config{
		PersistentRef: func(obj interface{}) *ogórek.Ref {
			if r, ok := obj.(*record); ok {
				return &ogórek.Ref{Pid: r.Oid}
			}
			return nil
		},
		PersistentLoad: func(ref ogórek.Ref) (interface{}, error) {
			if ref.Pid == "missing" {
				return nil, errors.New("no such record")
			}
			return "loaded:" + ref.Pid.(string), nil
		},
	})

	s, err := b.DumpString([]any{&record{"0x01"}, "plain"})
	require.NoError(t, err)

	obj, err := b.LoadString(s)
	require.NoError(t, err)
	assert.Equal(t, []any{"loaded:0x01", "plain"}, obj)

	// without PersistentLoad the reference stays symbolic.
	obj, err = LoadString(s)
	require.NoError(t, err)
	assert.Equal(t, []any{ogórek.Ref{Pid: "0x01"}, "plain"}, obj)

	s, err = b.DumpString(&record{"missing"})
	require.NoError(t, err)
	_, err = b.LoadString(s)
	assert.ErrorContains(t, err, "no such record")
}

func TestBridgeLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewWithConfig(&Config{Logger: zap.New(core)})

	s, err := b.DumpString([]any{int64(1)})
	require.NoError(t, err)
	_, err = b.LoadString(s)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("pickle dumped").Len())
	loaded := logs.FilterMessage("pickle loaded").All()
	require.Len(t, loaded, 1)
	assert.Equal(t, "[]interface {}", loaded[0].ContextMap()["type"])
}

// prefixSlice returns [None, [None]] with the inner list sharing memory with the outer one.
func prefixSlice() []any {
	x := make([]any, 2)
	x[1] = x[:1]
	return x
}

func pydictCycle() ogórek.Dict {
	d := ogórek.NewDict()
	d.Set("self", d)
	return d
}
