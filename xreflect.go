package pklbridge
// Utilities that complement std reflect package.

import (
	"math"
	"math/big"
	"reflect"
	"time"
)

// cellEqual is like reflect.DeepEqual but with table semantics for cells.
//
// NaN is equal to NaN, since pandas uses NaN to mark missing values.
// time.Time values are equal if they denote the same instant, and big.Int
// values if they hold the same number.
//
// XXX only top-level cells are handled specially.
//     For example NaN inside a list cell still does not equal itself.
func cellEqual(a, b any) bool {
	switch a := a.(type) {
	case float64:
		b, ok := b.(float64)
		if !ok {
			return false
		}
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	case time.Time:
		b, ok := b.(time.Time)
		return ok && a.Equal(b)
	case *big.Int:
		b, ok := b.(*big.Int)
		return ok && a.Cmp(b) == 0
	}
	return reflect.DeepEqual(a, b)
}

// cellsEqual compares two rows of cells with cellEqual.
func cellsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !cellEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
