package pklbridge

import (
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Table is an in-memory table snapshot.
//
// Cells are stored row by row; every row has exactly len(Columns) cells.
// Missing cells are nil. Index, if not nil, holds one label per row; nil
// Index means rows are labelled 0, 1, 2, ... .
type Table struct {
	Columns []string
	Index   []any
	Rows    [][]any
}

// NewTable returns empty table with given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns, Rows: [][]any{}}
}

// AppendRow appends one row of cells to t.
//
// The number of cells must match the number of columns. AppendRow cannot be
// used on a table with explicit Index.
func (t *Table) AppendRow(cells ...any) error {
	if len(cells) != len(t.Columns) {
		return errors.Newf("pklbridge: row has %d cells, table has %d columns",
			len(cells), len(t.Columns))
	}
	if t.Index != nil {
		return errors.New("pklbridge: append to table with explicit index")
	}
	t.Rows = append(t.Rows, cells)
	return nil
}

// Shape returns the number of rows and columns in t.
func (t *Table) Shape() (rows, cols int) {
	return len(t.Rows), len(t.Columns)
}

// Column returns cells of the first column labelled name.
func (t *Table) Column(name string) ([]any, bool) {
	j := lo.IndexOf(t.Columns, name)
	if j < 0 {
		return nil, false
	}
	return lo.Map(t.Rows, func(row []any, _ int) any { return row[j] }), true
}

// Row returns cells of i-th row.
func (t *Table) Row(i int) []any {
	return t.Rows[i]
}

// Label returns label of i-th row.
func (t *Table) Label(i int) any {
	if t.Index == nil {
		return int64(i)
	}
	return t.Index[i]
}

// Records returns rows of t as column label -> cell maps.
//
// With duplicate labels the leftmost column wins.
func (t *Table) Records() []map[string]any {
	return lo.Map(t.Rows, func(row []any, _ int) map[string]any {
		rec := make(map[string]any, len(t.Columns))
		for j := len(t.Columns) - 1; j >= 0; j-- {
			rec[t.Columns[j]] = row[j]
		}
		return rec
	})
}

// Equal reports whether t and u have the same labels and cells.
//
// Cells are compared so that NaN equals NaN and times are equal if they
// denote the same instant.
func (t *Table) Equal(u *Table) bool {
	if !slices.Equal(t.Columns, u.Columns) {
		return false
	}
	if (t.Index == nil) != (u.Index == nil) || !cellsEqual(t.Index, u.Index) {
		return false
	}
	if len(t.Rows) != len(u.Rows) {
		return false
	}
	for i := range t.Rows {
		if !cellsEqual(t.Rows[i], u.Rows[i]) {
			return false
		}
	}
	return true
}

// String renders t as text with one line per row, cells in Python representation.
func (t *Table) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', tabwriter.AlignRight)
	w.Write([]byte("\t" + strings.Join(t.Columns, "\t") + "\t\n"))
	for i, row := range t.Rows {
		cells := append([]string{AsLabel(t.Label(i))}, lo.Map(row, func(x any, _ int) string { return Repr(x) })...)
		w.Write([]byte(strings.Join(cells, "\t") + "\t\n"))
	}
	w.Flush()
	return b.String()
}

// validate checks that t is well formed.
func (t *Table) validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return errors.Newf("pklbridge: row %d has %d cells, table has %d columns",
				i, len(row), len(t.Columns))
		}
	}
	if t.Index != nil && len(t.Index) != len(t.Rows) {
		return errors.Newf("pklbridge: index has %d labels, table has %d rows",
			len(t.Index), len(t.Rows))
	}
	return nil
}
