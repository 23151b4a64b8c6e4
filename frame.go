package pklbridge
// Table snapshots as pickles.

import (
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	ogórek "github.com/kisielk/og-rek"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// classDataFrame is what WriteTable pickles tables as.
var classDataFrame = ogórek.Class{Module: "pandas.core.frame", Name: "DataFrame"}

// isDataFrame returns whether c is pandas.DataFrame.
func isDataFrame(c ogórek.Class) bool {
	return c.Name == "DataFrame" && (c.Module == "pandas" || c.Module == "pandas.core.frame")
}

// ReadTable reads table snapshot from the pickle file at path.
//
// If the file cannot be opened, the error from os.Open is returned wrapped,
// e.g. errors.Is(err, fs.ErrNotExist) holds for a missing file.
//
// See ReadTableFrom for the layouts recognized as tables.
func (b *Bridge) ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "pklbridge: read table")
	}
	defer f.Close()

	t, err := b.ReadTableFrom(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return t, nil
}

// ReadTableFrom reads table snapshot pickle from r.
//
// The pickle must hold one of:
//
//   - pandas.DataFrame(data[, index[, columns]]) call, with data being one of below;
//   - list of rows, each row a list or tuple;
//   - list of records, each record a dict;
//   - dict of columns, each column a list or tuple.
//
// Anything else fails with ErrNotTable. Decoding errors from ogórek are
// returned wrapped as is.
func (b *Bridge) ReadTableFrom(r io.Reader) (*Table, error) {
	obj, err := b.newDecoder(r).Decode()
	if err != nil {
		return nil, errors.Wrap(err, "pklbridge: unpickle")
	}

	t, layout, err := tableOf(obj)
	if err != nil {
		return nil, err
	}

	rows, cols := t.Shape()
	b.log.Debug("table loaded",
		zap.String("layout", layout),
		zap.Int("rows", rows),
		zap.Int("cols", cols))
	return t, nil
}

// WriteTable writes t as a pickle file at path.
//
// The file is written only if t could be pickled as a whole.
// See WriteTableTo for details.
func (b *Bridge) WriteTable(path string, t *Table) error {
	data, err := b.tablePickle(t)
	if err != nil {
		return err
	}
	err = os.WriteFile(path, data, 0o666)
	if err != nil {
		return errors.Wrap(err, "pklbridge: write table")
	}
	return nil
}

// WriteTableTo writes t as a pickle into w.
//
// The table is pickled as pandas.core.frame.DataFrame(rows, index, columns)
// call, which pandas.read_pickle loads as a DataFrame and ReadTable loads
// back into a table with the same shape and cells.
func (b *Bridge) WriteTableTo(w io.Writer, t *Table) error {
	data, err := b.tablePickle(t)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if err != nil {
		return errors.Wrap(err, "pklbridge: write table")
	}
	return nil
}

func (b *Bridge) tablePickle(t *Table) ([]byte, error) {
	err := t.validate()
	if err != nil {
		return nil, err
	}

	rows := lo.Map(t.Rows, func(row []any, _ int) any { return row })
	var index any = ogórek.None{}
	if t.Index != nil {
		index = t.Index
	}
	columns := lo.Map(t.Columns, func(c string, _ int) any { return c })

	data, err := b.pickle(ogórek.Call{
		Callable: classDataFrame,
		Args:     ogórek.Tuple{rows, index, columns},
	})
	if err != nil {
		return nil, err
	}

	nrows, ncols := t.Shape()
	b.log.Debug("table pickled",
		zap.Int("rows", nrows),
		zap.Int("cols", ncols),
		zap.Int("size", len(data)))
	return data, nil
}

// tableOf interprets unpickled obj as table.
//
// It returns the table and the name of the layout obj was found to have.
func tableOf(obj any) (*Table, string, error) {
	call, ok := obj.(ogórek.Call)
	if !ok {
		return dataOf(obj, nil)
	}
	if !isDataFrame(call.Callable) {
		return nil, "", notTable("call to %s.%s", call.Callable.Module, call.Callable.Name)
	}
	t, layout, err := frameOf(call.Args)
	return t, "DataFrame/" + layout, err
}

// frameOf handles arguments of DataFrame(data, index, columns, dtype, copy).
//
// dtype and copy do not affect cells and are ignored.
func frameOf(argv ogórek.Tuple) (*Table, string, error) {
	if len(argv) > 5 {
		return nil, "", notTable("DataFrame with %d args", len(argv))
	}
	arg := func(i int) any {
		if i < len(argv) {
			return argv[i]
		}
		return ogórek.None{}
	}

	var columns []string
	if x := arg(2); x != (ogórek.None{}) {
		l, ok := asList(x)
		if !ok {
			return nil, "", notTable("DataFrame columns: %T", x)
		}
		columns = lo.Map(l, func(c any, _ int) string { return AsLabel(c) })
	}

	var index []any
	if x := arg(1); x != (ogórek.None{}) {
		l, ok := asList(x)
		if !ok {
			return nil, "", notTable("DataFrame index: %T", x)
		}
		index = lo.Map(l, func(c any, _ int) any { return cell(c) })
	}

	data := arg(0)
	if isEmpty(data) && index != nil {
		// DataFrame(None, index, columns) is all missing cells.
		t := NewTable(columns...)
		for range index {
			t.Rows = append(t.Rows, make([]any, len(columns)))
		}
		t.Index = index
		return t, "empty", nil
	}

	t, layout, err := dataOf(data, columns)
	if err != nil {
		return nil, "", err
	}
	if index != nil {
		if len(index) != len(t.Rows) {
			return nil, "", notTable("index has %d labels, data has %d rows", len(index), len(t.Rows))
		}
		t.Index = index
	}
	return t, layout, nil
}

// dataOf interprets data as rows, records or dict of columns.
//
// columns, if not nil, gives labels of the table columns.
func dataOf(data any, columns []string) (*Table, string, error) {
	if isEmpty(data) {
		return NewTable(columns...), "empty", nil
	}

	if d, ok := data.(map[any]any); ok {
		t, err := columnsOf(d, columns)
		return t, "columns", err
	}

	l, ok := asList(data)
	if !ok {
		return nil, "", notTable("%T", data)
	}

	switch {
	case lo.EveryBy(l, func(x any) bool { _, ok := asList(x); return ok }):
		t, err := rowsOf(l, columns)
		return t, "rows", err
	case lo.EveryBy(l, func(x any) bool { _, ok := x.(map[any]any); return ok }):
		t, err := recordsOf(l, columns)
		return t, "records", err
	}
	return nil, "", notTable("list of %T", l[0])
}

// rowsOf builds table out of list of rows.
//
// Short rows are padded with missing cells. Without columns the labels are
// 0, 1, 2, ... .
func rowsOf(rows []any, columns []string) (*Table, error) {
	width := lo.Max(lo.Map(rows, func(x any, _ int) int { l, _ := asList(x); return len(l) }))
	if columns == nil {
		columns = make([]string, width)
		for j := range columns {
			columns[j] = strconv.Itoa(j)
		}
	}
	if width != len(columns) {
		return nil, notTable("%d columns passed, rows have %d", len(columns), width)
	}

	t := NewTable(columns...)
	for _, x := range rows {
		l, _ := asList(x)
		row := make([]any, width)
		for j, c := range l {
			row[j] = cell(c)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// recordsOf builds table out of list of dicts.
//
// Without columns the labels are sorted union of all keys. A key missing
// in a record gives missing cell.
func recordsOf(records []any, columns []string) (*Table, error) {
	recv := lo.Map(records, func(x any, _ int) map[string]any {
		return labelled(x.(map[any]any))
	})
	if columns == nil {
		columns = lo.Uniq(lo.FlatMap(recv, func(rec map[string]any, _ int) []string {
			return lo.Keys(rec)
		}))
		slices.Sort(columns)
	}

	t := NewTable(columns...)
	for _, rec := range recv {
		t.Rows = append(t.Rows, lo.Map(columns, func(c string, _ int) any {
			return cell(rec[c])
		}))
	}
	return t, nil
}

// columnsOf builds table out of dict of columns.
//
// All columns must have the same length. Without columns the labels are
// sorted dict keys; a label missing in the dict gives column of missing cells.
func columnsOf(d map[any]any, columns []string) (*Table, error) {
	colv := make(map[string][]any, len(d))
	nrows := -1
	for key, v := range labelled(d) {
		l, ok := asList(v)
		if !ok {
			return nil, notTable("column %q: %T", key, v)
		}
		if nrows >= 0 && len(l) != nrows {
			return nil, notTable("column %q has %d cells, other columns have %d", key, len(l), nrows)
		}
		nrows = len(l)
		colv[key] = l
	}
	if columns == nil {
		columns = lo.Keys(colv)
		slices.Sort(columns)
	}

	t := NewTable(columns...)
	for i := 0; i < max(nrows, 0); i++ {
		t.Rows = append(t.Rows, lo.Map(columns, func(c string, _ int) any {
			col, ok := colv[c]
			if !ok {
				return nil
			}
			return cell(col[i])
		}))
	}
	return t, nil
}

// labelled converts keys of unpickled dict d to labels.
func labelled(d map[any]any) map[string]any {
	return lo.MapKeys(d, func(_ any, k any) string { return AsLabel(k) })
}

// asList returns x as list if it is Python list or tuple.
func asList(x any) ([]any, bool) {
	switch x := x.(type) {
	case []any:
		return x, true
	case ogórek.Tuple:
		return x, true
	}
	return nil, false
}

// isEmpty returns whether x is None or empty list, tuple or dict.
func isEmpty(x any) bool {
	switch x := x.(type) {
	case nil, ogórek.None:
		return true
	case []any:
		return len(x) == 0
	case ogórek.Tuple:
		return len(x) == 0
	case map[any]any:
		return len(x) == 0
	}
	return false
}
