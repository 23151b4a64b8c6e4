// Package pklbridge moves objects in between Go and Python through pickles.
//
// It is a thin layer over ogórek (github.com/kisielk/og-rek): pickles are
// decoded and encoded by ogórek, and pklbridge only adds the text and file
// plumbing that Python-side helpers usually wrap around pickle.
//
// Use LoadString to decode base64 text that holds a pickle, for example one
// produced on Python side with
//
//	codecs.encode(pickle.dumps(obj, protocol=4), "base64").decode()
//
// and DumpString for the reverse direction:
//
//	obj, err := pklbridge.LoadString(s)  // obj is any as decoded by ogórek
//	s, err = pklbridge.DumpString(obj)   // s is base64 text, 76 columns per line
//
// Use ReadTable to load a pickled table snapshot and WriteTable to produce
// one that pandas.read_pickle loads as a DataFrame:
//
//	t, err := pklbridge.ReadTable("frame.pkl")
//	rows, cols := t.Shape()
//
// The following layouts are recognized as tables:
//
//	Python						Go
//	------						--
//
//	pandas.DataFrame(rows, index, columns)	→	Table{Columns, Index, Rows}
//	[[1, 'a'], [2, 'b']]			→	Table{Columns: {"0", "1"}, ...}
//	[{'x': 1}, {'x': 2}]			→	Table{Columns: {"x"}, ...}
//	{'x': [1, 2], 'y': [3, 4]}		→	Table{Columns: {"x", "y"}, ...}
//
// Table cells keep ogórek's mapping with two exceptions: None becomes nil,
// and datetime.datetime, datetime.date and pandas.Timestamp become time.Time.
//
// Errors from base64 decoding, from ogórek and from the filesystem are
// returned wrapped, but never translated: errors.Is and errors.As reach the
// original cause, e.g. base64.CorruptInputError, ogórek.OpcodeError or
// fs.ErrNotExist.
//
// Pickles that pandas writes natively for DataFrame objects rebuild their
// block manager with NEWOBJ and BUILD opcodes, which ogórek does not decode.
// Such files fail with ogórek's OpcodeError. Tables that are to be read on Go
// side should be written with WriteTable, or pickled on Python side as
// records, e.g. df.to_dict("list").
package pklbridge
