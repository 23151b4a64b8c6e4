package pklbridge

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrNotTable is returned by ReadTable when the pickle decodes fine,
	// but does not hold any of the recognized table layouts.
	ErrNotTable = errors.New("pklbridge: pickle does not hold a table")

	// ErrUnsupportedType is returned by DumpString when the object holds a
	// value pickle cannot represent, e.g. a func or a chan.
	ErrUnsupportedType = errors.New("pklbridge: unsupported type")

	// ErrCycle is returned by DumpString when the object references itself.
	ErrCycle = errors.New("pklbridge: reference cycle")

	// ErrProtocol is returned when Config.Protocol is not 3 or 4.
	ErrProtocol = errors.New("pklbridge: unsupported pickle protocol")
)

// notTable returns ErrNotTable annotated with what was found instead.
func notTable(format string, argv ...any) error {
	return errors.Wrapf(ErrNotTable, format, argv...)
}
