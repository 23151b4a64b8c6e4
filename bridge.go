package pklbridge

import (
	"io"

	ogórek "github.com/kisielk/og-rek"
	"go.uber.org/zap"
)

const (
	// DefaultProtocol is the pickle protocol used for encoding by default.
	DefaultProtocol = 4

	// DefaultLineWidth is the base64 line width Python's codecs.encode(..., "base64") uses.
	DefaultLineWidth = 76
)

// Config allows to tune Bridge.
type Config struct {
	// Protocol is the pickle protocol used by DumpString and WriteTable.
	//
	// Only protocols 3 and 4 are accepted: earlier protocols encode Go
	// strings as Python2 str, which Python3 unpickles as ASCII. Zero means
	// DefaultProtocol.
	Protocol int

	// LineWidth is the length of base64 lines produced by DumpString.
	// Every line, including the last one, is terminated with "\n".
	// Zero means DefaultLineWidth, negative disables wrapping.
	LineWidth int

	// PersistentLoad, if !nil, is passed to ogórek decoder.
	// See ogórek.DecoderConfig.PersistentLoad for details.
	PersistentLoad func(ref ogórek.Ref) (interface{}, error)

	// PersistentRef, if !nil, is consulted for every value DumpString and
	// WriteTable encode, before pointers are followed. A non-nil result is
	// pickled as persistent reference instead of the value.
	// See ogórek.EncoderConfig.PersistentRef for details.
	PersistentRef func(obj interface{}) *ogórek.Ref

	// Logger receives debug traces. nil means no logging.
	Logger *zap.Logger
}

// Bridge converts objects and table snapshots in between Go and pickles.
//
// Bridge has no mutable state and is safe for concurrent use.
type Bridge struct {
	config Config
	log    *zap.Logger
}

// New returns Bridge with default configuration.
func New() *Bridge {
	return NewWithConfig(&Config{})
}

// NewWithConfig is similar to New, but allows specifying bridge configuration.
//
// The config is copied and can be reused by the caller.
func NewWithConfig(config *Config) *Bridge {
	b := &Bridge{config: *config, log: config.Logger}
	if b.config.Protocol == 0 {
		b.config.Protocol = DefaultProtocol
	}
	if b.config.LineWidth == 0 {
		b.config.LineWidth = DefaultLineWidth
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	return b
}

func (b *Bridge) newDecoder(r io.Reader) *ogórek.Decoder {
	return ogórek.NewDecoderWithConfig(r, &ogórek.DecoderConfig{
		PersistentLoad: b.config.PersistentLoad,
	})
}

func (b *Bridge) newEncoder(w io.Writer) *ogórek.Encoder {
	return ogórek.NewEncoderWithConfig(w, &ogórek.EncoderConfig{
		Protocol: b.config.Protocol,
	})
}

var std = New()

// LoadString decodes base64 text s into the pickled object.
//
// See Bridge.LoadString for details.
func LoadString(s string) (any, error) {
	return std.LoadString(s)
}

// DumpString pickles obj and returns the pickle as base64 text.
//
// See Bridge.DumpString for details.
func DumpString(obj any) (string, error) {
	return std.DumpString(obj)
}

// ReadTable reads table snapshot from the pickle file at path.
//
// See Bridge.ReadTable for details.
func ReadTable(path string) (*Table, error) {
	return std.ReadTable(path)
}

// ReadTableFrom reads table snapshot pickle from r.
func ReadTableFrom(r io.Reader) (*Table, error) {
	return std.ReadTableFrom(r)
}

// WriteTable writes t as a pickle file at path.
//
// See Bridge.WriteTable for details.
func WriteTable(path string, t *Table) error {
	return std.WriteTable(path, t)
}

// WriteTableTo writes t as a pickle into w.
func WriteTableTo(w io.Writer, t *Table) error {
	return std.WriteTableTo(w, t)
}
