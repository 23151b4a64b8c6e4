package pklbridge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// LoadString decodes base64 text s into the pickled object.
//
// Whitespace in s is ignored, so text wrapped into lines, as produced by
// Python's codecs.encode(..., "base64"), is accepted. Otherwise s must be
// valid standard base64: on malformed input the returned error wraps
// base64.CorruptInputError and no object is returned.
//
// The pickle is decoded by ogórek and the result follows ogórek's mapping
// of Python types. Decoding errors are returned wrapped as is.
func (b *Bridge) LoadString(s string) (any, error) {
	data, err := base64.StdEncoding.DecodeString(stripSpace(s))
	if err != nil {
		return nil, errors.Wrap(err, "pklbridge: base64")
	}

	obj, err := b.newDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, errors.Wrap(err, "pklbridge: unpickle")
	}

	b.log.Debug("pickle loaded",
		zap.Int("size", len(data)),
		zap.String("type", fmt.Sprintf("%T", obj)))
	return obj, nil
}

// DumpString pickles obj and returns the pickle as base64 text.
//
// The text is laid out the way Python's codecs.encode(..., "base64") does
// it: lines of Config.LineWidth characters, each terminated with "\n".
//
// time.Time values are pickled as Python datetime.datetime. Structs are
// pickled as dicts the way ogórek encoder does it: if any field carries
// `pickle:"name"` tag only tagged fields are included, otherwise all
// exported fields are. ogórek.Dict is pickled as dict.
//
// Values pickle cannot represent (funcs, chans, complex numbers, unsafe
// pointers), dict keys Python cannot hash (arrays, slices, maps, structs)
// and reference cycles are rejected with ErrUnsupportedType and ErrCycle
// before anything is encoded.
func (b *Bridge) DumpString(obj any) (string, error) {
	data, err := b.pickle(obj)
	if err != nil {
		return "", err
	}

	s := wrapBase64(data, b.config.LineWidth)
	b.log.Debug("pickle dumped",
		zap.Int("size", len(data)),
		zap.Int("protocol", b.config.Protocol))
	return s, nil
}

// pickle encodes obj into pickle bytes.
func (b *Bridge) pickle(obj any) ([]byte, error) {
	if p := b.config.Protocol; p != 3 && p != 4 {
		return nil, errors.Wrapf(ErrProtocol, "protocol %d", p)
	}

	v, err := prepare(obj, b.config.PersistentRef)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = b.newEncoder(&buf).Encode(v)
	if err != nil {
		return nil, errors.Wrap(err, "pklbridge: pickle")
	}
	return buf.Bytes(), nil
}

// wrapBase64 encodes data as standard base64 with lines of width characters.
//
// width < 0 means no wrapping and no trailing newline.
func wrapBase64(data []byte, width int) string {
	enc := base64.StdEncoding.EncodeToString(data)
	if width < 0 || len(enc) == 0 {
		return enc
	}

	var sb strings.Builder
	sb.Grow(len(enc) + len(enc)/width + 1)
	for len(enc) > 0 {
		n := min(width, len(enc))
		sb.WriteString(enc[:n])
		sb.WriteByte('\n')
		enc = enc[n:]
	}
	return sb.String()
}

// stripSpace removes ASCII whitespace from s.
func stripSpace(s string) string {
	if strings.IndexAny(s, " \t\n\v\f\r") < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\v', '\f', '\r':
			return -1
		}
		return r
	}, s)
}
