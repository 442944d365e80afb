package core

// streaming.go prepares a raw CSV byte stream for decoding:
//
//   - A leading byte order mark is removed. UTF-16 input announced by its BOM
//     is transcoded to UTF-8; anything else passes through untouched so that
//     invalid UTF-8 still reaches the decoder and is reported, not replaced.
//   - Bytes read are counted for the completion log line.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// NewBOMStrippingReader removes a UTF-8 BOM and decodes UTF-16 input that
// starts with a UTF-16 BOM. Input without a BOM is returned unchanged.
func NewBOMStrippingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(transform.Nop))
}

// WrapForDecoding counts raw bytes from r and strips any BOM.
//
// The counter wraps the raw stream so BytesRead reflects the size of the
// resource rather than the decoded text.
func WrapForDecoding(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r)
	return NewBOMStrippingReader(counter), counter
}
