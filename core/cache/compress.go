package cache

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// DefaultCompressionThreshold is the payload size above which values are compressed.
const DefaultCompressionThreshold = 1024

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "gzip reader")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	return out, errors.Wrap(err, "gzip read")
}

// Decode returns the uncompressed value of e.
func Decode(e *Entry) ([]byte, error) {
	if !e.Compressed {
		return e.Value, nil
	}
	return decompress(e.Value)
}
