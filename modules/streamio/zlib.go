package streamio

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// NewZlibReader returns a reader decompressing the zlib stream in r.
// zlib.NewReader reads the two-byte header eagerly, so construction can
// fail on a truncated stream.
func NewZlibReader(r io.Reader) (io.ReadCloser, error) {
	return zlib.NewReader(r)
}

// NewZlibWriter returns a writer compressing into w at the default level.
func NewZlibWriter(w io.Writer) *zlib.Writer {
	return zlib.NewWriter(w)
}
