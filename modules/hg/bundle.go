package hg

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/cinnabar-scm/cinnabar/modules/streamio"
)

// Bundle magics. HG10 carries its compression in the two bytes that follow;
// HG20 declares it in the stream-level parameters.
var (
	BundleV1Magic = []byte("HG10")
	BundleV2Magic = []byte("HG20")
)

// IsBundleMagic reports whether b starts a Mercurial bundle.
func IsBundleMagic(b []byte) bool {
	return bytes.HasPrefix(b, BundleV1Magic) || bytes.HasPrefix(b, BundleV2Magic)
}

// DecompressBundleReader normalizes a bundle stream: a v1 bundle is
// rewritten as HG10UN with its payload decompressed, a v2 bundle passes
// through verbatim. The result is what bundle consumers expect to parse.
type DecompressBundleReader struct {
	src    io.Reader
	out    io.Reader
	inited bool
	err    error
}

func NewDecompressBundleReader(r io.Reader) *DecompressBundleReader {
	return &DecompressBundleReader{src: r}
}

func (d *DecompressBundleReader) init() {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(d.src, magic); err != nil {
		d.err = fmt.Errorf("hg: short bundle header: %w", err)
		return
	}
	if bytes.Equal(magic, BundleV2Magic) {
		d.out = io.MultiReader(bytes.NewReader(magic), d.src)
		return
	}
	if !bytes.Equal(magic, BundleV1Magic) {
		d.err = fmt.Errorf("hg: not a bundle: bad magic %q", magic)
		return
	}
	comp := make([]byte, 2)
	if _, err := io.ReadFull(d.src, comp); err != nil {
		d.err = fmt.Errorf("hg: short bundle header: %w", err)
		return
	}
	header := bytes.NewReader([]byte("HG10UN"))
	switch string(comp) {
	case "GZ":
		zr, err := streamio.NewZlibReader(d.src)
		if err != nil {
			d.err = err
			return
		}
		d.out = io.MultiReader(header, zr)
	case "BZ":
		// The bundle format strips the "BZ" magic from the bzip2 stream.
		d.out = io.MultiReader(header, bzip2.NewReader(io.MultiReader(bytes.NewReader([]byte("BZ")), d.src)))
	case "UN":
		d.out = io.MultiReader(header, d.src)
	default:
		d.err = fmt.Errorf("hg: unknown bundle compression %q", comp)
	}
}

func (d *DecompressBundleReader) Read(p []byte) (int, error) {
	if !d.inited {
		d.inited = true
		d.init()
	}
	if d.err != nil {
		return 0, d.err
	}
	return d.out.Read(p)
}
