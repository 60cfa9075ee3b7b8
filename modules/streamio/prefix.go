package streamio

import (
	"bytes"
	"io"
)

// PrefixWriter writes every line of its input to the underlying writer with
// a fixed prefix prepended. A line is only prefixed once its first byte is
// seen, so a final chunk without a trailing newline still gets a prefix and
// an empty write produces nothing.
type PrefixWriter struct {
	w       io.Writer
	prefix  []byte
	midline bool
}

func NewPrefixWriter(prefix []byte, w io.Writer) *PrefixWriter {
	return &PrefixWriter{w: w, prefix: prefix}
}

func (p *PrefixWriter) Write(b []byte) (int, error) {
	total := len(b)
	for len(b) > 0 {
		if !p.midline {
			if _, err := p.w.Write(p.prefix); err != nil {
				return total - len(b), err
			}
			p.midline = true
		}
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			if _, err := p.w.Write(b); err != nil {
				return total - len(b), err
			}
			break
		}
		if _, err := p.w.Write(b[:i+1]); err != nil {
			return total - len(b), err
		}
		p.midline = false
		b = b[i+1:]
	}
	return total, nil
}
