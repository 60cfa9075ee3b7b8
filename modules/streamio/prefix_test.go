package streamio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixWriter(t *testing.T) {
	var out bytes.Buffer
	w := NewPrefixWriter([]byte("remote: "), &out)
	_, err := w.Write([]byte("abc\ndef\n"))
	assert.NoError(t, err)
	assert.Equal(t, "remote: abc\nremote: def\n", out.String())
}

func TestPrefixWriterSplitAcrossWrites(t *testing.T) {
	var out bytes.Buffer
	w := NewPrefixWriter([]byte("remote: "), &out)
	for _, chunk := range []string{"ab", "c\nde", "f"} {
		_, err := w.Write([]byte(chunk))
		assert.NoError(t, err)
	}
	assert.Equal(t, "remote: abc\nremote: def", out.String())
}

func TestPrefixWriterEmpty(t *testing.T) {
	var out bytes.Buffer
	w := NewPrefixWriter([]byte("remote: "), &out)
	_, err := w.Write(nil)
	assert.NoError(t, err)
	assert.Equal(t, "", out.String())
}
