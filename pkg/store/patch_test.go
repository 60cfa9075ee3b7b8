package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchRoundTrip(t *testing.T) {
	patches := []PatchInfo{
		{Start: 0, End: 4, Data: []byte("plain")},
		{Start: 10, End: 10, Data: []byte("\x00 %,\nand more")},
		{Start: 20, End: 25, Data: nil},
	}
	encoded := EncodePatch(patches)
	decoded, err := ParsePatch(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(patches))
	for i := range patches {
		assert.Equal(t, patches[i].Start, decoded[i].Start)
		assert.Equal(t, patches[i].End, decoded[i].End)
		assert.Equal(t, string(patches[i].Data), string(decoded[i].Data))
	}
}

func TestEncodePatchEscaping(t *testing.T) {
	encoded := EncodePatch([]PatchInfo{{Start: 0, End: 0, Data: []byte("\x00 /ab")}})
	assert.Equal(t, "0,0,%00%20%2Fab", string(encoded))
}

func TestParsePatchTrailingEscape(t *testing.T) {
	// An escape triple sitting at the very end of the buffer decodes too.
	patches, err := ParsePatch([]byte("0,0,%0A"))
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, []byte("\n"), patches[0].Data)
}

func TestParsePatchRejectsMalformed(t *testing.T) {
	for _, b := range []string{
		"notanumber,2,x",
		"1,notanumber,x",
		"1,2",
		"5,2,backwards",
	} {
		_, err := ParsePatch([]byte(b))
		assert.Error(t, err, "patch=%q", b)
	}
}

func TestApplyPatchUsesOriginalOffsets(t *testing.T) {
	// Both starts index the original text. Patching a buffer in place and
	// reusing the offsets would land the second patch in the wrong spot.
	input := []byte("abcdef")
	patches := []PatchInfo{
		{Start: 1, End: 2, Data: []byte("XX")},
		{Start: 4, End: 5, Data: []byte("Y")},
	}
	assert.Equal(t, "aXXcdYf", string(ApplyPatch(patches, input)))
}

func TestApplyPatchAppend(t *testing.T) {
	patches := []PatchInfo{{Start: 4, End: 4, Data: []byte("\x00\x00")}}
	assert.Equal(t, "text\x00\x00", string(ApplyPatch(patches, []byte("text"))))
}

func TestTextDiffIdentity(t *testing.T) {
	cases := [][2]string{
		{"same", "same"},
		{"abcXdef", "abcYdef"},
		{"prefix only differs at end1", "prefix only differs at end2"},
		{"t\x00\x00", "t"},
		{"t", "t\x00\x00"},
		{"", "something"},
		{"something", ""},
		{"aaaa", "aa"},
		{"completely", "different"},
	}
	for _, c := range cases {
		truth, current := []byte(c[0]), []byte(c[1])
		patch := TextDiff(truth, current)
		assert.Equal(t, string(truth), string(ApplyPatch(patch, current)), "truth=%q current=%q", c[0], c[1])
	}
}

func TestTextDiffEqualIsEmpty(t *testing.T) {
	assert.Nil(t, TextDiff([]byte("same"), []byte("same")))
}
