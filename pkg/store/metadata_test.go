package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
)

const (
	testChangesetHex = "91b2cb09a3f5ba092cbfbee1c2e0a0b63aeb0e5c"
	testManifestHex  = "7d3f2ab8c1454c0e6634ea723540e31987a84b25"
)

func mustChangesetId(t *testing.T, s string) hg.ChangesetId {
	t.Helper()
	id, err := hg.NewChangesetId(s)
	require.NoError(t, err)
	return id
}

func TestMetadataParse(t *testing.T) {
	blob := []byte("changeset " + testChangesetHex + "\n" +
		"manifest " + testManifestHex + "\n" +
		"author Alice <alice@example.com>\n" +
		"extra branch:stable\n" +
		"files a.txt\x00b.txt\n" +
		"patch 0,1,%00\n")
	m, err := ParseMetadata(blob)
	require.NoError(t, err)
	assert.Equal(t, testChangesetHex, m.ChangesetId.String())
	assert.Equal(t, testManifestHex, m.ManifestId.String())
	assert.Equal(t, "Alice <alice@example.com>", string(m.Author))
	assert.Equal(t, "branch:stable", string(m.Extra))
	assert.Equal(t, [][]byte{[]byte("a.txt"), []byte("b.txt")}, m.FileList())
	patches, err := m.PatchList()
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, []byte{0}, patches[0].Data)
}

func TestMetadataDefaultsNullManifest(t *testing.T) {
	m, err := ParseMetadata([]byte("changeset " + testChangesetHex + "\n"))
	require.NoError(t, err)
	assert.True(t, m.ManifestId.IsZero())
	assert.Nil(t, m.Author)
	assert.Nil(t, m.Extra)
	assert.Nil(t, m.Files)
	assert.Nil(t, m.Patch)
}

func TestMetadataRejectsUnknownKey(t *testing.T) {
	_, err := ParseMetadata([]byte("changeset " + testChangesetHex + "\nbogus value\n"))
	assert.Error(t, err)
}

func TestMetadataRejectsMalformed(t *testing.T) {
	for _, blob := range []string{
		"changeset short\n",
		"changeset\n",
		"manifest " + testManifestHex + "\n",
	} {
		_, err := ParseMetadata([]byte(blob))
		assert.Error(t, err, "blob=%q", blob)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	for _, m := range []*ChangesetMetadata{
		{
			ChangesetId: mustChangesetId(t, testChangesetHex),
		},
		{
			ChangesetId: mustChangesetId(t, testChangesetHex),
			ManifestId:  mustManifestId(t, testManifestHex),
			Author:      []byte("Alice <alice@example.com>"),
			Extra:       []byte("branch:stable"),
			Files:       []byte("a.txt\x00b.txt"),
			Patch:       []byte("0,1,%00"),
		},
		{
			ChangesetId: mustChangesetId(t, testChangesetHex),
			Extra:       []byte{},
		},
	} {
		parsed, err := ParseMetadata(m.Bytes())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func mustManifestId(t *testing.T, s string) hg.ManifestId {
	t.Helper()
	id, err := hg.NewManifestId(s)
	require.NoError(t, err)
	return id
}
