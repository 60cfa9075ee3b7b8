package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
	"github.com/cinnabar-scm/cinnabar/modules/plumbing"
)

func testCommit(author, committer, body string) *Commit {
	return &Commit{
		Tree:      TreeId{Hash: plumbing.NewHash("4b825dc642cb6eb9a060e54bf8d69288fbee4904")},
		Author:    []byte(author),
		Committer: []byte(committer),
		Body:      []byte(body),
	}
}

func TestTrivialChangesetRoundTrip(t *testing.T) {
	// A changeset whose commit carries all information: the generated
	// metadata needs no author override and no patch.
	raw := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0\nfile.txt\n\nmessage")
	commit := testCommit("Alice <a@x> 0 +0000", "Alice <a@x> 0 +0000", "message")
	csid := raw.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})

	s := newTestStore(t, newMemoryBackend())
	m, err := s.GenerateMetadata(commit, csid, raw)
	require.NoError(t, err)
	assert.Nil(t, m.Patch)
	assert.Nil(t, m.Author)
	assert.Equal(t, testManifestHex, m.ManifestId.String())
	assert.Equal(t, "file.txt", string(m.Files))

	rebuilt, err := s.RawChangesetFromMetadata(commit, m)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(rebuilt))
}

func TestGenerateMetadataAuthorOverride(t *testing.T) {
	// The hg author cannot be derived from the git author, so it is kept
	// verbatim in the metadata.
	raw := hg.RawChangeset(testManifestHex + "\nalice\n0 0\n\nmessage")
	commit := testCommit(" <alice@md.invalid> 0 +0000", " <alice@md.invalid> 0 +0000", "message")
	csid := raw.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})

	s := newTestStore(t, newMemoryBackend())
	m, err := s.GenerateMetadata(commit, csid, raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", string(m.Author))

	rebuilt, err := s.RawChangesetFromMetadata(commit, m)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(rebuilt))
}

func TestGenerateMetadataPatch(t *testing.T) {
	// The changeset kept its files unsorted; reconstruction sorts, so a
	// correction patch is recorded and round-trips the exact bytes.
	raw := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0\nzz.txt\naa.txt\n\nmessage")
	commit := testCommit("Alice <a@x> 0 +0000", "Alice <a@x> 0 +0000", "message")
	csid := raw.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})

	s := newTestStore(t, newMemoryBackend())
	m, err := s.GenerateMetadata(commit, csid, raw)
	require.NoError(t, err)
	require.NotNil(t, m.Patch)

	rebuilt, err := s.RawChangesetFromMetadata(commit, m)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(rebuilt))
}

func TestReconstructSynthesizesCommitterExtra(t *testing.T) {
	raw := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0 committer:Bob <b@x> 100 0\n\nmessage")
	commit := testCommit("Alice <a@x> 0 +0000", "Bob <b@x> 100 +0000", "message")
	csid := raw.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})

	s := newTestStore(t, newMemoryBackend())
	m, err := s.GenerateMetadata(commit, csid, raw)
	require.NoError(t, err)
	assert.Nil(t, m.Patch)

	rebuilt, err := s.RawChangesetFromMetadata(commit, m)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(rebuilt))
}

func TestReconstructNullTruncation(t *testing.T) {
	// Trailing nulls appended by historical conflict resolution: keep
	// exactly as many as make the node id match.
	base := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0\n\nmessage")
	truth := hg.RawChangeset(append(append([]byte(nil), base...), 0, 0))
	commit := testCommit("Alice <a@x> 0 +0000", "Alice <a@x> 0 +0000", "message")
	csid := truth.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})

	s := newTestStore(t, newMemoryBackend())
	m, err := s.GenerateMetadata(commit, csid, truth)
	require.NoError(t, err)
	require.NotNil(t, m.Patch)

	rebuilt, err := s.RawChangesetFromMetadata(commit, m)
	require.NoError(t, err)
	assert.Equal(t, string(truth), string(rebuilt))
	assert.True(t, bytes.HasSuffix(rebuilt, []byte{0, 0}))
}

func TestReconstructTruncatesToShorterMatch(t *testing.T) {
	// The stored patch appends two nulls but only one belongs to the
	// recorded node: reconstruction pops down to the matching length.
	base := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0\n\nmessage")
	oneNull := hg.RawChangeset(append(append([]byte(nil), base...), 0))
	commit := testCommit("Alice <a@x> 0 +0000", "Alice <a@x> 0 +0000", "message")
	csid := oneNull.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})

	m := &ChangesetMetadata{
		ChangesetId: csid,
		ManifestId:  mustManifestId(t, testManifestHex),
		Patch:       EncodePatch([]PatchInfo{{Start: len(base), End: len(base), Data: []byte{0, 0}}}),
	}
	s := newTestStore(t, newMemoryBackend())
	rebuilt, err := s.RawChangesetFromMetadata(commit, m)
	require.NoError(t, err)
	assert.Equal(t, string(oneNull), string(rebuilt))
}

func TestReconstructIntegrityError(t *testing.T) {
	base := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0\n\nmessage")
	commit := testCommit("Alice <a@x> 0 +0000", "Alice <a@x> 0 +0000", "message")

	m := &ChangesetMetadata{
		// A node id that no truncation level will hash to.
		ChangesetId: mustChangesetId(t, testChangesetHex),
		ManifestId:  mustManifestId(t, testManifestHex),
		Patch:       EncodePatch([]PatchInfo{{Start: len(base), End: len(base), Data: []byte{0, 0}}}),
	}
	s := newTestStore(t, newMemoryBackend())
	_, err := s.RawChangesetFromMetadata(commit, m)
	var ierr *IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, m.ChangesetId, ierr.ChangesetId)
}

func TestRawChangesetFromBackend(t *testing.T) {
	raw := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0\nfile.txt\n\nmessage")
	commit := testCommit("Alice <a@x> 0 +0000", "Alice <a@x> 0 +0000", "message")
	csid := raw.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})

	b := newMemoryBackend()
	s := newTestStore(t, b)
	m, err := s.GenerateMetadata(commit, csid, raw)
	require.NoError(t, err)
	cid := b.addChangeset(t, commit, m)

	rebuilt, err := s.RawChangeset(cid)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(rebuilt))

	node, ok := s.ToHg(cid)
	require.True(t, ok)
	assert.Equal(t, csid, node)
	back, ok := s.ToGit(csid)
	require.True(t, ok)
	assert.Equal(t, cid, back)
}

func TestReconstructNullTruncationWithParents(t *testing.T) {
	// The node id of a changeset with parents hashes the parent nodes in
	// ascending order ahead of the text; reconstruction resolves them
	// through the parent commits' metadata.
	b := newMemoryBackend()
	s := newTestStore(t, b)

	parentRaw := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0\n\nparent")
	parentCommit := testCommit("Alice <a@x> 0 +0000", "Alice <a@x> 0 +0000", "parent")
	parentCsid := parentRaw.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})
	pm, err := s.GenerateMetadata(parentCommit, parentCsid, parentRaw)
	require.NoError(t, err)
	parentCid := b.addChangeset(t, parentCommit, pm)

	childBase := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n1 0\n\nchild")
	childTruth := hg.RawChangeset(append(append([]byte(nil), childBase...), 0))
	childCommit := testCommit("Alice <a@x> 1 +0000", "Alice <a@x> 1 +0000", "child")
	childCommit.Parents = []CommitId{parentCid.CommitId}
	childCsid := childTruth.ChangesetId(parentCsid, hg.ChangesetId{})

	cm, err := s.GenerateMetadata(childCommit, childCsid, childTruth)
	require.NoError(t, err)
	rebuilt, err := s.RawChangesetFromMetadata(childCommit, cm)
	require.NoError(t, err)
	assert.Equal(t, string(childTruth), string(rebuilt))
}

func TestPrepareChangesetCommit(t *testing.T) {
	b := newMemoryBackend()
	s := newTestStore(t, b)

	raw := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n10 -3600 committer:Bob <b@x> 20 0\n\nmessage body")
	tree := TreeId{Hash: plumbing.NewHash("4b825dc642cb6eb9a060e54bf8d69288fbee4904")}
	text, err := s.PrepareChangesetCommit(raw, tree, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "tree 4b825dc642cb6eb9a060e54bf8d69288fbee4904\n"+
		"author Alice <a@x> 10 +0100\n"+
		"committer Bob <b@x> 20 +0000\n\n"+
		"message body", string(text))
}

func TestPrepareChangesetCommitParents(t *testing.T) {
	b := newMemoryBackend()
	s := newTestStore(t, b)

	parentRaw := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n0 0\n\nparent")
	parentCommit := testCommit("Alice <a@x> 0 +0000", "Alice <a@x> 0 +0000", "parent")
	parentCsid := parentRaw.ChangesetId(hg.ChangesetId{}, hg.ChangesetId{})
	pm, err := s.GenerateMetadata(parentCommit, parentCsid, parentRaw)
	require.NoError(t, err)
	parentCid := b.addChangeset(t, parentCommit, pm)

	raw := hg.RawChangeset(testManifestHex + "\nAlice <a@x>\n10 0\n\nchild")
	tree := TreeId{Hash: plumbing.NewHash("4b825dc642cb6eb9a060e54bf8d69288fbee4904")}
	text, err := s.PrepareChangesetCommit(raw, tree, &parentCsid, nil)
	require.NoError(t, err)
	assert.Contains(t, string(text), "parent "+parentCid.String()+"\n")
}
