package store

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
	"github.com/cinnabar-scm/cinnabar/modules/plumbing"
)

// memoryBackend is an in-memory Backend good enough for the round-trip
// tests: objects are hashed the way Git hashes loose objects, so ids stay
// stable across checkpoint and reload.
type memoryBackend struct {
	blobs   map[plumbing.Hash][]byte
	commits map[plumbing.Hash]*Commit
	trees   map[plumbing.Hash][]byte
	replace map[CommitId]CommitId
	revs    map[string]plumbing.Hash
	hg2git  map[hg.ObjectId]plumbing.Hash
	git2hg  map[GitChangesetId]BlobId
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		blobs:   make(map[plumbing.Hash][]byte),
		commits: make(map[plumbing.Hash]*Commit),
		trees:   make(map[plumbing.Hash][]byte),
		replace: make(map[CommitId]CommitId),
		revs:    make(map[string]plumbing.Hash),
		hg2git:  make(map[hg.ObjectId]plumbing.Hash),
		git2hg:  make(map[GitChangesetId]BlobId),
	}
}

func (b *memoryBackend) RawBlob(oid BlobId) ([]byte, bool) {
	blob, ok := b.blobs[oid.Hash]
	return blob, ok
}

func (b *memoryBackend) RawCommit(oid CommitId) (*Commit, bool) {
	commit, ok := b.commits[oid.Hash]
	return commit, ok
}

var kindNames = map[ObjectKind]string{
	BlobObject:   "blob",
	TreeObject:   "tree",
	CommitObject: "commit",
}

func (b *memoryBackend) WriteObject(kind ObjectKind, data []byte) (plumbing.Hash, error) {
	hasher := plumbing.NewHasher()
	fmt.Fprintf(hasher, "%s %d\x00", kindNames[kind], len(data))
	hasher.Write(data)
	h := hasher.Sum()
	switch kind {
	case BlobObject:
		b.blobs[h] = append([]byte(nil), data...)
	case TreeObject:
		b.trees[h] = append([]byte(nil), data...)
	case CommitObject:
		b.commits[h] = parseCommitText(data)
	}
	return h, nil
}

func (b *memoryBackend) LookupReplaceCommit(oid CommitId) CommitId {
	if r, ok := b.replace[oid]; ok {
		return r
	}
	return oid
}

func (b *memoryBackend) RevParse(committish string) (plumbing.Hash, bool) {
	h, ok := b.revs[committish]
	return h, ok
}

func (b *memoryBackend) Hg2Git(oid hg.ObjectId) (plumbing.Hash, bool) {
	h, ok := b.hg2git[oid]
	return h, ok
}

func (b *memoryBackend) Git2Hg(oid GitChangesetId) (BlobId, bool) {
	blob, ok := b.git2hg[oid]
	return blob, ok
}

func parseCommitText(data []byte) *Commit {
	commit := &Commit{}
	rest := data
	for len(rest) > 0 {
		line, tail, _ := bytes.Cut(rest, []byte{'\n'})
		rest = tail
		if len(line) == 0 {
			break
		}
		key, value, ok := bytes.Cut(line, []byte{' '})
		if !ok {
			continue
		}
		switch string(key) {
		case "tree":
			commit.Tree = TreeId{Hash: plumbing.NewHash(string(value))}
		case "parent":
			commit.Parents = append(commit.Parents, CommitId{Hash: plumbing.NewHash(string(value))})
		case "author":
			commit.Author = append([]byte(nil), value...)
		case "committer":
			commit.Committer = append([]byte(nil), value...)
		}
	}
	commit.Body = append([]byte(nil), rest...)
	return commit
}

// addChangeset records a converted changeset in the backend: the commit,
// its metadata blob and both correspondence directions.
func (b *memoryBackend) addChangeset(t *testing.T, commit *Commit, m *ChangesetMetadata) GitChangesetId {
	t.Helper()
	var text bytes.Buffer
	fmt.Fprintf(&text, "tree %s\n", commit.Tree)
	for _, p := range commit.Parents {
		fmt.Fprintf(&text, "parent %s\n", p)
	}
	fmt.Fprintf(&text, "author %s\ncommitter %s\n\n", commit.Author, commit.Committer)
	text.Write(commit.Body)
	h, err := b.WriteObject(CommitObject, text.Bytes())
	require.NoError(t, err)
	cid := GitChangesetId{CommitId{h}}
	bh, err := b.WriteObject(BlobObject, m.Bytes())
	require.NoError(t, err)
	b.git2hg[cid] = BlobId{bh}
	b.hg2git[m.ChangesetId.ObjectId] = h
	return cid
}

func newTestStore(t *testing.T, b Backend) *Store {
	t.Helper()
	s, err := New(b)
	require.NoError(t, err)
	return s
}
