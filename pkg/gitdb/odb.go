// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package gitdb

import (
	"bytes"
	"io"

	gogit "github.com/go-git/go-git/v5"
	gitplumbing "github.com/go-git/go-git/v5/plumbing"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
	"github.com/cinnabar-scm/cinnabar/modules/plumbing"
	"github.com/cinnabar-scm/cinnabar/pkg/store"
)

// ODB adapts a go-git repository to the bridge's Backend interface. The
// hg→git correspondence lives in the refs/notes/cinnabar notes tree; the
// git→hg direction is the notes tree of the metadata commit's fourth
// parent, matching the on-disk layout of existing mirrors.
type ODB struct {
	repo   *gogit.Repository
	hg2git *Notes
	git2hg *Notes
}

func New(repo *gogit.Repository) *ODB {
	o := &ODB{repo: repo}
	o.hg2git = o.Notes(plumbing.NotesRef)
	o.git2hg = o.Notes(plumbing.MetadataRef + "^4")
	return o
}

func Open(path string) (*ODB, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	return New(repo), nil
}

func toGitHash(h plumbing.Hash) gitplumbing.Hash {
	return gitplumbing.Hash(h)
}

func fromGitHash(h gitplumbing.Hash) plumbing.Hash {
	return plumbing.Hash(h)
}

func (o *ODB) readObject(t gitplumbing.ObjectType, h plumbing.Hash) ([]byte, bool) {
	obj, err := o.repo.Storer.EncodedObject(t, toGitHash(h))
	if err != nil {
		return nil, false
	}
	r, err := obj.Reader()
	if err != nil {
		return nil, false
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false
	}
	return data, true
}

// RawBlob reads a blob's bytes.
func (o *ODB) RawBlob(oid store.BlobId) ([]byte, bool) {
	return o.readObject(gitplumbing.BlobObject, oid.Hash)
}

// RawCommit reads and parses a commit, keeping the signature lines raw.
func (o *ODB) RawCommit(oid store.CommitId) (*store.Commit, bool) {
	data, ok := o.readObject(gitplumbing.CommitObject, oid.Hash)
	if !ok {
		return nil, false
	}
	return parseRawCommit(data), true
}

func parseRawCommit(data []byte) *store.Commit {
	commit := &store.Commit{}
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
			commit.Tree = store.TreeId{Hash: plumbing.NewHash(string(value))}
		case "parent":
			commit.Parents = append(commit.Parents, store.CommitId{Hash: plumbing.NewHash(string(value))})
		case "author":
			commit.Author = append([]byte(nil), value...)
		case "committer":
			commit.Committer = append([]byte(nil), value...)
		}
	}
	commit.Body = append([]byte(nil), rest...)
	return commit
}

var objectTypes = map[store.ObjectKind]gitplumbing.ObjectType{
	store.BlobObject:   gitplumbing.BlobObject,
	store.TreeObject:   gitplumbing.TreeObject,
	store.CommitObject: gitplumbing.CommitObject,
}

// WriteObject stores data as an object of the given kind.
func (o *ODB) WriteObject(kind store.ObjectKind, data []byte) (plumbing.Hash, error) {
	obj := o.repo.Storer.NewEncodedObject()
	obj.SetType(objectTypes[kind])
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	h, err := o.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return fromGitHash(h), nil
}

// LookupReplaceCommit follows refs/cinnabar/replace/<oid>, returning oid
// itself when no replacement exists.
func (o *ODB) LookupReplaceCommit(oid store.CommitId) store.CommitId {
	ref, err := o.repo.Reference(gitplumbing.ReferenceName(plumbing.ReplaceRefsPrefix+oid.String()), true)
	if err != nil {
		return oid
	}
	return store.CommitId{Hash: fromGitHash(ref.Hash())}
}

// RevParse resolves a committish like refs/cinnabar/metadata^1.
func (o *ODB) RevParse(committish string) (plumbing.Hash, bool) {
	h, err := o.repo.ResolveRevision(gitplumbing.Revision(committish))
	if err != nil || h == nil {
		return plumbing.ZeroHash, false
	}
	return fromGitHash(*h), true
}

// Hg2Git resolves a Mercurial node through the notes tree.
func (o *ODB) Hg2Git(oid hg.ObjectId) (plumbing.Hash, bool) {
	return o.hg2git.Get(oid.String())
}

// Git2Hg resolves a changeset commit to its metadata blob.
func (o *ODB) Git2Hg(oid store.GitChangesetId) (store.BlobId, bool) {
	h, ok := o.git2hg.Get(oid.String())
	if !ok {
		return store.BlobId{}, false
	}
	return store.BlobId{Hash: h}, true
}

// Invalidate drops the cached notes trees, e.g. after a checkpoint moved
// the metadata ref.
func (o *ODB) Invalidate() {
	o.hg2git.Invalidate()
	o.git2hg.Invalidate()
}

var (
	_ store.Backend = (*ODB)(nil)
)
