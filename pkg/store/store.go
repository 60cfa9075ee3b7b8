// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
	"github.com/cinnabar-scm/cinnabar/modules/plumbing"
)

// Store ties the Git object database to the Mercurial view of it: metadata
// lookups, changeset reconstruction and the changeset head set. Metadata
// blobs are parsed over and over for the same changesets while walking
// graphs, so parses go through a cache.
type Store struct {
	odb   Backend
	meta  *ristretto.Cache[string, *ChangesetMetadata]
	heads *ChangesetHeads
}

func New(odb Backend) (*Store, error) {
	meta, err := ristretto.NewCache(&ristretto.Config[string, *ChangesetMetadata]{
		NumCounters: 1 << 14,
		MaxCost:     1 << 22,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Store{odb: odb, meta: meta, heads: &ChangesetHeads{}}, nil
}

// ReadMetadata reads and parses the metadata blob of a converted
// changeset. A missing note, missing blob or malformed record all report
// absence; the caller may mark the changeset broken.
func (s *Store) ReadMetadata(oid GitChangesetId) (*ChangesetMetadata, bool) {
	key := oid.String()
	if m, ok := s.meta.Get(key); ok {
		return m, true
	}
	note, ok := s.odb.Git2Hg(oid)
	if !ok {
		return nil, false
	}
	raw, ok := s.odb.RawBlob(note)
	if !ok {
		return nil, false
	}
	m, err := ParseMetadata(raw)
	if err != nil {
		return nil, false
	}
	s.meta.Set(key, m, int64(len(raw)))
	return m, true
}

// ToHg resolves a changeset commit back to its Mercurial node.
func (s *Store) ToHg(oid GitChangesetId) (hg.ChangesetId, bool) {
	m, ok := s.ReadMetadata(oid)
	if !ok {
		return hg.ChangesetId{}, false
	}
	return m.ChangesetId, true
}

// ToGit resolves a Mercurial changeset to its Git commit.
func (s *Store) ToGit(cs hg.ChangesetId) (GitChangesetId, bool) {
	h, ok := s.odb.Hg2Git(cs.ObjectId)
	if !ok {
		return GitChangesetId{}, false
	}
	return GitChangesetId{CommitId{h}}, true
}

// Checked returns the consistency-check marker commit. The marker refs are
// written by external checks; the core only ever reads them.
func (s *Store) Checked() (CommitId, bool) {
	h, ok := s.odb.RevParse(plumbing.CheckedRef)
	return CommitId{h}, ok
}

// Broken returns the known-broken marker commit, if any.
func (s *Store) Broken() (CommitId, bool) {
	h, ok := s.odb.RevParse(plumbing.BrokenRef)
	return CommitId{h}, ok
}

// RawHgFile rebuilds a Mercurial file revision: when the revision carries
// a metadata header it is framed between \x01\n markers ahead of the
// contents.
func (s *Store) RawHgFile(oid GitFileId, metadata *GitFileMetadataId) ([]byte, bool) {
	var result bytes.Buffer
	if metadata != nil {
		meta, ok := s.odb.RawBlob(metadata.BlobId)
		if !ok {
			return nil, false
		}
		result.WriteString("\x01\n")
		result.Write(meta)
		result.WriteString("\x01\n")
	}
	contents, ok := s.odb.RawBlob(oid.BlobId)
	if !ok {
		return nil, false
	}
	result.Write(contents)
	return result.Bytes(), true
}
