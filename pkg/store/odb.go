// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"github.com/cinnabar-scm/cinnabar/modules/hg"
	"github.com/cinnabar-scm/cinnabar/modules/plumbing"
)

// ObjectKind is the Git object type handed to WriteObject.
type ObjectKind int

const (
	BlobObject ObjectKind = iota
	TreeObject
	CommitObject
)

// Commit is the parsed form of a raw Git commit. Author and Committer stay
// raw signature lines so any cruft bytes survive a conversion round trip.
type Commit struct {
	Tree      TreeId
	Parents   []CommitId
	Author    []byte
	Committer []byte
	Body      []byte
}

// Backend is the Git side of the bridge: an object database plus the
// correspondence notes. Absence is reported with a bool, not an error;
// the callers decide what a missing object means.
type Backend interface {
	// RawBlob reads a blob's bytes.
	RawBlob(oid BlobId) ([]byte, bool)
	// RawCommit reads and parses a commit.
	RawCommit(oid CommitId) (*Commit, bool)
	// WriteObject stores data as a loose object of the given kind.
	WriteObject(kind ObjectKind, data []byte) (plumbing.Hash, error)
	// LookupReplaceCommit follows the replace graph, returning oid itself
	// when no replacement exists.
	LookupReplaceCommit(oid CommitId) CommitId
	// RevParse resolves a committish such as refs/cinnabar/metadata^1.
	RevParse(committish string) (plumbing.Hash, bool)
	// Hg2Git resolves a Mercurial node to the Git object it became.
	Hg2Git(oid hg.ObjectId) (plumbing.Hash, bool)
	// Git2Hg resolves a changeset commit to its metadata blob.
	Git2Hg(oid GitChangesetId) (BlobId, bool)
}
