// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"github.com/cinnabar-scm/cinnabar/modules/plumbing"
)

// Typed refinements of the Git object id. Wrapping rather than aliasing
// keeps a changeset commit from being handed where a metadata blob is
// expected; the hex/compare/zero behavior is promoted from plumbing.Hash.

type CommitId struct {
	plumbing.Hash
}

type TreeId struct {
	plumbing.Hash
}

type BlobId struct {
	plumbing.Hash
}

// GitChangesetId is the commit a changeset was converted to.
type GitChangesetId struct {
	CommitId
}

// GitManifestId is the commit a manifest was converted to.
type GitManifestId struct {
	CommitId
}

// GitFileId is the blob a file revision's contents were stored as.
type GitFileId struct {
	BlobId
}

// GitChangesetMetadataId is the sidecar blob recording how to rebuild the
// changeset from its commit.
type GitChangesetMetadataId struct {
	BlobId
}

// GitFileMetadataId is the blob holding a file revision's metadata header.
type GitFileMetadataId struct {
	BlobId
}
