// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package gitdb

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/cinnabar-scm/cinnabar/modules/plumbing"
)

// Notes reads a git-notes style tree: leaves named by the annotated
// object's hex id, possibly sharded into nested directories of hex name
// fragments. The tree is resolved lazily and cached until Invalidate.
type Notes struct {
	odb        *ODB
	committish string
	tree       *object.Tree
	resolved   bool
}

func (o *ODB) Notes(committish string) *Notes {
	return &Notes{odb: o, committish: committish}
}

func (n *Notes) root() *object.Tree {
	if n.resolved {
		return n.tree
	}
	n.resolved = true
	h, ok := n.odb.RevParse(n.committish)
	if !ok {
		return nil
	}
	commit, err := object.GetCommit(n.odb.repo.Storer, toGitHash(h))
	if err != nil {
		return nil
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil
	}
	n.tree = tree
	return n.tree
}

// Invalidate drops the cached tree so the next lookup re-resolves it.
func (n *Notes) Invalidate() {
	n.resolved = false
	n.tree = nil
}

// Get looks up the note for the object named by hexname.
func (n *Notes) Get(hexname string) (plumbing.Hash, bool) {
	tree := n.root()
	if tree == nil {
		return plumbing.ZeroHash, false
	}
	return n.lookup(tree, hexname)
}

func (n *Notes) lookup(tree *object.Tree, hexname string) (plumbing.Hash, bool) {
	for _, entry := range tree.Entries {
		if entry.Mode == filemode.Dir {
			if !strings.HasPrefix(hexname, entry.Name) {
				continue
			}
			sub, err := object.GetTree(n.odb.repo.Storer, entry.Hash)
			if err != nil {
				continue
			}
			if h, ok := n.lookup(sub, hexname[len(entry.Name):]); ok {
				return h, true
			}
		} else if entry.Name == hexname {
			return fromGitHash(entry.Hash), true
		}
	}
	return plumbing.ZeroHash, false
}
