// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
	"github.com/cinnabar-scm/cinnabar/modules/plumbing"
)

type headEntry struct {
	branch     string
	generation int
}

// ChangesetHeads is the in-memory set of current Mercurial heads per
// branch. Insertion ordinals, not node order, drive every emission, so two
// sessions inserting the same heads in different orders produce different
// dumps. All access is serialized through one mutex.
type ChangesetHeads struct {
	mu         sync.Mutex
	loaded     bool
	generation int
	heads      map[hg.ChangesetId]headEntry
}

type headRow struct {
	cs     hg.ChangesetId
	branch string
	gen    int
}

// headsSorted returns the entries in ascending ordinal order. Callers hold
// the mutex.
func (h *ChangesetHeads) headsSorted() []headRow {
	rows := make([]headRow, 0, len(h.heads))
	for cs, e := range h.heads {
		rows = append(rows, headRow{cs: cs, branch: e.branch, gen: e.generation})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].gen < rows[j].gen })
	return rows
}

// ensureHeadsLocked lazily loads the persisted head set from the first
// parent of the metadata checkpoint commit; absent ref means empty.
func (s *Store) ensureHeadsLocked(h *ChangesetHeads) {
	if h.loaded {
		return
	}
	h.loaded = true
	h.heads = make(map[hg.ChangesetId]headEntry)
	h.generation = 0
	cid, ok := s.odb.RevParse(plumbing.MetadataRef + "^1")
	if !ok {
		return
	}
	commit, ok := s.odb.RawCommit(CommitId{cid})
	if !ok {
		return
	}
	for _, line := range bytes.Split(commit.Body, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		node, branch, ok := bytes.Cut(line, []byte{' '})
		if !ok {
			continue
		}
		cs, err := hg.ChangesetIdFromBytes(node)
		if err != nil {
			continue
		}
		h.heads[cs] = headEntry{branch: string(branch), generation: h.generation}
		h.generation++
	}
}

func (s *Store) changesetHeads() *ChangesetHeads {
	return s.heads
}

func metadataBranch(m *ChangesetMetadata) string {
	if extra := m.ExtraMap(); extra != nil {
		if branch, ok := extra.Get("branch"); ok {
			return branch
		}
	}
	return "default"
}

// AddChangesetHead marks cs as a head of its branch, retiring any of the
// commit's parents that head the same branch.
func (s *Store) AddChangesetHead(cs hg.ChangesetId, cid GitChangesetId) error {
	h := s.changesetHeads()
	h.mu.Lock()
	defer h.mu.Unlock()
	s.ensureHeadsLocked(h)

	m, ok := s.ReadMetadata(cid)
	if !ok {
		return fmt.Errorf("store: no metadata for commit %s", cid)
	}
	if m.ChangesetId != cs {
		return fmt.Errorf("store: metadata of %s names changeset %s, not %s", cid, m.ChangesetId, cs)
	}
	branch := metadataBranch(m)
	commit, ok := s.odb.RawCommit(cid.CommitId)
	if !ok {
		return fmt.Errorf("store: no such commit %s", cid)
	}
	for _, parent := range commit.Parents {
		parent = s.odb.LookupReplaceCommit(parent)
		pm, ok := s.ReadMetadata(GitChangesetId{parent})
		if !ok {
			return fmt.Errorf("store: no metadata for parent commit %s", parent)
		}
		if metadataBranch(pm) == branch {
			delete(h.heads, pm.ChangesetId)
		}
	}
	h.heads[cs] = headEntry{branch: branch, generation: h.generation}
	h.generation++
	return nil
}

// RemoveChangesetHead drops cs unconditionally.
func (s *Store) RemoveChangesetHead(cs hg.ChangesetId) {
	h := s.changesetHeads()
	h.mu.Lock()
	defer h.mu.Unlock()
	s.ensureHeadsLocked(h)
	delete(h.heads, cs)
}

// DumpHeads writes `node SP branch LF` lines in insertion order.
func (s *Store) DumpHeads(w io.Writer) error {
	h := s.changesetHeads()
	h.mu.Lock()
	defer h.mu.Unlock()
	s.ensureHeadsLocked(h)
	var buf bytes.Buffer
	for _, e := range h.headsSorted() {
		fmt.Fprintf(&buf, "%s %s\n", e.cs, e.branch)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// CheckpointHeads persists the head set as a synthetic commit: the heads'
// commits as parents in insertion order, the head list as the body, and a
// single `bundle` tree entry when a bundle blob is attached. The returned
// commit is meant to become the first parent of refs/cinnabar/metadata.
func (s *Store) CheckpointHeads(bundle *BlobId) (CommitId, error) {
	h := s.changesetHeads()
	h.mu.Lock()
	defer h.mu.Unlock()
	s.ensureHeadsLocked(h)

	var tree bytes.Buffer
	if bundle != nil {
		tree.WriteString("100644 bundle\x00")
		tree.Write(bundle.Hash[:])
	}
	tid, err := s.odb.WriteObject(TreeObject, tree.Bytes())
	if err != nil {
		return CommitId{}, err
	}

	sorted := h.headsSorted()
	var commit bytes.Buffer
	fmt.Fprintf(&commit, "tree %s\n", tid)
	for _, e := range sorted {
		g, ok := s.odb.Hg2Git(e.cs.ObjectId)
		if !ok {
			return CommitId{}, fmt.Errorf("store: head changeset %s not converted", e.cs)
		}
		fmt.Fprintf(&commit, "parent %s\n", g)
	}
	fmt.Fprintf(&commit, "author  <cinnabar@git> 0 +0000\n")
	fmt.Fprintf(&commit, "committer  <cinnabar@git> 0 +0000\n")
	for _, e := range sorted {
		fmt.Fprintf(&commit, "\n%s %s", e.cs, e.branch)
	}
	cid, err := s.odb.WriteObject(CommitObject, commit.Bytes())
	if err != nil {
		return CommitId{}, err
	}
	return CommitId{cid}, nil
}

// ResetHeads reloads the head set from the persisted checkpoint.
func (s *Store) ResetHeads() {
	h := s.changesetHeads()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaded = false
	s.ensureHeadsLocked(h)
}
