// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
)

// IntegrityError reports that reconstructed changeset bytes do not hash
// back to the expected node. Truncating or emitting the bytes anyway would
// silently corrupt the mirror, so the affected changeset is fatal.
type IntegrityError struct {
	ChangesetId hg.ChangesetId
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("store: changeset %s does not reconstruct to its node id", e.ChangesetId)
}

// parentChangesetIds maps the commit's Git parents to their Mercurial
// nodes, following the replace graph, padded with the null id to two
// entries.
func (s *Store) parentChangesetIds(commit *Commit) (hg.ChangesetId, hg.ChangesetId, error) {
	var parents []hg.ChangesetId
	for _, p := range commit.Parents {
		p = s.odb.LookupReplaceCommit(p)
		pm, ok := s.ReadMetadata(GitChangesetId{p})
		if !ok {
			return hg.ChangesetId{}, hg.ChangesetId{}, fmt.Errorf("store: no metadata for parent commit %s", p)
		}
		parents = append(parents, pm.ChangesetId)
	}
	var p1, p2 hg.ChangesetId
	if len(parents) > 0 {
		p1 = parents[0]
	}
	if len(parents) > 1 {
		p2 = parents[1]
	}
	return p1, p2, nil
}

// reconstruct assembles the changeset bytes from a commit and its
// metadata. verified is false when the text carried trailing null bytes
// and no truncation level hashed to the expected node.
func (s *Store) reconstruct(commit *Commit, m *ChangesetMetadata) (text []byte, verified bool, err error) {
	authorship := hg.AuthorshipFromGit(commit.Author)
	author := authorship.Author
	var committer []byte
	if !bytes.Equal(commit.Author, commit.Committer) {
		committer = hg.CommitterFromGit(commit.Committer)
	}
	if m.Author != nil {
		author = m.Author
	}
	extra := m.ExtraMap()
	if committer != nil {
		if extra == nil {
			extra = hg.NewChangesetExtra()
		}
		extra.Set("committer", string(committer))
	}

	var buf bytes.Buffer
	buf.WriteString(m.ManifestId.String())
	buf.WriteByte('\n')
	buf.Write(author)
	buf.WriteByte('\n')
	buf.Write(authorship.Timestamp)
	buf.WriteByte(' ')
	buf.Write(authorship.UTCOffset)
	if extra != nil {
		buf.WriteByte(' ')
		extra.DumpInto(&buf)
	}
	files := m.FileList()
	sort.Slice(files, func(i, j int) bool { return bytes.Compare(files[i], files[j]) < 0 })
	for _, f := range files {
		buf.WriteByte('\n')
		buf.Write(f)
	}
	buf.WriteString("\n\n")
	buf.Write(commit.Body)
	text = buf.Bytes()

	if patch, perr := m.PatchList(); perr != nil {
		return nil, false, perr
	} else if patch != nil {
		text = ApplyPatch(patch, text)
	}

	// Historical conflict resolution appends null bytes to give colliding
	// changesets distinct node ids. The stored text keeps however many
	// nulls make the hash land on the recorded node.
	if len(text) == 0 || text[len(text)-1] != 0 {
		return text, true, nil
	}
	p1, p2, err := s.parentChangesetIds(commit)
	if err != nil {
		return nil, false, err
	}
	for len(text) > 0 && text[len(text)-1] == 0 {
		if hg.RawChangeset(text).ChangesetId(p1, p2) == m.ChangesetId {
			return text, true, nil
		}
		text = text[:len(text)-1]
	}
	return text, false, nil
}

// RawChangesetFromMetadata rebuilds the exact changeset bytes for a commit
// and its metadata record. Text ending in null bytes is checked against the
// recorded node, and the call fails when no truncation level hashes to it;
// text without trailing nulls is returned as assembled, without a hash check.
func (s *Store) RawChangesetFromMetadata(commit *Commit, m *ChangesetMetadata) (hg.RawChangeset, error) {
	text, verified, err := s.reconstruct(commit, m)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, &IntegrityError{ChangesetId: m.ChangesetId}
	}
	return hg.RawChangeset(text), nil
}

// RawChangeset rebuilds the changeset bytes of a converted commit.
func (s *Store) RawChangeset(oid GitChangesetId) (hg.RawChangeset, error) {
	commit, ok := s.odb.RawCommit(oid.CommitId)
	if !ok {
		return nil, fmt.Errorf("store: no such commit %s", oid)
	}
	m, ok := s.ReadMetadata(oid)
	if !ok {
		return nil, fmt.Errorf("store: no metadata for commit %s", oid)
	}
	return s.RawChangesetFromMetadata(commit, m)
}

// GenerateMetadata derives the metadata record for a newly ingested
// changeset. When the default reconstruction does not reproduce the
// original bytes, the difference is recorded as a correction patch so a
// later reconstruction does.
func (s *Store) GenerateMetadata(commit *Commit, changesetId hg.ChangesetId, raw hg.RawChangeset) (*ChangesetMetadata, error) {
	cs, err := raw.Parse()
	if err != nil {
		return nil, err
	}
	m := &ChangesetMetadata{
		ChangesetId: changesetId,
		ManifestId:  cs.Manifest,
	}
	derived := hg.AuthorshipFromGit(commit.Author)
	if !bytes.Equal(derived.Author, cs.Author) {
		m.Author = append([]byte(nil), cs.Author...)
	}
	if cs.Extra != nil {
		m.Extra = append([]byte(nil), cs.Extra...)
	}
	if cs.Files != nil {
		m.Files = bytes.Join(cs.FileList(), []byte{0})
	}
	synthesized, _, err := s.reconstruct(commit, m)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(raw, synthesized) {
		m.Patch = EncodePatch(TextDiff(raw, synthesized))
	}
	return m, nil
}

// PrepareChangesetCommit renders the Git commit text a changeset converts
// to: tree, converted parents, authorship derived from the changeset (a
// committer extra overrides the committer side), and the changeset body as
// the message.
func (s *Store) PrepareChangesetCommit(raw hg.RawChangeset, treeId TreeId, parent1, parent2 *hg.ChangesetId) ([]byte, error) {
	cs, err := raw.Parse()
	if err != nil {
		return nil, err
	}
	authorship := hg.Authorship{
		Author:    cs.Author,
		Timestamp: cs.Timestamp,
		UTCOffset: cs.UTCOffset,
	}
	gitAuthor := hg.GitFromAuthorship(authorship)
	gitCommitter := gitAuthor
	if extra := cs.ExtraMap(); extra != nil {
		if committer, ok := extra.Get("committer"); ok {
			if len(committer) != 0 && committer[len(committer)-1] == '>' {
				// A bare authorship without date: keep the changeset's time.
				gitCommitter = hg.GitFromAuthorship(hg.Authorship{
					Author:    []byte(committer),
					Timestamp: cs.Timestamp,
					UTCOffset: cs.UTCOffset,
				})
			} else {
				gitCommitter = hg.GitFromCommitter([]byte(committer))
			}
		}
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", treeId)
	for _, p := range []*hg.ChangesetId{parent1, parent2} {
		if p == nil {
			continue
		}
		g, ok := s.ToGit(*p)
		if !ok {
			return nil, fmt.Errorf("store: parent changeset %s not converted", p)
		}
		fmt.Fprintf(&buf, "parent %s\n", g)
	}
	buf.WriteString("author ")
	buf.Write(gitAuthor)
	buf.WriteString("\ncommitter ")
	buf.Write(gitCommitter)
	buf.WriteString("\n\n")
	buf.Write(cs.Body)
	return buf.Bytes(), nil
}
