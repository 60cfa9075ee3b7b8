package hg

import (
	"bytes"
	"errors"
	"io"
	"sort"
)

var (
	ErrMalformedChangeset = errors.New("hg: malformed changeset")
)

// RawChangeset is the canonical byte form of a changeset:
//
//	manifest_hex LF author LF timestamp SP utcoffset [SP extra] (LF file)* LF LF body
//
// The node id of a changeset is NodeHash over its parents and these bytes,
// so RawChangeset must round-trip exactly.
type RawChangeset []byte

// Changeset is the parsed view of a RawChangeset. Extra and Files are nil
// when the respective field is absent; Files keeps the raw newline-separated
// block.
type Changeset struct {
	Manifest  ManifestId
	Author    []byte
	Timestamp []byte
	UTCOffset []byte
	Extra     []byte
	Files     []byte
	Body      []byte
}

// Parse splits raw into its parsed view. The header is at most four
// newline-delimited fields; the date line splits into timestamp, utcoffset
// and an optional extra block.
func (raw RawChangeset) Parse() (*Changeset, error) {
	header, body, ok := bytes.Cut(raw, []byte("\n\n"))
	if !ok {
		return nil, ErrMalformedChangeset
	}
	lines := bytes.SplitN(header, []byte{'\n'}, 4)
	if len(lines) < 3 {
		return nil, ErrMalformedChangeset
	}
	manifest, err := ManifestIdFromBytes(lines[0])
	if err != nil {
		return nil, ErrMalformedChangeset
	}
	date := bytes.SplitN(lines[2], []byte{' '}, 3)
	if len(date) < 2 {
		return nil, ErrMalformedChangeset
	}
	cs := &Changeset{
		Manifest:  manifest,
		Author:    lines[1],
		Timestamp: date[0],
		UTCOffset: date[1],
		Body:      body,
	}
	if len(date) == 3 {
		cs.Extra = date[2]
	}
	if len(lines) == 4 {
		cs.Files = lines[3]
	}
	return cs, nil
}

// ExtraMap parses the extra block. Returns nil when the changeset carries
// no extra field at all.
func (cs *Changeset) ExtraMap() *ChangesetExtra {
	if cs.Extra == nil {
		return nil
	}
	return ChangesetExtraFrom(cs.Extra)
}

// FileList splits the files block into its entries. Absent or empty blocks
// yield no entries.
func (cs *Changeset) FileList() [][]byte {
	if len(cs.Files) == 0 {
		return nil
	}
	return bytes.Split(cs.Files, []byte{'\n'})
}

// Branch returns the named branch of the changeset, "default" when unset.
func (cs *Changeset) Branch() string {
	if extra := cs.ExtraMap(); extra != nil {
		if branch, ok := extra.Get("branch"); ok {
			return branch
		}
	}
	return "default"
}

// Encode writes the canonical byte form. Files are sorted ascending before
// emission and an empty extra is omitted entirely, so encoding a parsed
// canonical changeset reproduces its bytes.
func (cs *Changeset) Encode(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString(cs.Manifest.String())
	buf.WriteByte('\n')
	buf.Write(cs.Author)
	buf.WriteByte('\n')
	buf.Write(cs.Timestamp)
	buf.WriteByte(' ')
	buf.Write(cs.UTCOffset)
	if extra := ChangesetExtraFrom(cs.Extra).Dump(); len(extra) != 0 {
		buf.WriteByte(' ')
		buf.Write(extra)
	}
	files := cs.FileList()
	sort.Slice(files, func(i, j int) bool { return bytes.Compare(files[i], files[j]) < 0 })
	for _, f := range files {
		buf.WriteByte('\n')
		buf.Write(f)
	}
	buf.WriteString("\n\n")
	buf.Write(cs.Body)
	_, err := w.Write(buf.Bytes())
	return err
}

// Bytes is Encode into a fresh RawChangeset.
func (cs *Changeset) Bytes() RawChangeset {
	var buf bytes.Buffer
	_ = cs.Encode(&buf)
	return RawChangeset(buf.Bytes())
}

// ChangesetId computes the node id of raw given its parents. Missing
// parents are the null id.
func (raw RawChangeset) ChangesetId(p1, p2 ChangesetId) ChangesetId {
	return ChangesetId{NodeHash(p1.ObjectId, p2.ObjectId, raw)}
}
