// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/cinnabar-scm/cinnabar/modules/hg"
)

var (
	ErrMalformedMetadata = errors.New("store: malformed changeset metadata")
)

// cloneValue copies a parsed value, keeping present-but-empty distinct
// from absent.
func cloneValue(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ChangesetMetadata is the sidecar blob attached to a converted changeset:
// everything the conversion could not losslessly fold into the Git commit.
// Author, Extra, Files and Patch are nil when absent; a missing manifest
// defaults to the null id.
type ChangesetMetadata struct {
	ChangesetId hg.ChangesetId
	ManifestId  hg.ManifestId
	Author      []byte
	Extra       []byte
	Files       []byte
	Patch       []byte
}

// ParseMetadata decodes the line-oriented `key SP value` form. Unknown
// keys fail the whole parse: a blob we only half-understand must never be
// used to rebuild a changeset.
func ParseMetadata(blob []byte) (*ChangesetMetadata, error) {
	m := &ChangesetMetadata{}
	seenChangeset := false
	for _, line := range bytes.Split(blob, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		key, value, ok := bytes.Cut(line, []byte{' '})
		if !ok {
			return nil, ErrMalformedMetadata
		}
		switch string(key) {
		case "changeset":
			id, err := hg.ChangesetIdFromBytes(value)
			if err != nil {
				return nil, ErrMalformedMetadata
			}
			m.ChangesetId = id
			seenChangeset = true
		case "manifest":
			id, err := hg.ManifestIdFromBytes(value)
			if err != nil {
				return nil, ErrMalformedMetadata
			}
			m.ManifestId = id
		case "author":
			m.Author = cloneValue(value)
		case "extra":
			m.Extra = cloneValue(value)
		case "files":
			m.Files = cloneValue(value)
		case "patch":
			m.Patch = cloneValue(value)
		default:
			return nil, fmt.Errorf("store: unknown metadata key '%s'", key)
		}
	}
	if !seenChangeset {
		return nil, ErrMalformedMetadata
	}
	return m, nil
}

// Encode writes the present fields in canonical order.
func (m *ChangesetMetadata) Encode(w io.Writer) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "changeset %s\n", m.ChangesetId)
	if !m.ManifestId.IsZero() {
		fmt.Fprintf(&buf, "manifest %s\n", m.ManifestId)
	}
	for _, field := range []struct {
		key   string
		value []byte
	}{
		{"author", m.Author},
		{"extra", m.Extra},
		{"files", m.Files},
		{"patch", m.Patch},
	} {
		if field.value == nil {
			continue
		}
		buf.WriteString(field.key)
		buf.WriteByte(' ')
		buf.Write(field.value)
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (m *ChangesetMetadata) Bytes() []byte {
	var buf bytes.Buffer
	_ = m.Encode(&buf)
	return buf.Bytes()
}

// ExtraMap parses the extra block, nil when absent.
func (m *ChangesetMetadata) ExtraMap() *hg.ChangesetExtra {
	if m.Extra == nil {
		return nil
	}
	return hg.ChangesetExtraFrom(m.Extra)
}

// FileList splits the files block on `\0`. The separator differs from the
// changeset's newline form because the metadata wire format is
// line-oriented.
func (m *ChangesetMetadata) FileList() [][]byte {
	if len(m.Files) == 0 {
		return nil
	}
	return bytes.Split(m.Files, []byte{0})
}

// PatchList decodes the correction patch, nil when absent.
func (m *ChangesetMetadata) PatchList() ([]PatchInfo, error) {
	if m.Patch == nil {
		return nil, nil
	}
	return ParsePatch(m.Patch)
}
