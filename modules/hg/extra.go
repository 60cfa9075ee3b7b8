package hg

import (
	"bytes"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// ChangesetExtra holds the extra key/value pairs attached to a changeset,
// e.g. branch, committer, rebase_source. The serialized form is a
// `\0`-separated list of `key:value` entries with keys in ascending byte
// order. Values carrying ':' are escaped by the producer; we never
// unescape, so a parse/dump cycle is byte-preserving.
type ChangesetExtra struct {
	m *treemap.Map
}

func NewChangesetExtra() *ChangesetExtra {
	return &ChangesetExtra{m: treemap.NewWith(utils.StringComparator)}
}

// ChangesetExtraFrom parses the serialized extra block. An empty buffer
// yields an empty container. Entries without a ':' are malformed and are
// dropped rather than failing the parse.
func ChangesetExtraFrom(buf []byte) *ChangesetExtra {
	e := NewChangesetExtra()
	if len(buf) == 0 {
		return e
	}
	for _, entry := range bytes.Split(buf, []byte{0}) {
		k, v, ok := bytes.Cut(entry, []byte{':'})
		if !ok {
			continue
		}
		e.m.Put(string(k), string(v))
	}
	return e
}

func (e *ChangesetExtra) Get(name string) (string, bool) {
	v, ok := e.m.Get(name)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (e *ChangesetExtra) Set(name, value string) {
	e.m.Put(name, value)
}

func (e *ChangesetExtra) Len() int {
	return e.m.Size()
}

// DumpInto appends the serialized form to buf, keys ascending.
func (e *ChangesetExtra) DumpInto(buf *bytes.Buffer) {
	it := e.m.Iterator()
	first := true
	for it.Next() {
		if !first {
			buf.WriteByte(0)
		}
		first = false
		buf.WriteString(it.Key().(string))
		buf.WriteByte(':')
		buf.WriteString(it.Value().(string))
	}
}

func (e *ChangesetExtra) Dump() []byte {
	var buf bytes.Buffer
	e.DumpInto(&buf)
	return buf.Bytes()
}
