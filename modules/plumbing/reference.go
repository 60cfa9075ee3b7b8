package plumbing

// Well-known refs of the bridge. MetadataRef holds the metadata commit; its
// first parent is the head-set checkpoint, which carries the head list in
// its body. ReplaceRefs
// hold the replace graph consulted when following commit parents. NotesRef
// is the hg→git correspondence notes tree. CheckedRef and BrokenRef are
// state markers written by consistency checks; we only ever read them.
const (
	RefsPrefix        = "refs/cinnabar/"
	ReplaceRefsPrefix = "refs/cinnabar/replace/"
	MetadataRef       = "refs/cinnabar/metadata"
	CheckedRef        = "refs/cinnabar/checked"
	BrokenRef         = "refs/cinnabar/broken"
	NotesRef          = "refs/notes/cinnabar"
)
