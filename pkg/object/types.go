package object

import "fmt"

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

// ParseObjectType validates an object type name.
func ParseObjectType(s string) (ObjectType, error) {
	switch t := ObjectType(s); t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return t, nil
	}
	return "", formatErr("parse type", s, fmt.Errorf("unknown object type"))
}

// Object is one of *Blob, *Tree, *Commit or *Tag. Objects returned by a Store
// may be shared with its cache and must be treated as read-only.
type Object interface {
	Type() ObjectType
}

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Mode is kept exactly as stored so
// that legacy modes such as "100664" round-trip.
type TreeEntry struct {
	Name string
	Mode string
	ID   ID
}

// Tree is a directory listing. Encoding always emits entries in canonical
// order regardless of the order held here.
type Tree struct {
	Entries []TreeEntry
}

// Header is an extra commit or tag header preserved verbatim, e.g.
// "encoding", "gpgsig" or "mergetag". Value may span lines.
type Header struct {
	Key   string
	Value string
}

// Commit is a snapshot of a tree with its ancestry. Author and Committer are
// identity lines ("Name <email> 1700000000 +0000") kept byte-for-byte.
type Commit struct {
	Tree      ID
	Parents   []ID
	Author    string
	Committer string
	Extra     []Header
	Message   string
}

// Tag is an annotated tag.
type Tag struct {
	Target     ID
	TargetType ObjectType
	Name       string
	Tagger     string
	Extra      []Header
	Message    string
}

func (*Blob) Type() ObjectType   { return TypeBlob }
func (*Tree) Type() ObjectType   { return TypeTree }
func (*Commit) Type() ObjectType { return TypeCommit }
func (*Tag) Type() ObjectType    { return TypeTag }

// Entry returns the entry named name.
func (t *Tree) Entry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// Header returns the value of the first extra header named key.
func (c *Commit) Header(key string) (string, bool) {
	return findHeader(c.Extra, key)
}

// Header returns the value of the first extra header named key.
func (t *Tag) Header(key string) (string, bool) {
	return findHeader(t.Extra, key)
}

func findHeader(headers []Header, key string) (string, bool) {
	for _, h := range headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}
