package object

import (
	"fmt"
	"strings"
)

// Tree mode strings as Git writes them.
const (
	ModeDir        = "40000"
	ModeFile       = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
	ModeSubmodule  = "160000"
)

// EntryKind is the kind of object a tree entry points at.
type EntryKind int

const (
	KindBlob EntryKind = iota
	KindTree
	KindSubmodule
)

func (k EntryKind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	case KindSubmodule:
		return "submodule"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// ObjectType is the type of the object an entry of this kind names.
// Submodule entries name a commit in another repository.
func (k EntryKind) ObjectType() ObjectType {
	switch k {
	case KindTree:
		return TypeTree
	case KindSubmodule:
		return TypeCommit
	default:
		return TypeBlob
	}
}

// KindOfMode maps a tree mode to an entry kind: 100xxx and 120xxx are blobs
// (files and symlinks), 160xxx is a submodule link and 40xxx is a directory.
func KindOfMode(mode string) (EntryKind, error) {
	if mode == "" {
		return 0, formatErr("parse mode", mode, fmt.Errorf("empty mode"))
	}
	for i := 0; i < len(mode); i++ {
		if mode[i] < '0' || mode[i] > '7' {
			return 0, formatErr("parse mode", mode, fmt.Errorf("not octal"))
		}
	}
	switch {
	case strings.HasPrefix(mode, "100"), strings.HasPrefix(mode, "120"):
		return KindBlob, nil
	case strings.HasPrefix(mode, "160"):
		return KindSubmodule, nil
	case strings.HasPrefix(mode, "40"), strings.HasPrefix(mode, "040"):
		return KindTree, nil
	}
	return 0, formatErr("parse mode", mode, fmt.Errorf("unrecognized file type"))
}

// Kind returns the entry kind implied by its mode. Entries with an invalid
// mode report KindBlob; Decode never produces such entries.
func (e TreeEntry) Kind() EntryKind {
	k, err := KindOfMode(e.Mode)
	if err != nil {
		return KindBlob
	}
	return k
}

// IsDir reports whether the entry is a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Kind() == KindTree
}

// ModeForKind returns the default mode written for an entry of kind k.
func ModeForKind(k EntryKind) string {
	switch k {
	case KindTree:
		return ModeDir
	case KindSubmodule:
		return ModeSubmodule
	default:
		return ModeFile
	}
}
