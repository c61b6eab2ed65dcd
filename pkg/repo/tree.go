package repo

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/odvcencio/gitcenter/pkg/object"
)

// ErrInvalidEdit is returned for edits with bad paths or modes and for
// change sets that use one path as both a file and a directory.
var ErrInvalidEdit = errors.New("invalid tree edit")

// Edit changes one path of a tree. Exactly one of Delete, Content or ID
// applies: Delete removes the path (and everything below it), Content stores
// a new blob, ID links an existing object such as a submodule commit.
type Edit struct {
	Path    string
	Content []byte
	Mode    string // defaults to object.ModeFile, or from the linked object's type
	ID      object.ID
	Delete  bool
}

type editNode struct {
	edit     *Edit
	children map[string]*editNode
}

func invalidEdit(p, format string, args ...any) error {
	return fmt.Errorf("%w: %q: %s", ErrInvalidEdit, p, fmt.Sprintf(format, args...))
}

func buildEditTree(edits []Edit) (*editNode, error) {
	root := &editNode{}
	for i := range edits {
		e := edits[i]
		parts := splitPath(e.Path)
		if len(parts) == 0 {
			return nil, invalidEdit(e.Path, "empty path")
		}
		node := root
		for j, part := range parts {
			if !object.ValidEntryName(part) {
				return nil, invalidEdit(e.Path, "invalid segment %q", part)
			}
			if node.edit != nil {
				return nil, invalidEdit(e.Path, "%q is also edited as a file", path.Join(parts[:j]...))
			}
			if node.children == nil {
				node.children = make(map[string]*editNode)
			}
			child, ok := node.children[part]
			if !ok {
				child = &editNode{}
				node.children[part] = child
			}
			node = child
		}
		if node.edit != nil {
			return nil, invalidEdit(e.Path, "edited more than once")
		}
		if len(node.children) > 0 {
			return nil, invalidEdit(e.Path, "is also edited as a directory")
		}
		if err := checkEdit(&e); err != nil {
			return nil, err
		}
		node.edit = &e
	}
	return root, nil
}

func checkEdit(e *Edit) error {
	if e.Delete {
		return nil
	}
	if e.Mode == "" {
		if !e.ID.IsZero() {
			if e.Content != nil {
				return invalidEdit(e.Path, "both content and id given")
			}
			return nil // resolved against the store when applied
		}
		e.Mode = object.ModeForKind(object.KindBlob)
	}
	kind, err := object.KindOfMode(e.Mode)
	if err != nil {
		return invalidEdit(e.Path, "mode %q", e.Mode)
	}
	if kind != object.KindBlob && e.ID.IsZero() {
		return invalidEdit(e.Path, "mode %s needs an object id", e.Mode)
	}
	if !e.ID.IsZero() && e.Content != nil {
		return invalidEdit(e.Path, "both content and id given")
	}
	return nil
}

// kindOfType maps a stored object's type to the entry kind that links it.
func kindOfType(t object.ObjectType) object.EntryKind {
	switch t {
	case object.TypeTree:
		return object.KindTree
	case object.TypeCommit:
		return object.KindSubmodule
	default:
		return object.KindBlob
	}
}

// BuildTree applies edits to baseTree (zero for an empty tree) and returns
// the new root tree id. Only directories on edited paths are read and
// rewritten; untouched subtrees are reused by id. Directories left empty by
// deletions are pruned.
func (r *Repo) BuildTree(ctx context.Context, baseTree object.ID, edits []Edit) (object.ID, error) {
	root, err := buildEditTree(edits)
	if err != nil {
		return object.ZeroID, err
	}
	id, _, err := r.applyEdits(ctx, baseTree, root, "", true)
	if err != nil {
		return object.ZeroID, err
	}
	return id, nil
}

// applyEdits returns the id of the rewritten directory and whether it ended
// up empty. Empty directories are only written when keepEmpty is set.
func (r *Repo) applyEdits(ctx context.Context, base object.ID, node *editNode, dir string, keepEmpty bool) (object.ID, bool, error) {
	entries := make(map[string]object.TreeEntry)
	if !base.IsZero() {
		tree, err := r.Store.ReadTree(ctx, base)
		if err != nil {
			return object.ZeroID, false, fmt.Errorf("build tree %q: %w", dir, err)
		}
		for _, e := range tree.Entries {
			entries[e.Name] = e
		}
	}

	for name, child := range node.children {
		full := path.Join(dir, name)
		if e := child.edit; e != nil {
			if e.Delete {
				delete(entries, name)
				continue
			}
			id := e.ID
			if id.IsZero() {
				blobID, err := r.Store.WriteBlob(ctx, &object.Blob{Data: e.Content})
				if err != nil {
					return object.ZeroID, false, fmt.Errorf("build tree %q: %w", full, err)
				}
				id = blobID
			}
			mode := e.Mode
			if mode == "" {
				objType, _, err := r.Store.ReadRaw(ctx, id)
				if err != nil {
					return object.ZeroID, false, fmt.Errorf("build tree %q: %w", full, err)
				}
				mode = object.ModeForKind(kindOfType(objType))
			}
			entries[name] = object.TreeEntry{Name: name, Mode: mode, ID: id}
			continue
		}

		var sub object.ID
		if existing, ok := entries[name]; ok && existing.IsDir() {
			sub = existing.ID
		}
		id, empty, err := r.applyEdits(ctx, sub, child, full, false)
		if err != nil {
			return object.ZeroID, false, err
		}
		if empty {
			delete(entries, name)
			continue
		}
		entries[name] = object.TreeEntry{Name: name, Mode: object.ModeDir, ID: id}
	}

	if len(entries) == 0 && !keepEmpty {
		return object.ZeroID, true, nil
	}
	list := make([]object.TreeEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	id, err := r.Store.WriteTree(ctx, &object.Tree{Entries: object.SortEntries(list)})
	if err != nil {
		return object.ZeroID, false, fmt.Errorf("build tree %q: write: %w", dir, err)
	}
	return id, len(entries) == 0, nil
}
