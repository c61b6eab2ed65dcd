package repo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

// Node is the result of a path lookup. Blobs carry Data, trees carry
// Entries, and commits or tags reached as the root carry Object. Submodule
// links carry only their commit id.
type Node struct {
	Path    string
	Type    object.ObjectType
	Mode    string
	ID      object.ID
	Data    []byte
	Entries []object.TreeEntry
	Object  object.Object
}

// IsSubmodule reports whether the node is a link into another repository.
func (n *Node) IsSubmodule() bool {
	return n.Mode == object.ModeSubmodule
}

func splitPath(p string) []string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

func notATree(at string) error {
	return object.NewError(object.ErrType, "lookup", at, fmt.Errorf("not a tree"))
}

// Lookup walks p from rootID. An empty path returns the root object itself,
// whatever its kind; otherwise rootID and every intermediate entry must be
// trees.
func (r *Repo) Lookup(ctx context.Context, rootID object.ID, p string) (*Node, error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		obj, err := r.Store.Read(ctx, rootID)
		if err != nil {
			return nil, err
		}
		return nodeFor("", "", rootID, obj), nil
	}

	current := rootID
	walked := ""
	var entry object.TreeEntry
	for i, part := range parts {
		if i > 0 {
			if !entry.IsDir() {
				return nil, notATree(walked)
			}
			current = entry.ID
		}
		tree, err := r.Store.ReadTree(ctx, current)
		if err != nil {
			if errors.Is(err, object.ErrType) {
				return nil, notATree(walked)
			}
			return nil, err
		}
		var ok bool
		entry, ok = tree.Entry(part)
		walked = path.Join(walked, part)
		if !ok {
			return nil, object.NewError(object.ErrNotFound, "lookup", walked, storage.ErrNotFound)
		}
	}

	if entry.Kind() == object.KindSubmodule {
		return &Node{Path: walked, Type: object.TypeCommit, Mode: entry.Mode, ID: entry.ID}, nil
	}
	obj, err := r.Store.Read(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	return nodeFor(walked, entry.Mode, entry.ID, obj), nil
}

func nodeFor(p, mode string, id object.ID, obj object.Object) *Node {
	n := &Node{Path: p, Type: obj.Type(), Mode: mode, ID: id}
	switch o := obj.(type) {
	case *object.Blob:
		n.Data = o.Data
	case *object.Tree:
		n.Entries = o.Entries
	default:
		n.Object = obj
	}
	return n
}

// LookupRev resolves rev (a ref name or id), peels it to a tree and looks up
// p in that tree.
func (r *Repo) LookupRev(ctx context.Context, rev, p string) (*Node, error) {
	id, err := r.Refs.Lookup(ctx, rev)
	if err != nil {
		return nil, err
	}
	treeID, err := r.Peel(ctx, id, object.TypeTree)
	if err != nil {
		return nil, err
	}
	return r.Lookup(ctx, treeID, p)
}

// maxPeel bounds tag-to-tag chains.
const maxPeel = 32

// Peel follows tag targets, and a commit's tree when want is a tree, until
// it reaches an object of type want.
func (r *Repo) Peel(ctx context.Context, id object.ID, want object.ObjectType) (object.ID, error) {
	for i := 0; i < maxPeel; i++ {
		obj, err := r.Store.Read(ctx, id)
		if err != nil {
			return object.ZeroID, err
		}
		if obj.Type() == want {
			return id, nil
		}
		switch o := obj.(type) {
		case *object.Tag:
			id = o.Target
		case *object.Commit:
			if want != object.TypeTree {
				return object.ZeroID, peelErr(id, obj.Type(), want)
			}
			id = o.Tree
		default:
			return object.ZeroID, peelErr(id, obj.Type(), want)
		}
	}
	return object.ZeroID, object.NewError(object.ErrResolution, "peel", id.String(),
		fmt.Errorf("more than %d nested tags", maxPeel))
}

func peelErr(id object.ID, got, want object.ObjectType) error {
	return object.NewError(object.ErrType, "peel", id.String(), fmt.Errorf("cannot peel %s to %s", got, want))
}

// TreeFile is one non-tree entry of a flattened tree.
type TreeFile struct {
	Path string
	Mode string
	ID   object.ID
}

// FlattenTree walks treeID recursively and returns every blob and submodule
// with its full slash-separated path, in tree order.
func (r *Repo) FlattenTree(ctx context.Context, treeID object.ID) ([]TreeFile, error) {
	var out []TreeFile
	if err := r.flattenTreeRec(ctx, treeID, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) flattenTreeRec(ctx context.Context, treeID object.ID, prefix string, out *[]TreeFile) error {
	tree, err := r.Store.ReadTree(ctx, treeID)
	if err != nil {
		return fmt.Errorf("flatten tree %q: %w", prefix, err)
	}
	for _, entry := range tree.Entries {
		full := path.Join(prefix, entry.Name)
		if entry.IsDir() {
			if err := r.flattenTreeRec(ctx, entry.ID, full, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, TreeFile{Path: full, Mode: entry.Mode, ID: entry.ID})
	}
	return nil
}
