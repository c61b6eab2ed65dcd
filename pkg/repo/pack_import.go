package repo

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/odvcencio/gitcenter/pkg/object"
)

// ImportResult describes an imported pack.
type ImportResult struct {
	Name     string // pack-<checksum>
	Checksum object.ID
	Objects  []object.ID
}

// ImportPack verifies a pack, resolves its deltas (thin packs may use bases
// already in the store), writes the pack and its index under objects/pack
// and makes the objects readable.
func (r *Repo) ImportPack(ctx context.Context, pack []byte) (*ImportResult, error) {
	pf, err := object.ReadPack(pack)
	if err != nil {
		return nil, object.NewError(object.ErrFormat, "import pack", "", err)
	}

	objs, err := pf.Resolve(func(id object.ID) (object.ObjectType, []byte, error) {
		return r.Store.ReadRaw(ctx, id)
	})
	if err != nil {
		return nil, object.NewError(object.ErrFormat, "import pack", pf.Checksum.String(), err)
	}

	entries := make([]object.PackIndexEntry, 0, len(objs))
	ids := make([]object.ID, 0, len(objs))
	for _, o := range objs {
		if _, err := object.Unmarshal(o.Type, o.Data); err != nil {
			return nil, fmt.Errorf("import pack: object %s: %w", o.ID, err)
		}
		entries = append(entries, object.PackIndexEntry{ID: o.ID, Offset: o.Offset, CRC32: o.CRC32})
		ids = append(ids, o.ID)
	}

	var idx bytes.Buffer
	if _, err := object.WritePackIndex(&idx, entries, pf.Checksum); err != nil {
		return nil, fmt.Errorf("import pack: %w", err)
	}

	name := "pack-" + pf.Checksum.String()
	base := path.Join(object.PackDir, name)
	// The index goes last: a pack is only discovered through its index.
	if err := r.Backend.WriteFile(ctx, base+".pack", pack); err != nil {
		return nil, object.NewError(object.ErrBackend, "import pack", base+".pack", err)
	}
	if err := r.Backend.WriteFile(ctx, base+".idx", idx.Bytes()); err != nil {
		return nil, object.NewError(object.ErrBackend, "import pack", base+".idx", err)
	}
	r.Store.InvalidatePacks()

	return &ImportResult{Name: name, Checksum: pf.Checksum, Objects: ids}, nil
}
