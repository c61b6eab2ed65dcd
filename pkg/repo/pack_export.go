package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/odvcencio/gitcenter/pkg/object"
)

// maxExportDeltaDepth keeps exported chains well inside what readers resolve.
const maxExportDeltaDepth = 50

// ExportRequest selects the objects written by ExportPack.
type ExportRequest struct {
	// Want lists the tips whose reachable objects go into the pack.
	Want []object.ID
	// Have lists tips the receiver already holds. Objects reachable from
	// them are left out. Tips missing locally are ignored.
	Have []object.ID
	// Thin allows REF_DELTA entries against objects reachable from Have.
	// The receiver must resolve those bases from its own store.
	Thin bool
}

// ExportResult describes an exported pack.
type ExportResult struct {
	Pack     []byte
	Checksum object.ID
	Objects  []object.ID // in pack order
	Deltas   int
}

type exportObject struct {
	id   object.ID
	typ  object.ObjectType
	data []byte
	path string // blob path within its tree, "" for other types
}

type exportBase struct {
	offset uint64
	data   []byte
	depth  int
}

// ExportPack writes the objects reachable from req.Want, minus those
// reachable from req.Have, as a version 2 pack. Successive versions of a
// blob at the same path are stored as deltas when that saves space.
func (r *Repo) ExportPack(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if len(req.Want) == 0 {
		return nil, fmt.Errorf("export pack: no objects wanted")
	}

	have := make(map[object.ID]bool)
	haveBlobs := make(map[string]object.ID)
	err := r.walkObjects(ctx, req.Have, nil, true, func(o exportObject) error {
		have[o.id] = true
		if o.typ == object.TypeBlob {
			if _, ok := haveBlobs[o.path]; !ok {
				haveBlobs[o.path] = o.id
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export pack: %w", err)
	}

	var objs []exportObject
	err = r.walkObjects(ctx, req.Want, have, false, func(o exportObject) error {
		objs = append(objs, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export pack: %w", err)
	}
	sort.SliceStable(objs, func(i, j int) bool {
		return exportRank(objs[i].typ) < exportRank(objs[j].typ)
	})

	var buf bytes.Buffer
	pw, err := object.NewPackWriter(&buf, uint32(len(objs)))
	if err != nil {
		return nil, fmt.Errorf("export pack: %w", err)
	}
	res := &ExportResult{Objects: make([]object.ID, 0, len(objs))}
	bases := make(map[string]exportBase)

	for _, o := range objs {
		offset := pw.CurrentOffset()
		res.Objects = append(res.Objects, o.id)
		if o.typ != object.TypeBlob {
			if err := pw.WriteEntry(o.typ, o.data); err != nil {
				return nil, fmt.Errorf("export pack: %s: %w", o.id, err)
			}
			continue
		}

		if base, ok := bases[o.path]; ok && base.depth < maxExportDeltaDepth && worthDelta(base.data, o.data) {
			if err := pw.WriteOfsDelta(base.offset, base.data, o.data); err != nil {
				return nil, fmt.Errorf("export pack: %s: %w", o.id, err)
			}
			bases[o.path] = exportBase{offset: offset, data: o.data, depth: base.depth + 1}
			res.Deltas++
			continue
		}

		if baseID, ok := haveBlobs[o.path]; ok && req.Thin {
			baseData, err := r.readBlobData(ctx, baseID)
			if err != nil {
				return nil, fmt.Errorf("export pack: %w", err)
			}
			if worthDelta(baseData, o.data) {
				if err := pw.WriteRefDelta(baseID, baseData, o.data); err != nil {
					return nil, fmt.Errorf("export pack: %s: %w", o.id, err)
				}
				bases[o.path] = exportBase{offset: offset, data: o.data, depth: 1}
				res.Deltas++
				continue
			}
		}

		if err := pw.WriteEntry(o.typ, o.data); err != nil {
			return nil, fmt.Errorf("export pack: %s: %w", o.id, err)
		}
		bases[o.path] = exportBase{offset: offset, data: o.data}
	}

	sum, err := pw.Finish()
	if err != nil {
		return nil, fmt.Errorf("export pack: %w", err)
	}
	res.Pack = buf.Bytes()
	res.Checksum = sum
	return res, nil
}

// walkObjects visits every object reachable from tips exactly once, skipping
// ids in skip and everything only reachable through them. With allowMissing,
// absent objects are passed over instead of failing the walk.
func (r *Repo) walkObjects(ctx context.Context, tips []object.ID, skip map[object.ID]bool, allowMissing bool, visit func(exportObject) error) error {
	type pending struct {
		id   object.ID
		path string
	}
	seen := make(map[object.ID]bool)
	queue := make([]pending, 0, len(tips))
	for _, id := range tips {
		queue = append(queue, pending{id: id})
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p.id] || skip[p.id] {
			continue
		}
		seen[p.id] = true

		typ, data, err := r.Store.ReadRaw(ctx, p.id)
		if err != nil {
			if allowMissing && errors.Is(err, object.ErrNotFound) {
				continue
			}
			return err
		}
		obj, err := object.Unmarshal(typ, data)
		if err != nil {
			return fmt.Errorf("object %s: %w", p.id, err)
		}

		o := exportObject{id: p.id, typ: typ, data: data}
		if typ == object.TypeBlob {
			o.path = p.path
		}
		if err := visit(o); err != nil {
			return err
		}

		if tree, ok := obj.(*object.Tree); ok {
			for _, e := range tree.Entries {
				if e.Kind() == object.KindSubmodule {
					continue
				}
				queue = append(queue, pending{id: e.ID, path: path.Join(p.path, e.Name)})
			}
			continue
		}
		for _, id := range object.References(obj) {
			queue = append(queue, pending{id: id})
		}
	}
	return nil
}

func (r *Repo) readBlobData(ctx context.Context, id object.ID) ([]byte, error) {
	b, err := r.Store.ReadBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// worthDelta reports whether storing target as a delta against base saves at
// least half of its size.
func worthDelta(base, target []byte) bool {
	if len(target) < 32 {
		return false
	}
	return object.DeltaSize(base, target) <= len(target)/2
}

func exportRank(t object.ObjectType) int {
	switch t {
	case object.TypeCommit:
		return 0
	case object.TypeTag:
		return 1
	case object.TypeTree:
		return 2
	default:
		return 3
	}
}
