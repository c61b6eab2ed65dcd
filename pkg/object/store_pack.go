package object

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/odvcencio/gitcenter/pkg/storage"
)

// PackDir is the backend directory holding pack files and their indexes.
const PackDir = "objects/pack"

// packSet discovers pack indexes through the backend and caches them. Pack
// bytes are fetched on first use.
type packSet struct {
	backend storage.Backend

	mu     sync.Mutex
	loaded bool
	packs  []*packHandle
}

type packHandle struct {
	name  string
	index *PackIndex

	mu   sync.Mutex
	data []byte
}

func newPackSet(backend storage.Backend) *packSet {
	return &packSet{backend: backend}
}

func (ps *packSet) invalidate() {
	ps.mu.Lock()
	ps.loaded = false
	ps.packs = nil
	ps.mu.Unlock()
}

func (ps *packSet) load(ctx context.Context) ([]*packHandle, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.loaded {
		return ps.packs, nil
	}

	names, err := ps.backend.ListDirectory(ctx, PackDir)
	if err != nil {
		return nil, &Error{Kind: ErrBackend, Op: "list packs", Subject: PackDir, Err: err}
	}
	var packs []*packHandle
	for _, name := range names {
		if !strings.HasSuffix(name, ".idx") {
			continue
		}
		idxPath := path.Join(PackDir, name)
		data, err := ps.backend.ReadFile(ctx, idxPath)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, &Error{Kind: ErrBackend, Op: "read pack index", Subject: idxPath, Err: err}
		}
		idx, err := ReadPackIndex(data)
		if err != nil {
			return nil, &Error{Kind: ErrFormat, Op: "read pack index", Subject: idxPath, Err: err}
		}
		packs = append(packs, &packHandle{
			name:  strings.TrimSuffix(name, ".idx"),
			index: idx,
		})
	}
	ps.packs = packs
	ps.loaded = true
	return packs, nil
}

func (p *packHandle) packData(ctx context.Context, backend storage.Backend) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data != nil {
		return p.data, nil
	}
	packPath := path.Join(PackDir, p.name+".pack")
	data, err := backend.ReadFile(ctx, packPath)
	if err != nil {
		return nil, &Error{Kind: ErrBackend, Op: "read pack", Subject: packPath, Err: err}
	}
	if len(data) < packHeaderSize+packTrailerSize {
		return nil, &Error{Kind: ErrFormat, Op: "read pack", Subject: packPath, Err: fmt.Errorf("pack too short")}
	}
	if _, err := UnmarshalPackHeader(data); err != nil {
		return nil, &Error{Kind: ErrFormat, Op: "read pack", Subject: packPath, Err: err}
	}
	var trailer ID
	copy(trailer[:], data[len(data)-packTrailerSize:])
	if trailer != p.index.PackChecksum {
		return nil, &Error{Kind: ErrFormat, Op: "read pack", Subject: packPath,
			Err: fmt.Errorf("checksum %s does not match index %s", trailer, p.index.PackChecksum)}
	}
	p.data = data
	return data, nil
}

// lookup finds id in any known pack. found is false when no index lists it.
func (ps *packSet) lookup(ctx context.Context, id ID, external BaseResolver) (ObjectType, []byte, bool, error) {
	packs, err := ps.load(ctx)
	if err != nil {
		return "", nil, false, err
	}
	for _, p := range packs {
		entry, ok := p.index.Find(id)
		if !ok {
			continue
		}
		data, err := p.packData(ctx, ps.backend)
		if err != nil {
			return "", nil, false, err
		}
		objType, payload, err := resolveAt(data, p.index, entry.Offset, external, 0)
		if err != nil {
			return "", nil, false, &Error{Kind: ErrFormat, Op: "read packed", Subject: id.String(), Err: err}
		}
		if got := HashObject(objType, payload); got != id {
			return "", nil, false, &Error{Kind: ErrFormat, Op: "read packed", Subject: id.String(),
				Err: fmt.Errorf("content hashes to %s", got)}
		}
		return objType, payload, true, nil
	}
	return "", nil, false, nil
}

// resolveAt inflates the entry at offset, following delta bases within the
// same pack and asking external for REF_DELTA bases found elsewhere.
func resolveAt(data []byte, idx *PackIndex, offset uint64, external BaseResolver, depth int) (ObjectType, []byte, error) {
	if depth > maxDeltaDepth {
		return "", nil, fmt.Errorf("delta chain exceeds %d", maxDeltaDepth)
	}
	entry, _, err := readPackEntryAt(data[:len(data)-packTrailerSize], offset)
	if err != nil {
		return "", nil, fmt.Errorf("offset %d: %w", offset, err)
	}
	if objType, ok := entry.Type.ObjectType(); ok {
		return objType, entry.Data, nil
	}

	var (
		baseType ObjectType
		baseData []byte
	)
	switch entry.Type {
	case PackOfsDelta:
		baseType, baseData, err = resolveAt(data, idx, entry.BaseOffset, external, depth+1)
	case PackRefDelta:
		if baseEntry, ok := idx.Find(entry.BaseID); ok {
			baseType, baseData, err = resolveAt(data, idx, baseEntry.Offset, external, depth+1)
		} else if external != nil {
			baseType, baseData, err = external(entry.BaseID)
		} else {
			err = fmt.Errorf("ref-delta base %s not available", entry.BaseID)
		}
	}
	if err != nil {
		return "", nil, err
	}
	out, err := applyDelta(baseData, entry.Data)
	if err != nil {
		return "", nil, fmt.Errorf("offset %d: %w", offset, err)
	}
	return baseType, out, nil
}
