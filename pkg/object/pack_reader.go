package object

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
)

// maxDeltaDepth bounds delta chains when resolving packed objects.
const maxDeltaDepth = 64

// PackEntry is one entry in a pack stream. For delta entries Data holds the
// delta instructions and BaseOffset or BaseID names the base.
type PackEntry struct {
	Offset     uint64
	CRC32      uint32
	Type       PackObjectType
	Size       uint64
	BaseOffset uint64
	BaseID     ID
	Data       []byte
}

// PackFile is the decoded content of a pack stream.
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum ID
}

// ReadPack parses a complete pack, verifies its trailer checksum and returns
// every entry with its offset and CRC32.
func ReadPack(data []byte) (*PackFile, error) {
	if len(data) < packHeaderSize+packTrailerSize {
		return nil, fmt.Errorf("pack too short: %d", len(data))
	}

	payload := data[:len(data)-packTrailerSize]
	trailer := data[len(data)-packTrailerSize:]
	sum := sha1.Sum(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("pack checksum mismatch")
	}

	header, err := UnmarshalPackHeader(payload)
	if err != nil {
		return nil, err
	}

	offset := uint64(packHeaderSize)
	entries := make([]PackEntry, 0, header.NumObjects)
	for i := uint32(0); i < header.NumObjects; i++ {
		entry, next, err := readPackEntryAt(payload, offset)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entry.CRC32 = crc32.ChecksumIEEE(payload[offset:next])
		entries = append(entries, entry)
		offset = next
	}
	if offset != uint64(len(payload)) {
		return nil, fmt.Errorf("pack has trailing undecoded bytes: %d", uint64(len(payload))-offset)
	}

	return &PackFile{
		Header:   *header,
		Entries:  entries,
		Checksum: ID(sum),
	}, nil
}

// readPackEntryAt decodes the entry starting at offset and returns it with
// the offset of the byte following its compressed payload.
func readPackEntryAt(data []byte, offset uint64) (PackEntry, uint64, error) {
	if offset < packHeaderSize || offset >= uint64(len(data)) {
		return PackEntry{}, 0, fmt.Errorf("offset %d out of range", offset)
	}
	objType, size, n, err := decodePackEntryHeader(data[offset:])
	if err != nil {
		return PackEntry{}, 0, err
	}
	entry := PackEntry{Offset: offset, Type: objType, Size: size}
	pos := offset + uint64(n)

	switch objType {
	case PackCommit, PackTree, PackBlob, PackTag:
	case PackOfsDelta:
		distance, m, err := decodeOfsDeltaDistance(data[pos:])
		if err != nil {
			return PackEntry{}, 0, err
		}
		if distance == 0 || distance > offset {
			return PackEntry{}, 0, fmt.Errorf("ofs-delta base distance %d invalid at offset %d", distance, offset)
		}
		entry.BaseOffset = offset - distance
		pos += uint64(m)
	case PackRefDelta:
		if pos+IDSize > uint64(len(data)) {
			return PackEntry{}, 0, fmt.Errorf("ref-delta base id truncated")
		}
		copy(entry.BaseID[:], data[pos:pos+IDSize])
		pos += IDSize
	default:
		return PackEntry{}, 0, fmt.Errorf("unsupported pack object type %d", objType)
	}

	if pos >= uint64(len(data)) {
		return PackEntry{}, 0, fmt.Errorf("missing compressed payload")
	}
	sub := bytes.NewReader(data[pos:])
	zr, err := zlib.NewReader(sub)
	if err != nil {
		return PackEntry{}, 0, fmt.Errorf("zlib reader: %w", err)
	}
	if size > MaxObjectSize {
		_ = zr.Close()
		return PackEntry{}, 0, fmt.Errorf("entry size %d exceeds limit", size)
	}
	raw, err := io.ReadAll(io.LimitReader(zr, int64(size)+1))
	if err != nil {
		_ = zr.Close()
		return PackEntry{}, 0, fmt.Errorf("decompress: %w", err)
	}
	if err := zr.Close(); err != nil {
		return PackEntry{}, 0, fmt.Errorf("close zlib stream: %w", err)
	}
	if uint64(len(raw)) != size {
		return PackEntry{}, 0, fmt.Errorf("size mismatch header=%d decoded=%d", size, len(raw))
	}
	entry.Data = raw

	consumed := uint64(len(data[pos:]) - sub.Len())
	return entry, pos + consumed, nil
}

// PackObject is a fully resolved object from a pack.
type PackObject struct {
	ID     ID
	Type   ObjectType
	Data   []byte
	Offset uint64
	CRC32  uint32
}

// BaseResolver supplies REF_DELTA bases that are not in the pack itself.
type BaseResolver func(id ID) (ObjectType, []byte, error)

// Resolve applies every delta in the pack and returns the objects in pack
// order. external may be nil; REF_DELTA bases are looked up in the pack
// first.
func (pf *PackFile) Resolve(external BaseResolver) ([]PackObject, error) {
	type state struct {
		obj   PackObject
		depth int
		done  bool
	}
	states := make([]state, len(pf.Entries))
	byOffset := make(map[uint64]int, len(pf.Entries))
	for i, e := range pf.Entries {
		byOffset[e.Offset] = i
	}
	byID := make(map[ID]int, len(pf.Entries))

	finish := func(i int, objType ObjectType, data []byte, depth int) error {
		if depth > maxDeltaDepth {
			return fmt.Errorf("entry at offset %d: delta chain exceeds %d", pf.Entries[i].Offset, maxDeltaDepth)
		}
		id := HashObject(objType, data)
		states[i] = state{
			obj: PackObject{
				ID:     id,
				Type:   objType,
				Data:   data,
				Offset: pf.Entries[i].Offset,
				CRC32:  pf.Entries[i].CRC32,
			},
			depth: depth,
			done:  true,
		}
		byID[id] = i
		return nil
	}

	pending := 0
	for i, e := range pf.Entries {
		if objType, ok := e.Type.ObjectType(); ok {
			if err := finish(i, objType, e.Data, 0); err != nil {
				return nil, err
			}
			continue
		}
		pending++
	}

	for pending > 0 {
		progress := false
		for i, e := range pf.Entries {
			if states[i].done || !e.Type.IsDelta() {
				continue
			}
			var (
				baseType  ObjectType
				baseData  []byte
				baseDepth int
				ready     bool
			)
			switch e.Type {
			case PackOfsDelta:
				bi, ok := byOffset[e.BaseOffset]
				if !ok {
					return nil, fmt.Errorf("entry at offset %d: no entry at base offset %d", e.Offset, e.BaseOffset)
				}
				if states[bi].done {
					baseType, baseData, baseDepth, ready = states[bi].obj.Type, states[bi].obj.Data, states[bi].depth, true
				}
			case PackRefDelta:
				if bi, ok := byID[e.BaseID]; ok {
					baseType, baseData, baseDepth, ready = states[bi].obj.Type, states[bi].obj.Data, states[bi].depth, true
				}
			}
			if !ready {
				continue
			}
			data, err := applyDelta(baseData, e.Data)
			if err != nil {
				return nil, fmt.Errorf("entry at offset %d: %w", e.Offset, err)
			}
			if err := finish(i, baseType, data, baseDepth+1); err != nil {
				return nil, err
			}
			pending--
			progress = true
		}
		if progress {
			continue
		}

		// Remaining REF_DELTA bases must come from outside the pack.
		for i, e := range pf.Entries {
			if states[i].done || e.Type != PackRefDelta || external == nil {
				continue
			}
			baseType, baseData, err := external(e.BaseID)
			if err != nil {
				return nil, fmt.Errorf("entry at offset %d: base %s: %w", e.Offset, e.BaseID, err)
			}
			data, err := applyDelta(baseData, e.Data)
			if err != nil {
				return nil, fmt.Errorf("entry at offset %d: %w", e.Offset, err)
			}
			if err := finish(i, baseType, data, 1); err != nil {
				return nil, err
			}
			pending--
			progress = true
			break
		}
		if !progress {
			return nil, fmt.Errorf("pack has %d deltas with unresolvable bases", pending)
		}
	}

	out := make([]PackObject, len(states))
	for i := range states {
		out[i] = states[i].obj
	}
	return out, nil
}
