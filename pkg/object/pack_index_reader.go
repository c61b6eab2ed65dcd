package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

// PackIndex is an in-memory idx v2 file.
type PackIndex struct {
	fanout        [256]uint32
	entries       []PackIndexEntry
	PackChecksum  ID
	IndexChecksum ID
}

// Len returns the number of objects indexed.
func (idx *PackIndex) Len() int {
	return len(idx.entries)
}

// Entries returns a copy of all index entries in id order.
func (idx *PackIndex) Entries() []PackIndexEntry {
	out := make([]PackIndexEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Find performs a fanout-bounded binary search for id.
func (idx *PackIndex) Find(id ID) (PackIndexEntry, bool) {
	bucket := int(id[0])
	start := uint32(0)
	if bucket > 0 {
		start = idx.fanout[bucket-1]
	}
	end := idx.fanout[bucket]
	if end <= start {
		return PackIndexEntry{}, false
	}

	lo, hi := int(start), int(end)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if idx.entries[mid].ID.Compare(id) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < int(end) && idx.entries[lo].ID == id {
		return idx.entries[lo], true
	}
	return PackIndexEntry{}, false
}

// ReadPackIndex parses and validates an idx v2 file.
func ReadPackIndex(data []byte) (*PackIndex, error) {
	trailer := 2 * IDSize
	minLen := packIndexHeaderSize + packIndexFanoutSize + trailer
	if len(data) < minLen {
		return nil, fmt.Errorf("pack index too short: %d", len(data))
	}
	if string(data[:4]) != string(packIndexMagic[:]) {
		return nil, fmt.Errorf("invalid pack index magic %q", data[:4])
	}
	if version := binary.BigEndian.Uint32(data[4:8]); version != packIndexVersion {
		return nil, fmt.Errorf("unsupported pack index version %d", version)
	}

	sum := sha1.Sum(data[:len(data)-IDSize])
	if !bytes.Equal(data[len(data)-IDSize:], sum[:]) {
		return nil, fmt.Errorf("pack index checksum mismatch")
	}

	var fanout [256]uint32
	cursor := packIndexHeaderSize
	for i := 0; i < 256; i++ {
		fanout[i] = binary.BigEndian.Uint32(data[cursor:])
		if i > 0 && fanout[i] < fanout[i-1] {
			return nil, fmt.Errorf("pack index fanout not monotonic at %d", i)
		}
		cursor += 4
	}
	n := int(fanout[255])

	namesStart := cursor
	crcStart := namesStart + n*IDSize
	offsetStart := crcStart + n*4
	cursor = offsetStart + n*4
	if cursor+trailer > len(data) {
		return nil, fmt.Errorf("pack index truncated")
	}

	offset32 := make([]uint32, n)
	largeNeeded := uint32(0)
	for i := 0; i < n; i++ {
		v := binary.BigEndian.Uint32(data[offsetStart+(i*4):])
		offset32[i] = v
		if v&packIndexLargeOffsetBit != 0 {
			if ref := v &^ packIndexLargeOffsetBit; ref+1 > largeNeeded {
				largeNeeded = ref + 1
			}
		}
	}

	largeOffsets := make([]uint64, largeNeeded)
	for i := range largeOffsets {
		if cursor+8 > len(data)-trailer {
			return nil, fmt.Errorf("pack index large-offset table truncated")
		}
		largeOffsets[i] = binary.BigEndian.Uint64(data[cursor:])
		cursor += 8
	}
	if cursor+trailer != len(data) {
		return nil, fmt.Errorf("pack index trailing data: %d bytes", len(data)-(cursor+trailer))
	}

	entries := make([]PackIndexEntry, n)
	for i := 0; i < n; i++ {
		copy(entries[i].ID[:], data[namesStart+i*IDSize:])
		entries[i].CRC32 = binary.BigEndian.Uint32(data[crcStart+(i*4):])
		offset := uint64(offset32[i])
		if offset32[i]&packIndexLargeOffsetBit != 0 {
			offset = largeOffsets[offset32[i]&^packIndexLargeOffsetBit]
		}
		entries[i].Offset = offset
		if i > 0 && entries[i-1].ID.Compare(entries[i].ID) >= 0 {
			return nil, fmt.Errorf("pack index entries not sorted at %d", i)
		}
	}

	idx := &PackIndex{fanout: fanout, entries: entries}
	copy(idx.PackChecksum[:], data[cursor:cursor+IDSize])
	copy(idx.IndexChecksum[:], data[cursor+IDSize:])
	return idx, nil
}
