package object

import (
	"bytes"
	"fmt"
	"io"
)

func encodeDeltaVarint(v uint64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large")
		}
	}
}

// encodeOfsDeltaDistance encodes the backward distance of an OFS_DELTA base.
func encodeOfsDeltaDistance(distance uint64) []byte {
	b := []byte{byte(distance & 0x7f)}
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		b = append([]byte{byte((distance & 0x7f) | 0x80)}, b...)
	}
	return b
}

func decodeOfsDeltaDistance(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("ofs-delta distance truncated")
	}
	i := 0
	c := data[i]
	i++
	offset := uint64(c & 0x7f)
	for c&0x80 != 0 {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("ofs-delta distance truncated")
		}
		c = data[i]
		i++
		offset = ((offset + 1) << 7) | uint64(c&0x7f)
	}
	return offset, i, nil
}

// maxDeltaCopy is the largest copy a single instruction can carry without
// size bytes.
const maxDeltaCopy = 0x10000

// buildDelta encodes target against base as a copy of their shared prefix, a
// literal insert of the differing middle and a copy of their shared suffix.
// Unrelated inputs degrade to an insert-only delta.
func buildDelta(base, target []byte) []byte {
	var prefix, suffix int
	if uint64(len(base)) <= 0xffffffff {
		prefix = commonPrefix(base, target)
		suffix = commonSuffix(base[prefix:], target[prefix:])
	}

	var out bytes.Buffer
	out.Write(encodeDeltaVarint(uint64(len(base))))
	out.Write(encodeDeltaVarint(uint64(len(target))))
	writeDeltaCopy(&out, 0, prefix)
	writeDeltaInsert(&out, target[prefix:len(target)-suffix])
	writeDeltaCopy(&out, len(base)-suffix, suffix)
	return out.Bytes()
}

// DeltaSize returns the length of the delta PackWriter would store for
// target against base.
func DeltaSize(base, target []byte) int {
	return len(buildDelta(base, target))
}

func commonPrefix(a, b []byte) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffix(a, b []byte) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}

func writeDeltaCopy(out *bytes.Buffer, offset, size int) {
	for size > 0 {
		chunk := min(size, maxDeltaCopy)
		var args [7]byte
		n := 0
		cmd := byte(0x80)
		for i := 0; i < 4; i++ {
			if b := byte(uint64(offset) >> (8 * i)); b != 0 {
				cmd |= 1 << i
				args[n] = b
				n++
			}
		}
		if chunk != maxDeltaCopy {
			for i := 0; i < 3; i++ {
				if b := byte(chunk >> (8 * i)); b != 0 {
					cmd |= 1 << (4 + i)
					args[n] = b
					n++
				}
			}
		}
		out.WriteByte(cmd)
		out.Write(args[:n])
		offset += chunk
		size -= chunk
	}
}

func writeDeltaInsert(out *bytes.Buffer, data []byte) {
	for len(data) > 0 {
		chunk := min(len(data), 127)
		out.WriteByte(byte(chunk))
		out.Write(data[:chunk])
		data = data[chunk:]
	}
}

// applyDelta applies delta instructions to base and returns the result.
//
// A command byte with the high bit set copies from base; bits 0-3 select
// which little-endian offset bytes follow and bits 4-6 which size bytes
// follow (size 0 means 0x10000). Otherwise the byte is the length of a
// literal insert.
func applyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read base size: %w", err)
	}
	if baseSize != uint64(len(base)) {
		return nil, fmt.Errorf("delta base size mismatch: got %d want %d", baseSize, len(base))
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read result size: %w", err)
	}
	if resultSize > MaxObjectSize {
		return nil, fmt.Errorf("delta result size %d exceeds limit", resultSize)
	}

	out := make([]byte, 0, resultSize)
	for dr.Len() > 0 {
		cmd, _ := dr.ReadByte()
		if cmd&0x80 == 0 {
			if cmd == 0 {
				return nil, fmt.Errorf("invalid delta command: 0")
			}
			start := len(out)
			out = append(out, make([]byte, cmd)...)
			if _, err := io.ReadFull(dr, out[start:]); err != nil {
				return nil, fmt.Errorf("delta insert: %w", err)
			}
			continue
		}

		offset, err := readDeltaCopyArg(dr, cmd, 0, 4)
		if err != nil {
			return nil, fmt.Errorf("delta copy offset: %w", err)
		}
		size, err := readDeltaCopyArg(dr, cmd, 4, 3)
		if err != nil {
			return nil, fmt.Errorf("delta copy size: %w", err)
		}
		if size == 0 {
			size = 0x10000
		}
		if offset+size > uint64(len(base)) {
			return nil, fmt.Errorf("delta copy out of bounds")
		}
		out = append(out, base[offset:offset+size]...)
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta result size mismatch: got %d expected %d", len(out), resultSize)
	}
	return out, nil
}

// readDeltaCopyArg reads the little-endian argument whose presence bits are
// cmd bits [first, first+count).
func readDeltaCopyArg(r io.ByteReader, cmd byte, first, count uint) (uint64, error) {
	var v uint64
	for i := uint(0); i < count; i++ {
		if cmd&(1<<(first+i)) == 0 {
			continue
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}
