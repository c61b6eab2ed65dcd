package object

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

// buildPack writes whole objects as a pack plus its index.
func buildPack(t *testing.T, objects []PackObject) (pack, index []byte) {
	t.Helper()
	var packBuf bytes.Buffer
	pw, err := NewPackWriter(&packBuf, uint32(len(objects)))
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	entries := make([]PackIndexEntry, 0, len(objects))
	for _, obj := range objects {
		offset := pw.CurrentOffset()
		if err := pw.WriteEntry(obj.Type, obj.Data); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
		entries = append(entries, PackIndexEntry{ID: HashObject(obj.Type, obj.Data), Offset: offset})
	}
	sum, err := pw.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	pf, err := ReadPack(packBuf.Bytes())
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	for i := range entries {
		entries[i].CRC32 = pf.Entries[i].CRC32
	}
	var idxBuf bytes.Buffer
	if _, err := WritePackIndex(&idxBuf, entries, sum); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	return packBuf.Bytes(), idxBuf.Bytes()
}

func TestPackHeaderRoundTrip(t *testing.T) {
	h := PackHeader{Version: supportedPackVersion, NumObjects: 42}
	data := h.Marshal()
	if len(data) != packHeaderSize {
		t.Fatalf("header len = %d, want %d", len(data), packHeaderSize)
	}
	got, err := UnmarshalPackHeader(data)
	if err != nil {
		t.Fatalf("UnmarshalPackHeader: %v", err)
	}
	if *got != h {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, h)
	}
	if _, err := UnmarshalPackHeader([]byte("JUNK00000000")); err == nil {
		t.Fatal("expected error for invalid magic")
	}
}

func TestPackEntryHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		objType PackObjectType
		size    uint64
	}{
		{name: "blob-zero", objType: PackBlob, size: 0},
		{name: "commit-small", objType: PackCommit, size: 127},
		{name: "tree-mid", objType: PackTree, size: 256},
		{name: "blob-large", objType: PackBlob, size: 1 << 20},
		{name: "ofs-delta", objType: PackOfsDelta, size: 100},
		{name: "ref-delta", objType: PackRefDelta, size: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodePackEntryHeader(tt.objType, tt.size)
			gotType, gotSize, consumed, err := decodePackEntryHeader(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if gotType != tt.objType || gotSize != tt.size {
				t.Fatalf("decode = (%d,%d), want (%d,%d)", gotType, gotSize, tt.objType, tt.size)
			}
			if consumed != len(data) {
				t.Fatalf("consumed = %d, want %d", consumed, len(data))
			}
		})
	}
	if _, _, _, err := decodePackEntryHeader([]byte{0x80 | 0x30}); err == nil {
		t.Fatal("expected truncated header error")
	}
}

func TestOfsDeltaDistanceRoundTrip(t *testing.T) {
	for _, want := range []uint64{1, 2, 10, 127, 128, 255, 1024, 65535, 1 << 20, (1 << 31) + 17} {
		enc := encodeOfsDeltaDistance(want)
		got, n, err := decodeOfsDeltaDistance(enc)
		if err != nil {
			t.Fatalf("decode distance %d: %v", want, err)
		}
		if got != want || n != len(enc) {
			t.Fatalf("distance %d: got %d (%d bytes of %d)", want, got, n, len(enc))
		}
	}
}

func TestApplyDeltaCopyAndInsert(t *testing.T) {
	base := []byte("hello world\n")
	// copy "hello " (offset 0, size 6), insert "there ", copy "world\n" (offset 6, size 6)
	var delta []byte
	delta = append(delta, encodeDeltaVarint(uint64(len(base)))...)
	delta = append(delta, encodeDeltaVarint(18)...)
	delta = append(delta, 0x80|0x10, 6)
	delta = append(delta, 6)
	delta = append(delta, "there "...)
	delta = append(delta, 0x80|0x01|0x10, 6, 6)

	got, err := applyDelta(base, delta)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if string(got) != "hello there world\n" {
		t.Fatalf("applyDelta = %q", got)
	}

	bad := append([]byte{}, delta[:2]...)
	bad = append(bad, 0x80|0x01|0x10, 20, 6)
	if _, err := applyDelta(base, bad); err == nil {
		t.Fatal("expected out of bounds copy error")
	}
	if _, err := applyDelta([]byte("short"), delta); err == nil {
		t.Fatal("expected base size mismatch error")
	}
}

func TestDeltaAppliesToTarget(t *testing.T) {
	big := bytes.Repeat([]byte("0123456789abcdef"), 9000) // spans several copy chunks
	cases := map[string]struct{ base, target []byte }{
		"unrelated":   {[]byte("hello world\n"), bytes.Repeat([]byte("hello there world\n"), 20)},
		"edit middle": {[]byte("line one\nline two\nline three\n"), []byte("line one\nline 2\nline three\n")},
		"append":      {[]byte("abc"), []byte("abcdef")},
		"truncate":    {[]byte("abcdef"), []byte("abc")},
		"identical":   {[]byte("same\n"), []byte("same\n")},
		"empty":       {[]byte("base"), nil},
		"large":       {big, append(append([]byte{}, big[:70000]...), append([]byte("X"), big[70001:]...)...)},
	}
	for name, tc := range cases {
		delta := buildDelta(tc.base, tc.target)
		got, err := applyDelta(tc.base, delta)
		if err != nil {
			t.Fatalf("%s: applyDelta: %v", name, err)
		}
		if !bytes.Equal(got, tc.target) {
			t.Fatalf("%s: delta result mismatch", name)
		}
		if DeltaSize(tc.base, tc.target) != len(delta) {
			t.Fatalf("%s: DeltaSize = %d, want %d", name, DeltaSize(tc.base, tc.target), len(delta))
		}
	}

	// A one-byte edit of a large blob is stored as copies around the change.
	if n := DeltaSize(big, cases["large"].target); n > 64 {
		t.Fatalf("large edit delta = %d bytes, want copies", n)
	}
}

func TestPackWriterDeltasResolve(t *testing.T) {
	base := []byte("hello world\n")
	ofsTarget := []byte("hello there world\n")
	refTarget := []byte("goodbye world\n")
	baseID := HashObject(TypeBlob, base)

	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 3)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	baseOffset := pw.CurrentOffset()
	if err := pw.WriteEntry(TypeBlob, base); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := pw.WriteOfsDelta(baseOffset, base, ofsTarget); err != nil {
		t.Fatalf("WriteOfsDelta: %v", err)
	}
	if err := pw.WriteRefDelta(baseID, base, refTarget); err != nil {
		t.Fatalf("WriteRefDelta: %v", err)
	}
	sum, err := pw.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	pf, err := ReadPack(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if pf.Checksum != sum {
		t.Fatalf("checksum = %s, want %s", pf.Checksum, sum)
	}
	if pf.Entries[1].Type != PackOfsDelta || pf.Entries[1].BaseOffset != baseOffset {
		t.Fatalf("entry 1 = type %d base %d", pf.Entries[1].Type, pf.Entries[1].BaseOffset)
	}
	if pf.Entries[2].Type != PackRefDelta || pf.Entries[2].BaseID != baseID {
		t.Fatalf("entry 2 = type %d base %s", pf.Entries[2].Type, pf.Entries[2].BaseID)
	}

	objs, err := pf.Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i, want := range [][]byte{base, ofsTarget, refTarget} {
		if objs[i].Type != TypeBlob || !bytes.Equal(objs[i].Data, want) {
			t.Fatalf("object %d = %s %q", i, objs[i].Type, objs[i].Data)
		}
		if objs[i].ID != HashObject(TypeBlob, want) {
			t.Fatalf("object %d id mismatch", i)
		}
	}
}

func TestResolveUsesExternalBase(t *testing.T) {
	base := []byte("outside the pack\n")
	baseID := HashObject(TypeBlob, base)

	var buf bytes.Buffer
	pw, _ := NewPackWriter(&buf, 1)
	if err := pw.WriteRefDelta(baseID, base, []byte("thin pack\n")); err != nil {
		t.Fatalf("WriteRefDelta: %v", err)
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	pf, err := ReadPack(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPack: %v", err)
	}
	if _, err := pf.Resolve(nil); err == nil {
		t.Fatal("expected unresolvable base error")
	}
	objs, err := pf.Resolve(func(id ID) (ObjectType, []byte, error) {
		if id != baseID {
			t.Fatalf("asked for %s", id)
		}
		return TypeBlob, base, nil
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(objs[0].Data) != "thin pack\n" {
		t.Fatalf("data = %q", objs[0].Data)
	}
}

func TestPackEntryInflateIsBounded(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, 1)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	// The entry header claims 3 bytes; the stream holds far more.
	if err := pw.writeEntry(encodePackEntryHeader(PackBlob, 3), nil, make([]byte, 1<<20)); err != nil {
		t.Fatalf("writeEntry: %v", err)
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := ReadPack(buf.Bytes()); err == nil || !strings.Contains(err.Error(), "size mismatch") {
		t.Fatalf("ReadPack = %v, want size mismatch", err)
	}

	delta := append(encodeDeltaVarint(4), encodeDeltaVarint(MaxObjectSize+1)...)
	if _, err := applyDelta([]byte("base"), delta); err == nil {
		t.Fatal("applyDelta with oversized result succeeded")
	}
}

func TestReadPackRejectsCorruption(t *testing.T) {
	pack, _ := buildPack(t, []PackObject{{Type: TypeBlob, Data: []byte("x")}})
	corrupt := append([]byte{}, pack...)
	corrupt[len(corrupt)-1] ^= 0xff
	if _, err := ReadPack(corrupt); err == nil {
		t.Fatal("expected checksum mismatch")
	}
	if _, err := ReadPack(pack[:10]); err == nil {
		t.Fatal("expected short pack error")
	}
}

func TestPackIndexRoundTrip(t *testing.T) {
	mk := func(first byte) ID {
		var id ID
		id[0] = first
		id[19] = 1
		return id
	}
	entries := []PackIndexEntry{
		{ID: mk(0xff), Offset: 32, CRC32: 0x33333333},
		{ID: mk(0x01), Offset: 16, CRC32: 0x11111111},
		{ID: mk(0x10), Offset: 1 << 32, CRC32: 0x22222222},
	}
	var packSum ID
	packSum[0] = 0xab

	var buf bytes.Buffer
	idxSum, err := WritePackIndex(&buf, entries, packSum)
	if err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	data := buf.Bytes()
	fanout := data[packIndexHeaderSize:]
	if got := binary.BigEndian.Uint32(fanout[0x01*4:]); got != 1 {
		t.Fatalf("fanout[1] = %d, want 1", got)
	}
	if got := binary.BigEndian.Uint32(fanout[0xff*4:]); got != 3 {
		t.Fatalf("fanout[0xff] = %d, want 3", got)
	}

	idx, err := ReadPackIndex(data)
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}
	if idx.PackChecksum != packSum || idx.IndexChecksum != idxSum {
		t.Fatal("checksums not preserved")
	}
	if idx.Len() != 3 {
		t.Fatalf("Len = %d", idx.Len())
	}
	for _, want := range entries {
		got, ok := idx.Find(want.ID)
		if !ok {
			t.Fatalf("Find(%s) missing", want.ID)
		}
		if got != want {
			t.Fatalf("Find(%s) = %+v, want %+v", want.ID, got, want)
		}
	}
	if _, ok := idx.Find(mk(0x02)); ok {
		t.Fatal("Find of absent id succeeded")
	}

	data[len(data)-1] ^= 0xff
	if _, err := ReadPackIndex(data); err == nil {
		t.Fatal("expected index checksum mismatch")
	}
}

func TestWritePackIndexRejectsDuplicates(t *testing.T) {
	var id ID
	id[0] = 7
	entries := []PackIndexEntry{{ID: id, Offset: 12}, {ID: id, Offset: 40}}
	if _, err := WritePackIndex(&bytes.Buffer{}, entries, ZeroID); err == nil {
		t.Fatal("expected duplicate entry error")
	}
}
