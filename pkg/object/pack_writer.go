package object

import (
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
)

type packCountedWriter struct {
	w io.Writer
	n uint64
}

func (cw *packCountedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

// PackWriter writes version 2 pack streams with zlib-compressed entries. The
// trailer is the SHA-1 of every preceding byte.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *packCountedWriter
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter writes the pack header for numObjects entries.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha1.New()
	counter := &packCountedWriter{w: out}
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		expected: numObjects,
	}

	header := PackHeader{Version: supportedPackVersion, NumObjects: numObjects}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset is the offset the next entry will be written at.
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.n
}

func (p *PackWriter) begin() error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	return nil
}

func (p *PackWriter) writeEntry(header, base, payload []byte) error {
	compressed, err := deflate(payload)
	if err != nil {
		return fmt.Errorf("compress pack entry: %w", err)
	}
	for _, chunk := range [][]byte{header, base, compressed} {
		if _, err := p.hashedW.Write(chunk); err != nil {
			return fmt.Errorf("write pack entry: %w", err)
		}
	}
	p.written++
	return nil
}

// WriteEntry appends one whole object.
func (p *PackWriter) WriteEntry(objType ObjectType, data []byte) error {
	if err := p.begin(); err != nil {
		return err
	}
	packType, ok := PackTypeOf(objType)
	if !ok {
		return fmt.Errorf("unsupported object type %q", objType)
	}
	return p.writeEntry(encodePackEntryHeader(packType, uint64(len(data))), nil, data)
}

// WriteOfsDelta appends an OFS_DELTA entry for targetData against the entry
// at baseOffset, whose content is baseData.
func (p *PackWriter) WriteOfsDelta(baseOffset uint64, baseData, targetData []byte) error {
	if err := p.begin(); err != nil {
		return err
	}
	current := p.CurrentOffset()
	if baseOffset >= current {
		return fmt.Errorf("base offset %d must be before current offset %d", baseOffset, current)
	}
	delta := buildDelta(baseData, targetData)
	header := encodePackEntryHeader(PackOfsDelta, uint64(len(delta)))
	return p.writeEntry(header, encodeOfsDeltaDistance(current-baseOffset), delta)
}

// WriteRefDelta appends a REF_DELTA entry for targetData against base.
func (p *PackWriter) WriteRefDelta(base ID, baseData, targetData []byte) error {
	if err := p.begin(); err != nil {
		return err
	}
	delta := buildDelta(baseData, targetData)
	header := encodePackEntryHeader(PackRefDelta, uint64(len(delta)))
	return p.writeEntry(header, base[:], delta)
}

// Finish checks the object count, writes the trailer and returns it.
func (p *PackWriter) Finish() (ID, error) {
	if p.finished {
		return ZeroID, fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return ZeroID, fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}
	var sum ID
	copy(sum[:], p.hasher.Sum(nil))
	if _, err := p.out.Write(sum[:]); err != nil {
		return ZeroID, fmt.Errorf("write pack trailer checksum: %w", err)
	}
	p.finished = true
	return sum, nil
}
