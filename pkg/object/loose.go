package object

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// LoosePath returns the backend path of a loose object:
// objects/<first 2 hex chars>/<remaining 38>.
func LoosePath(id ID) string {
	h := id.String()
	return "objects/" + h[:2] + "/" + h[2:]
}

// deflate compresses envelope bytes for a loose object.
func deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MaxObjectSize bounds the payload of a single object read from storage.
const MaxObjectSize = 2 << 30

// maxEnvelopeHeader covers "commit <20 digits>\0" with room to spare.
const maxEnvelopeHeader = 32

// inflate reverses deflate for a loose object. Output stops at the size the
// envelope header declares, so a stream that inflates further is rejected
// without being expanded.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer zr.Close()

	br := bufio.NewReaderSize(zr, maxEnvelopeHeader)
	header, err := br.ReadSlice(0)
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("inflate: envelope header too long")
		}
		return nil, fmt.Errorf("inflate: %w", err)
	}
	_, sizeText, ok := strings.Cut(string(header[:len(header)-1]), " ")
	if !ok {
		return nil, fmt.Errorf("inflate: invalid header %q", header)
	}
	size, err := parseDecimal(sizeText)
	if err != nil || size > MaxObjectSize {
		return nil, fmt.Errorf("inflate: invalid length %q", sizeText)
	}

	out := append([]byte(nil), header...)
	out, err = readAllLimited(out, br, int64(size)+1)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	if len(out)-len(header) > size {
		return nil, fmt.Errorf("inflate: payload exceeds declared length %d", size)
	}
	return out, nil
}

// readAllLimited appends at most limit bytes from r to buf.
func readAllLimited(buf []byte, r io.Reader, limit int64) ([]byte, error) {
	var b bytes.Buffer
	b.Write(buf)
	if _, err := b.ReadFrom(io.LimitReader(r, limit)); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
