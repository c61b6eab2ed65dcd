package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const (
	// IDSize is the length of a raw object id in bytes.
	IDSize = 20
	// HexSize is the length of an object id rendered as hex.
	HexSize = 2 * IDSize
)

// ID is a SHA-1 object id.
type ID [IDSize]byte

// ZeroID is the all-zero id. It never names a stored object.
var ZeroID ID

// ParseID parses a 40 character hex object id. Upper-case input is accepted
// and normalized.
func ParseID(s string) (ID, error) {
	var id ID
	if len(s) != HexSize {
		return id, &Error{Kind: ErrFormat, Op: "parse id", Subject: s,
			Err: fmt.Errorf("want %d hex chars, got %d", HexSize, len(s))}
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ZeroID, &Error{Kind: ErrFormat, Op: "parse id", Subject: s, Err: err}
	}
	return id, nil
}

// IDFromBytes copies a raw 20 byte id.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, &Error{Kind: ErrFormat, Op: "parse id",
			Err: fmt.Errorf("want %d bytes, got %d", IDSize, len(b))}
	}
	copy(id[:], b)
	return id, nil
}

// LooksLikeID reports whether s has the form of a full hex object id.
func LooksLikeID(s string) bool {
	if len(s) != HexSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is ZeroID.
func (id ID) IsZero() bool {
	return id == ZeroID
}

// Compare orders ids byte-wise.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
