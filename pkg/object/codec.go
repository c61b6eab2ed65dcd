package object

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// HashObject computes the id of an object: SHA-1 over the envelope
// "<type> <len>\0" followed by payload.
func HashObject(objType ObjectType, payload []byte) ID {
	h := sha1.New()
	h.Write(envelopeHeader(objType, len(payload)))
	h.Write(payload)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

func envelopeHeader(objType ObjectType, size int) []byte {
	return []byte(fmt.Sprintf("%s %d\x00", objType, size))
}

// Envelope returns the canonical "<type> <len>\0<payload>" bytes.
func Envelope(objType ObjectType, payload []byte) []byte {
	header := envelopeHeader(objType, len(payload))
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	return append(out, payload...)
}

// ParseEnvelope splits raw envelope bytes into type and payload, checking the
// declared length against the payload.
func ParseEnvelope(raw []byte) (ObjectType, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, formatErr("decode", "", fmt.Errorf("missing header terminator"))
	}
	typeName, sizeText, ok := strings.Cut(string(raw[:nul]), " ")
	if !ok {
		return "", nil, formatErr("decode", "", fmt.Errorf("invalid header %q", raw[:nul]))
	}
	objType, err := ParseObjectType(typeName)
	if err != nil {
		return "", nil, err
	}
	size, err := parseDecimal(sizeText)
	if err != nil {
		return "", nil, formatErr("decode", "", fmt.Errorf("invalid length %q", sizeText))
	}
	payload := raw[nul+1:]
	if size != len(payload) {
		return "", nil, formatErr("decode", "", fmt.Errorf("length mismatch: header=%d actual=%d", size, len(payload)))
	}
	return objType, payload, nil
}

func parseDecimal(s string) (int, error) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, fmt.Errorf("invalid decimal %q", s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("invalid decimal %q", s)
		}
	}
	return strconv.Atoi(s)
}

// Encode serializes obj to its envelope bytes and computes its id.
func Encode(obj Object) ([]byte, ID, error) {
	payload, err := Marshal(obj)
	if err != nil {
		return nil, ZeroID, err
	}
	return Envelope(obj.Type(), payload), HashObject(obj.Type(), payload), nil
}

// Decode parses envelope bytes back into an object.
func Decode(raw []byte) (Object, error) {
	objType, payload, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return Unmarshal(objType, payload)
}

// Marshal returns the canonical payload of obj without the envelope header.
func Marshal(obj Object) ([]byte, error) {
	switch o := obj.(type) {
	case *Blob:
		return MarshalBlob(o), nil
	case *Tree:
		return MarshalTree(o)
	case *Commit:
		return MarshalCommit(o)
	case *Tag:
		return MarshalTag(o)
	case nil:
		return nil, formatErr("encode", "", fmt.Errorf("nil object"))
	default:
		return nil, formatErr("encode", "", fmt.Errorf("unsupported object %T", obj))
	}
}

// Unmarshal decodes a payload of the given type.
func Unmarshal(objType ObjectType, payload []byte) (Object, error) {
	switch objType {
	case TypeBlob:
		return UnmarshalBlob(payload), nil
	case TypeTree:
		return UnmarshalTree(payload)
	case TypeCommit:
		return UnmarshalCommit(payload)
	case TypeTag:
		return UnmarshalTag(payload)
	default:
		return nil, formatErr("decode", string(objType), fmt.Errorf("unknown object type"))
	}
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob copies raw bytes into a Blob.
func UnmarshalBlob(data []byte) *Blob {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// treeSortKey is the name Git compares entries by: directories sort as if
// their name ended in '/', so "foo.txt" < "foo/" < "foo0".
func treeSortKey(e TreeEntry) string {
	if e.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// SortEntries returns a copy of entries in canonical tree order.
func SortEntries(entries []TreeEntry) []TreeEntry {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})
	return sorted
}

// ValidEntryName reports whether name can appear as a tree entry.
func ValidEntryName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}

// MarshalTree serializes a tree. Entries are emitted in canonical order:
//
//	<mode> <name>\0<20-byte id>
//
// Duplicate names, invalid names and unrecognized modes are rejected.
func MarshalTree(tr *Tree) ([]byte, error) {
	sorted := SortEntries(tr.Entries)
	seen := make(map[string]struct{}, len(sorted))

	var buf bytes.Buffer
	for _, e := range sorted {
		if !ValidEntryName(e.Name) {
			return nil, formatErr("encode tree", e.Name, fmt.Errorf("invalid entry name"))
		}
		if _, dup := seen[e.Name]; dup {
			return nil, formatErr("encode tree", e.Name, fmt.Errorf("duplicate entry"))
		}
		seen[e.Name] = struct{}{}
		if _, err := KindOfMode(e.Mode); err != nil {
			return nil, err
		}
		buf.WriteString(e.Mode)
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.ID[:])
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses a tree payload and verifies canonical ordering.
func UnmarshalTree(data []byte) (*Tree, error) {
	tr := &Tree{}
	seen := make(map[string]struct{})
	prevKey := ""
	for pos := 0; pos < len(data); {
		sp := bytes.IndexByte(data[pos:], ' ')
		if sp < 0 {
			return nil, formatErr("decode tree", "", fmt.Errorf("truncated entry at offset %d", pos))
		}
		mode := string(data[pos : pos+sp])
		pos += sp + 1

		nul := bytes.IndexByte(data[pos:], 0)
		if nul < 0 {
			return nil, formatErr("decode tree", "", fmt.Errorf("truncated entry name at offset %d", pos))
		}
		name := string(data[pos : pos+nul])
		pos += nul + 1

		if pos+IDSize > len(data) {
			return nil, formatErr("decode tree", name, fmt.Errorf("truncated entry id"))
		}
		var id ID
		copy(id[:], data[pos:pos+IDSize])
		pos += IDSize

		if _, err := KindOfMode(mode); err != nil {
			return nil, err
		}
		if !ValidEntryName(name) {
			return nil, formatErr("decode tree", name, fmt.Errorf("invalid entry name"))
		}
		if _, dup := seen[name]; dup {
			return nil, formatErr("decode tree", name, fmt.Errorf("duplicate entry"))
		}
		seen[name] = struct{}{}

		entry := TreeEntry{Name: name, Mode: mode, ID: id}
		key := treeSortKey(entry)
		if len(tr.Entries) > 0 && key <= prevKey {
			return nil, formatErr("decode tree", name, fmt.Errorf("entries not in canonical order"))
		}
		prevKey = key
		tr.Entries = append(tr.Entries, entry)
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// Commit and tag headers
// ---------------------------------------------------------------------------

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteByte(' ')
	// Continuation lines start with a single space.
	buf.WriteString(strings.ReplaceAll(value, "\n", "\n "))
	buf.WriteByte('\n')
}

func validHeaderKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, " \n\x00")
}

func checkExtra(op string, extra []Header, reserved ...string) error {
	for _, h := range extra {
		if !validHeaderKey(h.Key) {
			return formatErr(op, h.Key, fmt.Errorf("invalid header key"))
		}
		for _, r := range reserved {
			if h.Key == r {
				return formatErr(op, h.Key, fmt.Errorf("reserved header in extra headers"))
			}
		}
	}
	return nil
}

func checkSingleLine(op, field, value string) error {
	if strings.ContainsAny(value, "\n\x00") {
		return formatErr(op, field, fmt.Errorf("value must be a single line"))
	}
	return nil
}

// splitHeaders separates the header block from the message and folds
// continuation lines into the preceding header.
func splitHeaders(op string, data []byte) ([]Header, string, error) {
	var (
		block   string
		message string
	)
	switch idx := bytes.Index(data, []byte("\n\n")); {
	case idx >= 0:
		block = string(data[:idx])
		message = string(data[idx+2:])
	default:
		return nil, "", formatErr(op, "", fmt.Errorf("missing header/message separator"))
	}

	var headers []Header
	for _, line := range strings.Split(block, "\n") {
		if strings.HasPrefix(line, " ") {
			if len(headers) == 0 {
				return nil, "", formatErr(op, "", fmt.Errorf("continuation line without header"))
			}
			last := &headers[len(headers)-1]
			last.Value += "\n" + line[1:]
			continue
		}
		key, value, ok := strings.Cut(line, " ")
		if !ok || key == "" {
			return nil, "", formatErr(op, "", fmt.Errorf("malformed header line %q", line))
		}
		headers = append(headers, Header{Key: key, Value: value})
	}
	return headers, message, nil
}

func parseHeaderID(op, key, value string) (ID, error) {
	id, err := ParseID(value)
	if err != nil {
		return ZeroID, formatErr(op, key, fmt.Errorf("malformed id %q", value))
	}
	if value != id.String() {
		return ZeroID, formatErr(op, key, fmt.Errorf("id %q is not lower-case hex", value))
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a commit:
//
//	tree H
//	parent H     (zero or more)
//	author A
//	committer C
//	<extra headers, in order>
//
//	message
func MarshalCommit(c *Commit) ([]byte, error) {
	if err := checkSingleLine("encode commit", "author", c.Author); err != nil {
		return nil, err
	}
	if err := checkSingleLine("encode commit", "committer", c.Committer); err != nil {
		return nil, err
	}
	if err := checkExtra("encode commit", c.Extra, "tree", "parent", "author", "committer"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeader(&buf, "tree", c.Tree.String())
	for _, p := range c.Parents {
		writeHeader(&buf, "parent", p.String())
	}
	writeHeader(&buf, "author", c.Author)
	writeHeader(&buf, "committer", c.Committer)
	for _, h := range c.Extra {
		writeHeader(&buf, h.Key, h.Value)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes(), nil
}

// UnmarshalCommit parses a commit payload. Headers must appear in Git's
// order; unknown headers after committer are kept in Extra.
func UnmarshalCommit(data []byte) (*Commit, error) {
	const op = "decode commit"
	headers, message, err := splitHeaders(op, data)
	if err != nil {
		return nil, err
	}

	c := &Commit{Message: message}
	i := 0
	if i >= len(headers) || headers[i].Key != "tree" {
		return nil, formatErr(op, "tree", fmt.Errorf("missing tree header"))
	}
	if c.Tree, err = parseHeaderID(op, "tree", headers[i].Value); err != nil {
		return nil, err
	}
	i++
	for i < len(headers) && headers[i].Key == "parent" {
		p, err := parseHeaderID(op, "parent", headers[i].Value)
		if err != nil {
			return nil, err
		}
		c.Parents = append(c.Parents, p)
		i++
	}
	if i >= len(headers) || headers[i].Key != "author" {
		return nil, formatErr(op, "author", fmt.Errorf("missing author header"))
	}
	c.Author = headers[i].Value
	i++
	if i >= len(headers) || headers[i].Key != "committer" {
		return nil, formatErr(op, "committer", fmt.Errorf("missing committer header"))
	}
	c.Committer = headers[i].Value
	i++
	for _, h := range headers[i:] {
		switch h.Key {
		case "tree", "parent", "author", "committer":
			return nil, formatErr(op, h.Key, fmt.Errorf("header out of order"))
		}
		c.Extra = append(c.Extra, h)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

// MarshalTag serializes an annotated tag:
//
//	object H
//	type T
//	tag NAME
//	tagger X     (omitted when empty)
//	<extra headers, in order>
//
//	message
func MarshalTag(t *Tag) ([]byte, error) {
	if _, err := ParseObjectType(string(t.TargetType)); err != nil {
		return nil, err
	}
	if err := checkSingleLine("encode tag", "tag", t.Name); err != nil {
		return nil, err
	}
	if err := checkSingleLine("encode tag", "tagger", t.Tagger); err != nil {
		return nil, err
	}
	if err := checkExtra("encode tag", t.Extra, "object", "type", "tag", "tagger"); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeHeader(&buf, "object", t.Target.String())
	writeHeader(&buf, "type", string(t.TargetType))
	writeHeader(&buf, "tag", t.Name)
	if t.Tagger != "" {
		writeHeader(&buf, "tagger", t.Tagger)
	}
	for _, h := range t.Extra {
		writeHeader(&buf, h.Key, h.Value)
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes(), nil
}

// UnmarshalTag parses an annotated tag payload.
func UnmarshalTag(data []byte) (*Tag, error) {
	const op = "decode tag"
	headers, message, err := splitHeaders(op, data)
	if err != nil {
		return nil, err
	}

	t := &Tag{Message: message}
	i := 0
	if i >= len(headers) || headers[i].Key != "object" {
		return nil, formatErr(op, "object", fmt.Errorf("missing object header"))
	}
	if t.Target, err = parseHeaderID(op, "object", headers[i].Value); err != nil {
		return nil, err
	}
	i++
	if i >= len(headers) || headers[i].Key != "type" {
		return nil, formatErr(op, "type", fmt.Errorf("missing type header"))
	}
	if t.TargetType, err = ParseObjectType(headers[i].Value); err != nil {
		return nil, err
	}
	i++
	if i >= len(headers) || headers[i].Key != "tag" {
		return nil, formatErr(op, "tag", fmt.Errorf("missing tag header"))
	}
	t.Name = headers[i].Value
	i++
	if i < len(headers) && headers[i].Key == "tagger" {
		t.Tagger = headers[i].Value
		i++
	}
	for _, h := range headers[i:] {
		switch h.Key {
		case "object", "type", "tag", "tagger":
			return nil, formatErr(op, h.Key, fmt.Errorf("header out of order"))
		}
		t.Extra = append(t.Extra, h)
	}
	return t, nil
}
