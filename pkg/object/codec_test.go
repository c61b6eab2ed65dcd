package object

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func mustID(t *testing.T, s string) ID {
	t.Helper()
	id, err := ParseID(s)
	if err != nil {
		t.Fatalf("ParseID(%q): %v", s, err)
	}
	return id
}

func testIdentity() string {
	return FormatIdentity("Ada Lovelace", "ada@example.com", time.Unix(1700000000, 0).In(time.FixedZone("", 3600)))
}

func TestBlobHashMatchesGit(t *testing.T) {
	raw, id, err := Encode(&Blob{Data: []byte("hello\n")})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := id.String(); got != "ce013625030ba8dba906f756967f9e9ca394464c" {
		t.Fatalf("blob id = %s", got)
	}
	if !bytes.Equal(raw, []byte("blob 6\x00hello\n")) {
		t.Fatalf("raw = %q", raw)
	}
	if HashObject(TypeBlob, nil).String() != "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391" {
		t.Fatalf("empty blob id = %s", HashObject(TypeBlob, nil))
	}
}

func TestEmptyTreeHash(t *testing.T) {
	_, id, err := Encode(&Tree{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if id.String() != "4b825dc642cb6eb9a060e54bf8d69288fbee4904" {
		t.Fatalf("empty tree id = %s", id)
	}
}

func TestTreeRoundTripAndDeterminism(t *testing.T) {
	blob := HashObject(TypeBlob, []byte("x"))
	sub := HashObject(TypeTree, nil)
	entries := []TreeEntry{
		{Name: "zeta.txt", Mode: ModeFile, ID: blob},
		{Name: "bin", Mode: ModeDir, ID: sub},
		{Name: "run.sh", Mode: ModeExecutable, ID: blob},
		{Name: "link", Mode: ModeSymlink, ID: blob},
	}
	reversed := make([]TreeEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}

	raw1, id1, err := Encode(&Tree{Entries: entries})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw2, id2, err := Encode(&Tree{Entries: reversed})
	if err != nil {
		t.Fatalf("Encode reversed: %v", err)
	}
	if id1 != id2 || !bytes.Equal(raw1, raw2) {
		t.Fatal("tree encoding depends on input order")
	}

	obj, err := Decode(raw1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tree := obj.(*Tree)
	want := SortEntries(entries)
	if len(tree.Entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(tree.Entries), len(want))
	}
	for i := range want {
		if tree.Entries[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, tree.Entries[i], want[i])
		}
	}
	_, id3, err := Encode(tree)
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if id3 != id1 {
		t.Fatal("decode/encode changed the tree id")
	}
}

func TestTreeOrderingTreatsDirectoriesAsSlashSuffixed(t *testing.T) {
	id := HashObject(TypeBlob, []byte("x"))
	tree := &Tree{Entries: []TreeEntry{
		{Name: "foo0", Mode: ModeFile, ID: id},
		{Name: "foo", Mode: ModeDir, ID: id},
		{Name: "foo.txt", Mode: ModeFile, ID: id},
	}}
	payload, err := MarshalTree(tree)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	decoded, err := UnmarshalTree(payload)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	var names []string
	for _, e := range decoded.Entries {
		names = append(names, e.Name)
	}
	if got := strings.Join(names, ","); got != "foo.txt,foo,foo0" {
		t.Fatalf("order = %s, want foo.txt,foo,foo0", got)
	}

	// A file named foo sorts before foo.txt; a directory named foo after it.
	file := SortEntries([]TreeEntry{
		{Name: "foo.txt", Mode: ModeFile},
		{Name: "foo", Mode: ModeFile},
	})
	if file[0].Name != "foo" {
		t.Fatalf("file foo should sort first, got %s", file[0].Name)
	}
}

func TestUnmarshalTreeRejectsBadInput(t *testing.T) {
	id := HashObject(TypeBlob, []byte("x"))
	entry := func(mode, name string) []byte {
		return append([]byte(mode+" "+name+"\x00"), id[:]...)
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated id", append([]byte("100644 a\x00"), id[:10]...)},
		{"missing name terminator", []byte("100644 abc")},
		{"missing mode separator", []byte("100644")},
		{"unsorted", append(entry(ModeFile, "b"), entry(ModeFile, "a")...)},
		{"duplicate", append(entry(ModeFile, "a"), entry(ModeFile, "a")...)},
		{"duplicate across kinds", append(append(entry(ModeFile, "a"), entry(ModeFile, "a.b")...), entry(ModeDir, "a")...)},
		{"bad mode", entry("777777", "a")},
		{"non-octal mode", entry("10064x", "a")},
		{"slash in name", entry(ModeFile, "a/b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalTree(tt.data)
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
		})
	}
}

func TestMarshalTreeRejectsDuplicates(t *testing.T) {
	id := HashObject(TypeBlob, []byte("x"))
	_, err := MarshalTree(&Tree{Entries: []TreeEntry{
		{Name: "a", Mode: ModeFile, ID: id},
		{Name: "a", Mode: ModeDir, ID: id},
	}})
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestKindOfMode(t *testing.T) {
	tests := []struct {
		mode string
		want EntryKind
	}{
		{"100644", KindBlob},
		{"100755", KindBlob},
		{"100664", KindBlob},
		{"120000", KindBlob},
		{"160000", KindSubmodule},
		{"40000", KindTree},
		{"040000", KindTree},
	}
	for _, tt := range tests {
		got, err := KindOfMode(tt.mode)
		if err != nil {
			t.Fatalf("KindOfMode(%q): %v", tt.mode, err)
		}
		if got != tt.want {
			t.Fatalf("KindOfMode(%q) = %s, want %s", tt.mode, got, tt.want)
		}
	}
	for _, bad := range []string{"", "0", "20000", "644", "1a0644"} {
		if _, err := KindOfMode(bad); !errors.Is(err, ErrFormat) {
			t.Fatalf("KindOfMode(%q) err = %v, want ErrFormat", bad, err)
		}
	}
}

func TestCommitRoundTrip(t *testing.T) {
	tree := HashObject(TypeTree, nil)
	parent := HashObject(TypeBlob, []byte("p"))
	c := &Commit{
		Tree:      tree,
		Parents:   []ID{parent},
		Author:    testIdentity(),
		Committer: testIdentity(),
		Extra: []Header{
			{Key: "encoding", Value: "ISO-8859-1"},
			{Key: "gpgsig", Value: "-----BEGIN SSH SIGNATURE-----\nAAAA\n\nBBBB\n-----END SSH SIGNATURE-----"},
		},
		Message: "Add feature\n\nLonger body.\n",
	}
	raw, id, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(raw, []byte("gpgsig -----BEGIN SSH SIGNATURE-----\n AAAA\n \n BBBB\n")) {
		t.Fatalf("gpgsig continuation lines not indented:\n%s", raw)
	}

	obj, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := obj.(*Commit)
	if got.Tree != tree || len(got.Parents) != 1 || got.Parents[0] != parent {
		t.Fatalf("tree/parents mismatch: %+v", got)
	}
	if got.Message != c.Message || got.Author != c.Author || got.Committer != c.Committer {
		t.Fatalf("text fields mismatch: %+v", got)
	}
	if len(got.Extra) != 2 || got.Extra[1].Value != c.Extra[1].Value {
		t.Fatalf("extra headers = %+v", got.Extra)
	}
	raw2, id2, err := Encode(got)
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if id2 != id || !bytes.Equal(raw, raw2) {
		t.Fatal("commit decode/encode is not byte-identical")
	}
}

func TestUnmarshalCommitErrors(t *testing.T) {
	tree := HashObject(TypeTree, nil).String()
	who := testIdentity()
	tests := []struct {
		name    string
		payload string
	}{
		{"no separator", "tree " + tree + "\nauthor " + who + "\ncommitter " + who},
		{"missing tree", "author " + who + "\ncommitter " + who + "\n\nmsg"},
		{"bad tree id", "tree xyz\nauthor " + who + "\ncommitter " + who + "\n\nmsg"},
		{"upper-case id", "tree " + strings.ToUpper(tree) + "\nauthor " + who + "\ncommitter " + who + "\n\nmsg"},
		{"missing committer", "tree " + tree + "\nauthor " + who + "\n\nmsg"},
		{"parent after author", "tree " + tree + "\nauthor " + who + "\nparent " + tree + "\ncommitter " + who + "\n\nmsg"},
		{"stray continuation", " tree " + tree + "\n\nmsg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalCommit([]byte(tt.payload)); !errors.Is(err, ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
		})
	}
}

func TestCommitToleratesLegacyEncoding(t *testing.T) {
	tree := HashObject(TypeTree, nil)
	payload := "tree " + tree.String() + "\n" +
		"author Ren\xe9 <r@example.com> 1700000000 +0000\n" +
		"committer Ren\xe9 <r@example.com> 1700000000 +0000\n" +
		"encoding ISO-8859-1\n" +
		"\n" +
		"Caf\xe9\n"
	obj, err := Unmarshal(TypeCommit, []byte(payload))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	c := obj.(*Commit)
	if c.Message != "Caf\xe9\n" {
		t.Fatalf("message bytes not preserved: %q", c.Message)
	}
	if got := c.MessageText(); got != "Café\n" {
		t.Fatalf("MessageText = %q, want Café", got)
	}
	if got := c.AuthorText(); !strings.HasPrefix(got, "René") {
		t.Fatalf("AuthorText = %q", got)
	}
	again, err := MarshalCommit(c)
	if err != nil {
		t.Fatalf("MarshalCommit: %v", err)
	}
	if string(again) != payload {
		t.Fatal("legacy-encoded commit does not round-trip")
	}
}

func TestDecodeTextFallsBackToLatin1(t *testing.T) {
	if got := DecodeText("na\xefve", ""); got != "naïve" {
		t.Fatalf("DecodeText = %q", got)
	}
	if got := DecodeText("plain", "bogus-charset"); got != "plain" {
		t.Fatalf("DecodeText = %q", got)
	}
}

func TestTagRoundTrip(t *testing.T) {
	target := HashObject(TypeCommit, []byte("c"))
	tag := &Tag{
		Target:     target,
		TargetType: TypeCommit,
		Name:       "v1.0.0",
		Tagger:     testIdentity(),
		Message:    "release\n",
	}
	raw, id, err := Encode(tag)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	obj, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := obj.(*Tag)
	if got.Target != target || got.TargetType != TypeCommit || got.Name != "v1.0.0" || got.Tagger != tag.Tagger {
		t.Fatalf("tag mismatch: %+v", got)
	}
	if _, id2, _ := Encode(got); id2 != id {
		t.Fatal("tag decode/encode changed the id")
	}

	noTagger := &Tag{Target: target, TargetType: TypeCommit, Name: "old", Message: "m"}
	raw, _, err = Encode(noTagger)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if bytes.Contains(raw, []byte("tagger")) {
		t.Fatal("empty tagger should be omitted")
	}
	if _, err := Decode(raw); err != nil {
		t.Fatalf("Decode without tagger: %v", err)
	}
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no nul", "blob 5 hello"},
		{"no space", "blob5\x00hello"},
		{"unknown type", "bolb 5\x00hello"},
		{"length mismatch", "blob 6\x00hello"},
		{"bad length", "blob -5\x00hello"},
		{"leading zero", "blob 05\x00hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.raw)); !errors.Is(err, ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	id := mustID(t, "CE013625030BA8DBA906F756967F9E9CA394464C")
	if id.String() != "ce013625030ba8dba906f756967f9e9ca394464c" {
		t.Fatalf("String = %s", id)
	}
	for _, bad := range []string{"", "ce01", "zz013625030ba8dba906f756967f9e9ca394464c", "ce013625030ba8dba906f756967f9e9ca394464"} {
		if _, err := ParseID(bad); !errors.Is(err, ErrFormat) {
			t.Fatalf("ParseID(%q) err = %v, want ErrFormat", bad, err)
		}
		if LooksLikeID(bad) {
			t.Fatalf("LooksLikeID(%q) = true", bad)
		}
	}
	if !ZeroID.IsZero() || id.IsZero() {
		t.Fatal("IsZero mismatch")
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	when := time.Unix(1700000000, 0).In(time.FixedZone("", -(5*3600 + 30*60)))
	line := FormatIdentity("Grace Hopper", "grace@example.com", when)
	if line != "Grace Hopper <grace@example.com> 1700000000 -0530" {
		t.Fatalf("FormatIdentity = %q", line)
	}
	id, err := ParseIdentity(line)
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	if id.Name != "Grace Hopper" || id.Email != "grace@example.com" || id.When.Unix() != 1700000000 {
		t.Fatalf("identity = %+v", id)
	}
	if id.String() != line {
		t.Fatalf("String = %q", id.String())
	}
	if _, err := ParseIdentity("no email here"); !errors.Is(err, ErrFormat) {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &Commit{
		Tree:      HashObject(TypeTree, nil),
		Author:    testIdentity(),
		Committer: testIdentity(),
		Message:   "signed\n",
	}
	unsigned, err := MarshalCommit(c)
	if err != nil {
		t.Fatalf("MarshalCommit: %v", err)
	}
	SetCommitSignature(c, "SIG")
	payload, err := CommitSigningPayload(c)
	if err != nil {
		t.Fatalf("CommitSigningPayload: %v", err)
	}
	if !bytes.Equal(payload, unsigned) {
		t.Fatalf("signing payload differs from unsigned commit:\n%s", payload)
	}
	if sig, ok := CommitSignature(c); !ok || sig != "SIG" {
		t.Fatalf("CommitSignature = %q, %v", sig, ok)
	}
	SetCommitSignature(c, "SIG2")
	if len(c.Extra) != 1 {
		t.Fatalf("SetCommitSignature duplicated header: %+v", c.Extra)
	}
}

func TestErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := error(NewError(ErrBackend, "write", "objects/ab/cd", cause))
	if !errors.Is(err, ErrBackend) || !errors.Is(err, cause) {
		t.Fatal("errors.Is should match kind and cause")
	}
	if KindOf(err) != ErrBackend {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
	if got := err.Error(); got != "write objects/ab/cd: storage backend failure: disk full" {
		t.Fatalf("Error() = %q", got)
	}
}
