package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/odvcencio/gitcenter/pkg/object"
)

func TestLightweightTag(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	first := commitFiles(t, r, "main", "first\n", map[string]string{"a": "1"})
	second := commitFiles(t, r, "main", "second\n", map[string]string{"a": "2"})

	if err := r.CreateTag(ctx, "v1.0", first, false); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := r.CreateTag(ctx, "v1.0", second, false); !errors.Is(err, ErrTagExists) {
		t.Fatalf("CreateTag existing = %v, want ErrTagExists", err)
	}
	if err := r.CreateTag(ctx, "v1.0", second, true); err != nil {
		t.Fatalf("CreateTag force: %v", err)
	}
	got, err := r.Refs.Resolve(ctx, "refs/tags/v1.0")
	if err != nil || got != second {
		t.Fatalf("v1.0 = %s, %v; want %s", got, err, second)
	}

	for _, bad := range []string{"", "../x", "a b", "/lead", "trail/"} {
		if err := r.CreateTag(ctx, bad, first, false); err == nil {
			t.Fatalf("CreateTag(%q) succeeded", bad)
		}
	}
}

func TestAnnotatedTag(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	head := commitFiles(t, r, "main", "first\n", map[string]string{"a": "1"})

	tagID, err := r.CreateAnnotatedTag(ctx, "v2", head, testAuthor, "  release two  ", false)
	if err != nil {
		t.Fatalf("CreateAnnotatedTag: %v", err)
	}
	tag, err := r.Store.ReadTag(ctx, tagID)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tag.Target != head || tag.TargetType != object.TypeCommit || tag.Name != "v2" {
		t.Fatalf("tag = %+v", tag)
	}
	if tag.Message != "release two\n" {
		t.Fatalf("message = %q", tag.Message)
	}
	if tag.Tagger != testAuthor.String() {
		t.Fatalf("tagger = %q", tag.Tagger)
	}

	if _, err := r.CreateAnnotatedTag(ctx, "v3", head, testAuthor, "   ", false); err == nil {
		t.Fatalf("CreateAnnotatedTag with empty message succeeded")
	}
	var missing object.ID
	missing[0] = 0x7f
	if _, err := r.CreateAnnotatedTag(ctx, "v3", missing, testAuthor, "m", false); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("CreateAnnotatedTag missing target = %v, want ErrNotFound", err)
	}
}

func TestListAndDeleteTags(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	head := commitFiles(t, r, "main", "first\n", map[string]string{"a": "1"})

	if err := r.CreateTag(ctx, "light", head, false); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	inner, err := r.CreateAnnotatedTag(ctx, "inner", head, testAuthor, "inner", false)
	if err != nil {
		t.Fatalf("CreateAnnotatedTag inner: %v", err)
	}
	outer, err := r.CreateAnnotatedTag(ctx, "outer", inner, testAuthor, "outer", false)
	if err != nil {
		t.Fatalf("CreateAnnotatedTag outer: %v", err)
	}

	tags, err := r.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	want := []TagInfo{
		{Name: "inner", Target: inner, Peeled: head, Annotated: true},
		{Name: "light", Target: head, Peeled: head},
		{Name: "outer", Target: outer, Peeled: head, Annotated: true},
	}
	if len(tags) != len(want) {
		t.Fatalf("tags = %+v", tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags[%d] = %+v, want %+v", i, tags[i], want[i])
		}
	}

	if err := r.DeleteTag(ctx, "light"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if err := r.DeleteTag(ctx, "light"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("DeleteTag again = %v, want ErrNotFound", err)
	}

	// Packed tags are deleted too.
	if _, err := r.Refs.Pack(ctx); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if err := r.DeleteTag(ctx, "inner"); err != nil {
		t.Fatalf("DeleteTag packed: %v", err)
	}
	tags, err = r.ListTags(ctx)
	if err != nil || len(tags) != 1 || tags[0].Name != "outer" {
		t.Fatalf("ListTags after delete = %+v, %v", tags, err)
	}
}
