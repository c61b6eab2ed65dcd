package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

func TestCommitsWriteReflog(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, WithReflogIdentity("Ref Logger", "log@example.com"))
	stamp := time.Unix(1700000100, 0).UTC()
	r.reflog.now = func() time.Time { return stamp }

	first := commitFiles(t, r, "main", "first\n", map[string]string{"a": "1"})
	second := commitFiles(t, r, "main", "second\nbody\n", map[string]string{"a": "2"})

	entries, err := r.ReadReflog(ctx, "main", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Old != first || entries[0].New != second || entries[0].Message != "commit: second" {
		t.Fatalf("latest entry = %+v", entries[0])
	}
	if !entries[1].Old.IsZero() || entries[1].New != first || entries[1].Message != "commit (initial): first" {
		t.Fatalf("first entry = %+v", entries[1])
	}
	who := entries[0].Who
	if who.Name != "Ref Logger" || who.Email != "log@example.com" || who.When.Unix() != stamp.Unix() {
		t.Fatalf("identity = %+v", who)
	}
	if entries[0].Ref != "refs/heads/main" {
		t.Fatalf("ref = %q", entries[0].Ref)
	}

	// HEAD points at main, so its log mirrors the branch.
	head, err := r.ReadReflog(ctx, "HEAD", 1)
	if err != nil {
		t.Fatalf("ReadReflog(HEAD): %v", err)
	}
	if len(head) != 1 || head[0].New != second {
		t.Fatalf("HEAD log = %+v", head)
	}

	raw, err := r.Backend.ReadFile(ctx, "logs/refs/heads/main")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	firstLine, _, _ := strings.Cut(string(raw), "\n")
	want := object.ZeroID.String() + " " + first.String() + " Ref Logger <log@example.com> 1700000100 +0000\tcommit (initial): first"
	if firstLine != want {
		t.Fatalf("log line = %q\nwant       %q", firstLine, want)
	}
}

func TestReflogPublishForceAndBranches(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	head := commitFiles(t, r, "main", "first\n", map[string]string{"a": "1"})
	next := commitFiles(t, r, "main", "second\n", map[string]string{"a": "2"})

	if err := r.CreateBranch(ctx, "topic/x", head); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Publish(ctx, "refs/heads/topic/x", next, head); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := r.ForceUpdate(ctx, "refs/heads/topic/x", head); err != nil {
		t.Fatalf("ForceUpdate: %v", err)
	}
	// A rejected publish leaves no trace.
	if err := r.Publish(ctx, "refs/heads/topic/x", next, next); !errors.Is(err, object.ErrConflict) {
		t.Fatalf("Publish stale = %v, want ErrConflict", err)
	}

	entries, err := r.ReadReflog(ctx, "topic/x", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Message)
	}
	want := []string{"update", "publish", "branch: created from " + head.String()}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("messages = %q, want %q", got, want)
	}

	// Updates to a branch HEAD does not point at stay out of HEAD's log.
	headLog, err := r.ReadReflog(ctx, "", 0)
	if err != nil {
		t.Fatalf("ReadReflog(HEAD): %v", err)
	}
	if len(headLog) != 2 {
		t.Fatalf("HEAD log has %d entries, want 2", len(headLog))
	}

	if err := r.DeleteBranch(ctx, "topic/x"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	entries, err = r.ReadReflog(ctx, "refs/heads/topic/x", 0)
	if err != nil || len(entries) != 0 {
		t.Fatalf("log after delete = %+v, %v", entries, err)
	}
	if names, _ := r.Backend.ListDirectory(ctx, "logs/refs/heads"); strings.Join(names, ",") != "main" {
		t.Fatalf("logs/refs/heads = %v", names)
	}
}

func TestReadReflogSkipsDamageAndLimits(t *testing.T) {
	ctx := context.Background()
	b := storage.NewMemory()
	r, err := Init(ctx, b)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if entries, err := r.ReadReflog(ctx, "main", 0); err != nil || entries != nil {
		t.Fatalf("ReadReflog(no log) = %v, %v", entries, err)
	}

	zero := object.ZeroID.String()
	one := strings.Repeat("1", 40)
	two := strings.Repeat("2", 40)
	log := zero + " " + one + " A <a@x> 1700000000 +0100\tfirst\n" +
		"garbage line\n" +
		one + " " + two + " A <a@x> 1700000001 +0100\tsecond\n"
	if err := b.WriteFile(ctx, "logs/refs/heads/main", []byte(log)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := r.ReadReflog(ctx, "main", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 || entries[0].Message != "second" || entries[1].Message != "first" {
		t.Fatalf("entries = %+v", entries)
	}
	limited, err := r.ReadReflog(ctx, "main", 1)
	if err != nil || len(limited) != 1 || limited[0].Message != "second" {
		t.Fatalf("limited = %+v, %v", limited, err)
	}
}

func TestWithoutReflog(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t, WithoutReflog())
	commitFiles(t, r, "main", "first\n", map[string]string{"a": "1"})
	if _, err := r.Backend.ReadFile(ctx, "logs/HEAD"); !storage.IsNotFound(err) {
		t.Fatalf("logs/HEAD = %v, want not found", err)
	}
}
