package storage

import (
	"context"
	"testing"
)

func TestSubScopesPaths(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	sub, err := Sub(mem, "/sites/a/")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if err := sub.WriteFile(ctx, "HEAD", []byte("ref: refs/heads/main\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := mem.ReadFile(ctx, "sites/a/HEAD"); err != nil {
		t.Fatalf("parent ReadFile: %v", err)
	}
	if _, err := mem.ReadFile(ctx, "HEAD"); !IsNotFound(err) {
		t.Fatalf("unscoped HEAD err = %v, want not found", err)
	}
	if _, err := sub.ReadFile(ctx, "../b/HEAD"); err == nil {
		t.Fatal("expected escaping path to fail")
	}
}

func TestSubEmptyPrefixReturnsParent(t *testing.T) {
	mem := NewMemory()
	got, err := Sub(mem, "")
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if got != Backend(mem) {
		t.Fatal("Sub with empty prefix should return the parent backend")
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: "refs//heads/", want: "refs/heads"},
		{in: "/objects/ab/cd", want: "objects/ab/cd"},
		{in: "./HEAD", want: "HEAD"},
		{in: "..", wantErr: true},
		{in: "refs/../../x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanPath(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("CleanPath(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CleanPath(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("CleanPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
