package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPBackendSendsToken(t *testing.T) {
	var sawAuth atomic.Value
	inner := Handler(NewMemory())
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization"))
		inner.ServeHTTP(w, r)
	}))
	defer ts.Close()

	b, err := NewHTTP(ts.URL, WithToken("secret"))
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if err := b.WriteFile(context.Background(), "HEAD", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := sawAuth.Load(); got != "Bearer secret" {
		t.Fatalf("Authorization = %v, want Bearer secret", got)
	}
}

func TestHTTPBackendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	inner := Handler(NewMemory())
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		inner.ServeHTTP(w, r)
	}))
	defer ts.Close()

	b, err := NewHTTP(ts.URL, WithRetryBackoff(time.Millisecond))
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	_, err = b.ReadFile(context.Background(), "refs/heads/main")
	if !IsNotFound(err) {
		t.Fatalf("ReadFile err = %v, want not found after retry", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPBackendSurfacesServerFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk on fire", http.StatusInternalServerError)
	}))
	defer ts.Close()

	b, err := NewHTTP(ts.URL, WithMaxAttempts(1))
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	_, err = b.ReadFile(context.Background(), "HEAD")
	if err == nil || IsNotFound(err) {
		t.Fatalf("ReadFile err = %v, want server failure", err)
	}
}

func TestNewHTTPRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative/only"} {
		if _, err := NewHTTP(raw); err == nil {
			t.Fatalf("NewHTTP(%q) succeeded, want error", raw)
		}
	}
}

func TestHTTPBackendBasePath(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/api/repo/", http.StripPrefix("/api/repo", Handler(NewMemory())))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	b, err := NewHTTP(ts.URL + "/api/repo")
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	ctx := context.Background()
	if err := b.WriteFile(ctx, "refs/heads/main", []byte("abc")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	names, err := b.ListDirectory(ctx, "refs/heads")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(names) != 1 || names[0] != "main" {
		t.Fatalf("names = %v, want [main]", names)
	}
}
