package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

var testAuthor = object.Identity{
	Name:  "Test Author",
	Email: "test@example.com",
	When:  time.Unix(1700000000, 0).UTC(),
}

func newTestRepo(t *testing.T, opts ...Option) *Repo {
	t.Helper()
	r, err := Init(context.Background(), storage.NewMemory(), opts...)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func commitFiles(t *testing.T, r *Repo, branch, message string, files map[string]string) object.ID {
	t.Helper()
	edits := make([]Edit, 0, len(files))
	for p, content := range files {
		edits = append(edits, Edit{Path: p, Content: []byte(content)})
	}
	id, err := r.CommitOnBranch(context.Background(), branch, CommitRequest{
		Edits:   edits,
		Author:  testAuthor,
		Message: message,
	})
	if err != nil {
		t.Fatalf("CommitOnBranch(%s): %v", message, err)
	}
	return id
}

// countingBackend records the paths read through it.
type countingBackend struct {
	storage.Backend

	mu    sync.Mutex
	reads map[string]int
}

func newCountingBackend(b storage.Backend) *countingBackend {
	return &countingBackend{Backend: b, reads: make(map[string]int)}
}

func (c *countingBackend) ReadFile(ctx context.Context, p string) ([]byte, error) {
	c.mu.Lock()
	c.reads[p]++
	c.mu.Unlock()
	return c.Backend.ReadFile(ctx, p)
}

func (c *countingBackend) readCount(p string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[p]
}
