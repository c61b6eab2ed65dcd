package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	billy "gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/memfs"
	"gopkg.in/src-d/go-billy.v4/osfs"
)

// tempPrefix marks in-flight writes; ListDirectory hides them.
const tempPrefix = ".tmp-"

// BillyBackend stores files in a billy filesystem. Writes are atomic: data
// is written to a temp file in the target directory and renamed into place.
// Calls are serialized per backend since memfs is not safe for concurrent use.
type BillyBackend struct {
	mu sync.RWMutex
	fs billy.Filesystem
}

var _ Backend = (*BillyBackend)(nil)

// NewBilly wraps an existing billy filesystem.
func NewBilly(fs billy.Filesystem) *BillyBackend {
	return &BillyBackend{fs: fs}
}

// NewOS returns a backend rooted at dir on the local disk.
func NewOS(dir string) *BillyBackend {
	return NewBilly(osfs.New(dir))
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *BillyBackend {
	return NewBilly(memfs.New())
}

func (b *BillyBackend) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Directories hold refs and objects; they are never files themselves.
	if p == "" {
		return nil, notFound("read", p)
	}
	if info, err := b.fs.Stat(p); err == nil && info.IsDir() {
		return nil, notFound("read", p)
	}

	f, err := b.fs.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("read", p)
		}
		return nil, fmt.Errorf("read %q: %w", p, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", p, err)
	}
	return data, nil
}

func (b *BillyBackend) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := CleanPath(p)
	if err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("write: empty path: %w", ErrInvalidPath)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := path.Dir(p)
	if dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write %q: mkdir: %w", p, err)
		}
	}

	tmp, err := b.fs.TempFile(dir, tempPrefix)
	if err != nil {
		return fmt.Errorf("write %q: tmpfile: %w", p, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		b.fs.Remove(tmpName)
		return fmt.Errorf("write %q: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		b.fs.Remove(tmpName)
		return fmt.Errorf("write %q: close: %w", p, err)
	}
	if err := b.fs.Rename(tmpName, p); err != nil {
		b.fs.Remove(tmpName)
		return fmt.Errorf("write %q: rename: %w", p, err)
	}
	return nil
}

func (b *BillyBackend) DeleteFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := CleanPath(p)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if p == "" {
		return nil
	}
	if info, err := b.fs.Stat(p); err == nil && info.IsDir() {
		return nil
	}
	if err := b.fs.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("delete %q: %w", p, err)
	}
	b.pruneEmptyParents(path.Dir(p))
	return nil
}

// pruneEmptyParents removes dir and its ancestors while they are empty, so a
// deleted refs/heads/feature/x does not leave refs/heads/feature behind.
// Caller holds b.mu.
func (b *BillyBackend) pruneEmptyParents(dir string) {
	for dir != "." && dir != "/" && dir != "" {
		infos, err := b.fs.ReadDir(dir)
		if err != nil || len(infos) > 0 {
			return
		}
		if err := b.fs.Remove(dir); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

func (b *BillyBackend) ListDirectory(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := CleanPath(dir)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if dir == "" {
		dir = "."
	} else if info, err := b.fs.Stat(dir); err == nil && !info.IsDir() {
		return []string{}, nil
	}
	infos, err := b.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
