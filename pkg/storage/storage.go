// Package storage defines the byte store every repository read and write goes
// through, plus the backends that implement it.
//
// Paths are slash-separated and relative to the backend root, e.g.
// "objects/ce/013625030ba8dba906f756967f9e9ca394464c" or "refs/heads/main".
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned by ReadFile when no file exists at the path.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidPath is returned for paths that are empty where a file is
	// required or that climb above the backend root.
	ErrInvalidPath = errors.New("storage: invalid path")
)

// Backend is an asynchronous key-path byte store. Implementations must be
// safe for concurrent use.
//
//   - ReadFile fails with an error wrapping ErrNotFound when the path is absent
//     or names a directory.
//   - DeleteFile on an absent path is not an error. Directories left empty by
//     a delete are not listed afterwards.
//   - ListDirectory returns the sorted names of the direct children of dir and
//     an empty slice (not an error) when dir does not exist or is a file.
type Backend interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	DeleteFile(ctx context.Context, path string) error
	ListDirectory(ctx context.Context, dir string) ([]string, error)
}

// CleanPath normalizes p to a relative slash path without leading, trailing or
// duplicate separators. The backend root is "".
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" || p == "." {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("path %q escapes backend root: %w", p, ErrInvalidPath)
		}
	}
	cleaned := path.Clean("/" + p)
	return strings.TrimPrefix(cleaned, "/"), nil
}

// IsNotFound reports whether err signals an absent path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func notFound(op, p string) error {
	return fmt.Errorf("%s %q: %w", op, p, ErrNotFound)
}
