package storage

import (
	"context"
	"path"
)

type subBackend struct {
	parent Backend
	prefix string
}

// Sub returns a backend whose paths are resolved under prefix in b. Several
// repositories can share one backend this way.
func Sub(b Backend, prefix string) (Backend, error) {
	prefix, err := CleanPath(prefix)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return b, nil
	}
	return &subBackend{parent: b, prefix: prefix}, nil
}

func (s *subBackend) join(p string) (string, error) {
	p, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	if p == "" {
		return s.prefix, nil
	}
	return path.Join(s.prefix, p), nil
}

func (s *subBackend) ReadFile(ctx context.Context, p string) ([]byte, error) {
	full, err := s.join(p)
	if err != nil {
		return nil, err
	}
	return s.parent.ReadFile(ctx, full)
}

func (s *subBackend) WriteFile(ctx context.Context, p string, data []byte) error {
	full, err := s.join(p)
	if err != nil {
		return err
	}
	return s.parent.WriteFile(ctx, full, data)
}

func (s *subBackend) DeleteFile(ctx context.Context, p string) error {
	full, err := s.join(p)
	if err != nil {
		return err
	}
	return s.parent.DeleteFile(ctx, full)
}

func (s *subBackend) ListDirectory(ctx context.Context, dir string) ([]string, error) {
	full, err := s.join(dir)
	if err != nil {
		return nil, err
	}
	return s.parent.ListDirectory(ctx, full)
}
