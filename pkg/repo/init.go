package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/refs"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

// ErrRepositoryExists is returned by Init when HEAD is already present.
var ErrRepositoryExists = errors.New("repository already exists")

type options struct {
	cacheSize     int
	defaultBranch string
	root          string
	noPacks       bool
	reflog        reflogConfig
}

type reflogConfig struct {
	disabled bool
	name     string
	email    string
	now      func() time.Time
}

// Option configures Init and Open.
type Option func(*options)

// WithCacheSize bounds the decoded object cache.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithDefaultBranch sets the branch HEAD points at after Init. Open uses it
// only when no manifest is stored.
func WithDefaultBranch(name string) Option {
	return func(o *options) { o.defaultBranch = name }
}

// WithRoot hosts the repository under a subdirectory of the backend. Open
// uses it only when no manifest is stored.
func WithRoot(root string) Option {
	return func(o *options) { o.root = root }
}

// WithoutPacks disables pack file lookups.
func WithoutPacks() Option {
	return func(o *options) { o.noPacks = true }
}

// WithReflogIdentity sets who reflog entries name as having moved a ref.
func WithReflogIdentity(name, email string) Option {
	return func(o *options) {
		o.reflog.name = name
		o.reflog.email = email
	}
}

// WithoutReflog stops ref updates from being logged.
func WithoutReflog() Option {
	return func(o *options) { o.reflog.disabled = true }
}

func collect(opts []Option) *options {
	o := &options{
		cacheSize: object.DefaultCacheSize,
		reflog:    reflogConfig{name: "gitcenter", email: "gitcenter@localhost", now: time.Now},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) manifest() Manifest {
	m := DefaultManifest()
	if o.defaultBranch != "" {
		m.DefaultBranch = o.defaultBranch
	}
	m.Root = o.root
	return m
}

// Init creates a repository on backend: it writes the manifest and points
// HEAD at the default branch. It fails if HEAD already exists.
func Init(ctx context.Context, backend storage.Backend, opts ...Option) (*Repo, error) {
	o := collect(opts)
	m := o.manifest()
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	r, err := newRepo(backend, m, o)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	_, err = r.Refs.Read(ctx, refs.HEAD)
	switch {
	case err == nil:
		return nil, fmt.Errorf("init: %w", ErrRepositoryExists)
	case !errors.Is(err, object.ErrNotFound):
		return nil, fmt.Errorf("init: %w", err)
	}

	if err := WriteManifest(ctx, backend, m); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	if err := r.Refs.SetSymbolic(ctx, refs.HEAD, refs.BranchRef(m.DefaultBranch)); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}
	return r, nil
}

// Open opens the repository described by the manifest on backend. Without a
// manifest a git repository is assumed, shaped by opts.
func Open(ctx context.Context, backend storage.Backend, opts ...Option) (*Repo, error) {
	o := collect(opts)
	m, found, err := ReadManifest(ctx, backend)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if !found {
		m = o.manifest()
		m.applyDefaults()
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
	}
	r, err := newRepo(backend, m, o)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return r, nil
}

// Head returns the ref HEAD points at, or "" when HEAD is detached.
func (r *Repo) Head(ctx context.Context) (string, error) {
	ref, err := r.Refs.Read(ctx, refs.HEAD)
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	return ref.Symbolic, nil
}
