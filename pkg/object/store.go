package object

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/odvcencio/gitcenter/pkg/storage"
)

// DefaultCacheSize is the number of decoded objects a Store keeps.
const DefaultCacheSize = 4096

// Store is a content-addressed object store over a storage backend. Objects
// live at objects/ab/cdef0123... as zlib-deflated envelopes; pack files under
// objects/pack are consulted when a loose object is absent.
//
// Decoded objects are kept in a bounded LRU cache. Read returns the cached
// value itself, so callers must not modify returned objects.
type Store struct {
	backend storage.Backend
	cache   *lru.Cache[ID, Object]
	packs   *packSet
}

type storeConfig struct {
	cacheSize int
	packs     bool
}

// Option configures a Store.
type Option func(*storeConfig)

// WithCacheSize bounds the decoded object cache. Values below 1 select
// DefaultCacheSize.
func WithCacheSize(n int) Option {
	return func(c *storeConfig) {
		c.cacheSize = n
	}
}

// WithoutPacks disables the pack file lookup. Reads of objects that are not
// loose fail with ErrNotFound.
func WithoutPacks() Option {
	return func(c *storeConfig) {
		c.packs = false
	}
}

// NewStore creates a Store over backend.
func NewStore(backend storage.Backend, opts ...Option) *Store {
	cfg := storeConfig{cacheSize: DefaultCacheSize, packs: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cacheSize < 1 {
		cfg.cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[ID, Object](cfg.cacheSize)

	s := &Store{backend: backend, cache: cache}
	if cfg.packs {
		s.packs = newPackSet(backend)
	}
	return s
}

// Backend returns the backend the store reads and writes through.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// CacheLen returns the number of cached objects.
func (s *Store) CacheLen() int {
	return s.cache.Len()
}

// withSubject re-labels an *Error with the operation and object it concerns.
func withSubject(err error, op string, id ID) error {
	var e *Error
	if errors.As(err, &e) {
		out := *e
		out.Op = op
		out.Subject = id.String()
		return &out
	}
	return &Error{Kind: ErrFormat, Op: op, Subject: id.String(), Err: err}
}

func backendErr(op string, id ID, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: ErrBackend, Op: op, Subject: id.String(), Err: err}
}

// Read returns the object named id.
func (s *Store) Read(ctx context.Context, id ID) (Object, error) {
	if obj, ok := s.cache.Get(id); ok {
		return obj, nil
	}
	objType, payload, err := s.ReadRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	obj, err := Unmarshal(objType, payload)
	if err != nil {
		return nil, withSubject(err, "read", id)
	}
	s.cache.Add(id, obj)
	return obj, nil
}

// ReadRaw returns the type and payload of id without decoding or caching.
// The payload hash is verified against id.
func (s *Store) ReadRaw(ctx context.Context, id ID) (ObjectType, []byte, error) {
	data, err := s.backend.ReadFile(ctx, LoosePath(id))
	switch {
	case err == nil:
		return s.parseLoose(id, data)
	case !storage.IsNotFound(err):
		return "", nil, backendErr("read", id, err)
	}

	if s.packs != nil {
		objType, payload, found, err := s.packs.lookup(ctx, id, s.readBase(ctx))
		if err != nil {
			return "", nil, err
		}
		if found {
			return objType, payload, nil
		}
	}
	return "", nil, &Error{Kind: ErrNotFound, Op: "read", Subject: id.String(), Err: err}
}

func (s *Store) readBase(ctx context.Context) BaseResolver {
	return func(base ID) (ObjectType, []byte, error) {
		return s.ReadRaw(ctx, base)
	}
}

func (s *Store) parseLoose(id ID, data []byte) (ObjectType, []byte, error) {
	raw, err := inflate(data)
	if err != nil {
		return "", nil, &Error{Kind: ErrFormat, Op: "read", Subject: id.String(), Err: err}
	}
	objType, payload, err := ParseEnvelope(raw)
	if err != nil {
		return "", nil, withSubject(err, "read", id)
	}
	if got := HashObject(objType, payload); got != id {
		return "", nil, &Error{Kind: ErrFormat, Op: "read", Subject: id.String(),
			Err: fmt.Errorf("content hashes to %s", got)}
	}
	return objType, payload, nil
}

// Has reports whether id is stored, loose or packed.
func (s *Store) Has(ctx context.Context, id ID) (bool, error) {
	if s.cache.Contains(id) {
		return true, nil
	}
	_, _, err := s.ReadRaw(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Write validates payload as an object of objType, stores it and returns its
// id. Writing an id that is already cached performs no backend I/O; otherwise
// the loose file is (re)written with identical bytes.
func (s *Store) Write(ctx context.Context, objType ObjectType, payload []byte) (ID, error) {
	id := HashObject(objType, payload)
	if s.cache.Contains(id) {
		return id, nil
	}
	obj, err := Unmarshal(objType, payload)
	if err != nil {
		return ZeroID, withSubject(err, "write", id)
	}
	compressed, err := deflate(Envelope(objType, payload))
	if err != nil {
		return ZeroID, fmt.Errorf("write %s: deflate: %w", id, err)
	}
	if err := s.backend.WriteFile(ctx, LoosePath(id), compressed); err != nil {
		return ZeroID, backendErr("write", id, err)
	}
	s.cache.Add(id, obj)
	return id, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteObject serializes and stores obj.
func (s *Store) WriteObject(ctx context.Context, obj Object) (ID, error) {
	payload, err := Marshal(obj)
	if err != nil {
		return ZeroID, err
	}
	return s.Write(ctx, obj.Type(), payload)
}

// WriteBlob stores a blob.
func (s *Store) WriteBlob(ctx context.Context, b *Blob) (ID, error) {
	return s.Write(ctx, TypeBlob, b.Data)
}

// WriteTree stores a tree.
func (s *Store) WriteTree(ctx context.Context, t *Tree) (ID, error) {
	return s.WriteObject(ctx, t)
}

// WriteCommit stores a commit.
func (s *Store) WriteCommit(ctx context.Context, c *Commit) (ID, error) {
	return s.WriteObject(ctx, c)
}

// WriteTag stores an annotated tag.
func (s *Store) WriteTag(ctx context.Context, t *Tag) (ID, error) {
	return s.WriteObject(ctx, t)
}

func typeMismatch(op string, id ID, got, want ObjectType) error {
	return &Error{Kind: ErrType, Op: op, Subject: id.String(),
		Err: fmt.Errorf("got %s, want %s", got, want)}
}

// ReadBlob reads a blob.
func (s *Store) ReadBlob(ctx context.Context, id ID) (*Blob, error) {
	obj, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	b, ok := obj.(*Blob)
	if !ok {
		return nil, typeMismatch("read blob", id, obj.Type(), TypeBlob)
	}
	return b, nil
}

// ReadTree reads a tree.
func (s *Store) ReadTree(ctx context.Context, id ID) (*Tree, error) {
	obj, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*Tree)
	if !ok {
		return nil, typeMismatch("read tree", id, obj.Type(), TypeTree)
	}
	return t, nil
}

// ReadCommit reads a commit.
func (s *Store) ReadCommit(ctx context.Context, id ID) (*Commit, error) {
	obj, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	c, ok := obj.(*Commit)
	if !ok {
		return nil, typeMismatch("read commit", id, obj.Type(), TypeCommit)
	}
	return c, nil
}

// ReadTag reads an annotated tag.
func (s *Store) ReadTag(ctx context.Context, id ID) (*Tag, error) {
	obj, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(*Tag)
	if !ok {
		return nil, typeMismatch("read tag", id, obj.Type(), TypeTag)
	}
	return t, nil
}

// InvalidatePacks forgets discovered pack files so the next lookup rescans
// objects/pack.
func (s *Store) InvalidatePacks() {
	if s.packs != nil {
		s.packs.invalidate()
	}
}
