// Package repo ties the object store and ref store of one repository
// together: tree navigation, tree building, commits with compare-and-set
// publication, tags, branches, history and integrity checks.
package repo

import (
	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/refs"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

// Repo represents an opened repository.
type Repo struct {
	Manifest Manifest
	Backend  storage.Backend // scoped to Manifest.Root
	Store    *object.Store   // content-addressed object store
	Refs     *refs.Store

	reflog reflogConfig
}

func newRepo(backend storage.Backend, m Manifest, o *options) (*Repo, error) {
	scoped, err := storage.Sub(backend, m.Root)
	if err != nil {
		return nil, err
	}
	storeOpts := []object.Option{object.WithCacheSize(o.cacheSize)}
	if o.noPacks {
		storeOpts = append(storeOpts, object.WithoutPacks())
	}
	return &Repo{
		Manifest: m,
		Backend:  scoped,
		Store:    object.NewStore(scoped, storeOpts...),
		Refs:     refs.New(scoped),
		reflog:   o.reflog,
	}, nil
}
