package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/gitcenter/pkg/refs"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

// ManifestPath is where the manifest lives, relative to the backend root.
const ManifestPath = "gitcenter.toml"

const (
	EngineGit       = "git"
	EngineMercurial = "hg"

	DefaultBranch = "main"
)

// ErrUnsupportedEngine is returned when a manifest names an engine other
// than git.
var ErrUnsupportedEngine = errors.New("unsupported repository engine")

// Manifest records which engine a repository uses and the subdirectory its
// object and ref tree is hosted under.
type Manifest struct {
	Engine        string `toml:"engine"`
	Root          string `toml:"root,omitempty"`
	DefaultBranch string `toml:"default_branch"`
}

// DefaultManifest describes a git repository at the backend root.
func DefaultManifest() Manifest {
	return Manifest{Engine: EngineGit, DefaultBranch: DefaultBranch}
}

func (m *Manifest) applyDefaults() {
	m.Engine = strings.ToLower(strings.TrimSpace(m.Engine))
	if m.Engine == "" {
		m.Engine = EngineGit
	}
	m.DefaultBranch = strings.TrimSpace(m.DefaultBranch)
	if m.DefaultBranch == "" {
		m.DefaultBranch = DefaultBranch
	}
}

// Validate checks the engine, root and default branch.
func (m Manifest) Validate() error {
	if m.Engine != EngineGit {
		return fmt.Errorf("manifest: engine %q: %w", m.Engine, ErrUnsupportedEngine)
	}
	if _, err := storage.CleanPath(m.Root); err != nil {
		return fmt.Errorf("manifest: root: %w", err)
	}
	if err := refs.ValidateName(refs.BranchRef(m.DefaultBranch)); err != nil {
		return fmt.Errorf("manifest: default branch: %w", err)
	}
	return nil
}

// ParseManifest decodes a TOML manifest and fills in defaults.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("manifest: unknown key %q", undecoded[0].String())
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Encode renders the manifest as TOML.
func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("manifest: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadManifest loads the manifest from backend. found is false, with the
// default manifest, when none is stored.
func ReadManifest(ctx context.Context, backend storage.Backend) (Manifest, bool, error) {
	data, err := backend.ReadFile(ctx, ManifestPath)
	if err != nil {
		if storage.IsNotFound(err) {
			return DefaultManifest(), false, nil
		}
		return Manifest{}, false, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return Manifest{}, true, err
	}
	return m, true, nil
}

// WriteManifest validates and stores m.
func WriteManifest(ctx context.Context, backend storage.Backend, m Manifest) error {
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := backend.WriteFile(ctx, ManifestPath, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
