// Package refs reads and writes Git references through a storage backend.
//
// A loose ref is a file under the backend root holding either a 40-hex
// object id or "ref: <other-name>". The packed table at packed-refs supplies
// refs that have no loose file.
package refs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

const (
	// HEAD names the repository's current ref.
	HEAD = "HEAD"
	// MaxSymbolicDepth bounds the number of symbolic hops Resolve follows.
	MaxSymbolicDepth = 10

	symbolicPrefix = "ref: "
)

// Ref is a direct ref (Target set) or a symbolic ref (Symbolic set).
type Ref struct {
	Name     string
	Target   object.ID
	Symbolic string
}

// IsSymbolic reports whether r points at another ref.
func (r Ref) IsSymbolic() bool {
	return r.Symbolic != ""
}

func (r Ref) String() string {
	if r.IsSymbolic() {
		return r.Name + " -> " + r.Symbolic
	}
	return r.Name + " " + r.Target.String()
}

// Store resolves and updates refs. It holds no state besides the backend, so
// every call observes the latest stored values.
type Store struct {
	backend storage.Backend
}

// New returns a ref store over backend.
func New(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

func backendErr(op, name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return object.NewError(object.ErrBackend, op, name, err)
}

func normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return HEAD
	}
	return name
}

// parseRefFile decodes the content of a loose ref file.
func parseRefFile(name string, data []byte) (Ref, error) {
	content := strings.TrimRight(string(data), "\r\n\t ")
	if target, ok := strings.CutPrefix(content, symbolicPrefix); ok {
		target = strings.TrimSpace(target)
		if target == "" {
			return Ref{}, object.NewError(object.ErrFormat, "read ref", name, fmt.Errorf("empty symbolic target"))
		}
		return Ref{Name: name, Symbolic: target}, nil
	}
	if !object.LooksLikeID(content) {
		return Ref{}, object.NewError(object.ErrFormat, "read ref", name,
			fmt.Errorf("content %q is neither an id nor a symbolic ref", truncate(content, 64)))
	}
	id, err := object.ParseID(content)
	if err != nil {
		return Ref{}, object.NewError(object.ErrFormat, "read ref", name, err)
	}
	return Ref{Name: name, Target: id}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// readLoose reads the loose file for name. found is false when it is absent.
func (s *Store) readLoose(ctx context.Context, name string) (Ref, bool, error) {
	data, err := s.backend.ReadFile(ctx, name)
	if err != nil {
		if storage.IsNotFound(err) {
			return Ref{}, false, nil
		}
		return Ref{}, false, backendErr("read ref", name, err)
	}
	ref, err := parseRefFile(name, data)
	if err != nil {
		return Ref{}, false, err
	}
	return ref, true, nil
}

// Read returns the ref stored under name without following symbolic refs.
// Loose files take precedence over the packed table.
func (s *Store) Read(ctx context.Context, name string) (Ref, error) {
	name = normalize(name)
	ref, found, err := s.readLoose(ctx, name)
	if err != nil || found {
		return ref, err
	}
	packed, err := s.readPacked(ctx)
	if err != nil {
		return Ref{}, err
	}
	if ref, ok := packed.find(name); ok {
		return ref, nil
	}
	return Ref{}, object.NewError(object.ErrNotFound, "read ref", name, storage.ErrNotFound)
}

// ResolveSymbolic follows one symbolic hop. Direct and absent refs return
// name unchanged.
func (s *Store) ResolveSymbolic(ctx context.Context, name string) (string, error) {
	name = normalize(name)
	ref, err := s.Read(ctx, name)
	switch {
	case errors.Is(err, object.ErrNotFound):
		return name, nil
	case err != nil:
		return "", err
	case ref.IsSymbolic():
		return ref.Symbolic, nil
	default:
		return name, nil
	}
}

// walk follows symbolic refs from name. It returns the last ref read and its
// name; ref is nil when the terminal name does not exist.
func (s *Store) walk(ctx context.Context, op, name string) (string, *Ref, error) {
	start := normalize(name)
	name = start
	visited := make(map[string]bool)
	for hops := 0; ; hops++ {
		if visited[name] {
			return "", nil, object.NewError(object.ErrResolution, op, start,
				fmt.Errorf("symbolic ref cycle through %q", name))
		}
		visited[name] = true

		ref, err := s.Read(ctx, name)
		if errors.Is(err, object.ErrNotFound) {
			return name, nil, nil
		}
		if err != nil {
			return "", nil, err
		}
		if !ref.IsSymbolic() {
			return name, &ref, nil
		}
		if hops >= MaxSymbolicDepth {
			return "", nil, object.NewError(object.ErrResolution, op, start,
				fmt.Errorf("more than %d symbolic hops", MaxSymbolicDepth))
		}
		name = ref.Symbolic
	}
}

// Resolve follows symbolic refs from name to an object id. An empty name
// means HEAD.
func (s *Store) Resolve(ctx context.Context, name string) (object.ID, error) {
	terminal, ref, err := s.walk(ctx, "resolve", name)
	if err != nil {
		return object.ZeroID, err
	}
	if ref == nil {
		return object.ZeroID, object.NewError(object.ErrNotFound, "resolve", terminal, storage.ErrNotFound)
	}
	return ref.Target, nil
}

// Follow returns the name symbolic refs from name end at, whether or not that
// ref exists. HEAD on an unborn branch follows to the branch name.
func (s *Store) Follow(ctx context.Context, name string) (string, error) {
	terminal, _, err := s.walk(ctx, "follow", name)
	return terminal, err
}

// Lookup resolves a user-supplied revision: a full hex id is returned as-is
// without touching storage; HEAD and refs/... names resolve directly; short
// names are tried as branches, then tags, then against the packed table.
func (s *Store) Lookup(ctx context.Context, nameOrID string) (object.ID, error) {
	rev := strings.TrimSpace(nameOrID)
	if object.LooksLikeID(rev) {
		return object.ParseID(rev)
	}
	if rev == "" || rev == HEAD || strings.HasPrefix(rev, "refs/") {
		return s.Resolve(ctx, rev)
	}

	for _, candidate := range []string{"refs/heads/" + rev, "refs/tags/" + rev} {
		_, found, err := s.readLoose(ctx, candidate)
		if err != nil {
			return object.ZeroID, err
		}
		if found {
			return s.Resolve(ctx, candidate)
		}
	}

	packed, err := s.readPacked(ctx)
	if err != nil {
		return object.ZeroID, err
	}
	for _, candidate := range []string{"refs/heads/" + rev, "refs/tags/" + rev, "refs/remotes/" + rev, rev} {
		if ref, ok := packed.find(candidate); ok {
			return ref.Target, nil
		}
	}
	return object.ZeroID, object.NewError(object.ErrNotFound, "lookup", rev, storage.ErrNotFound)
}

// List returns every ref under refs/, loose and packed, sorted by name. A
// loose ref hides a packed ref of the same name.
func (s *Store) List(ctx context.Context) ([]Ref, error) {
	byName := make(map[string]Ref)

	packed, err := s.readPacked(ctx)
	if err != nil {
		return nil, err
	}
	for _, ref := range packed {
		byName[ref.Name] = ref
	}

	if err := s.listLoose(ctx, "refs", byName); err != nil {
		return nil, err
	}

	out := make([]Ref, 0, len(byName))
	for _, ref := range byName {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListPrefix returns the refs whose names start with prefix.
func (s *Store) ListPrefix(ctx context.Context, prefix string) ([]Ref, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, ref := range all {
		if strings.HasPrefix(ref.Name, prefix) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (s *Store) listLoose(ctx context.Context, dir string, into map[string]Ref) error {
	names, err := s.backend.ListDirectory(ctx, dir)
	if err != nil {
		return backendErr("list refs", dir, err)
	}
	for _, name := range names {
		full := dir + "/" + name
		children, err := s.backend.ListDirectory(ctx, full)
		if err != nil {
			return backendErr("list refs", full, err)
		}
		if len(children) > 0 {
			if err := s.listLoose(ctx, full, into); err != nil {
				return err
			}
			continue
		}
		ref, found, err := s.readLoose(ctx, full)
		if err != nil {
			return err
		}
		if found {
			into[full] = ref
		}
	}
	return nil
}

// Update points name at id unconditionally.
func (s *Store) Update(ctx context.Context, name string, id object.ID) error {
	name = normalize(name)
	if err := ValidateName(name); err != nil {
		return err
	}
	if id.IsZero() {
		return object.NewError(object.ErrFormat, "update ref", name, fmt.Errorf("zero id"))
	}
	if err := s.backend.WriteFile(ctx, name, []byte(id.String()+"\n")); err != nil {
		return backendErr("update ref", name, err)
	}
	return nil
}

// SetSymbolic makes name a symbolic ref to target.
func (s *Store) SetSymbolic(ctx context.Context, name, target string) error {
	name = normalize(name)
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateName(target); err != nil {
		return err
	}
	if err := s.backend.WriteFile(ctx, name, []byte(symbolicPrefix+target+"\n")); err != nil {
		return backendErr("set symbolic ref", name, err)
	}
	return nil
}

// Delete removes the loose file for name and its line in the packed table.
// Deleting an absent ref is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	name = normalize(name)
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.backend.DeleteFile(ctx, name); err != nil {
		return backendErr("delete ref", name, err)
	}

	packed, err := s.readPacked(ctx)
	if err != nil {
		return err
	}
	kept := make([]Ref, 0, len(packed))
	for _, ref := range packed {
		if ref.Name != name {
			kept = append(kept, ref)
		}
	}
	if len(kept) == len(packed) {
		return nil
	}
	if err := s.backend.WriteFile(ctx, PackedRefsPath, FormatPacked(kept)); err != nil {
		return backendErr("delete ref", PackedRefsPath, err)
	}
	return nil
}

// Pack moves every direct loose ref under refs/ into the packed table and
// removes the loose files. Symbolic refs stay loose.
func (s *Store) Pack(ctx context.Context) (int, error) {
	all, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	loose := make(map[string]Ref)
	if err := s.listLoose(ctx, "refs", loose); err != nil {
		return 0, err
	}

	var packed []Ref
	for _, ref := range all {
		if !ref.IsSymbolic() {
			packed = append(packed, ref)
		}
	}
	if err := s.backend.WriteFile(ctx, PackedRefsPath, FormatPacked(packed)); err != nil {
		return 0, backendErr("pack refs", PackedRefsPath, err)
	}

	moved := 0
	for name, ref := range loose {
		if ref.IsSymbolic() {
			continue
		}
		if err := s.backend.DeleteFile(ctx, name); err != nil {
			return moved, backendErr("pack refs", name, err)
		}
		moved++
	}
	return moved, nil
}
