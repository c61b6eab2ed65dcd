package refs

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

// PackedRefsPath is the backend path of the packed ref table.
const PackedRefsPath = "packed-refs"

const packedHeader = "# pack-refs with: sorted \n"

type packedTable []Ref

func (p packedTable) find(name string) (Ref, bool) {
	for _, ref := range p {
		if ref.Name == name {
			return ref, true
		}
	}
	return Ref{}, false
}

func (s *Store) readPacked(ctx context.Context) (packedTable, error) {
	data, err := s.backend.ReadFile(ctx, PackedRefsPath)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, backendErr("read packed refs", PackedRefsPath, err)
	}
	refs, err := ParsePacked(data)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// ParsePacked decodes a packed-refs table. Comment lines, blank lines and
// peeled ("^<id>") lines are skipped.
func ParsePacked(data []byte) ([]Ref, error) {
	var refs []Ref
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		hex, name, ok := strings.Cut(line, " ")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, object.NewError(object.ErrFormat, "parse packed refs", PackedRefsPath,
				fmt.Errorf("line %d: missing ref name", i+1))
		}
		id, err := object.ParseID(hex)
		if err != nil {
			return nil, object.NewError(object.ErrFormat, "parse packed refs", PackedRefsPath,
				fmt.Errorf("line %d: %w", i+1, err))
		}
		refs = append(refs, Ref{Name: name, Target: id})
	}
	return refs, nil
}

// FormatPacked encodes direct refs as a sorted packed-refs table. Symbolic
// refs cannot be packed and are skipped.
func FormatPacked(refs []Ref) []byte {
	sorted := make([]Ref, 0, len(refs))
	for _, ref := range refs {
		if !ref.IsSymbolic() {
			sorted = append(sorted, ref)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var buf bytes.Buffer
	buf.WriteString(packedHeader)
	for _, ref := range sorted {
		buf.WriteString(ref.Target.String())
		buf.WriteByte(' ')
		buf.WriteString(ref.Name)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
