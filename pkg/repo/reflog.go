package repo

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/refs"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

const logsDir = "logs"

// ReflogEntry is one recorded move of a ref.
type ReflogEntry struct {
	Ref     string
	Old     object.ID // zero when the ref was created
	New     object.ID
	Who     object.Identity
	Message string
}

func reflogPath(ref string) string {
	return logsDir + "/" + ref
}

// reflogName maps user input to the ref whose log is read: "" and HEAD read
// HEAD's own log and short names are branches.
func reflogName(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "" || ref == refs.HEAD:
		return refs.HEAD
	case strings.HasPrefix(ref, "refs/"):
		return ref
	default:
		return refs.BranchRef(ref)
	}
}

// logRefUpdate records a move of terminal in its log and, when HEAD points at
// terminal, in HEAD's log too.
func (r *Repo) logRefUpdate(ctx context.Context, terminal string, old, newID object.ID, message string) error {
	if r.reflog.disabled {
		return nil
	}
	who := object.Identity{Name: r.reflog.name, Email: r.reflog.email, When: r.reflog.now()}
	line := fmt.Sprintf("%s %s %s\t%s\n", old, newID, who, oneLine(message))

	names := []string{terminal}
	if terminal != refs.HEAD {
		if head, err := r.Refs.Read(ctx, refs.HEAD); err == nil && head.Symbolic == terminal {
			names = append(names, refs.HEAD)
		}
	}
	for _, name := range names {
		p := reflogPath(name)
		data, err := r.Backend.ReadFile(ctx, p)
		if err != nil && !storage.IsNotFound(err) {
			return object.NewError(object.ErrBackend, "reflog", name, err)
		}
		data = append(data, line...)
		if err := r.Backend.WriteFile(ctx, p, data); err != nil {
			return object.NewError(object.ErrBackend, "reflog", name, err)
		}
	}
	return nil
}

func (r *Repo) dropReflog(ctx context.Context, ref string) error {
	if err := r.Backend.DeleteFile(ctx, reflogPath(ref)); err != nil {
		return object.NewError(object.ErrBackend, "reflog", ref, err)
	}
	return nil
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

// ReadReflog returns the recorded moves of ref, newest first, at most limit
// of them when limit is positive. A ref without a log has no entries.
// Unparseable lines are skipped.
func (r *Repo) ReadReflog(ctx context.Context, ref string, limit int) ([]ReflogEntry, error) {
	name := reflogName(ref)
	data, err := r.Backend.ReadFile(ctx, reflogPath(name))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, object.NewError(object.ErrBackend, "read reflog", name, err)
	}

	var entries []ReflogEntry
	for _, line := range bytes.Split(data, []byte("\n")) {
		if e, ok := parseReflogLine(name, string(line)); ok {
			entries = append(entries, e)
		}
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// parseReflogLine reads "<old> <new> <identity>\t<message>".
func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	head, message, _ := strings.Cut(line, "\t")
	oldHex, rest, ok := strings.Cut(head, " ")
	if !ok {
		return ReflogEntry{}, false
	}
	newHex, ident, ok := strings.Cut(rest, " ")
	if !ok {
		return ReflogEntry{}, false
	}
	old, err := object.ParseID(oldHex)
	if err != nil {
		return ReflogEntry{}, false
	}
	newID, err := object.ParseID(newHex)
	if err != nil {
		return ReflogEntry{}, false
	}
	who, err := object.ParseIdentity(ident)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{Ref: ref, Old: old, New: newID, Who: who, Message: message}, true
}
