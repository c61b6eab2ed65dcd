package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/refs"
)

// Signer signs canonical commit payload bytes and returns the armored
// signature stored in the commit's gpgsig header.
type Signer func(payload []byte) (string, error)

// CommitRequest describes a commit to create.
//
// The tree is BaseTree with Edits applied. A zero BaseTree means the first
// parent's tree, or the empty tree for a root commit. A zero Committer copies
// Author; a zero Author time means now.
type CommitRequest struct {
	Parents   []object.ID
	BaseTree  object.ID
	Edits     []Edit
	Author    object.Identity
	Committer object.Identity
	Message   string
	Extra     []object.Header
	Signer    Signer
}

// Commit writes the tree and commit described by req and returns the commit
// id. It never touches refs.
func (r *Repo) Commit(ctx context.Context, req CommitRequest) (object.ID, error) {
	if strings.TrimSpace(req.Author.Name) == "" {
		return object.ZeroID, fmt.Errorf("commit: author name is required")
	}

	base := req.BaseTree
	if base.IsZero() && len(req.Parents) > 0 {
		parent, err := r.Store.ReadCommit(ctx, req.Parents[0])
		if err != nil {
			return object.ZeroID, fmt.Errorf("commit: read parent: %w", err)
		}
		base = parent.Tree
	}

	tree := base
	if len(req.Edits) > 0 || base.IsZero() {
		var err error
		tree, err = r.BuildTree(ctx, base, req.Edits)
		if err != nil {
			return object.ZeroID, fmt.Errorf("commit: %w", err)
		}
	}

	author := req.Author
	if author.When.IsZero() {
		author.When = time.Now()
	}
	committer := req.Committer
	if committer.Name == "" && committer.Email == "" {
		committer = author
	} else if committer.When.IsZero() {
		committer.When = author.When
	}

	c := &object.Commit{
		Tree:      tree,
		Parents:   append([]object.ID(nil), req.Parents...),
		Author:    author.String(),
		Committer: committer.String(),
		Extra:     append([]object.Header(nil), req.Extra...),
		Message:   req.Message,
	}
	if req.Signer != nil {
		payload, err := object.CommitSigningPayload(c)
		if err != nil {
			return object.ZeroID, fmt.Errorf("commit: signing payload: %w", err)
		}
		signature, err := req.Signer(payload)
		if err != nil {
			return object.ZeroID, fmt.Errorf("commit: sign commit: %w", err)
		}
		object.SetCommitSignature(c, strings.TrimRight(signature, "\n"))
	}

	id, err := r.Store.WriteCommit(ctx, c)
	if err != nil {
		return object.ZeroID, fmt.Errorf("commit: write commit: %w", err)
	}
	return id, nil
}

// Publish points refName, after following symbolic refs, at newID, but only
// if it currently names expected. A zero expected means the ref must not
// exist yet. On mismatch the ref is left unchanged and the error wraps
// object.ErrConflict.
func (r *Repo) Publish(ctx context.Context, refName string, newID, expected object.ID) error {
	return r.publish(ctx, refName, newID, expected, "publish")
}

func (r *Repo) publish(ctx context.Context, refName string, newID, expected object.ID, reason string) error {
	terminal, err := r.Refs.Follow(ctx, refName)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	current, err := r.currentValue(ctx, terminal)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if current != expected {
		return object.NewError(object.ErrConflict, "publish", terminal,
			fmt.Errorf("expected %s, found %s", expected, current))
	}
	if err := r.requireObject(ctx, newID); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := r.logRefUpdate(ctx, terminal, current, newID, reason); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := r.Refs.Update(ctx, terminal, newID); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// ForceUpdate points refName, after following symbolic refs, at id without
// checking its current value.
func (r *Repo) ForceUpdate(ctx context.Context, refName string, id object.ID) error {
	terminal, err := r.Refs.Follow(ctx, refName)
	if err != nil {
		return fmt.Errorf("force update: %w", err)
	}
	if err := r.requireObject(ctx, id); err != nil {
		return fmt.Errorf("force update: %w", err)
	}
	current, err := r.currentValue(ctx, terminal)
	if err != nil {
		return fmt.Errorf("force update: %w", err)
	}
	if err := r.logRefUpdate(ctx, terminal, current, id, "update"); err != nil {
		return fmt.Errorf("force update: %w", err)
	}
	if err := r.Refs.Update(ctx, terminal, id); err != nil {
		return fmt.Errorf("force update: %w", err)
	}
	return nil
}

// currentValue returns the id name points at, or zero when it is absent.
func (r *Repo) currentValue(ctx context.Context, name string) (object.ID, error) {
	id, err := r.Refs.Resolve(ctx, name)
	if errors.Is(err, object.ErrNotFound) {
		return object.ZeroID, nil
	}
	return id, err
}

func (r *Repo) requireObject(ctx context.Context, id object.ID) error {
	ok, err := r.Store.Has(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return object.NewError(object.ErrNotFound, "read", id.String(), fmt.Errorf("object does not exist"))
	}
	return nil
}

// CommitOnBranch commits on top of branch's current head and publishes the
// result with compare-and-set. Parents in req follow the branch head.
func (r *Repo) CommitOnBranch(ctx context.Context, branch string, req CommitRequest) (object.ID, error) {
	refName := refs.BranchRef(branch)
	head, err := r.currentValue(ctx, refName)
	if err != nil {
		return object.ZeroID, fmt.Errorf("commit on %s: %w", branch, err)
	}
	if !head.IsZero() {
		req.Parents = append([]object.ID{head}, req.Parents...)
	}
	id, err := r.Commit(ctx, req)
	if err != nil {
		return object.ZeroID, err
	}
	reason := "commit: "
	if head.IsZero() {
		reason = "commit (initial): "
	}
	if err := r.publish(ctx, refName, id, head, reason+oneLine(req.Message)); err != nil {
		return object.ZeroID, err
	}
	return id, nil
}

// LogEntry is one commit in a history walk.
type LogEntry struct {
	ID     object.ID
	Commit *object.Commit
}

// Log walks first-parent history from start, newest first, returning at most
// limit commits. A limit below 1 walks to the root.
func (r *Repo) Log(ctx context.Context, start object.ID, limit int) ([]LogEntry, error) {
	var out []LogEntry
	current := start
	for limit < 1 || len(out) < limit {
		c, err := r.Store.ReadCommit(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		out = append(out, LogEntry{ID: current, Commit: c})
		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return out, nil
}
