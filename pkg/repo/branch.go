package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/refs"
)

const headsPrefix = "refs/heads/"

// Branch is a branch name with the commit it points at.
type Branch struct {
	Name   string
	Target object.ID
}

// CreateBranch creates a branch at target. It fails with object.ErrConflict
// if the branch already exists.
func (r *Repo) CreateBranch(ctx context.Context, name string, target object.ID) error {
	name = strings.TrimSpace(name)
	if err := validateShortName("branch", name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	reason := "branch: created from " + target.String()
	if err := r.publish(ctx, refs.BranchRef(name), target, object.ZeroID, reason); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes a branch. The current branch cannot be deleted.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	current, err := r.CurrentBranch(ctx)
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	refName := refs.BranchRef(name)
	if _, err := r.Refs.Read(ctx, refName); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if err := r.Refs.Delete(ctx, refName); err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	if err := r.dropReflog(ctx, refName); err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns branches sorted by name.
func (r *Repo) ListBranches(ctx context.Context) ([]Branch, error) {
	heads, err := r.Refs.ListPrefix(ctx, headsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	out := make([]Branch, 0, len(heads))
	for _, ref := range heads {
		if ref.IsSymbolic() {
			continue
		}
		out = append(out, Branch{Name: strings.TrimPrefix(ref.Name, headsPrefix), Target: ref.Target})
	}
	return out, nil
}

// CurrentBranch returns the branch HEAD points at, or "" when HEAD is
// detached or absent.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	target, err := r.Head(ctx)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("current branch: %w", err)
	}
	if strings.HasPrefix(target, headsPrefix) {
		return strings.TrimPrefix(target, headsPrefix), nil
	}
	return "", nil
}

// SwitchBranch points HEAD at an existing branch.
func (r *Repo) SwitchBranch(ctx context.Context, name string) error {
	refName := refs.BranchRef(strings.TrimSpace(name))
	if _, err := r.Refs.Resolve(ctx, refName); err != nil {
		return fmt.Errorf("switch branch: %w", err)
	}
	if err := r.Refs.SetSymbolic(ctx, refs.HEAD, refName); err != nil {
		return fmt.Errorf("switch branch: %w", err)
	}
	return nil
}
