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

// ErrTagExists is returned when creating a tag that already exists without
// force.
var ErrTagExists = errors.New("tag already exists")

// TagInfo is a tag ref with its target peeled through annotated tags.
type TagInfo struct {
	Name      string
	Target    object.ID // what the ref names
	Peeled    object.ID // first non-tag object
	Annotated bool
}

func (r *Repo) checkTagSlot(ctx context.Context, name string, force bool) (string, error) {
	name = strings.TrimSpace(name)
	refName := refs.TagRef(name)
	if err := validateShortName("tag", name); err != nil {
		return "", err
	}
	if err := refs.ValidateName(refName); err != nil {
		return "", err
	}
	if !force {
		_, err := r.Refs.Read(ctx, refName)
		if err == nil {
			return "", fmt.Errorf("%w: %q", ErrTagExists, name)
		}
		if !errors.Is(err, object.ErrNotFound) {
			return "", err
		}
	}
	return refName, nil
}

// CreateTag creates or, with force, moves a lightweight tag.
func (r *Repo) CreateTag(ctx context.Context, name string, target object.ID, force bool) error {
	refName, err := r.checkTagSlot(ctx, name, force)
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	if err := r.requireObject(ctx, target); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	if err := r.Refs.Update(ctx, refName, target); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// CreateAnnotatedTag writes a tag object pointing at target and a ref to it.
// A zero tagger time means now.
func (r *Repo) CreateAnnotatedTag(ctx context.Context, name string, target object.ID, tagger object.Identity, message string, force bool) (object.ID, error) {
	refName, err := r.checkTagSlot(ctx, name, force)
	if err != nil {
		return object.ZeroID, fmt.Errorf("create annotated tag: %w", err)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return object.ZeroID, fmt.Errorf("create annotated tag: message is required")
	}
	if strings.TrimSpace(tagger.Name) == "" {
		tagger.Name = "unknown"
	}
	if tagger.When.IsZero() {
		tagger.When = time.Now()
	}

	targetObj, err := r.Store.Read(ctx, target)
	if err != nil {
		return object.ZeroID, fmt.Errorf("create annotated tag: read target: %w", err)
	}

	tagID, err := r.Store.WriteTag(ctx, &object.Tag{
		Target:     target,
		TargetType: targetObj.Type(),
		Name:       strings.TrimPrefix(refName, "refs/tags/"),
		Tagger:     tagger.String(),
		Message:    message + "\n",
	})
	if err != nil {
		return object.ZeroID, fmt.Errorf("create annotated tag: write tag object: %w", err)
	}
	if err := r.Refs.Update(ctx, refName, tagID); err != nil {
		return object.ZeroID, fmt.Errorf("create annotated tag: %w", err)
	}
	return tagID, nil
}

// DeleteTag removes a tag ref, loose or packed.
func (r *Repo) DeleteTag(ctx context.Context, name string) error {
	refName := refs.TagRef(strings.TrimSpace(name))
	if _, err := r.Refs.Read(ctx, refName); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := r.Refs.Delete(ctx, refName); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// ListTags returns every tag sorted by name with its peeled target.
func (r *Repo) ListTags(ctx context.Context) ([]TagInfo, error) {
	tagRefs, err := r.Refs.ListPrefix(ctx, "refs/tags/")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make([]TagInfo, 0, len(tagRefs))
	for _, ref := range tagRefs {
		if ref.IsSymbolic() {
			continue
		}
		info := TagInfo{
			Name:   strings.TrimPrefix(ref.Name, "refs/tags/"),
			Target: ref.Target,
			Peeled: ref.Target,
		}
		for i := 0; i < maxPeel; i++ {
			tag, err := r.Store.ReadTag(ctx, info.Peeled)
			if err != nil {
				if errors.Is(err, object.ErrType) {
					break
				}
				return nil, fmt.Errorf("list tags: %s: %w", info.Name, err)
			}
			info.Annotated = true
			info.Peeled = tag.Target
		}
		out = append(out, info)
	}
	return out, nil
}

// validateShortName rejects names that would escape their ref namespace.
func validateShortName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}
