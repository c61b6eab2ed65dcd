package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/refs"
)

// DefaultVerifyConcurrency is used when Verify is given a non-positive limit.
const DefaultVerifyConcurrency = 8

// ObjectProblem is an unreadable object found while verifying.
type ObjectProblem struct {
	ID  object.ID
	Err error
}

// RefProblem is a ref that does not resolve.
type RefProblem struct {
	Name string
	Err  error
}

// VerifyReport summarizes a reachability walk.
type VerifyReport struct {
	Refs       int
	Objects    int
	ByType     map[object.ObjectType]int
	Missing    []ObjectProblem
	Corrupt    []ObjectProblem
	BrokenRefs []RefProblem
}

// OK reports whether every ref resolved and every reachable object was
// readable.
func (v *VerifyReport) OK() bool {
	return len(v.Missing) == 0 && len(v.Corrupt) == 0 && len(v.BrokenRefs) == 0
}

// Verify walks every object reachable from HEAD and the refs, reading each
// level of the walk with up to concurrency parallel reads. Missing and
// corrupt objects are collected in the report; backend failures abort.
func (r *Repo) Verify(ctx context.Context, concurrency int) (*VerifyReport, error) {
	if concurrency < 1 {
		concurrency = DefaultVerifyConcurrency
	}
	report := &VerifyReport{ByType: make(map[object.ObjectType]int)}

	all, err := r.Refs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	names := []string{refs.HEAD}
	for _, ref := range all {
		names = append(names, ref.Name)
	}

	seen := make(map[object.ID]bool)
	var frontier []object.ID
	for _, name := range names {
		id, err := r.Refs.Resolve(ctx, name)
		if err != nil {
			if name == refs.HEAD && errors.Is(err, object.ErrNotFound) {
				continue // unborn branch
			}
			if isObjectFault(err) {
				report.BrokenRefs = append(report.BrokenRefs, RefProblem{Name: name, Err: err})
				continue
			}
			return nil, fmt.Errorf("verify: %w", err)
		}
		report.Refs++
		if !seen[id] {
			seen[id] = true
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		next, err := r.verifyLevel(ctx, frontier, concurrency, report)
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		frontier = frontier[:0]
		for _, id := range next {
			if !seen[id] {
				seen[id] = true
				frontier = append(frontier, id)
			}
		}
	}

	sortProblems(report.Missing)
	sortProblems(report.Corrupt)
	return report, nil
}

func (r *Repo) verifyLevel(ctx context.Context, ids []object.ID, concurrency int, report *VerifyReport) ([]object.ID, error) {
	var (
		mu   sync.Mutex
		next []object.ID
	)
	p := pool.New().WithMaxGoroutines(concurrency).WithContext(ctx).WithCancelOnError()
	for _, id := range ids {
		p.Go(func(ctx context.Context) error {
			obj, err := r.Store.Read(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Objects++
				report.ByType[obj.Type()]++
				next = append(next, object.References(obj)...)
			case errors.Is(err, object.ErrNotFound):
				report.Missing = append(report.Missing, ObjectProblem{ID: id, Err: err})
			case isObjectFault(err):
				report.Corrupt = append(report.Corrupt, ObjectProblem{ID: id, Err: err})
			default:
				return err
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return next, nil
}

func isObjectFault(err error) bool {
	return errors.Is(err, object.ErrFormat) || errors.Is(err, object.ErrType) ||
		errors.Is(err, object.ErrNotFound) || errors.Is(err, object.ErrResolution)
}

func sortProblems(p []ObjectProblem) {
	sort.Slice(p, func(i, j int) bool { return p[i].ID.Compare(p[j].ID) < 0 })
}
