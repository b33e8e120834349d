package targets

import (
	"context"
	"slices"

	"tomdash/internal/auth"
	"tomdash/internal/permissions"
	"tomdash/pkg/models"
)

// Viewer reports the target ids a user may view.
type Viewer interface {
	ViewableTargets(ctx context.Context, u *auth.User) (permissions.IDSet, error)
}

// SortedIDs returns the members of s in ascending order.
func SortedIDs(s permissions.IDSet) []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ListViewable returns the targets u may view, optionally restricted to one
// type, ordered by id.
func (r *Repo) ListViewable(ctx context.Context, v Viewer, u *auth.User, typ models.TargetType) ([]models.Target, error) {
	set, err := v.ViewableTargets(ctx, u)
	if err != nil {
		return nil, err
	}
	all, err := r.ListByIDs(ctx, SortedIDs(set))
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return all, nil
	}
	out := all[:0]
	for _, t := range all {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out, nil
}
