// Package permissions answers which targets a user may view. A user can
// view a target when they are a superuser, when the target was granted to
// them directly, or when it was granted to one of their groups.
package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tomdash/internal/auth"
)

var ErrGroupNotFound = errors.New("group not found")

// IDSet is a set of target ids.
type IDSet map[int64]struct{}

func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// ViewableTargets returns the ids of every target u may view.
func (r *Repo) ViewableTargets(ctx context.Context, u *auth.User) (IDSet, error) {
	if u == nil {
		return IDSet{}, nil
	}

	var (
		rows *sql.Rows
		err  error
	)
	if u.IsSuperuser {
		rows, err = r.DB.QueryContext(ctx, `SELECT id FROM targets`)
	} else {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT target_id FROM target_user_perms WHERE user_id = ?
			UNION
			SELECT tgp.target_id
			FROM target_group_perms tgp
			JOIN group_members gm ON gm.group_id = tgp.group_id
			WHERE gm.user_id = ?
		`, u.ID, u.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("viewable targets: %w", err)
	}
	defer rows.Close()

	out := IDSet{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("viewable targets scan: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) CanView(ctx context.Context, u *auth.User, targetID int64) (bool, error) {
	if u == nil {
		return false, nil
	}
	if u.IsSuperuser {
		return true, nil
	}

	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT 1 FROM target_user_perms WHERE user_id = ? AND target_id = ?
			UNION ALL
			SELECT 1
			FROM target_group_perms tgp
			JOIN group_members gm ON gm.group_id = tgp.group_id
			WHERE gm.user_id = ? AND tgp.target_id = ?
		)
	`, u.ID, targetID, u.ID, targetID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("can view: %w", err)
	}
	return n > 0, nil
}

// GrantUser is idempotent.
func (r *Repo) GrantUser(ctx context.Context, targetID int64, userID string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO target_user_perms (target_id, user_id)
		VALUES (?, ?)
		ON CONFLICT(target_id, user_id) DO NOTHING
	`, targetID, userID)
	if err != nil {
		return fmt.Errorf("grant user: %w", err)
	}
	return nil
}

func (r *Repo) GrantGroup(ctx context.Context, targetID int64, groupID string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO target_group_perms (target_id, group_id)
		VALUES (?, ?)
		ON CONFLICT(target_id, group_id) DO NOTHING
	`, targetID, groupID)
	if err != nil {
		return fmt.Errorf("grant group: %w", err)
	}
	return nil
}

func (r *Repo) CreateGroup(ctx context.Context, name string) (Group, error) {
	g := Group{ID: uuid.NewString(), Name: strings.TrimSpace(name)}
	if g.Name == "" {
		return Group{}, fmt.Errorf("create group: name required")
	}
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_groups (id, name) VALUES (?, ?)
	`, g.ID, g.Name); err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

func (r *Repo) GroupByName(ctx context.Context, name string) (Group, error) {
	var g Group
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name FROM user_groups WHERE name = ?
	`, strings.TrimSpace(name)).Scan(&g.ID, &g.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Group{}, ErrGroupNotFound
		}
		return Group{}, fmt.Errorf("group by name: %w", err)
	}
	return g, nil
}

func (r *Repo) AddMember(ctx context.Context, groupID, userID string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id)
		VALUES (?, ?)
		ON CONFLICT(group_id, user_id) DO NOTHING
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}
