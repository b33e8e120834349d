package targets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tomdash/pkg/models"
)

var ErrInvalidTarget = errors.New("invalid target")

type Repo struct {
	DB *sql.DB
}

type ListQuery struct {
	Q      string // substring match on name
	Type   models.TargetType
	Limit  int
	Offset int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Validate normalizes t and checks sidereal coordinates.
func Validate(t *models.Target) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidTarget)
	}
	t.Type = models.ParseTargetType(string(t.Type))
	switch t.Type {
	case models.TargetSidereal:
		if t.RA < 0 || t.RA >= 360 {
			return fmt.Errorf("%w: ra must be in [0, 360)", ErrInvalidTarget)
		}
		if t.Dec < -90 || t.Dec > 90 {
			return fmt.Errorf("%w: dec must be in [-90, 90]", ErrInvalidTarget)
		}
	case models.TargetNonSidereal:
	default:
		return fmt.Errorf("%w: type must be SIDEREAL or NON_SIDEREAL", ErrInvalidTarget)
	}
	return nil
}

// Create validates and inserts t, returning its new id.
func (r *Repo) Create(ctx context.Context, t models.Target) (int64, error) {
	if err := Validate(&t); err != nil {
		return 0, err
	}

	var ra, dec sql.NullFloat64
	if t.Type == models.TargetSidereal {
		ra = sql.NullFloat64{Float64: t.RA, Valid: true}
		dec = sql.NullFloat64{Float64: t.Dec, Valid: true}
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO targets (name, type, ra, dec)
		VALUES (?, ?, ?, ?)
	`, t.Name, string(t.Type), ra, dec)
	if err != nil {
		return 0, fmt.Errorf("create target: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create target id: %w", err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTarget(s scanner) (models.Target, error) {
	var (
		t       models.Target
		typ     string
		ra, dec sql.NullFloat64
	)
	if err := s.Scan(&t.ID, &t.Name, &typ, &ra, &dec, &t.CreatedAt); err != nil {
		return t, err
	}
	t.Type = models.TargetType(typ)
	t.RA = ra.Float64
	t.Dec = dec.Float64
	return t, nil
}

const targetColumns = `id, name, type, ra, dec, created_at`

func (r *Repo) GetByID(ctx context.Context, id int64) (*models.Target, error) {
	t, err := scanTarget(r.DB.QueryRowContext(ctx, `
		SELECT `+targetColumns+`
		FROM targets
		WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}
	return &t, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Target, error) {
	var (
		where []string
		args  []any
	)
	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(q.Type))
	}

	sqlStr := `SELECT ` + targetColumns + ` FROM targets`
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	sqlStr += " ORDER BY id ASC"
	if q.Limit > 0 {
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		sqlStr += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, offset)
	}

	return r.query(ctx, sqlStr, args...)
}

// ListByIDs returns the targets among ids, ordered by id. Unknown ids are
// skipped.
func (r *Repo) ListByIDs(ctx context.Context, ids []int64) ([]models.Target, error) {
	if len(ids) == 0 {
		return []models.Target{}, nil
	}
	list, err := idList(ids)
	if err != nil {
		return nil, err
	}
	sqlStr := `SELECT ` + targetColumns + ` FROM targets WHERE id IN (SELECT value FROM json_each(?)) ORDER BY id ASC`
	return r.query(ctx, sqlStr, list)
}

func (r *Repo) query(ctx context.Context, sqlStr string, args ...any) ([]models.Target, error) {
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Target, 0)
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Locations returns (ra, dec, name) for the targets of type typ whose id is
// in ids, ordered by id.
func (r *Repo) Locations(ctx context.Context, ids []int64, typ models.TargetType) ([]models.Location, error) {
	out := make([]models.Location, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	list, err := idList(ids)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT ra, dec, name
		FROM targets
		WHERE id IN (SELECT value FROM json_each(?)) AND type = ?
		ORDER BY id ASC
	`, list, string(typ))
	if err != nil {
		return nil, fmt.Errorf("locations query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			loc     models.Location
			ra, dec sql.NullFloat64
		)
		if err := rows.Scan(&ra, &dec, &loc.Name); err != nil {
			return nil, fmt.Errorf("locations scan: %w", err)
		}
		loc.RA = ra.Float64
		loc.Dec = dec.Float64
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// idList binds any number of ids as a single JSON array parameter, so id
// sets are not capped by sqlite's host parameter limit.
func idList(ids []int64) (string, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode ids: %w", err)
	}
	return string(b), nil
}
