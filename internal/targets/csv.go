package targets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"tomdash/pkg/models"
)

var exportHeader = []string{"id", "name", "type", "ra", "dec", "created_at"}

// ImportCSV creates one target per row. The header must name at least
// name and type; ra and dec are read when present. It returns the new ids.
func (r *Repo) ImportCSV(ctx context.Context, in io.Reader) ([]int64, error) {
	cr := csv.NewReader(in)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "type"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("header missing %q column", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	number := func(rec []string, name string) (float64, error) {
		s := field(rec, name)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}

	var ids []int64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ids, fmt.Errorf("line %d: %w", line, err)
		}

		t := models.Target{Name: field(rec, "name"), Type: models.TargetType(field(rec, "type"))}
		if t.RA, err = number(rec, "ra"); err != nil {
			return ids, fmt.Errorf("line %d: ra: %w", line, err)
		}
		if t.Dec, err = number(rec, "dec"); err != nil {
			return ids, fmt.Errorf("line %d: dec: %w", line, err)
		}

		id, err := r.Create(ctx, t)
		if err != nil {
			return ids, fmt.Errorf("line %d: %w", line, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ExportCSV writes every target, ordered by id.
func (r *Repo) ExportCSV(ctx context.Context, out io.Writer) (int, error) {
	all, err := r.List(ctx, ListQuery{})
	if err != nil {
		return 0, err
	}

	w := csv.NewWriter(out)
	if err := w.Write(exportHeader); err != nil {
		return 0, err
	}
	for _, t := range all {
		ra, dec := "", ""
		if t.Type == models.TargetSidereal {
			ra = strconv.FormatFloat(t.RA, 'f', -1, 64)
			dec = strconv.FormatFloat(t.Dec, 'f', -1, 64)
		}
		if err := w.Write([]string{
			strconv.FormatInt(t.ID, 10),
			t.Name,
			string(t.Type),
			ra,
			dec,
			t.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return 0, err
		}
	}
	w.Flush()
	return len(all), w.Error()
}
