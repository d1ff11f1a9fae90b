package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type optionRow struct {
	ProjectID int64  `db:"project_id"`
	Key       string `db:"opt_key"`
	Value     string `db:"opt_value"`
	UpdatedAt string `db:"updated_at"`
}

// Option returns the value stored under key for projectID. The boolean is
// false when the option has never been set.
func (s *Store) Option(ctx context.Context, projectID int64, key string) (string, bool, error) {
	var row struct {
		Value string `db:"opt_value"`
	}
	err := s.db.Get(ctx, &row,
		`SELECT opt_value FROM project_options WHERE project_id = ? AND opt_key = ?`, projectID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading option %s: %w", key, err)
	}
	return row.Value, true, nil
}

// SetOption stores value under key for projectID, replacing any previous value.
func (s *Store) SetOption(ctx context.Context, projectID int64, key, value string) error {
	rec := optionRow{ProjectID: projectID, Key: key, Value: value, UpdatedAt: now()}
	if err := s.db.Upsert(ctx, "project_options", rec, []string{"project_id", "opt_key"}); err != nil {
		return fmt.Errorf("saving option %s: %w", key, err)
	}
	return nil
}

// DeleteOption removes key for projectID. Deleting a missing option is not an error.
func (s *Store) DeleteOption(ctx context.Context, projectID int64, key string) error {
	return s.db.Exec(ctx, `DELETE FROM project_options WHERE project_id = ? AND opt_key = ?`, projectID, key)
}

// Options returns every option set for projectID.
func (s *Store) Options(ctx context.Context, projectID int64) (map[string]string, error) {
	var rows []optionRow
	if err := s.db.Select(ctx, &rows,
		`SELECT project_id, opt_key, opt_value, updated_at FROM project_options WHERE project_id = ?`, projectID); err != nil {
		return nil, fmt.Errorf("listing options: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}
