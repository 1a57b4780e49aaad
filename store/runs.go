package store

import (
	"context"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Project struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// EnsureProject returns the project called name, creating it if needed.
func (s *Store) EnsureProject(ctx context.Context, name, description string) (Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		INSERT INTO test_projects (name, description)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (name) DO UPDATE SET updated_at = now()
		RETURNING id, name, COALESCE(description, ''), created_at`,
		name, description,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("failed to ensure project %s: %w", name, err)
	}
	return p, nil
}

func (s *Store) ProjectByName(ctx context.Context, name string) (Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM test_projects WHERE name = $1`, name,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		return Project{}, notFound(err, "project "+name)
	}
	return p, nil
}

// Run is one analyzed channel folder.
type Run struct {
	ID         int64
	UUID       uuid.UUID
	ProjectID  int64
	Path       string
	Channel    string
	Vendor     rawlog.Vendor
	Capacity   float64
	FirstCycle int
	LastCycle  int
	CreatedAt  time.Time
}

const runColumns = `id, run_uuid, project_id, raw_file_path, channel_name, cycler_type,
	COALESCE(capacity_mah, 0), COALESCE(cycle_range_start, 0), COALESCE(cycle_range_end, 0), created_at`

func scanRun(row pgx.Row) (Run, error) {
	var r Run
	var vendor string
	err := row.Scan(&r.ID, &r.UUID, &r.ProjectID, &r.Path, &r.Channel, &vendor,
		&r.Capacity, &r.FirstCycle, &r.LastCycle, &r.CreatedAt)
	r.Vendor = rawlog.Vendor(vendor)
	return r, err
}

// SaveRun inserts a run, or updates the capacity and vendor of the run
// already stored for the same path and channel. The stored run is returned.
func (s *Store) SaveRun(ctx context.Context, r Run) (Run, error) {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	saved, err := scanRun(s.pool.QueryRow(ctx, `
		INSERT INTO test_runs (run_uuid, project_id, raw_file_path, channel_name, cycler_type, capacity_mah)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (raw_file_path, channel_name) DO UPDATE
			SET capacity_mah = EXCLUDED.capacity_mah, cycler_type = EXCLUDED.cycler_type
		RETURNING `+runColumns,
		r.UUID, r.ProjectID, r.Path, r.Channel, string(r.Vendor), r.Capacity,
	))
	if err != nil {
		return Run{}, fmt.Errorf("failed to save run %s: %w", r.Path, err)
	}
	return saved, nil
}

func (s *Store) RunByPath(ctx context.Context, path, channel string) (Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM test_runs WHERE raw_file_path = $1 AND channel_name = $2`,
		path, channel))
	if err != nil {
		return Run{}, notFound(err, "run "+path)
	}
	return r, nil
}

func (s *Store) RunsByProject(ctx context.Context, projectID int64) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM test_runs WHERE project_id = $1 ORDER BY raw_file_path, channel_name`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run together with its cycles and profiles.
func (s *Store) DeleteRun(ctx context.Context, runID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM test_runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %d: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	return nil
}
