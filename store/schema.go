package store

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS test_projects (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL UNIQUE,
		description TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS test_runs (
		id                BIGSERIAL PRIMARY KEY,
		run_uuid          UUID NOT NULL UNIQUE,
		project_id        BIGINT NOT NULL REFERENCES test_projects(id) ON DELETE CASCADE,
		raw_file_path     VARCHAR(500) NOT NULL,
		channel_name      VARCHAR(100) NOT NULL DEFAULT '',
		cycler_type       VARCHAR(10) NOT NULL CHECK (cycler_type IN ('TOYO', 'PNE')),
		capacity_mah      DOUBLE PRECISION,
		cycle_range_start INTEGER,
		cycle_range_end   INTEGER,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_test_run_path_channel UNIQUE (raw_file_path, channel_name)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_test_runs_project ON test_runs (project_id)`,
	`CREATE TABLE IF NOT EXISTS cycle_data (
		id                  BIGSERIAL PRIMARY KEY,
		test_run_id         BIGINT NOT NULL REFERENCES test_runs(id) ON DELETE CASCADE,
		cycle_number        INTEGER NOT NULL,
		original_cycle      INTEGER,
		chg_capacity        DOUBLE PRECISION,
		dchg_capacity       DOUBLE PRECISION,
		dchg_energy         DOUBLE PRECISION,
		efficiency_chg_dchg DOUBLE PRECISION,
		efficiency_dchg_chg DOUBLE PRECISION,
		rest_end_voltage    DOUBLE PRECISION,
		avg_voltage         DOUBLE PRECISION,
		dcir                DOUBLE PRECISION,
		temperature         DOUBLE PRECISION,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_cycle_data_run_cycle UNIQUE (test_run_id, cycle_number)
	)`,
	`CREATE TABLE IF NOT EXISTS profile_data (
		id           BIGSERIAL PRIMARY KEY,
		test_run_id  BIGINT NOT NULL REFERENCES test_runs(id) ON DELETE CASCADE,
		profile_type VARCHAR(20) NOT NULL
			CHECK (profile_type IN ('rate', 'step', 'charge', 'discharge', 'continue', 'dcir')),
		cycle_number INTEGER NOT NULL,
		cutoff       DOUBLE PRECISION,
		inirate      DOUBLE PRECISION,
		smoothdegree INTEGER,
		data_points  INTEGER,
		soc_min      DOUBLE PRECISION,
		soc_max      DOUBLE PRECISION,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_profile_data_run_type_cycle UNIQUE (test_run_id, profile_type, cycle_number)
	)`,
	`CREATE TABLE IF NOT EXISTS profile_timeseries (
		id          BIGSERIAL PRIMARY KEY,
		profile_id  BIGINT NOT NULL REFERENCES profile_data(id) ON DELETE CASCADE,
		time_min    DOUBLE PRECISION NOT NULL,
		soc         DOUBLE PRECISION NOT NULL,
		voltage     DOUBLE PRECISION NOT NULL,
		crate       DOUBLE PRECISION NOT NULL,
		temperature DOUBLE PRECISION,
		dqdv        DOUBLE PRECISION,
		dvdq        DOUBLE PRECISION,
		CONSTRAINT uq_profile_ts_profile_time UNIQUE (profile_id, time_min)
	)`,
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for i, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	s.log.Debugf("applied %d migrations", len(migrations))
	return nil
}
