package store

import (
	"context"
	"fmt"

	"github.com/TheCacophonyProject/battery-analyzer/pipeline"
	"github.com/jackc/pgx/v5"
)

type ProfileType string

const (
	ProfileRate      ProfileType = "rate"
	ProfileStep      ProfileType = "step"
	ProfileCharge    ProfileType = "charge"
	ProfileDischarge ProfileType = "discharge"
	ProfileContinue  ProfileType = "continue"
	ProfileDCIR      ProfileType = "dcir"
)

type Profile struct {
	ID           int64
	RunID        int64
	Type         ProfileType
	Cycle        int
	Cutoff       float64
	InitialRate  float64
	SmoothWindow int
	Points       int
	SOCMin       float64
	SOCMax       float64
}

// SaveProfile stores a profile and replaces its time series.
func (s *Store) SaveProfile(ctx context.Context, p Profile, points []pipeline.ProfilePoint) (int64, error) {
	if p.Type == "" {
		p.Type = ProfileRate
	}
	var id int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO profile_data (test_run_id, profile_type, cycle_number, cutoff, inirate,
				smoothdegree, data_points, soc_min, soc_max)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (test_run_id, profile_type, cycle_number) DO UPDATE SET
				cutoff = EXCLUDED.cutoff,
				inirate = EXCLUDED.inirate,
				smoothdegree = EXCLUDED.smoothdegree,
				data_points = EXCLUDED.data_points,
				soc_min = EXCLUDED.soc_min,
				soc_max = EXCLUDED.soc_max
			RETURNING id`,
			p.RunID, string(p.Type), p.Cycle, p.Cutoff, p.InitialRate, p.SmoothWindow,
			len(points), p.SOCMin, p.SOCMax,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM profile_timeseries WHERE profile_id = $1`, id); err != nil {
			return fmt.Errorf("failed to clear profile %d: %w", id, err)
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"profile_timeseries"},
			[]string{"profile_id", "time_min", "soc", "voltage", "crate", "temperature", "dqdv", "dvdq"},
			pgx.CopyFromSlice(len(points), func(i int) ([]any, error) {
				pt := points[i]
				return []any{id, pt.TimeMin, pt.SOC, pt.Voltage, pt.CRate,
					nullable(pt.Temperature), nullable(pt.DQDV), nullable(pt.DVDQ)}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to copy profile %d points: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Debugf("saved profile %d with %d points", id, len(points))
	return id, nil
}

// ProfileFor finds the stored profile of a run, type and cycle.
func (s *Store) ProfileFor(ctx context.Context, runID int64, typ ProfileType, cycle int) (Profile, error) {
	p := Profile{RunID: runID, Type: typ, Cycle: cycle}
	err := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(cutoff, 0), COALESCE(inirate, 0), COALESCE(smoothdegree, 0),
			COALESCE(data_points, 0), COALESCE(soc_min, 0), COALESCE(soc_max, 0)
		FROM profile_data WHERE test_run_id = $1 AND profile_type = $2 AND cycle_number = $3`,
		runID, string(typ), cycle,
	).Scan(&p.ID, &p.Cutoff, &p.InitialRate, &p.SmoothWindow, &p.Points, &p.SOCMin, &p.SOCMax)
	if err != nil {
		return Profile{}, notFound(err, fmt.Sprintf("%s profile of cycle %d", typ, cycle))
	}
	return p, nil
}

// ProfilePoints returns the time series of a profile in time order.
func (s *Store) ProfilePoints(ctx context.Context, profileID int64) ([]pipeline.ProfilePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT time_min, soc, voltage, crate, temperature, dqdv, dvdq
		FROM profile_timeseries WHERE profile_id = $1 ORDER BY time_min`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profile points: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (pipeline.ProfilePoint, error) {
		var p pipeline.ProfilePoint
		var temp, dqdv, dvdq *float64
		err := row.Scan(&p.TimeMin, &p.SOC, &p.Voltage, &p.CRate, &temp, &dqdv, &dvdq)
		p.Temperature, p.DQDV, p.DVDQ = fromNullable(temp), fromNullable(dqdv), fromNullable(dvdq)
		return p, err
	})
}
