package store

import (
	"context"
	"fmt"

	"github.com/TheCacophonyProject/battery-analyzer/cycles"
	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"github.com/jackc/pgx/v5"
)

// Stored rows carry capacities in mAh and efficiencies in percent. The run's
// capacity_mah converts between those and the normalized metrics; without
// it the capacity columns are left NULL.
func toStored(m cycles.Metric, capacity float64) cycles.Metric {
	m.Charge, m.Discharge = scale(m.Charge, capacity), scale(m.Discharge, capacity)
	m.Efficiency, m.RetentionEfficiency = scale(m.Efficiency, 100), scale(m.RetentionEfficiency, 100)
	return m
}

func fromStored(m cycles.Metric, capacity float64) cycles.Metric {
	m.Charge, m.Discharge = unscale(m.Charge, capacity), unscale(m.Discharge, capacity)
	m.Efficiency, m.RetentionEfficiency = unscale(m.Efficiency, 100), unscale(m.RetentionEfficiency, 100)
	return m
}

func scale(v numeric.Value, k float64) numeric.Value {
	if !v.Valid || k <= 0 {
		return numeric.None
	}
	return numeric.Some(v.V * k)
}

func unscale(v numeric.Value, k float64) numeric.Value {
	if k <= 0 {
		return numeric.None
	}
	return numeric.Div(v, numeric.Some(k))
}

// SaveCycleMetrics upserts the metrics of a run and records the cycle
// range they cover, all in one transaction.
func (s *Store) SaveCycleMetrics(ctx context.Context, runID int64, metrics []cycles.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var capacity float64
		err := tx.QueryRow(ctx, `SELECT COALESCE(capacity_mah, 0) FROM test_runs WHERE id = $1`, runID).Scan(&capacity)
		if err != nil {
			return notFound(err, fmt.Sprintf("run %d", runID))
		}
		batch := &pgx.Batch{}
		for _, m := range metrics {
			m = toStored(m, capacity)
			var original *int
			if m.OriginalCycle.Valid {
				o := int(m.OriginalCycle.V)
				original = &o
			}
			batch.Queue(`
				INSERT INTO cycle_data (test_run_id, cycle_number, original_cycle, chg_capacity,
					dchg_capacity, dchg_energy, efficiency_chg_dchg, efficiency_dchg_chg,
					rest_end_voltage, avg_voltage, dcir, temperature)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (test_run_id, cycle_number) DO UPDATE SET
					original_cycle = EXCLUDED.original_cycle,
					chg_capacity = EXCLUDED.chg_capacity,
					dchg_capacity = EXCLUDED.dchg_capacity,
					dchg_energy = EXCLUDED.dchg_energy,
					efficiency_chg_dchg = EXCLUDED.efficiency_chg_dchg,
					efficiency_dchg_chg = EXCLUDED.efficiency_dchg_chg,
					rest_end_voltage = EXCLUDED.rest_end_voltage,
					avg_voltage = EXCLUDED.avg_voltage,
					dcir = EXCLUDED.dcir,
					temperature = EXCLUDED.temperature`,
				runID, m.Cycle, original, nullable(m.Charge), nullable(m.Discharge),
				nullable(m.DischargeEnergy), nullable(m.Efficiency), nullable(m.RetentionEfficiency),
				nullable(m.RestEndVoltage), nullable(m.AverageVoltage), nullable(m.DCIR), nullable(m.Temperature),
			)
		}
		batch.Queue(`
			UPDATE test_runs SET
				cycle_range_start = (SELECT MIN(cycle_number) FROM cycle_data WHERE test_run_id = $1),
				cycle_range_end = (SELECT MAX(cycle_number) FROM cycle_data WHERE test_run_id = $1)
			WHERE id = $1`, runID)
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save cycle metrics for run %d: %w", runID, err)
		}
		s.log.Debugf("saved %d cycles for run %d", len(metrics), runID)
		return nil
	})
}

// CycleMetrics returns the stored metrics of a run in cycle order.
func (s *Store) CycleMetrics(ctx context.Context, runID int64) ([]cycles.Metric, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.cycle_number, c.original_cycle, c.chg_capacity, c.dchg_capacity, c.dchg_energy,
			c.efficiency_chg_dchg, c.efficiency_dchg_chg, c.rest_end_voltage, c.avg_voltage, c.dcir,
			c.temperature, COALESCE(r.capacity_mah, 0)
		FROM cycle_data c JOIN test_runs r ON r.id = c.test_run_id
		WHERE c.test_run_id = $1 ORDER BY c.cycle_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle metrics: %w", err)
	}
	defer rows.Close()

	var out []cycles.Metric
	for rows.Next() {
		var m cycles.Metric
		var original *int
		var chg, dchg, energy, eff, eff2, rest, avg, dcir, temp *float64
		var capacity float64
		if err := rows.Scan(&m.Cycle, &original, &chg, &dchg, &energy, &eff, &eff2, &rest, &avg, &dcir, &temp, &capacity); err != nil {
			return nil, fmt.Errorf("failed to scan cycle metrics: %w", err)
		}
		if original != nil {
			m.OriginalCycle = numeric.Some(float64(*original))
		}
		m.Charge, m.Discharge, m.DischargeEnergy = fromNullable(chg), fromNullable(dchg), fromNullable(energy)
		m.Efficiency, m.RetentionEfficiency = fromNullable(eff), fromNullable(eff2)
		m.RestEndVoltage, m.AverageVoltage = fromNullable(rest), fromNullable(avg)
		m.DCIR, m.Temperature = fromNullable(dcir), fromNullable(temp)
		out = append(out, fromStored(m, capacity))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle metrics: %w", err)
	}
	return out, nil
}

// TrendPoint is the discharge capacity of one cycle of a run, in mAh, with
// its efficiency in percent.
type TrendPoint struct {
	RunID      int64
	Cycle      int
	Discharge  numeric.Value
	Efficiency numeric.Value
}

// CapacityTrend returns the discharge capacity of every run of a project,
// ordered by run and cycle.
func (s *Store) CapacityTrend(ctx context.Context, projectID int64) ([]TrendPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.test_run_id, c.cycle_number, c.dchg_capacity, c.efficiency_chg_dchg
		FROM cycle_data c JOIN test_runs r ON r.id = c.test_run_id
		WHERE r.project_id = $1
		ORDER BY c.test_run_id, c.cycle_number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query capacity trend: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TrendPoint, error) {
		var p TrendPoint
		var dchg, eff *float64
		err := row.Scan(&p.RunID, &p.Cycle, &dchg, &eff)
		p.Discharge, p.Efficiency = fromNullable(dchg), fromNullable(eff)
		return p, err
	})
}
