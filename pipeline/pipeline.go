/*
battery-analyzer - cycle and profile analysis of battery test logs.
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package pipeline runs the cycle analysis and profile extraction of a
// single test channel as a fixed sequence of named stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TheCacophonyProject/battery-analyzer/internal/metrics"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Reasons given with an empty result.
const (
	ReasonNoData        = "no cycle data"
	ReasonNoCycles      = "no cycles with discharge capacity"
	ReasonNoProfileData = "no profile data"
	ReasonNoChargeData  = "no charge data"
	ReasonBelowCutoff   = "no samples above cutoff current"
	ReasonNoCapacity    = "reference capacity unavailable"
)

// Metadata echoes what a result was computed from.
type Metadata struct {
	AnalysisID     uuid.UUID     `json:"analysis_id" yaml:"analysis_id"`
	Vendor         rawlog.Vendor `json:"vendor" yaml:"vendor"`
	Schema         string        `json:"schema,omitempty" yaml:"schema,omitempty"`
	Location       string        `json:"location" yaml:"location"`
	Capacity       float64       `json:"capacity_mah" yaml:"capacity_mah"`
	InitialRate    float64       `json:"initial_rate" yaml:"initial_rate"`
	Cutoff         float64       `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
	Cycle          int           `json:"cycle,omitempty" yaml:"cycle,omitempty"`
	StartCycle     int           `json:"start_cycle,omitempty" yaml:"start_cycle,omitempty"`
	EndCycle       int           `json:"end_cycle,omitempty" yaml:"end_cycle,omitempty"`
	DCIR           bool          `json:"dcir" yaml:"dcir"`
	DCIRContinuous bool          `json:"dcir_continuous,omitempty" yaml:"dcir_continuous,omitempty"`
	SmoothWindow   int           `json:"smooth_window,omitempty" yaml:"smooth_window,omitempty"`
	SkippedRows    int           `json:"skipped_rows" yaml:"skipped_rows"`
}

type stage[S any] struct {
	name string
	run  func(ctx context.Context, s *S) (reason string, err error)
}

// runStages runs stages in order until one fails or gives a reason for
// stopping early.
func runStages[S any](ctx context.Context, pipeline string, s *S, stages []stage[S], log *logging.Logger) (string, error) {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		start := time.Now()
		reason, err := st.run(ctx, s)
		metrics.RecordStage(pipeline, st.name, time.Since(start))
		if err != nil {
			return "", fmt.Errorf("%s %s stage: %w", pipeline, st.name, err)
		}
		if reason != "" {
			log.Infof("%s pipeline stopped at %s: %s", pipeline, st.name, reason)
			return reason, nil
		}
		log.Debugf("%s pipeline finished %s", pipeline, st.name)
	}
	return "", nil
}

func recordOutcome(pipeline, reason string, err error) {
	switch {
	case err != nil:
		metrics.RecordRun(pipeline, metrics.StatusError)
	case reason != "":
		metrics.RecordRun(pipeline, metrics.StatusEmpty)
	default:
		metrics.RecordRun(pipeline, metrics.StatusOK)
	}
}

func validateCommon(src rawlog.Source, vendor rawlog.Vendor, capacity, initialRate float64) error {
	if src == nil {
		return fmt.Errorf("%w: no raw log source", ErrInvalidConfig)
	}
	if vendor != "" && vendor != rawlog.Toyo {
		return fmt.Errorf("%w: vendor %s cannot be analyzed", ErrInvalidConfig, vendor)
	}
	if capacity < 0 {
		return fmt.Errorf("%w: negative capacity %v", ErrInvalidConfig, capacity)
	}
	if initialRate <= 0 {
		return fmt.Errorf("%w: initial rate must be positive, got %v", ErrInvalidConfig, initialRate)
	}
	return nil
}

// detailLoader reads detail logs for the cycle pipeline. Logs in an
// unknown layout are treated as missing.
func detailLoader(src rawlog.Source, log *logging.Logger) func(ctx context.Context, cycle int) ([]rawlog.DetailRow, error) {
	return func(ctx context.Context, cycle int) ([]rawlog.DetailRow, error) {
		table, err := rawlog.LoadCycleDetail(ctx, src, cycle, log)
		if errors.Is(err, rawlog.ErrUnknownSchema) {
			log.Warn(err)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		metrics.RecordSkipped(rawlog.DetailFile(cycle), table.Skipped)
		return table.Rows, nil
	}
}

// RunAll runs fn over every input with at most limit running at once.
// Results keep the order of inputs. The first error cancels the rest.
func RunAll[C, R any](ctx context.Context, inputs []C, limit int, fn func(context.Context, C) (R, error)) ([]R, error) {
	results := make([]R, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, in := range inputs {
		g.Go(func() error {
			r, err := fn(ctx, in)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
