package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheCacophonyProject/battery-analyzer/capacity"
	"github.com/TheCacophonyProject/battery-analyzer/cycles"
	"github.com/TheCacophonyProject/battery-analyzer/internal/logutil"
	"github.com/TheCacophonyProject/battery-analyzer/internal/metrics"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/google/uuid"
)

// CycleConfig selects the log and the cycler settings for a cycle analysis.
type CycleConfig struct {
	Source rawlog.Source
	// RunID is searched for a capacity token, defaults to the source location.
	RunID          string
	Vendor         rawlog.Vendor
	Capacity       float64 // mAh, 0 to estimate
	InitialRate    float64 // C rate of the first cycle
	DCIR           bool
	DCIRContinuous bool
	StartCycle     int // 0 for no lower bound
	EndCycle       int // 0 for no upper bound
	Logger         *logging.Logger
}

func (c CycleConfig) Validate() error {
	if err := validateCommon(c.Source, c.Vendor, c.Capacity, c.InitialRate); err != nil {
		return err
	}
	if c.StartCycle < 0 || c.EndCycle < 0 {
		return fmt.Errorf("%w: negative cycle bound", ErrInvalidConfig)
	}
	if c.EndCycle > 0 && c.StartCycle > c.EndCycle {
		return fmt.Errorf("%w: start cycle %d is after end cycle %d", ErrInvalidConfig, c.StartCycle, c.EndCycle)
	}
	return nil
}

type CycleResult struct {
	Capacity float64         `json:"capacity_mah" yaml:"capacity_mah"`
	Metrics  []cycles.Metric `json:"cycles" yaml:"cycles"`
	Summary  cycles.Summary  `json:"summary" yaml:"summary"`
	Reason   string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	Metadata Metadata        `json:"metadata" yaml:"metadata"`
}

// Empty reports whether the run produced no cycles.
func (r CycleResult) Empty() bool {
	return len(r.Metrics) == 0
}

type cycleState struct {
	cfg      CycleConfig
	log      *logging.Logger
	capacity float64
	schema   string
	skipped  int
	rows     []rawlog.Row
	merged   []cycles.MergedRow
	metrics  []cycles.Metric
}

var cycleStages = []stage[cycleState]{
	{"capacity", func(ctx context.Context, s *cycleState) (string, error) {
		s.capacity = capacity.Estimate(ctx, s.cfg.Source, s.cfg.RunID, s.cfg.Capacity, s.cfg.InitialRate, s.log)
		return "", nil
	}},
	{"load", func(ctx context.Context, s *cycleState) (string, error) {
		table, err := rawlog.LoadCycleSummary(ctx, s.cfg.Source, s.log)
		if errors.Is(err, rawlog.ErrUnknownSchema) {
			s.log.Warn(err)
			return ReasonNoData, nil
		}
		if err != nil {
			return "", err
		}
		metrics.RecordSkipped(rawlog.SummaryFile, table.Skipped)
		s.schema, s.skipped, s.rows = table.Schema, table.Skipped, table.Rows
		if len(s.rows) == 0 {
			return ReasonNoData, nil
		}
		return "", nil
	}},
	{"process", func(ctx context.Context, s *cycleState) (string, error) {
		s.merged = cycles.Process(s.rows)
		return "", nil
	}},
	{"metrics", func(ctx context.Context, s *cycleState) (string, error) {
		s.metrics = cycles.Compute(s.merged, s.capacity)
		if !s.cfg.DCIR {
			return "", nil
		}
		dcir, err := cycles.DCIR(ctx, s.merged, s.capacity, detailLoader(s.cfg.Source, s.log), s.cfg.DCIRContinuous)
		if err != nil {
			return "", err
		}
		s.metrics = cycles.Join(s.metrics, dcir)
		return "", nil
	}},
	{"select", func(ctx context.Context, s *cycleState) (string, error) {
		s.metrics = cycles.Select(s.metrics, s.cfg.StartCycle, s.cfg.EndCycle)
		return "", nil
	}},
	{"format", func(ctx context.Context, s *cycleState) (string, error) {
		s.metrics = cycles.Finalize(s.metrics)
		if len(s.metrics) == 0 {
			return ReasonNoCycles, nil
		}
		return "", nil
	}},
}

// Cycle extracts per-cycle metrics from the summary log of one channel.
// A run without usable data gives an empty result with a reason and a nil
// error.
func Cycle(ctx context.Context, cfg CycleConfig) (CycleResult, error) {
	if cfg.Vendor == "" {
		cfg.Vendor = rawlog.Toyo
	}
	if err := cfg.Validate(); err != nil {
		return CycleResult{}, err
	}
	if cfg.RunID == "" {
		cfg.RunID = cfg.Source.Location()
	}
	log := logutil.OrDiscard(cfg.Logger)
	s := &cycleState{cfg: cfg, log: log}

	reason, err := runStages(ctx, "cycle", s, cycleStages, log)
	recordOutcome("cycle", reason, err)
	if err != nil {
		return CycleResult{}, err
	}

	res := CycleResult{
		Capacity: s.capacity,
		Reason:   reason,
		Metadata: Metadata{
			AnalysisID:     uuid.New(),
			Vendor:         cfg.Vendor,
			Schema:         s.schema,
			Location:       cfg.Source.Location(),
			Capacity:       s.capacity,
			InitialRate:    cfg.InitialRate,
			StartCycle:     cfg.StartCycle,
			EndCycle:       cfg.EndCycle,
			DCIR:           cfg.DCIR,
			DCIRContinuous: cfg.DCIRContinuous,
			SkippedRows:    s.skipped,
		},
	}
	if reason == "" {
		res.Metrics = s.metrics
		res.Summary = cycles.Summarize(s.metrics)
		metrics.CyclesAnalyzed.Add(float64(len(s.metrics)))
	}
	return res, nil
}
