package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheCacophonyProject/battery-analyzer/capacity"
	"github.com/TheCacophonyProject/battery-analyzer/internal/logutil"
	"github.com/TheCacophonyProject/battery-analyzer/internal/metrics"
	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/go-utils/logging"
	"github.com/google/uuid"
)

type ProfileConfig struct {
	Source       rawlog.Source
	RunID        string
	Vendor       rawlog.Vendor
	Capacity     float64
	InitialRate  float64
	Cycle        int
	Cutoff       float64 // C rate below which charge samples are dropped, 0 keeps all
	Differential bool
	SmoothWindow int // 0 picks the window from the sample count
	Logger       *logging.Logger
}

func (c ProfileConfig) Validate() error {
	if err := validateCommon(c.Source, c.Vendor, c.Capacity, c.InitialRate); err != nil {
		return err
	}
	if c.Cycle < 1 {
		return fmt.Errorf("%w: profile cycle must be at least 1, got %d", ErrInvalidConfig, c.Cycle)
	}
	if c.Cutoff < 0 {
		return fmt.Errorf("%w: negative cutoff %v", ErrInvalidConfig, c.Cutoff)
	}
	if c.SmoothWindow < 0 {
		return fmt.Errorf("%w: negative smoothing window %d", ErrInvalidConfig, c.SmoothWindow)
	}
	return nil
}

// ProfilePoint is one sample of a normalized charge profile.
type ProfilePoint struct {
	TimeMin     float64       `json:"time_min" yaml:"time_min"`
	SOC         float64       `json:"soc" yaml:"soc"`
	Voltage     float64       `json:"vol" yaml:"vol"`
	CRate       float64       `json:"crate" yaml:"crate"`
	Temperature numeric.Value `json:"temp" yaml:"temp"`
	DQDV        numeric.Value `json:"dqdv" yaml:"dqdv"`
	DVDQ        numeric.Value `json:"dvdq" yaml:"dvdq"`
}

type ProfileResult struct {
	Capacity float64        `json:"capacity_mah" yaml:"capacity_mah"`
	Points   []ProfilePoint `json:"points" yaml:"points"`
	Reason   string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Metadata Metadata       `json:"metadata" yaml:"metadata"`
}

func (r ProfileResult) Empty() bool {
	return len(r.Points) == 0
}

// SOCRange is the lowest and highest SOC of the profile.
func (r ProfileResult) SOCRange() (lo, hi float64) {
	for i, p := range r.Points {
		if i == 0 || p.SOC < lo {
			lo = p.SOC
		}
		if i == 0 || p.SOC > hi {
			hi = p.SOC
		}
	}
	return lo, hi
}

type profileState struct {
	cfg      ProfileConfig
	log      *logging.Logger
	capacity float64
	schema   string
	skipped  int
	samples  []rawlog.DetailRow
	charge   []float64 // mAh
	dqdv     []float64
	dvdq     []float64
	points   []ProfilePoint
}

func profileStages(differential bool) []stage[profileState] {
	stages := []stage[profileState]{
		{"capacity", func(ctx context.Context, s *profileState) (string, error) {
			s.capacity = capacity.Estimate(ctx, s.cfg.Source, s.cfg.RunID, s.cfg.Capacity, s.cfg.InitialRate, s.log)
			return "", nil
		}},
		{"load", func(ctx context.Context, s *profileState) (string, error) {
			table, err := rawlog.LoadCycleDetail(ctx, s.cfg.Source, s.cfg.Cycle, s.log)
			if errors.Is(err, rawlog.ErrUnknownSchema) {
				s.log.Warn(err)
				return ReasonNoProfileData, nil
			}
			if err != nil {
				return "", err
			}
			metrics.RecordSkipped(rawlog.DetailFile(s.cfg.Cycle), table.Skipped)
			s.schema, s.skipped, s.samples = table.Schema, table.Skipped, table.Rows
			if len(s.samples) == 0 {
				return ReasonNoProfileData, nil
			}
			return "", nil
		}},
		{"condition", func(ctx context.Context, s *profileState) (string, error) {
			s.samples = filterSamples(s.samples, func(r rawlog.DetailRow) bool {
				return r.Condition == rawlog.Charge
			})
			if len(s.samples) == 0 {
				return ReasonNoChargeData, nil
			}
			return "", nil
		}},
		{"cutoff", func(ctx context.Context, s *profileState) (string, error) {
			if s.cfg.Cutoff <= 0 {
				return "", nil
			}
			limit := s.cfg.Cutoff * s.capacity
			s.samples = filterSamples(s.samples, func(r rawlog.DetailRow) bool {
				return r.Current >= limit
			})
			if len(s.samples) == 0 {
				return ReasonBelowCutoff, nil
			}
			return "", nil
		}},
		{"integrate", func(ctx context.Context, s *profileState) (string, error) {
			times := make([]float64, len(s.samples))
			currents := make([]float64, len(s.samples))
			for i, r := range s.samples {
				times[i], currents[i] = r.Time, r.Current
			}
			var err error
			s.charge, err = numeric.Integrate(times, currents, 0)
			return "", err
		}},
	}
	if differential {
		stages = append(stages, stage[profileState]{"differential", func(ctx context.Context, s *profileState) (string, error) {
			voltage := make([]float64, len(s.samples))
			for i, r := range s.samples {
				voltage[i] = r.Voltage
			}
			var err error
			s.dqdv, s.dvdq, err = numeric.Differentiate(voltage, s.charge, s.cfg.SmoothWindow)
			return "", err
		}})
	}
	return append(stages,
		stage[profileState]{"normalize", func(ctx context.Context, s *profileState) (string, error) {
			if s.capacity == 0 {
				return ReasonNoCapacity, nil
			}
			s.points = make([]ProfilePoint, len(s.samples))
			for i, r := range s.samples {
				s.points[i] = ProfilePoint{
					TimeMin:     r.Time / 60,
					SOC:         s.charge[i] / s.capacity,
					Voltage:     r.Voltage,
					CRate:       r.Current / s.capacity,
					Temperature: numeric.Some(r.Temperature),
				}
			}
			return "", nil
		}},
		stage[profileState]{"format", func(ctx context.Context, s *profileState) (string, error) {
			if s.dqdv == nil {
				return "", nil
			}
			for i := range s.points {
				s.points[i].DQDV = numeric.Some(s.dqdv[i])
				s.points[i].DVDQ = numeric.Some(s.dvdq[i])
			}
			return "", nil
		}},
	)
}

func filterSamples(rows []rawlog.DetailRow, keep func(rawlog.DetailRow) bool) []rawlog.DetailRow {
	out := make([]rawlog.DetailRow, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Profile extracts the normalized charge profile of a single cycle.
func Profile(ctx context.Context, cfg ProfileConfig) (ProfileResult, error) {
	if cfg.Vendor == "" {
		cfg.Vendor = rawlog.Toyo
	}
	if err := cfg.Validate(); err != nil {
		return ProfileResult{}, err
	}
	if cfg.RunID == "" {
		cfg.RunID = cfg.Source.Location()
	}
	log := logutil.OrDiscard(cfg.Logger)
	s := &profileState{cfg: cfg, log: log}

	reason, err := runStages(ctx, "profile", s, profileStages(cfg.Differential), log)
	recordOutcome("profile", reason, err)
	if err != nil {
		return ProfileResult{}, err
	}

	res := ProfileResult{
		Capacity: s.capacity,
		Reason:   reason,
		Metadata: Metadata{
			AnalysisID:   uuid.New(),
			Vendor:       cfg.Vendor,
			Schema:       s.schema,
			Location:     cfg.Source.Location(),
			Capacity:     s.capacity,
			InitialRate:  cfg.InitialRate,
			Cutoff:       cfg.Cutoff,
			Cycle:        cfg.Cycle,
			SmoothWindow: cfg.SmoothWindow,
			SkippedRows:  s.skipped,
		},
	}
	if reason == "" {
		res.Points = s.points
		metrics.ProfilePoints.Add(float64(len(s.points)))
	}
	return res, nil
}
