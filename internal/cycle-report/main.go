/*
cycle-report - per-cycle capacity, efficiency and DCIR of battery test runs.
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

package cyclereport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/TheCacophonyProject/battery-analyzer/chart"
	"github.com/TheCacophonyProject/battery-analyzer/detect"
	"github.com/TheCacophonyProject/battery-analyzer/export"
	"github.com/TheCacophonyProject/battery-analyzer/internal/config"
	"github.com/TheCacophonyProject/battery-analyzer/internal/metrics"
	"github.com/TheCacophonyProject/battery-analyzer/internal/report"
	"github.com/TheCacophonyProject/battery-analyzer/pipeline"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/go-utils/logging"
	arg "github.com/alexflint/go-arg"
)

var version = "No version provided"

var log = logging.NewLogger("info")

var out io.Writer = os.Stdout

type Args struct {
	Paths          []string `arg:"positional" help:"channel folders or s3:// prefixes to analyze"`
	PathFile       string   `arg:"--path-file" help:"tab separated file with a cyclepath column"`
	Expand         bool     `arg:"--expand" help:"treat paths as test folders and analyze every channel in them"`
	Validate       bool     `arg:"--validate" help:"require expanded test folders to hold the same channels"`
	Capacity       *float64 `arg:"--capacity" help:"nominal capacity in mAh, 0 to estimate"`
	InitialRate    *float64 `arg:"--initial-rate" help:"C rate of the first cycle"`
	DCIR           *bool    `arg:"--dcir" help:"compute DCIR from pulse steps"`
	DCIRContinuous *bool    `arg:"--dcir-continuous" help:"number DCIR pulses 1, 2, 3... instead of by cycle spacing"`
	StartCycle     *int     `arg:"--start-cycle" help:"first cycle to report"`
	EndCycle       *int     `arg:"--end-cycle" help:"last cycle to report"`
	Workers        *int     `arg:"--workers" help:"runs analyzed in parallel"`
	report.OutputArgs
	config.ConfigArgs
	logging.LogArgs
}

func (Args) Version() string {
	return version
}

var defaultArgs = Args{}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

// applyArgs overrides the analysis config with the flags that were set.
func applyArgs(args Args, a *config.Analysis) {
	if args.Capacity != nil {
		a.Capacity = *args.Capacity
	}
	if args.InitialRate != nil {
		a.InitialRate = *args.InitialRate
	}
	if args.DCIR != nil {
		a.DCIR = *args.DCIR
	}
	if args.DCIRContinuous != nil {
		a.DCIRContinuous = *args.DCIRContinuous
	}
	if args.StartCycle != nil {
		a.StartCycle = *args.StartCycle
	}
	if args.EndCycle != nil {
		a.EndCycle = *args.EndCycle
	}
	if args.Workers != nil {
		a.Workers = *args.Workers
	}
}

type channelRun struct {
	location string
	vendor   rawlog.Vendor
}

// runLocations lists the channel locations to analyze.
func runLocations(args Args) ([]channelRun, error) {
	paths := args.Paths
	if args.PathFile != "" {
		f, err := os.Open(args.PathFile)
		if err != nil {
			return nil, err
		}
		entries, err := detect.ParsePathFile(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			paths = append(paths, e.Path)
		}
	}
	if len(paths) == 0 {
		return nil, errors.New("no paths given")
	}
	if !args.Expand {
		runs := make([]channelRun, len(paths))
		for i, p := range paths {
			runs[i] = channelRun{location: p, vendor: rawlog.Toyo}
		}
		return runs, nil
	}

	group, err := detect.NewPathGroup(paths, args.Validate)
	if err != nil {
		return nil, err
	}
	if err := detect.Supported(group.Vendor); err != nil {
		return nil, err
	}
	if !group.Validated {
		log.Warnf("%d test folders were not checked for matching channels", len(paths))
	}
	var runs []channelRun
	for _, p := range group.Paths {
		channels, err := detect.Channels(p, group.Vendor)
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			runs = append(runs, channelRun{location: filepath.Join(p, ch), vendor: group.Vendor})
		}
	}
	return runs, nil
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}

	log = logging.NewLogger(args.LogLevel)

	log.Info("Running version: ", version)

	analysis, database, s3conf, output, err := config.Load(args.ConfigDir)
	if err != nil {
		return err
	}
	applyArgs(args, &analysis)
	if err := args.OutputArgs.Apply(&output, &database); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return analyze(ctx, args, analysis, database, report.S3Config(s3conf), output)
}

func analyze(ctx context.Context, args Args, analysis config.Analysis, database config.Database, s3conf rawlog.S3Config, output config.Output) error {
	format, err := export.ParseFormat(output.Format)
	if err != nil {
		return err
	}
	runs, err := runLocations(args)
	if err != nil {
		return err
	}

	cfgs := make([]pipeline.CycleConfig, len(runs))
	for i, r := range runs {
		src, err := rawlog.OpenSource(ctx, r.location, s3conf)
		if err != nil {
			return err
		}
		cfgs[i] = pipeline.CycleConfig{
			Source:         src,
			Vendor:         r.vendor,
			Capacity:       analysis.Capacity,
			InitialRate:    analysis.InitialRate,
			DCIR:           analysis.DCIR,
			DCIRContinuous: analysis.DCIRContinuous,
			StartCycle:     analysis.StartCycle,
			EndCycle:       analysis.EndCycle,
			Logger:         log,
		}
		if err := cfgs[i].Validate(); err != nil {
			return err
		}
	}

	log.Infof("analyzing %d runs with %d workers", len(cfgs), analysis.Workers)
	results, err := pipeline.RunAll(ctx, cfgs, analysis.Workers, pipeline.Cycle)
	if err != nil {
		return err
	}

	recorder, err := report.OpenRecorder(ctx, database, log)
	if err != nil {
		return err
	}
	defer recorder.Close()

	var charted []pipeline.CycleResult
	for _, r := range results {
		if err := export.WriteCycles(out, format, r); err != nil {
			return err
		}
		if r.Empty() {
			log.Warnf("%s: %s", r.Metadata.Location, r.Reason)
			continue
		}
		charted = append(charted, r)
		if output.ArrowDir != "" {
			path := report.OutputPath(output.ArrowDir, r.Metadata.Location, ".arrow")
			if err := export.WriteCycleArrow(path, r); err != nil {
				return err
			}
			log.Debug("wrote ", path)
		}
		if recorder != nil {
			if err := save(ctx, recorder, r); err != nil {
				return err
			}
		}
	}

	if output.ChartDir != "" && len(charted) > 0 {
		if err := writeCharts(output.ChartDir, analysis.DCIR, charted); err != nil {
			return err
		}
	}
	return metrics.WriteTextfile(output.MetricsFile)
}

func save(ctx context.Context, recorder *report.Recorder, r pipeline.CycleResult) error {
	run, err := recorder.SaveRun(ctx, r.Metadata.Location, r.Metadata.Vendor, r.Capacity)
	if err != nil {
		return err
	}
	if err := recorder.Store.SaveCycleMetrics(ctx, run.ID, r.Metrics); err != nil {
		return err
	}
	log.Infof("saved %d cycles of %s as run %s", len(r.Metrics), r.Metadata.Location, run.UUID)
	return nil
}

func writeCharts(dir string, dcir bool, results []pipeline.CycleResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	charts := map[string]func(string, ...pipeline.CycleResult) error{
		"capacity.png":   chart.CapacityFade,
		"efficiency.png": chart.Efficiency,
	}
	if dcir {
		charts["dcir.png"] = chart.DCIR
	}
	for name, draw := range charts {
		err := draw(filepath.Join(dir, name), results...)
		if errors.Is(err, chart.ErrNoData) {
			log.Warnf("nothing to chart in %s", name)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
