/*
profile-report - normalized charge profiles and dQ/dV of single cycles.
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

package profilereport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/TheCacophonyProject/battery-analyzer/chart"
	"github.com/TheCacophonyProject/battery-analyzer/detect"
	"github.com/TheCacophonyProject/battery-analyzer/export"
	"github.com/TheCacophonyProject/battery-analyzer/internal/config"
	"github.com/TheCacophonyProject/battery-analyzer/internal/metrics"
	"github.com/TheCacophonyProject/battery-analyzer/internal/report"
	"github.com/TheCacophonyProject/battery-analyzer/pipeline"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/battery-analyzer/store"
	"github.com/TheCacophonyProject/go-utils/logging"
	arg "github.com/alexflint/go-arg"
)

var version = "No version provided"

var log = logging.NewLogger("info")

var out io.Writer = os.Stdout

type Args struct {
	Path         string   `arg:"positional,required" help:"channel folder or s3:// prefix"`
	Cycles       string   `arg:"--cycles" default:"1" help:"cycles to extract, such as \"1-5 10\""`
	Capacity     *float64 `arg:"--capacity" help:"nominal capacity in mAh, 0 to estimate"`
	InitialRate  *float64 `arg:"--initial-rate" help:"C rate of the first cycle"`
	Cutoff       *float64 `arg:"--cutoff" help:"drop charge samples below this C rate"`
	SmoothWindow *int     `arg:"--smooth-window" help:"dQ/dV lag window, 0 to pick from the sample count"`
	DQDV         bool     `arg:"--dqdv" help:"compute dQ/dV and dV/dQ"`
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

func applyArgs(args Args, a *config.Analysis) {
	if args.Capacity != nil {
		a.Capacity = *args.Capacity
	}
	if args.InitialRate != nil {
		a.InitialRate = *args.InitialRate
	}
	if args.Cutoff != nil {
		a.Cutoff = *args.Cutoff
	}
	if args.SmoothWindow != nil {
		a.SmoothWindow = *args.SmoothWindow
	}
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

	return extract(ctx, args, analysis, database, report.S3Config(s3conf), output)
}

func extract(ctx context.Context, args Args, analysis config.Analysis, database config.Database, s3conf rawlog.S3Config, output config.Output) error {
	format, err := export.ParseFormat(output.Format)
	if err != nil {
		return err
	}
	cycleNumbers, err := detect.ParseCycleList(args.Cycles)
	if err != nil {
		return err
	}
	if len(cycleNumbers) == 0 {
		return errors.New("no cycles given")
	}
	src, err := rawlog.OpenSource(ctx, args.Path, s3conf)
	if err != nil {
		return err
	}

	cfgs := make([]pipeline.ProfileConfig, len(cycleNumbers))
	for i, c := range cycleNumbers {
		cfgs[i] = pipeline.ProfileConfig{
			Source:       src,
			Vendor:       rawlog.Toyo,
			Capacity:     analysis.Capacity,
			InitialRate:  analysis.InitialRate,
			Cycle:        c,
			Cutoff:       analysis.Cutoff,
			Differential: args.DQDV,
			SmoothWindow: analysis.SmoothWindow,
			Logger:       log,
		}
		if err := cfgs[i].Validate(); err != nil {
			return err
		}
	}

	results, err := pipeline.RunAll(ctx, cfgs, analysis.Workers, pipeline.Profile)
	if err != nil {
		return err
	}

	recorder, err := report.OpenRecorder(ctx, database, log)
	if err != nil {
		return err
	}
	defer recorder.Close()

	var charted []pipeline.ProfileResult
	for _, r := range results {
		if err := export.WriteProfile(out, format, r); err != nil {
			return err
		}
		if r.Empty() {
			log.Warnf("cycle %d: %s", r.Metadata.Cycle, r.Reason)
			continue
		}
		charted = append(charted, r)
		if output.ArrowDir != "" {
			suffix := "_cycle" + strconv.Itoa(r.Metadata.Cycle) + ".arrow"
			if err := export.WriteProfileArrow(report.OutputPath(output.ArrowDir, r.Metadata.Location, suffix), r); err != nil {
				return err
			}
		}
		if recorder != nil {
			if err := save(ctx, recorder, r); err != nil {
				return err
			}
		}
	}

	if output.ChartDir != "" && len(charted) > 0 {
		if err := writeCharts(output.ChartDir, args.DQDV, charted); err != nil {
			return err
		}
	}
	return metrics.WriteTextfile(output.MetricsFile)
}

func save(ctx context.Context, recorder *report.Recorder, r pipeline.ProfileResult) error {
	run, err := recorder.SaveRun(ctx, r.Metadata.Location, r.Metadata.Vendor, r.Capacity)
	if err != nil {
		return err
	}
	lo, hi := r.SOCRange()
	id, err := recorder.Store.SaveProfile(ctx, store.Profile{
		RunID:        run.ID,
		Type:         store.ProfileRate,
		Cycle:        r.Metadata.Cycle,
		Cutoff:       r.Metadata.Cutoff,
		InitialRate:  r.Metadata.InitialRate,
		SmoothWindow: r.Metadata.SmoothWindow,
		SOCMin:       lo,
		SOCMax:       hi,
	}, r.Points)
	if err != nil {
		return err
	}
	log.Infof("saved %d points of cycle %d as profile %d", len(r.Points), r.Metadata.Cycle, id)
	return nil
}

func writeCharts(dir string, dqdv bool, results []pipeline.ProfileResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	name := report.RunName(results[0].Metadata.Location)
	if err := chart.Profile(filepath.Join(dir, name+"_profile.png"), results...); err != nil {
		return err
	}
	if !dqdv {
		return nil
	}
	err := chart.DQDV(filepath.Join(dir, name+"_dqdv.png"), results...)
	if errors.Is(err, chart.ErrNoData) {
		log.Warn("no dQ/dV values to chart")
		return nil
	}
	return err
}
