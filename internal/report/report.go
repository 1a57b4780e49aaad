// Package report holds the plumbing shared by the analyzer subcommands:
// output flags, run naming and optional persistence.
package report

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/TheCacophonyProject/battery-analyzer/detect"
	"github.com/TheCacophonyProject/battery-analyzer/internal/config"
	"github.com/TheCacophonyProject/battery-analyzer/internal/logutil"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/battery-analyzer/store"
	"github.com/TheCacophonyProject/go-utils/logging"
)

// OutputArgs are the output flags shared by the report subcommands. Set
// flags override the config file.
type OutputArgs struct {
	Format      string `arg:"-f,--format" help:"output format (table, json, yaml, csv)"`
	ArrowDir    string `arg:"--arrow-dir" help:"also write Arrow IPC files to this directory"`
	ChartDir    string `arg:"--chart-dir" help:"write charts to this directory"`
	MetricsFile string `arg:"--metrics-file" help:"write Prometheus metrics to this textfile"`
	DatabaseURL string `arg:"--database-url" help:"save results to this PostgreSQL database"`
	Project     string `arg:"--project" help:"project the runs are saved under"`
}

func (a OutputArgs) Apply(out *config.Output, db *config.Database) error {
	if a.Format != "" {
		out.Format = a.Format
	}
	if a.ArrowDir != "" {
		out.ArrowDir = a.ArrowDir
	}
	if a.ChartDir != "" {
		out.ChartDir = a.ChartDir
	}
	if a.MetricsFile != "" {
		out.MetricsFile = a.MetricsFile
	}
	if a.DatabaseURL != "" {
		db.URL = a.DatabaseURL
	}
	if a.Project != "" {
		db.Project = a.Project
	}
	return out.Validate()
}

func S3Config(c config.S3) rawlog.S3Config {
	return rawlog.S3Config{
		Endpoint:        c.Endpoint,
		Region:          c.Region,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		UseSSL:          c.UseSSL,
	}
}

// RunName turns a run location into a file name stem such as "lot1_30".
func RunName(location string) string {
	location = strings.TrimPrefix(location, "s3://")
	lot, channel := detect.LotAndChannel(location)
	name := channel
	if lot != "" {
		name = lot + "_" + channel
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '[', ']':
			return '_'
		}
		return r
	}, name)
}

// OutputPath joins dir, the run name and an extension.
func OutputPath(dir, location, suffix string) string {
	return filepath.Join(dir, RunName(location)+suffix)
}

// Recorder saves runs to the database. A nil Recorder saves nothing.
type Recorder struct {
	Store   *store.Store
	Project store.Project
	log     *logging.Logger
}

// OpenRecorder connects and migrates the database, returning nil when no
// database is configured.
func OpenRecorder(ctx context.Context, db config.Database, log *logging.Logger) (*Recorder, error) {
	if db.URL == "" {
		return nil, nil
	}
	log = logutil.OrDiscard(log)
	st, err := store.Open(ctx, db.URL, log)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	project, err := st.EnsureProject(ctx, db.Project, "")
	if err != nil {
		st.Close()
		return nil, err
	}
	log.Infof("saving results to project %s", project.Name)
	return &Recorder{Store: st, Project: project, log: log}, nil
}

func (r *Recorder) Close() {
	if r != nil {
		r.Store.Close()
	}
}

// SaveRun stores the run for a channel location.
func (r *Recorder) SaveRun(ctx context.Context, location string, vendor rawlog.Vendor, capacity float64) (store.Run, error) {
	clean := strings.TrimSuffix(location, "/")
	dir, channel := clean, ""
	if i := strings.LastIndex(clean, "/"); i > 0 {
		dir, channel = clean[:i], clean[i+1:]
	}
	run, err := r.Store.SaveRun(ctx, store.Run{
		ProjectID: r.Project.ID,
		Path:      dir,
		Channel:   channel,
		Vendor:    vendor,
		Capacity:  capacity,
	})
	if err != nil {
		return store.Run{}, fmt.Errorf("failed to save run %s: %w", location, err)
	}
	return run, nil
}
