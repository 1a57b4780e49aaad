package config

import "fmt"

const (
	AnalysisKey = "analysis"
	DatabaseKey = "database"
	S3Key       = "s3"
	OutputKey   = "output"
)

type Analysis struct {
	Capacity       float64 `mapstructure:"capacity"`
	InitialRate    float64 `mapstructure:"initial-rate"`
	Cutoff         float64 `mapstructure:"cutoff"`
	DCIR           bool    `mapstructure:"dcir"`
	DCIRContinuous bool    `mapstructure:"dcir-continuous"`
	SmoothWindow   int     `mapstructure:"smooth-window"`
	StartCycle     int     `mapstructure:"start-cycle"`
	EndCycle       int     `mapstructure:"end-cycle"`
	Workers        int     `mapstructure:"workers"`
}

func DefaultAnalysis() Analysis {
	return Analysis{
		InitialRate: 0.2,
		Workers:     4,
	}
}

type Database struct {
	URL     string `mapstructure:"url"`
	Project string `mapstructure:"project"`
}

func DefaultDatabase() Database {
	return Database{Project: "default"}
}

// S3 holds the credentials used for s3:// raw log locations.
type S3 struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access-key-id"`
	SecretAccessKey string `mapstructure:"secret-access-key"`
	UseSSL          bool   `mapstructure:"use-ssl"`
}

func DefaultS3() S3 {
	return S3{
		Region: "us-east-1",
		UseSSL: true,
	}
}

type Output struct {
	Format      string `mapstructure:"format"`
	ArrowDir    string `mapstructure:"arrow-dir"`
	ChartDir    string `mapstructure:"chart-dir"`
	MetricsFile string `mapstructure:"metrics-file"`
}

func DefaultOutput() Output {
	return Output{Format: "table"}
}

var outputFormats = map[string]bool{"table": true, "json": true, "yaml": true, "csv": true}

func (o Output) Validate() error {
	if !outputFormats[o.Format] {
		return fmt.Errorf("unknown output format %q", o.Format)
	}
	return nil
}

// Load reads all four sections from dir.
func Load(dir string) (Analysis, Database, S3, Output, error) {
	a, d, s, o := DefaultAnalysis(), DefaultDatabase(), DefaultS3(), DefaultOutput()
	conf, err := New(dir)
	if err != nil {
		return a, d, s, o, err
	}
	if err := conf.Unmarshal(AnalysisKey, &a); err != nil {
		return a, d, s, o, err
	}
	if err := conf.Unmarshal(DatabaseKey, &d); err != nil {
		return a, d, s, o, err
	}
	if err := conf.Unmarshal(S3Key, &s); err != nil {
		return a, d, s, o, err
	}
	if err := conf.Unmarshal(OutputKey, &o); err != nil {
		return a, d, s, o, err
	}
	return a, d, s, o, o.Validate()
}
