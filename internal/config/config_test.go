package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWithoutFile(t *testing.T) {
	a, d, s, o, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultAnalysis(), a)
	assert.Equal(t, DefaultDatabase(), d)
	assert.Equal(t, DefaultS3(), s)
	assert.Equal(t, DefaultOutput(), o)
}

func TestFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	toml := `
[analysis]
capacity = 1689
initial-rate = 0.5
dcir = true
end-cycle = 50

[output]
format = "json"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(toml), 0644))

	conf, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), conf.File())

	a := DefaultAnalysis()
	require.NoError(t, conf.Unmarshal(AnalysisKey, &a))
	assert.Equal(t, 1689.0, a.Capacity)
	assert.Equal(t, 0.5, a.InitialRate)
	assert.True(t, a.DCIR)
	assert.Equal(t, 50, a.EndCycle)
	assert.Equal(t, 4, a.Workers)

	o := DefaultOutput()
	require.NoError(t, conf.Unmarshal(OutputKey, &o))
	assert.Equal(t, "json", o.Format)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("BATTERY_ANALYZER_ANALYSIS_INITIAL_RATE", "1")
	t.Setenv("BATTERY_ANALYZER_DATABASE_URL", "postgres://localhost/battery")
	a, d, _, _, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.InitialRate)
	assert.Equal(t, "postgres://localhost/battery", d.URL)
}

func TestUnknownSectionAndFormat(t *testing.T) {
	conf, err := New("")
	require.NoError(t, err)
	var x struct{}
	assert.Error(t, conf.Unmarshal("gpio", &x))

	assert.Error(t, Output{Format: "xml"}.Validate())
}
