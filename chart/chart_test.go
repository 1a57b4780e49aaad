package chart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TheCacophonyProject/battery-analyzer/cycles"
	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"github.com/TheCacophonyProject/battery-analyzer/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cycleResult(location string, n int) pipeline.CycleResult {
	r := pipeline.CycleResult{Metadata: pipeline.Metadata{Location: location}}
	for i := 1; i <= n; i++ {
		d := 1 - 0.001*float64(i)
		r.Metrics = append(r.Metrics, cycles.Metric{
			Cycle:      i,
			Discharge:  numeric.Some(d),
			Charge:     numeric.Some(d / 0.99),
			Efficiency: numeric.Some(0.99),
		})
	}
	return r
}

func profileResult() pipeline.ProfileResult {
	r := pipeline.ProfileResult{Metadata: pipeline.Metadata{Location: "/data/30", Cycle: 3}}
	for i := 0; i < 50; i++ {
		soc := float64(i) / 50
		pt := pipeline.ProfilePoint{TimeMin: float64(i), SOC: soc, Voltage: 3.4 + 0.8*soc, CRate: 0.2}
		if i > 5 {
			pt.DQDV = numeric.Some(1.25)
		}
		r.Points = append(r.Points, pt)
	}
	return r
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestCycleCharts(t *testing.T) {
	dir := t.TempDir()
	a, b := cycleResult("/data/30", 20), cycleResult("/data/31", 15)

	require.NoError(t, CapacityFade(filepath.Join(dir, "fade.png"), a, b))
	assertFile(t, filepath.Join(dir, "fade.png"))

	require.NoError(t, Efficiency(filepath.Join(dir, "eff.svg"), a))
	assertFile(t, filepath.Join(dir, "eff.svg"))
}

func TestProfileCharts(t *testing.T) {
	dir := t.TempDir()
	r := profileResult()

	require.NoError(t, Profile(filepath.Join(dir, "profile.png"), r))
	assertFile(t, filepath.Join(dir, "profile.png"))

	require.NoError(t, DQDV(filepath.Join(dir, "dqdv.svg"), r))
	assertFile(t, filepath.Join(dir, "dqdv.svg"))
}

func TestNoData(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, DCIR(filepath.Join(dir, "dcir.png"), cycleResult("x", 10)), ErrNoData)
	assert.ErrorIs(t, CapacityFade(filepath.Join(dir, "fade.png")), ErrNoData)

	r := profileResult()
	for i := range r.Points {
		r.Points[i].DQDV = numeric.None
	}
	assert.ErrorIs(t, DQDV(filepath.Join(dir, "dqdv.png"), r), ErrNoData)
	_, err := os.Stat(filepath.Join(dir, "dqdv.png"))
	assert.True(t, os.IsNotExist(err))
}
