package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog/rawlogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileNormalizes(t *testing.T) {
	dir := runDir(t, "ATL_1689mAh")
	require.NoError(t, rawlogtest.WriteRun(dir, 2, 1689))
	charge := rawlogtest.Charge(1689, 0.2, true)

	res, err := Profile(context.Background(), ProfileConfig{Source: rawlog.Dir(dir), InitialRate: 0.2, Cycle: 1})
	require.NoError(t, err)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 1689.0, res.Capacity)
	require.Len(t, res.Points, len(charge)-5)

	p := res.Points[60]
	assert.Equal(t, 60.0, p.TimeMin)
	assert.InDelta(t, 0.2, p.SOC, 1e-9)
	assert.InDelta(t, 0.2, p.CRate, 1e-9)
	assert.InDelta(t, 3.56, p.Voltage, 1e-9)
	assert.InDelta(t, 25.6, p.Temperature.V, 1e-9)
	assert.False(t, p.DQDV.Valid)

	assert.Zero(t, res.Points[0].SOC)
	for i := 1; i < len(res.Points); i++ {
		assert.Greater(t, res.Points[i].TimeMin, res.Points[i-1].TimeMin)
	}
	lo, hi := res.SOCRange()
	assert.Zero(t, lo)
	assert.InDelta(t, 0.8, hi, 0.01)
	assert.Equal(t, 1, res.Metadata.Cycle)
	assert.Equal(t, "toyo-detail-v1", res.Metadata.Schema)
}

func TestProfileDifferential(t *testing.T) {
	dir := runDir(t, "ATL_1689mAh")
	require.NoError(t, rawlogtest.WriteRun(dir, 1, 1689))

	res, err := Profile(context.Background(), ProfileConfig{
		Source:       rawlog.Dir(dir),
		InitialRate:  0.2,
		Cycle:        1,
		Differential: true,
	})
	require.NoError(t, err)
	window := len(res.Points) / 30
	require.Greater(t, window, 1)
	assert.False(t, res.Points[window-1].DQDV.Valid)
	// voltage rises 0.8 V per unit of SOC
	assert.InDelta(t, 1689/0.8, res.Points[100].DQDV.V, 1e-6)
	assert.InDelta(t, 0.8/1689, res.Points[100].DVDQ.V, 1e-12)

	res, err = Profile(context.Background(), ProfileConfig{
		Source:       rawlog.Dir(dir),
		InitialRate:  0.2,
		Cycle:        1,
		Differential: true,
		SmoothWindow: 2,
	})
	require.NoError(t, err)
	assert.False(t, res.Points[1].DQDV.Valid)
	assert.True(t, res.Points[2].DQDV.Valid)
}

func TestProfileShortCircuits(t *testing.T) {
	dir := runDir(t, "cell_2000mAh")
	require.NoError(t, rawlogtest.WriteDetail(dir, 1, rawlogtest.DetailHeaderV1, rawlogtest.Charge(2000, 0.5, true)))
	require.NoError(t, rawlogtest.WriteDetail(dir, 2, rawlogtest.DetailHeaderV1, []rawlog.DetailRow{
		{Time: 0, Voltage: 4.1, Current: -1000, Condition: rawlog.Discharge, Temperature: 25},
		{Time: 60, Voltage: 4.0, Current: -1000, Condition: rawlog.Discharge, Temperature: 25},
	}))

	for name, tc := range map[string]struct {
		cfg    ProfileConfig
		reason string
	}{
		"missing cycle":   {ProfileConfig{Cycle: 9}, ReasonNoProfileData},
		"no charge":       {ProfileConfig{Cycle: 2}, ReasonNoChargeData},
		"above cutoff":    {ProfileConfig{Cycle: 1, Cutoff: 1}, ReasonBelowCutoff},
		"cutoff keeps cc": {ProfileConfig{Cycle: 1, Cutoff: 0.5}, ""},
	} {
		tc.cfg.Source = rawlog.Dir(dir)
		tc.cfg.InitialRate = 0.2
		res, err := Profile(context.Background(), tc.cfg)
		require.NoError(t, err, name)
		assert.Equal(t, tc.reason, res.Reason, name)
		assert.Equal(t, tc.reason != "", res.Empty(), name)
		assert.Equal(t, 2000.0, res.Capacity, name)
	}
}

func TestProfileWithoutCapacity(t *testing.T) {
	dir := runDir(t, "unnamed")
	require.NoError(t, rawlogtest.WriteDetail(dir, 3, rawlogtest.DetailHeaderV1NoTemp, rawlogtest.Charge(1000, 0.2, false)))

	res, err := Profile(context.Background(), ProfileConfig{Source: rawlog.Dir(dir), InitialRate: 0.2, Cycle: 3})
	require.NoError(t, err)
	assert.Zero(t, res.Capacity)
	assert.Equal(t, ReasonNoCapacity, res.Reason)

	res, err = Profile(context.Background(), ProfileConfig{Source: rawlog.Dir(dir), Capacity: 1000, InitialRate: 0.2, Cycle: 3})
	require.NoError(t, err)
	require.NotEmpty(t, res.Points)
	assert.False(t, res.Points[0].Temperature.Valid)
}

func TestProfileConfigValidate(t *testing.T) {
	src := rawlog.Dir("/data")
	for name, cfg := range map[string]ProfileConfig{
		"cycle zero":      {Source: src, InitialRate: 0.2},
		"negative cutoff": {Source: src, InitialRate: 0.2, Cycle: 1, Cutoff: -0.1},
		"negative window": {Source: src, InitialRate: 0.2, Cycle: 1, SmoothWindow: -1},
		"pne":             {Source: src, InitialRate: 0.2, Cycle: 1, Vendor: rawlog.PNE},
	} {
		_, err := Profile(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func TestRunAllKeepsOrder(t *testing.T) {
	var running, peak atomic.Int32
	inputs := []int{5, 1, 4, 2, 3}
	out, err := RunAll(context.Background(), inputs, 2, func(_ context.Context, n int) (int, error) {
		cur := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		return n * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, out)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	boom := errors.New("boom")
	_, err = RunAll(context.Background(), inputs, 0, func(_ context.Context, n int) (int, error) {
		if n == 4 {
			return 0, boom
		}
		return n, nil
	})
	assert.ErrorIs(t, err, boom)
}
