package capacity

import (
	"context"
	"testing"

	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog/rawlogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromName(t *testing.T) {
	for name, want := range map[string]float64{
		"/data/LGES_1689mAh_cycle/30": 1689,
		"Q8 ATL 4-5mAh 45C":           4.5,
		"cell_4.5mAh":                 5,
		"s3://raw/(2335mAh)@25C/ch1":  2335,
		"pack$5000mAh":                5000,
	} {
		got, ok := FromName(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := FromName("/data/no-capacity/ch1")
	assert.False(t, ok)
}

func TestFromCurrent(t *testing.T) {
	rows := []rawlog.DetailRow{{Current: 100}, {Current: 338}, {Current: -500}}
	assert.Equal(t, 1690.0, FromCurrent(rows, 0.2))
	// 2.5 rounds half to even.
	assert.Equal(t, 2.0, FromCurrent([]rawlog.DetailRow{{Current: 1.25}}, 0.5))
	assert.Equal(t, 0.0, FromCurrent(nil, 0.2))
	assert.Equal(t, 0.0, FromCurrent(rows, 0))
}

func TestEstimate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := rawlog.Dir(dir)

	assert.Equal(t, 1234.0, Estimate(ctx, src, "x_1689mAh", 1234, 0.2, nil))
	assert.Equal(t, 1689.0, Estimate(ctx, src, "x_1689mAh", 0, 0.2, nil))
	assert.Equal(t, 0.0, Estimate(ctx, src, dir, 0, 0.2, nil))

	require.NoError(t, rawlogtest.WriteDetail(dir, 1, rawlogtest.DetailHeaderV1, rawlogtest.Charge(3000, 0.2, true)))
	assert.Equal(t, 3000.0, Estimate(ctx, src, dir, 0, 0.2, nil))

	require.NoError(t, rawlogtest.WriteLog(dir, rawlog.DetailFile(1), []string{"", "", ""}, []string{"Voltage[V]"}, nil))
	assert.Equal(t, 0.0, Estimate(ctx, src, dir, 0, 0.2, nil))
}
