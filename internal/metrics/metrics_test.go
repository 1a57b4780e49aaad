package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndWrite(t *testing.T) {
	RecordRun("cycle", StatusOK)
	RecordStage("cycle", "load", 20*time.Millisecond)
	RecordSkipped("capacity.log", 3)
	RecordSkipped("capacity.log", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(RunsTotal.WithLabelValues("cycle", StatusOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(RowsSkipped.WithLabelValues("capacity.log")))

	path := filepath.Join(t.TempDir(), "battery.prom")
	require.NoError(t, WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `battery_analyzer_runs_total{pipeline="cycle",status="ok"} 1`)
	assert.Contains(t, string(b), "battery_analyzer_stage_duration_seconds_bucket")

	assert.NoError(t, WriteTextfile(""))
}
