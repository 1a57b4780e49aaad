package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TheCacophonyProject/battery-analyzer/cycles"
	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"github.com/TheCacophonyProject/battery-analyzer/pipeline"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func cycleResult() pipeline.CycleResult {
	metrics := []cycles.Metric{
		{Cycle: 1, Discharge: numeric.Some(1), Charge: numeric.Some(1.0526), Efficiency: numeric.Some(0.95)},
		{Cycle: 2, Discharge: numeric.Some(0.99)},
	}
	return pipeline.CycleResult{
		Capacity: 1689,
		Metrics:  metrics,
		Summary:  cycles.Summarize(metrics),
		Metadata: pipeline.Metadata{Vendor: rawlog.Toyo, Location: "/data/30", Capacity: 1689, InitialRate: 0.2},
	}
}

func profileResult() pipeline.ProfileResult {
	return pipeline.ProfileResult{
		Capacity: 1689,
		Points: []pipeline.ProfilePoint{
			{TimeMin: 1, SOC: 0.01, Voltage: 3.408, CRate: 0.2, Temperature: numeric.Some(25)},
			{TimeMin: 2, SOC: 0.02, Voltage: 3.416, CRate: 0.2, DQDV: numeric.Some(1.5)},
		},
		Metadata: pipeline.Metadata{Vendor: rawlog.Toyo, Location: "/data/30", Capacity: 1689, Cycle: 3},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "JSON": FormatJSON, " yaml": FormatYAML, "csv": FormatCSV, "table": FormatTable} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteCyclesTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCycles(&buf, FormatTable, cycleResult()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "/data/30 (TOYO, 1689 mAh)", lines[0])
	assert.Contains(t, lines[1], "cycle")
	assert.Contains(t, lines[2], "-----")
	assert.Contains(t, lines[3], "0.9500")
	assert.Contains(t, lines[5], "cycles: 2")
}

func TestWriteCyclesEmptyTable(t *testing.T) {
	r := pipeline.CycleResult{Reason: pipeline.ReasonNoData, Metadata: pipeline.Metadata{Location: "x", Vendor: rawlog.Toyo}}
	var buf bytes.Buffer
	require.NoError(t, WriteCycles(&buf, FormatTable, r))
	assert.Equal(t, "x (TOYO, 0 mAh): "+pipeline.ReasonNoData+"\n", buf.String())
}

func TestWriteCyclesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCycles(&buf, FormatJSON, cycleResult()))
	var decoded struct {
		Capacity float64 `json:"capacity_mah"`
		Cycles   []struct {
			Cycle int      `json:"cycle"`
			Eff   *float64 `json:"eff"`
		} `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1689.0, decoded.Capacity)
	require.Len(t, decoded.Cycles, 2)
	require.NotNil(t, decoded.Cycles[0].Eff)
	assert.Nil(t, decoded.Cycles[1].Eff)
}

func TestWriteProfileYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProfile(&buf, FormatYAML, profileResult()))
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	points, ok := decoded["points"].([]any)
	require.True(t, ok)
	assert.Len(t, points, 2)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProfile(&buf, FormatCSV, profileResult()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(profileHeader, ","), lines[0])
	assert.Equal(t, "1.00,0.0100,3.4080,0.2000,25.0,,", lines[1])
}

func TestUnknownFormat(t *testing.T) {
	assert.ErrorIs(t, WriteCycles(&bytes.Buffer{}, "xml", cycleResult()), ErrUnknownFormat)
	assert.ErrorIs(t, WriteProfile(&bytes.Buffer{}, "xml", profileResult()), ErrUnknownFormat)
}

func TestCycleArrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycles.arrow")
	require.NoError(t, WriteCycleArrow(path, cycleResult()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 1, r.NumRecords())
	rec, err := r.Record(0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.NumRows())
	assert.Equal(t, "dchg", rec.ColumnName(2))

	eff := rec.Column(4).(*array.Float64)
	assert.InDelta(t, 0.95, eff.Value(0), 1e-9)
	assert.True(t, eff.IsNull(1))

	md := r.Schema().Metadata()
	i := md.FindKey("vendor")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "TOYO", md.Values()[i])
}

func TestProfileRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := ProfileRecord(mem, profileResult())
	defer rec.Release()
	assert.EqualValues(t, 2, rec.NumRows())
	assert.EqualValues(t, 7, rec.NumCols())
	temp := rec.Column(4).(*array.Float64)
	assert.False(t, temp.IsNull(0))
	assert.True(t, temp.IsNull(1))
}
