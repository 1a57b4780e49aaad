package cycles

import (
	"testing"

	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rest rawlog.Condition = 3

func row(cycle int, cond rawlog.Condition, capacity float64) rawlog.Row {
	return rawlog.Row{CycleNumber: cycle, Condition: cond, Capacity: capacity}
}

func rawRows(merged []MergedRow) []rawlog.Row {
	out := make([]rawlog.Row, len(merged))
	for i, m := range merged {
		out[i] = m.Row
	}
	return out
}

func TestProcessMergesConsecutiveSteps(t *testing.T) {
	rows := []rawlog.Row{
		{CycleNumber: 1, Condition: rawlog.Charge, Capacity: 800, OpenCircuitVoltage: 3.4, FinishReason: "a"},
		{CycleNumber: 1, Condition: rawlog.Charge, Capacity: 900, OpenCircuitVoltage: 3.9, FinishReason: "b"},
		row(1, rest, 0),
		{CycleNumber: 1, Condition: rawlog.Discharge, Capacity: 1000, Energy: 3800, OpenCircuitVoltage: 4.1},
		{CycleNumber: 2, Condition: rawlog.Discharge, Capacity: 600, Energy: 2100, OpenCircuitVoltage: 3.6, FinishReason: "Vol"},
		row(2, rest, 0),
		row(2, rest, 0),
		row(2, rawlog.Charge, 1700),
	}
	got := Process(rows)
	require.Len(t, got, 6)

	chg := got[0]
	assert.Equal(t, 1700.0, chg.Capacity)
	assert.Equal(t, 3.4, chg.OpenCircuitVoltage)
	assert.Equal(t, "b", chg.FinishReason)

	dchg := got[2]
	assert.Equal(t, rawlog.Discharge, dchg.Condition)
	assert.Equal(t, 1600.0, dchg.Capacity)
	assert.Equal(t, 5900.0, dchg.Energy)
	assert.InDelta(t, dchg.Energy/dchg.Capacity, dchg.AverageVoltage, 1e-12)
	assert.Equal(t, 2, dchg.CycleNumber)
	assert.Equal(t, 2, dchg.OriginalCycleNumber)
	assert.Equal(t, 3.6, dchg.OpenCircuitVoltage)
	assert.Equal(t, "Vol", dchg.FinishReason)

	// rest steps are never merged
	assert.Equal(t, rest, got[3].Condition)
	assert.Equal(t, rest, got[4].Condition)

	for i := 1; i < len(got); i++ {
		if got[i].Condition.IsActive() {
			assert.NotEqual(t, got[i-1].Condition, got[i].Condition, "index %d", i)
		}
	}

	// input untouched
	assert.Equal(t, 800.0, rows[0].Capacity)
}

func TestProcessIsIdempotent(t *testing.T) {
	rows := []rawlog.Row{
		row(1, rawlog.Charge, 10), row(1, rawlog.Charge, 20), row(1, rawlog.Discharge, 5),
		row(1, rawlog.Discharge, 5), row(1, rawlog.Discharge, 5), row(2, rest, 0), row(2, rawlog.Charge, 30),
	}
	once := Process(rows)
	twice := Process(rawRows(once))
	if diff := cmp.Diff(rawRows(once), rawRows(twice)); diff != "" {
		t.Errorf("second pass changed rows (-once +twice):\n%s", diff)
	}
}

func TestProcessDischargeFirst(t *testing.T) {
	rows := []rawlog.Row{
		row(1, rawlog.Discharge, 500),
		row(1, rawlog.Charge, 1000),
		row(2, rawlog.Discharge, 990),
		row(2, rawlog.Charge, 1000),
		row(3, rawlog.Discharge, 985),
	}
	got := Process(rows)
	require.Len(t, got, 4)
	assert.Equal(t, rawlog.Charge, got[0].Condition)
	assert.Equal(t, 1, got[0].CycleNumber)
	assert.Equal(t, 1, got[1].CycleNumber)
	assert.Equal(t, 2, got[1].OriginalCycleNumber)
	assert.Equal(t, 2, got[3].CycleNumber)
	assert.Equal(t, 3, got[3].OriginalCycleNumber)
}

func TestProcessDischargeFirstThreeRows(t *testing.T) {
	rows := []rawlog.Row{row(1, rawlog.Discharge, 500), row(1, rawlog.Charge, 1000), row(2, rawlog.Discharge, 990)}
	got := Process(rows)
	require.Len(t, got, 2)
	assert.Equal(t, rawlog.Charge, got[0].Condition)
	assert.Equal(t, 1, got[0].CycleNumber)
	assert.Equal(t, rawlog.Discharge, got[1].Condition)
	assert.Equal(t, 1, got[1].CycleNumber)
	assert.Equal(t, 2, got[1].OriginalCycleNumber)
	assert.Equal(t, 990.0, got[1].Capacity)
}

func TestProcessShortDischargeFirstUnchanged(t *testing.T) {
	rows := []rawlog.Row{row(1, rawlog.Discharge, 500), row(1, rawlog.Charge, 1000)}
	got := Process(rows)
	require.Len(t, got, 2)
	assert.Equal(t, rawlog.Discharge, got[0].Condition)
	assert.Equal(t, 1, got[0].CycleNumber)

	assert.Empty(t, Process(nil))
}
