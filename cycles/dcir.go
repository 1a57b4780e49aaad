package cycles

import (
	"context"
	"math"

	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
)

var pulseFinish = map[string]bool{
	rawlog.FinishTime: true,
	"Tim":             true,
	"Time":            true,
}

// DetailLoader returns the detail samples of one cycle.
type DetailLoader func(ctx context.Context, cycle int) ([]rawlog.DetailRow, error)

// Pulses returns the short timed discharge steps used for resistance
// measurements.
func Pulses(rows []MergedRow, refCap float64) []MergedRow {
	var out []MergedRow
	for _, r := range rows {
		if r.Condition == rawlog.Discharge && r.Capacity < refCap/60 && pulseFinish[r.FinishReason] {
			out = append(out, r)
		}
	}
	return out
}

// PulseResistance is (Vmax - Vmin) / Imax over the discharge samples,
// scaled by 1e6. Imax is rounded to a whole mA first.
func PulseResistance(samples []rawlog.DetailRow) numeric.Value {
	vmax, vmin, imax := math.Inf(-1), math.Inf(1), math.Inf(-1)
	found := false
	for _, s := range samples {
		if s.Condition != rawlog.Discharge {
			continue
		}
		found = true
		vmax = max(vmax, s.Voltage)
		vmin = min(vmin, s.Voltage)
		imax = max(imax, s.Current)
	}
	if !found {
		return numeric.None
	}
	i := math.RoundToEven(imax)
	if i == 0 {
		return numeric.None
	}
	return numeric.Some((vmax - vmin) / i * 1_000_000)
}

// pulseStride is how far the display cycle advances between pulse pairs
// when they are spaced through the run.
func pulseStride(dischargeSteps, pulses int) int {
	ratio := float64(dischargeSteps) / (float64(pulses) / 2)
	if ratio >= 10 {
		return (int(ratio/10) + 1) * 10
	}
	return int(ratio) + 1
}

// DCIR measures the resistance of every pulse and keys it by display
// cycle. Continuous numbering counts pulses 1, 2, 3. Otherwise pulses come
// in pairs spaced by the pulse stride. The later of two pulses with the
// same display cycle wins. The map is empty when no pulse produced a value.
func DCIR(ctx context.Context, rows []MergedRow, refCap float64, load DetailLoader, continuous bool) (map[int]numeric.Value, error) {
	pulses := Pulses(rows, refCap)
	if len(pulses) == 0 {
		return map[int]numeric.Value{}, nil
	}

	values := make([]numeric.Value, len(pulses))
	computed := false
	for i, p := range pulses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		samples, err := load(ctx, p.CycleNumber)
		if err != nil {
			return nil, err
		}
		values[i] = PulseResistance(samples)
		computed = computed || values[i].Valid
	}
	if !computed {
		return map[int]numeric.Value{}, nil
	}

	dischargeSteps := 0
	for _, r := range rows {
		if r.Condition == rawlog.Discharge {
			dischargeSteps++
		}
	}
	stride := pulseStride(dischargeSteps, len(pulses))

	out := make(map[int]numeric.Value, len(pulses))
	n := 1
	for i, v := range values {
		out[n] = v
		switch {
		case continuous, i%2 == 0:
			n++
		default:
			n += stride - 1
		}
	}
	return out, nil
}
