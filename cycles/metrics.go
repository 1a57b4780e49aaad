package cycles

import (
	"slices"

	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
)

// Metric is the result for one cycle. Capacities are normalized by the
// reference capacity and DCIR is in milliohms.
type Metric struct {
	Cycle               int           `json:"cycle" yaml:"cycle"`
	Discharge           numeric.Value `json:"dchg" yaml:"dchg"`
	Charge              numeric.Value `json:"chg" yaml:"chg"`
	Efficiency          numeric.Value `json:"eff" yaml:"eff"`
	RetentionEfficiency numeric.Value `json:"eff2" yaml:"eff2"`
	DischargeEnergy     numeric.Value `json:"dchg_energy" yaml:"dchg_energy"`
	RestEndVoltage      numeric.Value `json:"rest_end_voltage" yaml:"rest_end_voltage"`
	AverageVoltage      numeric.Value `json:"avg_voltage" yaml:"avg_voltage"`
	Temperature         numeric.Value `json:"temperature" yaml:"temperature"`
	OriginalCycle       numeric.Value `json:"original_cycle" yaml:"original_cycle"`
	DCIR                numeric.Value `json:"dcir" yaml:"dcir"`
}

var chargeExcludedFinish = map[string]bool{
	rawlog.FinishVoltage: true,
	"Volt":               true,
}

// Compute derives the metrics of every cycle that has a qualifying charge
// or discharge step. Steps below a sixtieth of refCap are ignored, as are
// charges that ended on the voltage limit. When several steps share a
// cycle number the last one wins.
func Compute(rows []MergedRow, refCap float64) []Metric {
	floor := refCap / 60
	charge := map[int]MergedRow{}
	discharge := map[int]MergedRow{}
	for _, r := range rows {
		if r.Capacity <= floor {
			continue
		}
		switch {
		case r.Condition == rawlog.Charge && !chargeExcludedFinish[r.FinishReason]:
			charge[r.CycleNumber] = r
		case r.Condition == rawlog.Discharge:
			discharge[r.CycleNumber] = r
		}
	}

	// The retention of a cycle uses the charge that follows it.
	chargeKeys := sortedKeys(charge)
	nextCharge := make(map[int]numeric.Value, len(chargeKeys))
	for i, c := range chargeKeys {
		if i+1 < len(chargeKeys) {
			nextCharge[c] = numeric.Some(charge[chargeKeys[i+1]].Capacity)
		}
	}

	keys := sortedKeys(charge)
	for c := range discharge {
		keys = append(keys, c)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	ref := numeric.Some(refCap)
	out := make([]Metric, 0, len(keys))
	for _, c := range keys {
		m := Metric{Cycle: c}
		chg := numeric.None
		if r, ok := charge[c]; ok {
			chg = numeric.Some(r.Capacity)
			m.Charge = numeric.Div(chg, ref)
			m.RestEndVoltage = numeric.Some(r.OpenCircuitVoltage)
		}
		if r, ok := discharge[c]; ok {
			dchg := numeric.Some(r.Capacity)
			m.Discharge = numeric.Div(dchg, ref)
			m.Efficiency = numeric.Div(dchg, chg)
			m.RetentionEfficiency = numeric.Div(nextCharge[c], dchg)
			m.DischargeEnergy = numeric.Some(r.Energy)
			m.AverageVoltage = numeric.Some(r.AverageVoltage)
			m.Temperature = numeric.Some(r.PeakTemperature)
			m.OriginalCycle = numeric.Some(float64(r.OriginalCycleNumber))
		}
		out = append(out, m)
	}
	return out
}

// Join adds DCIR values to metrics, keyed by cycle. Cycles only present
// in dcir are added with the other fields absent.
func Join(metrics []Metric, dcir map[int]numeric.Value) []Metric {
	if len(dcir) == 0 {
		return metrics
	}
	out := make([]Metric, 0, len(metrics)+len(dcir))
	seen := make(map[int]bool, len(metrics))
	for _, m := range metrics {
		if v, ok := dcir[m.Cycle]; ok {
			m.DCIR = v
		}
		seen[m.Cycle] = true
		out = append(out, m)
	}
	for c, v := range dcir {
		if !seen[c] {
			out = append(out, Metric{Cycle: c, DCIR: v})
		}
	}
	slices.SortFunc(out, func(a, b Metric) int { return a.Cycle - b.Cycle })
	return out
}

// Finalize drops cycles without a discharge capacity.
func Finalize(metrics []Metric) []Metric {
	out := make([]Metric, 0, len(metrics))
	for _, m := range metrics {
		if m.Discharge.Valid {
			out = append(out, m)
		}
	}
	return out
}

// Select keeps cycles in [start, end]. Zero leaves that side open.
func Select(metrics []Metric, start, end int) []Metric {
	if start == 0 && end == 0 {
		return metrics
	}
	out := make([]Metric, 0, len(metrics))
	for _, m := range metrics {
		if start > 0 && m.Cycle < start {
			continue
		}
		if end > 0 && m.Cycle > end {
			continue
		}
		out = append(out, m)
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
