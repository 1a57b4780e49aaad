/*
battery-analyzer - cycle and profile analysis of battery test logs.
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package cycles turns summary log rows into per-cycle metrics.
package cycles

import "github.com/TheCacophonyProject/battery-analyzer/rawlog"

// MergedRow is a summary row after consecutive steps of the same kind have
// been folded together. OriginalCycleNumber is the number the cycler wrote.
type MergedRow struct {
	rawlog.Row
	OriginalCycleNumber int
}

// Process renumbers runs that start on a discharge and merges consecutive
// charge or discharge steps. The input is not modified.
func Process(rows []rawlog.Row) []MergedRow {
	in := make([]MergedRow, len(rows))
	for i, r := range rows {
		in[i] = MergedRow{Row: r, OriginalCycleNumber: r.CycleNumber}
	}

	// A run that opens with a discharge step ahead of cycle 1 has every
	// discharge counted one cycle late.
	if len(in) > 2 && in[0].Condition == rawlog.Discharge && in[1].CycleNumber == 1 {
		for i := range in {
			if in[i].Condition == rawlog.Discharge {
				in[i].CycleNumber--
			}
		}
		in = in[1:]
	}

	out := make([]MergedRow, 0, len(in))
	for _, r := range in {
		n := len(out)
		if n > 0 && r.Condition.IsActive() && out[n-1].Condition == r.Condition {
			out[n-1] = merge(out[n-1], r)
			continue
		}
		out = append(out, r)
	}
	return out
}

// merge folds prev into next. The result carries next's fields apart from
// the accumulated ones.
func merge(prev, next MergedRow) MergedRow {
	m := next
	m.Capacity = prev.Capacity + next.Capacity
	switch next.Condition {
	case rawlog.Charge:
		m.OpenCircuitVoltage = prev.OpenCircuitVoltage
	case rawlog.Discharge:
		m.Energy = prev.Energy + next.Energy
		m.AverageVoltage = m.Energy / m.Capacity
	}
	return m
}
