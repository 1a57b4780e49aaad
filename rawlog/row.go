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

// Package rawlog reads the step logs written by Toyo battery cyclers into
// a canonical row schema.
package rawlog

import (
	"fmt"
	"strings"
)

// Condition is the step kind recorded by the cycler.
type Condition int

const (
	Charge    Condition = 1
	Discharge Condition = 2
)

// IsActive reports whether the step moved charge, rest and other steps do not.
func (c Condition) IsActive() bool {
	return c == Charge || c == Discharge
}

func (c Condition) String() string {
	switch c {
	case Charge:
		return "charge"
	case Discharge:
		return "discharge"
	default:
		return fmt.Sprintf("rest(%d)", int(c))
	}
}

// Vendor identifies the equipment family that wrote a run.
type Vendor string

const (
	Toyo Vendor = "TOYO"
	PNE  Vendor = "PNE"
)

func ParseVendor(s string) (Vendor, error) {
	switch Vendor(strings.ToUpper(strings.TrimSpace(s))) {
	case Toyo:
		return Toyo, nil
	case PNE:
		return PNE, nil
	}
	return "", fmt.Errorf("unknown vendor %q", s)
}

// Finish reasons as the cycler pads them in capacity.log.
const (
	FinishVoltage = "                 Vol"
	FinishTime    = "                 Tim"
)

// Row is one step of the cycle summary log. Optional readings that are
// missing or unparsable are NaN.
type Row struct {
	CycleNumber        int
	Condition          Condition
	Capacity           float64 // mAh
	Energy             float64 // mWh
	OpenCircuitVoltage float64
	AverageVoltage     float64
	PeakVoltage        float64
	PeakTemperature    float64
	FinishReason       string
	Mode               string
}

// DetailRow is one sample of a per-cycle detail log.
type DetailRow struct {
	Time        float64 // seconds since the start of the cycle
	Voltage     float64
	Current     float64 // mA
	Condition   Condition
	Temperature float64 // NaN when the log has no temperature column
}

// Table is the result of reading one log file.
type Table[T any] struct {
	Schema  string
	Rows    []T
	Skipped int
}
