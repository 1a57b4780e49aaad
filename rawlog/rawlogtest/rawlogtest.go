// Package rawlogtest writes synthetic Toyo logs for tests.
package rawlogtest

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/TheCacophonyProject/battery-analyzer/rawlog"
	"golang.org/x/text/encoding/korean"
)

const (
	FinishVoltage = rawlog.FinishVoltage
	FinishCurrent = "                 Cur"
	FinishTime    = rawlog.FinishTime
)

var (
	SummaryHeaderV1 = []string{"TotlCycle", "Condition", "Cap[mAh]", "Ocv", "Finish", "Mode",
		"PeakVolt[V]", "Pow[mWh]", "PeakTemp[Deg]", "AveVolt[V]"}
	SummaryHeaderV2 = []string{"Total Cycle", "Condition", "Capacity[mAh]", "OCV[V]", "End Factor", "Mode",
		"Peak Volt.[V]", "Power[mWh]", "Peak Temp.[deg]", "Ave. Volt.[V]"}
	DetailHeaderV1       = []string{"Date", "Time", "PassTime[Sec]", "Voltage[V]", "Current[mA]", "Condition", "Temp1[Deg]"}
	DetailHeaderV1NoTemp = []string{"Date", "Time", "PassTime[Sec]", "Voltage[V]", "Current[mA]", "Condition", "TotlCycle"}
	DetailHeaderV2       = []string{"Date", "Time", "Passed Time[Sec]", "Voltage[V]", "Current[mA]", "Condition", "Temp1[deg]"}

	detailPreamble = []string{"0,0,0,0,0", "채널,1,시험,충방전", ""}
)

func num(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SummaryRecord lays r out in the column order shared by both summary headers.
func SummaryRecord(r rawlog.Row) []string {
	return []string{
		strconv.Itoa(r.CycleNumber), strconv.Itoa(int(r.Condition)), num(r.Capacity),
		num(r.OpenCircuitVoltage), r.FinishReason, r.Mode, num(r.PeakVoltage),
		num(r.Energy), num(r.PeakTemperature), num(r.AverageVoltage),
	}
}

// DetailRecord lays d out in the column order shared by the detail headers.
// The last column is the temperature, or the cycle number for the variant
// without one.
func DetailRecord(d rawlog.DetailRow, cycle int) []string {
	last := num(d.Temperature)
	if math.IsNaN(d.Temperature) {
		last = strconv.Itoa(cycle)
	}
	return []string{"2024/01/01", "00:00:00", num(d.Time), num(d.Voltage), num(d.Current),
		strconv.Itoa(int(d.Condition)), last}
}

// WriteLog writes an EUC-KR encoded CSV file with CRLF line endings.
func WriteLog(dir, name string, preamble, header []string, records [][]string) error {
	buf := &bytes.Buffer{}
	for _, l := range preamble {
		buf.WriteString(l + "\r\n")
	}
	w := csv.NewWriter(buf)
	w.UseCRLF = true
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	encoded, err := korean.EUCKR.NewEncoder().Bytes(buf.Bytes())
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), encoded, 0644)
}

func WriteSummary(dir string, header []string, rows []rawlog.Row) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = SummaryRecord(r)
	}
	return WriteLog(dir, rawlog.SummaryFile, nil, header, records)
}

func WriteDetail(dir string, cycle int, header []string, rows []rawlog.DetailRow) error {
	records := make([][]string, len(rows))
	for i, r := range rows {
		records[i] = DetailRecord(r, cycle)
	}
	return WriteLog(dir, rawlog.DetailFile(cycle), detailPreamble, header, records)
}

// Cycles generates a summary log of n charge/discharge cycles with rests
// between steps, fading 0.05% per cycle at 99.5% coulombic efficiency.
func Cycles(n int, capacity float64) []rawlog.Row {
	rows := make([]rawlog.Row, 0, 4*n)
	for c := 1; c <= n; c++ {
		fade := 1 - 0.0005*float64(c-1)
		chg := capacity * 1.01 * fade
		dchg := chg * 0.995
		rows = append(rows,
			rawlog.Row{CycleNumber: c, Condition: rawlog.Charge, Capacity: chg, Energy: chg * 3.95,
				OpenCircuitVoltage: 3.45, AverageVoltage: 3.95, PeakVoltage: 4.2, PeakTemperature: 25.5,
				FinishReason: FinishCurrent, Mode: "CCCV"},
			rawlog.Row{CycleNumber: c, Condition: 3, OpenCircuitVoltage: 4.19, AverageVoltage: 4.18,
				PeakVoltage: 4.19, PeakTemperature: 25.1, FinishReason: FinishTime, Mode: "REST"},
			rawlog.Row{CycleNumber: c, Condition: rawlog.Discharge, Capacity: dchg, Energy: dchg * 3.7,
				OpenCircuitVoltage: 4.17, AverageVoltage: 3.7, PeakVoltage: 4.17, PeakTemperature: 27.3,
				FinishReason: FinishVoltage, Mode: "CC"},
			rawlog.Row{CycleNumber: c, Condition: 3, OpenCircuitVoltage: 3.3, AverageVoltage: 3.32,
				PeakVoltage: 3.4, PeakTemperature: 26, FinishReason: FinishTime, Mode: "REST"},
		)
	}
	return rows
}

// Charge generates a constant current charge at rate C sampled every 60
// seconds up to about 80% SOC, followed by a short rest.
func Charge(capacity, rate float64, temperature bool) []rawlog.DetailRow {
	current := capacity * rate
	steps := int(0.8 / rate * 60)
	temp := func(i int) float64 {
		if !temperature {
			return math.NaN()
		}
		return 25 + float64(i)*0.01
	}
	rows := make([]rawlog.DetailRow, 0, steps+5)
	for i := 0; i <= steps; i++ {
		soc := float64(i) / 60 * rate
		rows = append(rows, rawlog.DetailRow{
			Time:        float64(i * 60),
			Voltage:     3.4 + 0.8*soc,
			Current:     current,
			Condition:   rawlog.Charge,
			Temperature: temp(i),
		})
	}
	for i := 1; i <= 5; i++ {
		rows = append(rows, rawlog.DetailRow{
			Time:        float64((steps + i) * 60),
			Voltage:     3.4 + 0.8*0.8 - 0.01*float64(i),
			Condition:   3,
			Temperature: temp(steps + i),
		})
	}
	return rows
}

// WriteRun writes a summary of n cycles plus the detail log of cycle 1.
func WriteRun(dir string, n int, capacity float64) error {
	if err := WriteSummary(dir, SummaryHeaderV1, Cycles(n, capacity)); err != nil {
		return err
	}
	return WriteDetail(dir, 1, DetailHeaderV1, Charge(capacity, 0.2, true))
}
