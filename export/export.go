// Package export writes analysis results as tables, JSON, YAML, CSV or
// Arrow IPC files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/TheCacophonyProject/battery-analyzer/cycles"
	"github.com/TheCacophonyProject/battery-analyzer/pipeline"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("unknown output format")

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

var cycleHeader = []string{"cycle", "orig", "dchg", "chg", "eff", "eff2", "dchg_energy", "rest_vol", "avg_vol", "temp", "dcir"}

func cycleRow(m cycles.Metric) []string {
	return []string{
		strconv.Itoa(m.Cycle),
		m.OriginalCycle.Format(0),
		m.Discharge.Format(4),
		m.Charge.Format(4),
		m.Efficiency.Format(4),
		m.RetentionEfficiency.Format(4),
		m.DischargeEnergy.Format(4),
		m.RestEndVoltage.Format(4),
		m.AverageVoltage.Format(4),
		m.Temperature.Format(1),
		m.DCIR.Format(2),
	}
}

var profileHeader = []string{"time_min", "soc", "vol", "crate", "temp", "dqdv", "dvdq"}

func profileRow(p pipeline.ProfilePoint) []string {
	return []string{
		formatFloat(p.TimeMin, 2),
		formatFloat(p.SOC, 4),
		formatFloat(p.Voltage, 4),
		formatFloat(p.CRate, 4),
		p.Temperature.Format(1),
		p.DQDV.Format(4),
		p.DVDQ.Format(4),
	}
}

func formatFloat(f float64, decimals int) string {
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// WriteCycles writes a cycle result. The table format adds a short
// summary after the rows.
func WriteCycles(w io.Writer, format Format, r pipeline.CycleResult) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatYAML:
		return writeYAML(w, r)
	case FormatCSV:
		rows := make([][]string, len(r.Metrics))
		for i, m := range r.Metrics {
			rows[i] = cycleRow(m)
		}
		return writeCSV(w, cycleHeader, rows)
	case FormatTable, "":
		if err := writeTitle(w, r.Metadata, r.Reason); err != nil {
			return err
		}
		if r.Empty() {
			return nil
		}
		t := NewTable(w, cycleHeader...)
		for _, m := range r.Metrics {
			t.AddRow(cycleRow(m)...)
		}
		if err := t.Render(); err != nil {
			return err
		}
		return writeSummary(w, r.Summary)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func WriteProfile(w io.Writer, format Format, r pipeline.ProfileResult) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatYAML:
		return writeYAML(w, r)
	case FormatCSV:
		rows := make([][]string, len(r.Points))
		for i, p := range r.Points {
			rows[i] = profileRow(p)
		}
		return writeCSV(w, profileHeader, rows)
	case FormatTable, "":
		if err := writeTitle(w, r.Metadata, r.Reason); err != nil {
			return err
		}
		if r.Empty() {
			return nil
		}
		t := NewTable(w, profileHeader...)
		for _, p := range r.Points {
			t.AddRow(profileRow(p)...)
		}
		return t.Render()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func writeTitle(w io.Writer, md pipeline.Metadata, reason string) error {
	title := fmt.Sprintf("%s (%s, %.0f mAh)", md.Location, md.Vendor, md.Capacity)
	if md.Cycle > 0 {
		title += fmt.Sprintf(" cycle %d", md.Cycle)
	}
	if reason != "" {
		title += ": " + reason
	}
	_, err := fmt.Fprintln(w, title)
	return err
}

func writeSummary(w io.Writer, s cycles.Summary) error {
	_, err := fmt.Fprintf(w, "cycles: %d  mean eff: %s (sd %s)  retention: %s  mean dcir: %s\n",
		s.Cycles, s.MeanEfficiency.Format(4), s.StdEfficiency.Format(4), s.Retention.Format(4), s.MeanDCIR.Format(2))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		for i, cell := range row {
			if cell == "-" {
				row[i] = ""
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Table writes aligned columns.
type Table struct {
	w             *tabwriter.Writer
	headers       []string
	headerWritten bool
}

func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		w:       tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight),
		headers: headers,
	}
}

// AddRow appends a row, padding or truncating it to the header width.
func (t *Table) AddRow(values ...string) {
	if !t.headerWritten {
		t.headerWritten = true
		t.writeLine(t.headers)
		sep := make([]string, len(t.headers))
		for i, h := range t.headers {
			sep[i] = strings.Repeat("-", len(h))
		}
		t.writeLine(sep)
	}
	cells := make([]string, len(t.headers))
	copy(cells, values)
	t.writeLine(cells)
}

func (t *Table) writeLine(cells []string) {
	fmt.Fprint(t.w, strings.Join(cells, "\t")+"\t\n")
}

func (t *Table) Render() error {
	return t.w.Flush()
}
