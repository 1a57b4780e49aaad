// Package chart renders cycle and profile results with gonum/plot. The
// image format follows the file extension (png, svg, pdf).
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"github.com/TheCacophonyProject/battery-analyzer/pipeline"
	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var ErrNoData = errors.New("nothing to plot")

const (
	width  = 8 * vg.Inch
	height = 5 * vg.Inch
)

var palette = []color.Color{
	colornames.Darkcyan,
	colornames.Darkmagenta,
	colornames.Darkorange,
	colornames.Forestgreen,
	colornames.Steelblue,
	colornames.Firebrick,
}

type series struct {
	label string
	xys   plotter.XYs
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.BackgroundColor = colornames.Snow
	p.Legend.Top = false
	p.Legend.Left = true
	p.Legend.Padding = vg.Points(5)
	p.Add(plotter.NewGrid())
	return p
}

// render adds each non-empty series as a line and saves the plot.
func render(p *plot.Plot, path string, all []series, points bool) error {
	drawn := 0
	for i, s := range all {
		if len(s.xys) == 0 {
			continue
		}
		c := palette[i%len(palette)]
		if points {
			sc, err := plotter.NewScatter(s.xys)
			if err != nil {
				return fmt.Errorf("failed to plot %s: %w", s.label, err)
			}
			sc.Shape = draw.CircleGlyph{}
			sc.Radius = vg.Points(1.5)
			sc.Color = c
			p.Add(sc)
			p.Legend.Add(s.label, sc)
		} else {
			line, err := plotter.NewLine(s.xys)
			if err != nil {
				return fmt.Errorf("failed to plot %s: %w", s.label, err)
			}
			line.Color = c
			line.Width = vg.Points(1.2)
			p.Add(line)
			p.Legend.Add(s.label, line)
		}
		drawn++
	}
	if drawn == 0 {
		return ErrNoData
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save chart %s: %w", path, err)
	}
	return nil
}

func label(md pipeline.Metadata) string {
	if md.Location == "" {
		return "run"
	}
	return filepath.Base(md.Location)
}

// cycleSeries picks one metric per cycle, skipping absent values.
func cycleSeries(r pipeline.CycleResult, pick func(i int) numeric.Value) plotter.XYs {
	var xys plotter.XYs
	for i, m := range r.Metrics {
		if v := pick(i); v.Valid {
			xys = append(xys, plotter.XY{X: float64(m.Cycle), Y: v.V})
		}
	}
	return xys
}

// CapacityFade plots normalized discharge capacity against cycle for
// one or more runs.
func CapacityFade(path string, results ...pipeline.CycleResult) error {
	p := newPlot("Capacity retention", "Cycle", "Discharge capacity (ratio)")
	var all []series
	for _, r := range results {
		all = append(all, series{label(r.Metadata), cycleSeries(r, func(i int) numeric.Value {
			return r.Metrics[i].Discharge
		})})
	}
	return render(p, path, all, true)
}

func Efficiency(path string, results ...pipeline.CycleResult) error {
	p := newPlot("Coulombic efficiency", "Cycle", "Discharge / charge")
	var all []series
	for _, r := range results {
		all = append(all, series{label(r.Metadata), cycleSeries(r, func(i int) numeric.Value {
			return r.Metrics[i].Efficiency
		})})
	}
	return render(p, path, all, true)
}

// DCIR plots pulse resistance against cycle.
func DCIR(path string, results ...pipeline.CycleResult) error {
	p := newPlot("DCIR", "Cycle", "Resistance (mOhm)")
	var all []series
	for _, r := range results {
		all = append(all, series{label(r.Metadata), cycleSeries(r, func(i int) numeric.Value {
			return r.Metrics[i].DCIR
		})})
	}
	return render(p, path, all, true)
}

// Profile plots voltage against SOC.
func Profile(path string, results ...pipeline.ProfileResult) error {
	p := newPlot("Charge profile", "SOC", "Voltage (V)")
	var all []series
	for _, r := range results {
		xys := make(plotter.XYs, len(r.Points))
		for i, pt := range r.Points {
			xys[i] = plotter.XY{X: pt.SOC, Y: pt.Voltage}
		}
		all = append(all, series{profileLabel(r), xys})
	}
	return render(p, path, all, false)
}

// DQDV plots dQ/dV against voltage. Profiles without differential
// values are skipped.
func DQDV(path string, results ...pipeline.ProfileResult) error {
	p := newPlot("dQ/dV", "Voltage (V)", "dQ/dV")
	var all []series
	for _, r := range results {
		var xys plotter.XYs
		for _, pt := range r.Points {
			if pt.DQDV.Valid {
				xys = append(xys, plotter.XY{X: pt.Voltage, Y: pt.DQDV.V})
			}
		}
		all = append(all, series{profileLabel(r), xys})
	}
	return render(p, path, all, false)
}

func profileLabel(r pipeline.ProfileResult) string {
	return fmt.Sprintf("%s cycle %d", label(r.Metadata), r.Metadata.Cycle)
}
