package cycles

import (
	"github.com/TheCacophonyProject/battery-analyzer/numeric"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a run into a handful of figures.
type Summary struct {
	Cycles         int           `json:"cycles" yaml:"cycles"`
	MeanEfficiency numeric.Value `json:"mean_efficiency" yaml:"mean_efficiency"`
	StdEfficiency  numeric.Value `json:"std_efficiency" yaml:"std_efficiency"`
	FirstDischarge numeric.Value `json:"first_dchg" yaml:"first_dchg"`
	LastDischarge  numeric.Value `json:"last_dchg" yaml:"last_dchg"`
	Retention      numeric.Value `json:"retention" yaml:"retention"`
	MeanDCIR       numeric.Value `json:"mean_dcir" yaml:"mean_dcir"`
}

// Summarize reduces a run's cycle metrics to its headline figures.
func Summarize(metrics []Metric) Summary {
	s := Summary{Cycles: len(metrics)}
	var eff, dcir []float64
	for _, m := range metrics {
		if m.Efficiency.Valid {
			eff = append(eff, m.Efficiency.V)
		}
		if m.DCIR.Valid {
			dcir = append(dcir, m.DCIR.V)
		}
		if m.Discharge.Valid {
			if !s.FirstDischarge.Valid {
				s.FirstDischarge = m.Discharge
			}
			s.LastDischarge = m.Discharge
		}
	}
	if len(eff) > 0 {
		mean, std := stat.MeanStdDev(eff, nil)
		s.MeanEfficiency = numeric.Some(mean)
		if len(eff) > 1 {
			s.StdEfficiency = numeric.Some(std)
		}
	}
	if len(dcir) > 0 {
		s.MeanDCIR = numeric.Some(stat.Mean(dcir, nil))
	}
	s.Retention = numeric.Div(s.LastDischarge, s.FirstDischarge)
	return s
}
