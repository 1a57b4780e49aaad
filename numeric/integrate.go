package numeric

import "fmt"

// Integrate accumulates charge in mAh from sample times in seconds and
// currents in mA using the right endpoint of each interval:
//
//	cap[0] = initial
//	cap[i] = cap[i-1] + (t[i]-t[i-1]) * I[i] / 3600
//
// Fewer than two samples yields all zeros.
func Integrate(times, currents []float64, initial float64) ([]float64, error) {
	if len(times) != len(currents) {
		return nil, fmt.Errorf("time and current lengths differ: %d != %d", len(times), len(currents))
	}
	out := make([]float64, len(times))
	if len(times) < 2 {
		return out, nil
	}
	out[0] = initial
	for i := 1; i < len(times); i++ {
		out[i] = out[i-1] + (times[i]-times[i-1])/3600*currents[i]
	}
	return out, nil
}
