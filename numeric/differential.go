package numeric

import (
	"fmt"
	"math"
)

// SmoothingWindow picks the differencing window: override when positive,
// otherwise one thirtieth of the samples with a minimum of one.
func SmoothingWindow(n, override int) int {
	if override > 0 {
		return override
	}
	return max(1, n/30)
}

// Differentiate returns dQ/dV and dV/dQ computed over a lag of window
// samples. The first window entries are NaN. Zero deltas follow IEEE
// division so they produce Inf or NaN rather than an error.
func Differentiate(voltage, capacity []float64, window int) (dqdv, dvdq []float64, err error) {
	if len(voltage) != len(capacity) {
		return nil, nil, fmt.Errorf("voltage and capacity lengths differ: %d != %d", len(voltage), len(capacity))
	}
	w := SmoothingWindow(len(voltage), window)
	dqdv = make([]float64, len(voltage))
	dvdq = make([]float64, len(voltage))
	for i := range voltage {
		if i < w {
			dqdv[i] = math.NaN()
			dvdq[i] = math.NaN()
			continue
		}
		dv := voltage[i] - voltage[i-w]
		dq := capacity[i] - capacity[i-w]
		dqdv[i] = dq / dv
		dvdq[i] = dv / dq
	}
	return dqdv, dvdq, nil
}
