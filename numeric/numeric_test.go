package numeric

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestIntegrate(t *testing.T) {
	caps, err := Integrate([]float64{0, 10}, []float64{100, 200}, 0)
	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, 0.0, caps[0])
	assert.InDelta(t, 0.5556, caps[1], 1e-4)

	caps, err = Integrate([]float64{0, 3600, 7200}, []float64{500, 1000, 1000}, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 1010, 2010}, caps)
}

func TestIntegrateShortAndMismatched(t *testing.T) {
	caps, err := Integrate([]float64{5}, []float64{100}, 42)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, caps)

	caps, err = Integrate(nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, caps)

	_, err = Integrate([]float64{0, 1}, []float64{1}, 0)
	assert.Error(t, err)
}

func TestSmoothingWindow(t *testing.T) {
	assert.Equal(t, 1, SmoothingWindow(10, 0))
	assert.Equal(t, 3, SmoothingWindow(90, 0))
	assert.Equal(t, 5, SmoothingWindow(90, 5))
}

func TestDifferentiate(t *testing.T) {
	v := []float64{3.0, 3.1, 3.3, 3.3}
	q := []float64{0, 10, 30, 40}
	dqdv, dvdq, err := Differentiate(v, q, 1)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(dqdv[0]))
	assert.True(t, math.IsNaN(dvdq[0]))
	assert.InDelta(t, 100, dqdv[1], 1e-9)
	assert.InDelta(t, 0.01, dvdq[1], 1e-12)
	assert.InDelta(t, 100, dqdv[2], 1e-9)
	assert.True(t, math.IsInf(dqdv[3], 1))
	assert.Equal(t, 0.0, dvdq[3])

	_, _, err = Differentiate(v, q[:2], 1)
	assert.Error(t, err)
}

func TestValue(t *testing.T) {
	assert.Equal(t, None, Ratio(1, 0))
	assert.Equal(t, None, Div(None, Some(2)))
	assert.InDelta(t, 0.947, Ratio(1800, 1900).V, 1e-3)
	assert.Equal(t, None, Some(math.NaN()))
	assert.Equal(t, None, Some(math.Inf(-1)))
	assert.True(t, math.IsNaN(None.Float()))
	assert.Equal(t, "-", None.Format(3))
	assert.Equal(t, "0.900", Some(0.9).Format(3))

	b, err := json.Marshal([]Value{Some(1.5), None})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, null]`, string(b))

	var back []Value
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []Value{Some(1.5), None}, back)

	y, err := yaml.Marshal(map[string]Value{"a": None, "b": Some(2)})
	require.NoError(t, err)
	assert.Equal(t, "a: null\nb: 2\n", string(y))
}
