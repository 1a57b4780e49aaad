// Package numeric holds the coulomb counting and differential routines
// shared by the cycle and profile pipelines, plus the optional float used
// for metrics that can be indeterminate.
package numeric

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a float that may be absent. Absent values come from missing
// rows and from divisions by zero.
type Value struct {
	V     float64
	Valid bool
}

// Some wraps v, treating NaN and infinities as absent.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, Valid: true}
}

var None = Value{}

// Div returns a/b, absent when either side is absent or b is zero.
func Div(a, b Value) Value {
	if !a.Valid || !b.Valid || b.V == 0 {
		return None
	}
	return Some(a.V / b.V)
}

// Ratio is Div for plain floats.
func Ratio(a, b float64) Value {
	return Div(Some(a), Some(b))
}

// Float returns the value or NaN when absent.
func (v Value) Float() float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.V
}

func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.V, 'f', -1, 64)
}

// Format renders the value with a fixed number of decimals, or "-" when absent.
func (v Value) Format(decimals int) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.V, 'f', decimals, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = None
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

func (v Value) MarshalYAML() (interface{}, error) {
	if !v.Valid {
		return nil, nil
	}
	return v.V, nil
}
