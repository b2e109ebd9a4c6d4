// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Average is either Missing or a concrete value. Aggregations exclude
// Missing inputs from both numerator and denominator; a Missing average is
// never the same thing as zero.
type Average struct {
	value float64
	ok    bool
}

// Missing returns the "no value" average.
func Missing() Average { return Average{} }

// Value wraps a concrete average.
func Value(v float64) Average {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Average{}
	}
	return Average{value: v, ok: true}
}

// Get returns the value and whether it is present.
func (a Average) Get() (float64, bool) { return a.value, a.ok }

// IsMissing reports whether the average has no value.
func (a Average) IsMissing() bool { return !a.ok }

// Or returns the value, or def when missing.
func (a Average) Or(def float64) float64 {
	if !a.ok {
		return def
	}
	return a.value
}

func (a Average) String() string {
	if !a.ok {
		return "missing"
	}
	return strconv.FormatFloat(a.value, 'f', 2, 64)
}

// MarshalJSON encodes Missing as null.
func (a Average) MarshalJSON() ([]byte, error) {
	if !a.ok {
		return []byte("null"), nil
	}
	return json.Marshal(a.value)
}

// UnmarshalJSON decodes null as Missing.
func (a *Average) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*a = Missing()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decode average: %w", err)
	}
	*a = Value(v)
	return nil
}

// Round2 rounds half-up to two decimals on the scaled value.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
