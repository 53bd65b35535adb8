package model

import (
	"math"
	"strconv"
)

// Values is a numeric column aligned with a Bar sequence.
// Missing entries are NaN and encode as JSON null.
type Values []float64

// MarshalJSON writes NaN and ±Inf as null.
func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, len(v)*8+2)
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, x, 'f', -1, 64)
	}
	buf = append(buf, ']')
	return buf, nil
}

// NaNs returns a column of n missing values.
func NaNs(n int) Values {
	v := make(Values, n)
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}

// Frame is a Bar sequence extended with indicator columns. Every column and
// flag slice has exactly len(Bars) entries.
type Frame struct {
	Bars    []Bar             `json:"bars"`
	Columns map[string]Values `json:"columns"`
	Flags   map[string][]bool `json:"flags,omitempty"`
}

// NewFrame returns a frame over a private copy of bars.
func NewFrame(bars []Bar) *Frame {
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return &Frame{
		Bars:    cp,
		Columns: make(map[string]Values),
		Flags:   make(map[string][]bool),
	}
}

// Len returns the number of bars. Nil-safe.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Bars)
}

// Column returns the named indicator column.
func (f *Frame) Column(name string) (Values, bool) {
	if f == nil {
		return nil, false
	}
	v, ok := f.Columns[name]
	return v, ok
}

// Tail returns a frame holding rows [from, Len()). Columns are re-sliced,
// not copied, so the result must be treated as read-only.
func (f *Frame) Tail(from int) *Frame {
	if f == nil {
		return nil
	}
	if from < 0 {
		from = 0
	}
	if from > len(f.Bars) {
		from = len(f.Bars)
	}
	out := &Frame{
		Bars:    f.Bars[from:],
		Columns: make(map[string]Values, len(f.Columns)),
		Flags:   make(map[string][]bool, len(f.Flags)),
	}
	for k, v := range f.Columns {
		out.Columns[k] = v[from:]
	}
	for k, v := range f.Flags {
		out.Flags[k] = v[from:]
	}
	return out
}
