// Package spread compares two products: it ranks products by traded volume to
// choose the default pair and computes their close-price differential.
package spread

import (
	"time"

	"energy-dashboard/internal/model"
)

// Point is one spread observation.
type Point struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// Compute returns closeA - closeB at every bucket key present in both series,
// in a's order. When same is true the two selections are the same product and
// the result is 0 at every key of a. An empty result means the series do not
// overlap.
func Compute(a, b []model.Bar, same bool) []Point {
	out := make([]Point, 0, len(a))
	if same {
		for _, bar := range a {
			out = append(out, Point{TS: bar.TS, Value: 0})
		}
		return out
	}

	closeB := make(map[time.Time]float64, len(b))
	for _, bar := range b {
		closeB[bar.TS] = bar.Close
	}
	for _, bar := range a {
		if cb, ok := closeB[bar.TS]; ok {
			out = append(out, Point{TS: bar.TS, Value: bar.Close - cb})
		}
	}
	return out
}
