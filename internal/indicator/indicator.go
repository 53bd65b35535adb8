// Package indicator provides technical indicator calculations over bar data.
//
// Each indicator is a small state machine fed one bar at a time through the
// Indicator interface. The Engine maps indicator kinds to pure transforms that
// run those state machines over a complete bar sequence.
package indicator

import "energy-dashboard/internal/model"

// Indicator is the interface for all streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA8", "SAR").
	Name() string

	// Update feeds the next bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current value. NaN when undefined.
	Value() float64

	// Ready returns true once the full lookback has been observed.
	Ready() bool
}
