package dashboard

import (
	"energy-dashboard/internal/indicator"
	"energy-dashboard/internal/marketdata/rangefilter"
	"energy-dashboard/internal/model"
)

// Options lists the selector values a client may offer.
type Options struct {
	Timeframes   []model.Timeframe   `json:"timeframes"`
	Indicators   []indicator.Kind    `json:"indicators"`
	Ranges       []rangefilter.Range `json:"ranges"`
	Operations   []string            `json:"operations"`
	DefaultRange rangefilter.Range   `json:"default_range"`
}

// AvailableOptions returns every supported selector value.
func AvailableOptions() Options {
	return Options{
		Timeframes:   model.Timeframes,
		Indicators:   indicator.AllKinds,
		Ranges:       rangefilter.Ranges,
		Operations:   []string{model.OperationMatch, model.OperationBoleta},
		DefaultRange: rangefilter.DefaultRange,
	}
}
