// Package table builds the newest-first display rows shown under each chart.
package table

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"energy-dashboard/internal/model"
)

// MaxRows caps the number of rows returned by Build.
const MaxRows = 60

// Row is one formatted table line. Prices are rounded to two decimals.
type Row struct {
	Key    time.Time `json:"key"`
	Label  string    `json:"label"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Mean   float64   `json:"mean"`   // VWAP, or the OHLC mean when no VWAP exists
	Volume int64     `json:"volume"` // MWm, truncated
}

// Label formats a bucket key for tf.
func Label(key time.Time, tf model.Timeframe) string {
	switch tf {
	case model.Weekly:
		return key.Format("Sem 02/01/2006")
	case model.Monthly:
		return key.Format("Jan/2006")
	default:
		return key.Format("02/01/2006")
	}
}

// Build returns at most MaxRows rows for the most recent bars, newest first.
// The mean column uses the bucket's VWAP when present and finite, otherwise
// (open+high+low+close)/4.
func Build(bars []model.Bar, vwap map[time.Time]float64, tf model.Timeframe) []Row {
	start := len(bars) - MaxRows
	if start < 0 {
		start = 0
	}

	rows := make([]Row, 0, len(bars)-start)
	for i := len(bars) - 1; i >= start; i-- {
		b := bars[i]
		mean, ok := vwap[b.TS]
		if !ok || math.IsNaN(mean) {
			mean = b.Mean()
		}
		rows = append(rows, Row{
			Key:    b.TS,
			Label:  Label(b.TS, tf),
			Open:   Round2(b.Open),
			High:   Round2(b.High),
			Low:    Round2(b.Low),
			Close:  Round2(b.Close),
			Mean:   Round2(mean),
			Volume: volume(b.Volume),
		})
	}
	return rows
}

// Round2 rounds half-to-even at two decimals. Non-finite values pass through.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}

func volume(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(v)
}
