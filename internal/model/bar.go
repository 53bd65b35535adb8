package model

import (
	"encoding/json"
	"time"
)

// Bar is one OHLC aggregate over a timeframe bucket.
// TS is the canonical bucket key produced by tfbuilder.BucketStart.
type Bar struct {
	TS     time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"` // sum of trade quantities (MWm)
	Trades int       `json:"trades"` // number of deals merged into the bucket
}

// Mean returns the unweighted arithmetic mean of open, high, low and close.
func (b *Bar) Mean() float64 {
	return (b.Open + b.High + b.Low + b.Close) / 4
}

// JSON returns the JSON-encoded bar.
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
