// Package agg resamples irregular deal events into timeframe-aligned bars.
//
// Aggregate and VWAP are pure functions over an immutable trade batch. Both
// key buckets through tfbuilder.BucketStart so their outputs join by key.
package agg

import (
	"sort"
	"time"

	"energy-dashboard/internal/marketdata/tfbuilder"
	"energy-dashboard/internal/model"
)

// sorted returns a time-ordered copy of trades. The sort is stable so trades
// sharing a timestamp keep their input order.
func sorted(trades []model.Trade) []model.Trade {
	cp := make([]model.Trade, len(trades))
	copy(cp, trades)
	sort.SliceStable(cp, func(i, j int) bool {
		return cp[i].TS.Before(cp[j].TS)
	})
	return cp
}

// Aggregate groups trades into buckets for tf and returns one Bar per
// non-empty bucket, ascending by key. Empty input yields an empty result.
//
// Open is the first trade at the earliest timestamp in the bucket and close is
// the first trade at the latest timestamp, in input order.
func Aggregate(trades []model.Trade, tf model.Timeframe) []model.Bar {
	if len(trades) == 0 {
		return []model.Bar{}
	}

	bars := make([]model.Bar, 0, 64)
	var (
		cur    *model.Bar
		lastTS time.Time
	)

	for _, t := range sorted(trades) {
		key := tfbuilder.BucketStart(t.TS, tf)

		// Keys are monotonic over time-sorted input, so a key change
		// always opens a new bucket.
		if cur == nil || !key.Equal(cur.TS) {
			bars = append(bars, model.Bar{
				TS:    key,
				Open:  t.UnitPrice,
				High:  t.UnitPrice,
				Low:   t.UnitPrice,
				Close: t.UnitPrice,
			})
			cur = &bars[len(bars)-1]
			lastTS = t.TS
		}

		if t.UnitPrice > cur.High {
			cur.High = t.UnitPrice
		}
		if t.UnitPrice < cur.Low {
			cur.Low = t.UnitPrice
		}
		if t.TS.After(lastTS) {
			cur.Close = t.UnitPrice
			lastTS = t.TS
		}
		cur.Volume += t.Quantity
		cur.Trades++
	}

	return bars
}

type vwapAcc struct {
	notional float64
	qty      float64
}

// VWAP returns Σ(price×qty)/Σ(qty) per bucket key for tf. Buckets whose total
// quantity is not positive are absent from the result.
func VWAP(trades []model.Trade, tf model.Timeframe) map[time.Time]float64 {
	accs := make(map[time.Time]*vwapAcc)
	for _, t := range trades {
		key := tfbuilder.BucketStart(t.TS, tf)
		a, ok := accs[key]
		if !ok {
			a = &vwapAcc{}
			accs[key] = a
		}
		a.notional += t.Notional()
		a.qty += t.Quantity
	}

	out := make(map[time.Time]float64, len(accs))
	for key, a := range accs {
		if a.qty > 0 {
			out[key] = a.notional / a.qty
		}
	}
	return out
}

// ByProduct splits trades by product id, preserving relative order.
func ByProduct(trades []model.Trade) map[string][]model.Trade {
	out := make(map[string][]model.Trade)
	for _, t := range trades {
		out[t.ProductID] = append(out[t.ProductID], t)
	}
	return out
}
