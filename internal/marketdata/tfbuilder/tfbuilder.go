// Package tfbuilder derives canonical bucket keys for the supported
// timeframes. Every aggregator in the repo keys buckets through BucketStart,
// so OHLC bars and VWAP points always join on identical keys.
package tfbuilder

import (
	"time"

	"energy-dashboard/internal/model"
)

// BucketStart returns the canonical key of the bucket containing ts.
//
//	Daily        00:00 of the calendar day
//	Weekly       00:00 of the Monday opening the ISO week (Mon..Sun)
//	SemiMonthly  00:00 of the 1st (days 1-14) or the 15th (days 15-end)
//	Monthly      00:00 of the last calendar day of the month
//
// The result keeps ts's location. Unknown timeframes fall back to Daily.
func BucketStart(ts time.Time, tf model.Timeframe) time.Time {
	y, m, d := ts.Date()
	loc := ts.Location()

	switch tf {
	case model.Weekly:
		// Go weekdays start at Sunday=0; shift so Monday=0.
		offset := (int(ts.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case model.SemiMonthly:
		if d < 15 {
			return time.Date(y, m, 1, 0, 0, 0, 0, loc)
		}
		return time.Date(y, m, 15, 0, 0, 0, 0, loc)
	case model.Monthly:
		// Day 0 of the next month normalizes to the last day of this one.
		return time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// Span returns the half-open interval [from, to) of calendar time covered by
// the bucket whose key is key.
func Span(key time.Time, tf model.Timeframe) (from, to time.Time) {
	y, m, d := key.Date()
	loc := key.Location()

	switch tf {
	case model.Weekly:
		return key, key.AddDate(0, 0, 7)
	case model.SemiMonthly:
		if d < 15 {
			return key, time.Date(y, m, 15, 0, 0, 0, 0, loc)
		}
		return key, time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	case model.Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	default:
		return key, key.AddDate(0, 0, 1)
	}
}
