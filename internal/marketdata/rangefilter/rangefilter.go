// Package rangefilter trims time-indexed series to a trailing display window.
// It is applied to finished series only, after indicators have seen the full
// history.
package rangefilter

import (
	"sort"
	"strings"
	"time"

	"energy-dashboard/internal/model"
)

// Range is a display window tag.
type Range string

const (
	Range1M  Range = "1M"
	Range2M  Range = "2M"
	Range3M  Range = "3M"
	Range6M  Range = "6M"
	RangeYTD Range = "YTD"
	RangeAll Range = "ALL"
)

// Ranges lists every tag in display order.
var Ranges = []Range{Range1M, Range2M, Range3M, Range6M, RangeYTD, RangeAll}

// DefaultRange is the window shown when a client does not pick one.
const DefaultRange = Range2M

var trailingDays = map[Range]int{
	Range1M: 30,
	Range2M: 60,
	Range3M: 90,
	Range6M: 180,
}

// Parse normalizes a tag. Unknown tags map to RangeAll.
func Parse(s string) Range {
	r := Range(strings.ToUpper(strings.TrimSpace(s)))
	if r == RangeYTD || r == RangeAll {
		return r
	}
	if _, ok := trailingDays[r]; ok {
		return r
	}
	return RangeAll
}

// Cutoff returns the inclusive lower bound for r relative to now.
// The boolean is false for RangeAll and unknown tags.
func Cutoff(r Range, now time.Time) (time.Time, bool) {
	if r == RangeYTD {
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), true
	}
	days, ok := trailingDays[r]
	if !ok {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -days), true
}

// Filter keeps items whose timestamp is at or after the cutoff, preserving
// order. RangeAll and unknown tags return items unchanged.
func Filter[T any](items []T, ts func(T) time.Time, r Range, now time.Time) []T {
	cut, ok := Cutoff(r, now)
	if !ok {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !ts(it).Before(cut) {
			out = append(out, it)
		}
	}
	return out
}

// Bars filters a bar sequence.
func Bars(bars []model.Bar, r Range, now time.Time) []model.Bar {
	return Filter(bars, func(b model.Bar) time.Time { return b.TS }, r, now)
}

// Frame trims an ascending frame, keeping every column aligned with its bars.
func Frame(f *model.Frame, r Range, now time.Time) *model.Frame {
	cut, ok := Cutoff(r, now)
	if !ok || f == nil {
		return f
	}
	i := sort.Search(len(f.Bars), func(i int) bool {
		return !f.Bars[i].TS.Before(cut)
	})
	return f.Tail(i)
}
