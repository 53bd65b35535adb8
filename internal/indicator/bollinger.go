package indicator

import (
	"math"
	"strconv"

	"energy-dashboard/internal/model"
)

// Bollinger tracks a moving average of close and a band of k sample standard
// deviations around it. Both shrink at the start of the series like SMA.
// With a single observation the deviation is undefined and every band except
// the mid is NaN.
type Bollinger struct {
	sma *SMA
	k   float64
}

// NewBollinger creates Bollinger bands over period bars at k deviations.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{sma: NewSMA(period), k: k}
}

func (b *Bollinger) Name() string { return "BB" + strconv.Itoa(b.sma.period) }

func (b *Bollinger) Update(bar model.Bar) { b.sma.Update(bar) }

// Value returns the mid band.
func (b *Bollinger) Value() float64 { return b.sma.Value() }

func (b *Bollinger) Ready() bool { return b.sma.Ready() }

// StdDev returns the sample standard deviation (n-1 denominator) of the
// closes in the current window.
func (b *Bollinger) StdDev() float64 {
	vals := b.sma.values()
	n := len(vals)
	if n < 2 {
		return math.NaN()
	}
	mean := b.sma.Value()
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Bands returns upper, mid and lower. NaN deviation propagates to the
// upper and lower bands.
func (b *Bollinger) Bands() (upper, mid, lower float64) {
	mid = b.sma.Value()
	sd := b.StdDev()
	return mid + b.k*sd, mid, mid - b.k*sd
}
