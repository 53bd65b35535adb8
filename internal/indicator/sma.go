package indicator

import (
	"math"
	"strconv"

	"energy-dashboard/internal/model"
)

// SMA is a simple moving average of close over a trailing window.
// Until the window fills it averages every close seen so far, so it yields a
// value from the first bar on instead of a leading gap.
type SMA struct {
	period int
	buf    []float64 // circular buffer of the last `period` closes
	idx    int       // next write position
	count  int       // total values received
	sum    float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" + strconv.Itoa(s.period) }

func (s *SMA) Update(bar model.Bar) {
	if s.count >= s.period {
		s.sum -= s.buf[s.idx]
	}
	s.buf[s.idx] = bar.Close
	s.sum += bar.Close
	s.idx = (s.idx + 1) % s.period
	s.count++
}

// Value returns the mean of the last min(count, period) closes.
func (s *SMA) Value() float64 {
	n := s.window()
	if n == 0 {
		return math.NaN()
	}
	return s.sum / float64(n)
}

func (s *SMA) Ready() bool { return s.count >= s.period }

func (s *SMA) window() int {
	if s.count < s.period {
		return s.count
	}
	return s.period
}

// values returns the closes currently in the window, oldest first.
func (s *SMA) values() []float64 {
	n := s.window()
	out := make([]float64, n)
	start := (s.idx - n + s.period) % s.period
	for i := 0; i < n; i++ {
		out[i] = s.buf[(start+i)%s.period]
	}
	return out
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}
