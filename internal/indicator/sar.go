package indicator

import (
	"math"

	"energy-dashboard/internal/model"
)

// Trend is the state of the Parabolic SAR machine.
type Trend int

const (
	Bull Trend = iota // SAR below price, extreme point tracks highs
	Bear              // SAR above price, extreme point tracks lows
)

func (t Trend) String() string {
	if t == Bear {
		return "bear"
	}
	return "bull"
}

// Default Wilder parameters.
const (
	SARStep = 0.02
	SARMax  = 0.20
)

// ParabolicSAR is Wilder's stop-and-reverse indicator driven by high/low.
//
// Bar 0 seeds the machine in Bull with ep = high and sar = low. For every
// later bar the candidate sar = prev + af*(ep-prev) is clamped against the
// prior one or two lows (Bull) or highs (Bear). Penetration of the clamped
// value reverses the trend: sar jumps to the old extreme point, the extreme
// point resets to the bar's low/high and af resets to step. Otherwise a new
// extreme extends ep and raises af by step, capped at max.
type ParabolicSAR struct {
	step, max float64

	trend Trend
	af    float64
	ep    float64
	sar   float64

	// Lows and highs of the previous two bars: [0] is i-1, [1] is i-2.
	lows  [2]float64
	highs [2]float64

	count int
}

// NewParabolicSAR creates a SAR with the given acceleration step and cap.
func NewParabolicSAR(step, max float64) *ParabolicSAR {
	return &ParabolicSAR{step: step, max: max, sar: math.NaN()}
}

func (p *ParabolicSAR) Name() string { return "SAR" }

func (p *ParabolicSAR) Update(bar model.Bar) {
	defer func() {
		p.lows[1], p.lows[0] = p.lows[0], bar.Low
		p.highs[1], p.highs[0] = p.highs[0], bar.High
		p.count++
	}()

	if p.count == 0 {
		p.trend = Bull
		p.af = p.step
		p.ep = bar.High
		p.sar = bar.Low
		return
	}

	prev := p.sar
	sar := prev + p.af*(p.ep-prev)

	switch p.trend {
	case Bull:
		sar = math.Min(sar, p.lows[0])
		if p.count >= 2 {
			sar = math.Min(sar, p.lows[1])
		}
		if bar.Low < sar {
			p.trend = Bear
			p.sar = p.ep
			p.ep = bar.Low
			p.af = p.step
			return
		}
		p.sar = sar
		if bar.High > p.ep {
			p.ep = bar.High
			p.af = math.Min(p.af+p.step, p.max)
		}

	case Bear:
		sar = math.Max(sar, p.highs[0])
		if p.count >= 2 {
			sar = math.Max(sar, p.highs[1])
		}
		if bar.High > sar {
			p.trend = Bull
			p.sar = p.ep
			p.ep = bar.High
			p.af = p.step
			return
		}
		p.sar = sar
		if bar.Low < p.ep {
			p.ep = bar.Low
			p.af = math.Min(p.af+p.step, p.max)
		}
	}
}

// Value returns the SAR of the last bar, NaN before the first bar.
func (p *ParabolicSAR) Value() float64 { return p.sar }

// Ready reports whether at least two bars have been seen.
func (p *ParabolicSAR) Ready() bool { return p.count >= 2 }

// Trend returns the current trend state.
func (p *ParabolicSAR) Trend() Trend { return p.trend }

// ExtremePoint returns the current extreme point.
func (p *ParabolicSAR) ExtremePoint() float64 { return p.ep }

// AF returns the current acceleration factor.
func (p *ParabolicSAR) AF() float64 { return p.af }
