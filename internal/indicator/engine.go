package indicator

import (
	"strings"

	"energy-dashboard/internal/model"
)

// Kind enumerates the supported indicators.
type Kind int

const (
	KindSMA8 Kind = iota + 1
	KindSMA20
	KindSMA50
	KindBB8
	KindSAR
)

// AllKinds lists every kind in display order.
var AllKinds = []Kind{KindSMA8, KindSMA20, KindSMA50, KindBB8, KindSAR}

// Output column names.
const (
	ColSMA8     = "SMA8"
	ColSMA20    = "SMA20"
	ColSMA50    = "SMA50"
	ColBBUpper  = "BB_upper"
	ColBBMid    = "BB_mid"
	ColBBLower  = "BB_lower"
	ColSAR      = "SAR"
	FlagSARBull = "SAR_bull"
)

func (k Kind) String() string {
	switch k {
	case KindSMA8:
		return "SMA8"
	case KindSMA20:
		return "SMA20"
	case KindSMA50:
		return "SMA50"
	case KindBB8:
		return "BB8"
	case KindSAR:
		return "SAR"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseKind resolves an indicator name. Case, spaces, dashes and underscores
// are ignored, and the UI labels "Bollinger Bands 8" and "SAR Parabólico"
// are accepted.
func ParseKind(s string) (Kind, bool) {
	norm := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))

	switch norm {
	case "sma8":
		return KindSMA8, true
	case "sma20":
		return KindSMA20, true
	case "sma50":
		return KindSMA50, true
	case "bb8", "bollinger8", "bollingerbands8":
		return KindBB8, true
	case "sar", "psar", "parabolicsar", "sarparabólico", "sarparabolico":
		return KindSAR, true
	default:
		return 0, false
	}
}

// ParseKinds resolves names in order, dropping unknown names and duplicates.
func ParseKinds(names []string) []Kind {
	seen := make(map[Kind]bool, len(names))
	out := make([]Kind, 0, len(names))
	for _, n := range names {
		k, ok := ParseKind(n)
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// transform adds one indicator's columns to a frame.
type transform func(f *model.Frame)

var transforms = map[Kind]transform{
	KindSMA8:  smaTransform(8, ColSMA8),
	KindSMA20: smaTransform(20, ColSMA20),
	KindSMA50: smaTransform(50, ColSMA50),
	KindBB8:   bollingerTransform(8, 2),
	KindSAR:   sarTransform(SARStep, SARMax),
}

func smaTransform(period int, col string) transform {
	return func(f *model.Frame) {
		sma := NewSMA(period)
		out := make(model.Values, len(f.Bars))
		for i, b := range f.Bars {
			sma.Update(b)
			out[i] = sma.Value()
		}
		f.Columns[col] = out
	}
}

func bollingerTransform(period int, k float64) transform {
	return func(f *model.Frame) {
		bb := NewBollinger(period, k)
		n := len(f.Bars)
		upper, mid, lower := make(model.Values, n), make(model.Values, n), make(model.Values, n)
		for i, b := range f.Bars {
			bb.Update(b)
			upper[i], mid[i], lower[i] = bb.Bands()
		}
		f.Columns[ColBBUpper] = upper
		f.Columns[ColBBMid] = mid
		f.Columns[ColBBLower] = lower
	}
}

func sarTransform(step, max float64) transform {
	return func(f *model.Frame) {
		n := len(f.Bars)
		bull := make([]bool, n)
		if n < 2 {
			f.Columns[ColSAR] = model.NaNs(n)
			f.Flags[FlagSARBull] = bull
			return
		}
		sar := NewParabolicSAR(step, max)
		out := make(model.Values, n)
		for i, b := range f.Bars {
			sar.Update(b)
			out[i] = sar.Value()
			bull[i] = out[i] < b.Close
		}
		f.Columns[ColSAR] = out
		f.Flags[FlagSARBull] = bull
	}
}

// Engine computes a fixed set of indicators over bar sequences.
// It holds no per-series state, so one Engine may serve concurrent callers.
type Engine struct {
	kinds []Kind
}

// NewEngine creates an engine for the given kinds. Kinds without a
// transform are dropped.
func NewEngine(kinds []Kind) *Engine {
	valid := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := transforms[k]; ok {
			valid = append(valid, k)
		}
	}
	return &Engine{kinds: valid}
}

// Kinds returns the indicators this engine computes.
func (e *Engine) Kinds() []Kind {
	out := make([]Kind, len(e.kinds))
	copy(out, e.kinds)
	return out
}

// Apply returns a frame over a copy of bars with one column set per kind.
// Bars are never added, removed or modified.
func (e *Engine) Apply(bars []model.Bar) *model.Frame {
	f := model.NewFrame(bars)
	for _, k := range e.kinds {
		transforms[k](f)
	}
	return f
}

// Apply is shorthand for NewEngine(kinds).Apply(bars).
func Apply(bars []model.Bar, kinds []Kind) *model.Frame {
	return NewEngine(kinds).Apply(bars)
}
