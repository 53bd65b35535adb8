package model

import "strings"

// Timeframe selects the bucket width used to aggregate deals.
type Timeframe int

const (
	Daily Timeframe = iota
	Weekly
	SemiMonthly
	Monthly
)

// Timeframes lists every supported timeframe in display order.
var Timeframes = []Timeframe{Daily, Weekly, SemiMonthly, Monthly}

func (tf Timeframe) String() string {
	switch tf {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case SemiMonthly:
		return "semimonthly"
	case Monthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// MarshalText encodes the timeframe by name.
func (tf Timeframe) MarshalText() ([]byte, error) {
	return []byte(tf.String()), nil
}

// UnmarshalText decodes a timeframe name. Unknown names decode to Daily.
func (tf *Timeframe) UnmarshalText(b []byte) error {
	*tf, _ = ParseTimeframe(string(b))
	return nil
}

// ParseTimeframe accepts the canonical names, the short resample codes
// (D, W, SM, M/ME) and the Portuguese UI labels. The boolean is false and
// the result is Daily when the name is not recognized.
func ParseTimeframe(s string) (Timeframe, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d", "diário", "diario":
		return Daily, true
	case "weekly", "w", "semanal":
		return Weekly, true
	case "semimonthly", "semi-monthly", "sm", "quinzenal":
		return SemiMonthly, true
	case "monthly", "m", "me", "mensal":
		return Monthly, true
	default:
		return Daily, false
	}
}
