package table

import (
	"math"
	"testing"
	"time"

	"energy-dashboard/internal/model"
)

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestBuild_NewestFirstAndVWAP(t *testing.T) {
	bars := []model.Bar{
		{TS: day(3), Open: 100, High: 105, Low: 98, Close: 98, Volume: 35.9},
		{TS: day(4), Open: 99, High: 101, Low: 97, Close: 100, Volume: 12},
	}
	vwap := map[time.Time]float64{day(3): 99.714285714}

	rows := Build(bars, vwap, model.Daily)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Label != "04/03/2025" || rows[1].Label != "03/03/2025" {
		t.Errorf("rows not newest-first: %q, %q", rows[0].Label, rows[1].Label)
	}
	if rows[1].Mean != 99.71 {
		t.Errorf("expected vwap 99.71, got %v", rows[1].Mean)
	}
	if rows[1].Volume != 35 {
		t.Errorf("volume must truncate to 35, got %d", rows[1].Volume)
	}
}

func TestBuild_MeanFallback(t *testing.T) {
	b := model.Bar{TS: day(5), Open: 10, High: 13, Low: 9, Close: 12}
	for name, vwap := range map[string]map[time.Time]float64{
		"absent": nil,
		"nan":    {day(5): math.NaN()},
	} {
		rows := Build([]model.Bar{b}, vwap, model.Daily)
		if rows[0].Mean != 11 {
			t.Errorf("%s: fallback mean got %v, want 11", name, rows[0].Mean)
		}
	}
}

func TestBuild_CapsAt60(t *testing.T) {
	bars := make([]model.Bar, 75)
	for i := range bars {
		bars[i] = model.Bar{TS: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), Close: float64(i)}
	}
	rows := Build(bars, nil, model.Daily)
	if len(rows) != MaxRows {
		t.Fatalf("expected %d rows, got %d", MaxRows, len(rows))
	}
	if rows[0].Close != 74 || rows[MaxRows-1].Close != 15 {
		t.Errorf("unexpected window: first=%v last=%v", rows[0].Close, rows[MaxRows-1].Close)
	}
}

func TestBuild_Empty(t *testing.T) {
	if rows := Build(nil, nil, model.Monthly); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestBuild_MissingVolume(t *testing.T) {
	rows := Build([]model.Bar{{TS: day(1), Volume: math.NaN()}}, nil, model.Daily)
	if rows[0].Volume != 0 {
		t.Errorf("missing volume must be 0, got %d", rows[0].Volume)
	}
}

func TestLabel(t *testing.T) {
	k := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	tests := map[model.Timeframe]string{
		model.Daily:       "31/01/2025",
		model.Weekly:      "Sem 31/01/2025",
		model.SemiMonthly: "31/01/2025",
		model.Monthly:     "Jan/2025",
	}
	for tf, want := range tests {
		if got := Label(k, tf); got != want {
			t.Errorf("Label(%v) = %q, want %q", tf, got, want)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := map[float64]float64{
		1.234:  1.23,
		1.235:  1.24,
		1.245:  1.24,
		-2.555: -2.56,
		100:    100,
	}
	for in, want := range tests {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
	if !math.IsNaN(Round2(math.NaN())) {
		t.Error("NaN should pass through")
	}
}
