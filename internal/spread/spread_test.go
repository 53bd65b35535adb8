package spread

import (
	"testing"
	"time"

	"energy-dashboard/internal/model"
)

func key(d int) time.Time { return time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC) }

func TestCompute_Intersection(t *testing.T) {
	a := []model.Bar{{TS: key(1), Close: 150}, {TS: key(2), Close: 152}, {TS: key(4), Close: 149}}
	b := []model.Bar{{TS: key(2), Close: 140}, {TS: key(3), Close: 141}, {TS: key(4), Close: 150}}

	got := Compute(a, b, false)
	want := []Point{{TS: key(2), Value: 12}, {TS: key(4), Value: -1}}
	if len(got) != len(want) {
		t.Fatalf("got %d points, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].TS.Equal(want[i].TS) || got[i].Value != want[i].Value {
			t.Errorf("point %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCompute_NoOverlap(t *testing.T) {
	a := []model.Bar{{TS: key(1), Close: 1}}
	b := []model.Bar{{TS: key(2), Close: 2}}
	if got := Compute(a, b, false); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestCompute_SelfSpreadIsZero(t *testing.T) {
	a := []model.Bar{{TS: key(1), Close: 0.1 + 0.2}, {TS: key(2), Close: 1e9 / 3}}
	got := Compute(a, a, true)
	if len(got) != len(a) {
		t.Fatalf("expected %d points, got %d", len(a), len(got))
	}
	for _, p := range got {
		if p.Value != 0 {
			t.Errorf("self spread at %s = %v", p.TS, p.Value)
		}
	}
}

func TestValidProductName(t *testing.T) {
	tests := map[string]bool{
		"SE CON MEN JAN/26 - Preço Fixo": true,
		"Produto 1234":                   false,
		"  Produto   7  ":                false,
		"Produto ABC":                    true,
		"12345 / 678":                    false,
		"":                               false,
		"   ":                            false,
	}
	for in, want := range tests {
		if got := ValidProductName(in); got != want {
			t.Errorf("ValidProductName(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRankProducts(t *testing.T) {
	d := key(1)
	trades := []model.Trade{
		{TS: d, ProductID: "1", Quantity: 10},
		{TS: d, ProductID: "2", Quantity: 30},
		{TS: d, ProductID: "1", Quantity: 15},
		{TS: d, ProductID: "3", Quantity: 100}, // placeholder description
		{TS: d, ProductID: "4", Quantity: 5},   // no ticker
		{TS: d, ProductID: "5", Quantity: 25},
	}
	tickers := []model.Ticker{
		{ID: "1", Description: "SE MEN JUN/25"},
		{ID: "2", Description: "SE TRI JUL/25"},
		{ID: "3", Description: "Produto 3"},
		{ID: "5", Description: "NE MEN JUN/25"},
	}

	got := RankProducts(trades, tickers)
	wantIDs := []string{"2", "1", "5"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d products, want %d: %+v", len(got), len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("rank %d: got %s, want %s", i, got[i].ID, id)
		}
	}
	if got[1].Volume != 25 || got[2].Volume != 25 {
		t.Errorf("unexpected volumes %+v", got)
	}
}
