package dashboard

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"energy-dashboard/internal/indicator"
	"energy-dashboard/internal/marketdata/rangefilter"
	"energy-dashboard/internal/model"
)

func day(d, h int) time.Time {
	return time.Date(2025, time.March, d, h, 0, 0, 0, time.UTC)
}

func trade(ts time.Time, product string, price, qty float64, op string) model.Trade {
	return model.Trade{TS: ts, ProductID: product, UnitPrice: price, Quantity: qty, OperationType: op, Status: "Ativo"}
}

func testBatch() *model.Batch {
	return &model.Batch{
		FetchedAt: day(20, 12),
		Tickers: []model.Ticker{
			{ID: "A", Description: "SE CON MEN ABR/25"},
			{ID: "B", Description: "SE CON MEN MAI/25"},
			{ID: "C", Description: "NE CON MEN ABR/25"},
			{ID: "X", Description: "Produto 9"},
		},
		Trades: []model.Trade{
			trade(day(3, 9), "A", 100, 10, model.OperationMatch),
			trade(day(3, 11), "A", 105, 5, model.OperationMatch),
			trade(day(3, 15), "A", 98, 20, model.OperationBoleta),
			trade(day(4, 10), "A", 101, 40, model.OperationMatch),
			trade(day(3, 10), "B", 90, 30, model.OperationMatch),
			trade(day(5, 10), "B", 92, 30, model.OperationBoleta),
			trade(day(5, 10), "C", 80, 1, model.OperationBoleta),
			trade(day(5, 10), "X", 70, 500, model.OperationMatch),
		},
	}
}

func TestBuild_DefaultSelection(t *testing.T) {
	v, err := Build(testBatch(), Query{Indicators: []indicator.Kind{indicator.KindSMA8}}, day(20, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusOK {
		t.Fatalf("status = %s", v.Status)
	}
	// X has the most volume but a placeholder name.
	if len(v.Products) != 3 || v.Products[0].ID != "A" || v.Products[1].ID != "B" {
		t.Fatalf("unexpected ranking %+v", v.Products)
	}
	if v.Query.ProductA != "A" || v.Query.ProductB != "B" {
		t.Errorf("default pair = %s/%s", v.Query.ProductA, v.Query.ProductB)
	}

	a := v.A
	if a.Frame.Len() != 2 {
		t.Fatalf("A bars = %d, want 2", a.Frame.Len())
	}
	bar := a.Frame.Bars[0]
	if bar.Open != 100 || bar.High != 105 || bar.Low != 98 || bar.Close != 98 || bar.Volume != 35 {
		t.Errorf("unexpected bar %+v", bar)
	}
	if got := a.VWAP[day(3, 0)]; math.Abs(got-3485.0/35) > 1e-9 {
		t.Errorf("vwap = %v", got)
	}
	if len(a.Table) != 2 || a.Table[0].Label != "04/03/2025" || a.Table[1].Mean != 99.57 {
		t.Errorf("unexpected table %+v", a.Table)
	}
	if _, ok := a.Frame.Column(indicator.ColSMA8); !ok {
		t.Error("requested indicator column missing")
	}

	// Shared key: March 3 only.
	if v.SpreadStatus != SpreadOK || len(v.Spread) != 1 || v.Spread[0].Value != 98-90 {
		t.Errorf("spread = %+v (%s)", v.Spread, v.SpreadStatus)
	}
}

func TestBuild_OperationFilter(t *testing.T) {
	v, err := Build(testBatch(), Query{Operation: model.OperationMatch}, day(20, 0))
	if err != nil {
		t.Fatal(err)
	}
	// Only A and B have Match deals with valid names.
	if v.Status != StatusOK || len(v.Products) != 2 {
		t.Fatalf("status %s products %+v", v.Status, v.Products)
	}
	if v.A.Frame.Bars[0].Close != 105 {
		t.Errorf("Boleta deal leaked into Match view: %+v", v.A.Frame.Bars[0])
	}
}

func TestBuild_ExplicitProductsAndSelfSpread(t *testing.T) {
	v, err := Build(testBatch(), Query{ProductA: "B", ProductB: "B"}, day(20, 0))
	if err != nil {
		t.Fatal(err)
	}
	if v.A.Product.ID != "B" || v.B.Product.ID != "B" {
		t.Fatalf("selection ignored")
	}
	if len(v.Spread) != 2 {
		t.Fatalf("self spread len = %d", len(v.Spread))
	}
	for _, p := range v.Spread {
		if p.Value != 0 {
			t.Errorf("self spread %v != 0", p.Value)
		}
	}
}

func TestBuild_UnknownProduct(t *testing.T) {
	_, err := Build(testBatch(), Query{ProductA: "X"}, day(20, 0))
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("err = %v, want ErrUnknownProduct", err)
	}
}

func TestBuild_NoDataAndInsufficientProducts(t *testing.T) {
	v, err := Build(nil, Query{}, day(20, 0))
	if err != nil || v.Status != StatusNoData {
		t.Fatalf("nil batch: %v %v", v, err)
	}
	v, _ = Build(&model.Batch{}, Query{}, day(20, 0))
	if v.Status != StatusNoData {
		t.Errorf("empty batch status = %s", v.Status)
	}

	b := testBatch()
	b.Tickers = b.Tickers[:1]
	v, err = Build(b, Query{}, day(20, 0))
	if err != nil || v.Status != StatusInsufficientProducts || len(v.Products) != 1 {
		t.Errorf("one product: %+v %v", v, err)
	}
}

func TestBuild_RangeTrimsAfterIndicators(t *testing.T) {
	b := testBatch()
	// A steady series for A over 40 days; range 1M keeps 31 days.
	b.Trades = b.Trades[:0]
	for i := 0; i < 40; i++ {
		ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		b.Trades = append(b.Trades,
			trade(ts, "A", float64(100+i), 1, model.OperationMatch),
			trade(ts, "B", 50, 1, model.OperationMatch))
	}
	now := time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC)

	v, err := Build(b, Query{Range: rangefilter.Range1M, Indicators: []indicator.Kind{indicator.KindSMA8}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if v.A.Frame.Len() != 31 {
		t.Fatalf("trimmed len = %d, want 31", v.A.Frame.Len())
	}
	sma, _ := v.A.Frame.Column(indicator.ColSMA8)
	// First shown bar is day 9 (price 109); its SMA8 averages 102..109.
	if math.Abs(sma[0]-105.5) > 1e-9 {
		t.Errorf("SMA8 at first shown bar = %v, want 105.5 (computed on full history)", sma[0])
	}
	if len(v.A.VWAP) != 31 {
		t.Errorf("vwap restricted to shown bars: %d", len(v.A.VWAP))
	}
}

func TestBuild_SpreadStatuses(t *testing.T) {
	b := &model.Batch{
		Tickers: []model.Ticker{{ID: "A", Description: "Alpha"}, {ID: "B", Description: "Beta"}},
		Trades: []model.Trade{
			trade(day(3, 9), "A", 10, 5, model.OperationMatch),
			trade(day(4, 9), "B", 10, 1, model.OperationMatch),
		},
	}
	v, _ := Build(b, Query{}, day(20, 0))
	if v.SpreadStatus != SpreadNoOverlap || len(v.Spread) != 0 {
		t.Errorf("disjoint days: %s %v", v.SpreadStatus, v.Spread)
	}

	v, _ = Build(b, Query{Range: rangefilter.Range1M}, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if v.SpreadStatus != SpreadInsufficientData {
		t.Errorf("empty window: %s", v.SpreadStatus)
	}
}

func TestProduct(t *testing.T) {
	s, err := Product(testBatch(), Query{Timeframe: model.Monthly}, "B", day(20, 0))
	if err != nil {
		t.Fatal(err)
	}
	if s.Frame.Len() != 1 || s.Frame.Bars[0].Volume != 60 || s.Table[0].Label != "Mar/2025" {
		t.Errorf("unexpected monthly series %+v", s.Frame.Bars)
	}
	if _, err := Product(testBatch(), Query{}, "", day(20, 0)); !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("empty id: %v", err)
	}
}

func TestView_JSON(t *testing.T) {
	v, err := Build(testBatch(), Query{Indicators: indicator.AllKinds}, day(20, 0))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("view must encode even with NaN indicator values: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back["status"] != "ok" {
		t.Errorf("status = %v", back["status"])
	}
}

func TestLocalNow(t *testing.T) {
	sp := time.FixedZone("BRT", -3*3600)
	got := LocalNow(time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC), sp)
	want := time.Date(2025, 2, 28, 23, 0, 0, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("LocalNow = %v, want %v", got, want)
	}
}
