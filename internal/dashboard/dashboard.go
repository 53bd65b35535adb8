// Package dashboard assembles the view shown for two products: ranked
// product list, enriched bar series, display tables and their spread. Build
// is a pure function of the snapshot it is given.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"energy-dashboard/internal/indicator"
	"energy-dashboard/internal/marketdata/agg"
	"energy-dashboard/internal/marketdata/ingest"
	"energy-dashboard/internal/marketdata/rangefilter"
	"energy-dashboard/internal/model"
	"energy-dashboard/internal/spread"
	"energy-dashboard/internal/table"
)

// ErrUnknownProduct is returned when a requested product id is not among the
// ranked products of the snapshot.
var ErrUnknownProduct = errors.New("unknown product")

// Status summarizes whether a view could be built.
type Status string

const (
	StatusOK                   Status = "ok"
	StatusInsufficientProducts Status = "insufficient_products"
	StatusNoData               Status = "no_data"
)

// SpreadStatus qualifies the spread series.
type SpreadStatus string

const (
	SpreadOK               SpreadStatus = "ok"
	SpreadNoOverlap        SpreadStatus = "no_overlap"
	SpreadInsufficientData SpreadStatus = "insufficient_data"
)

// Query selects what to show. Zero values mean: every operation type,
// Daily, no indicators, ALL, and the two most traded products.
type Query struct {
	Operation  string            `json:"operation"`
	Timeframe  model.Timeframe   `json:"timeframe"`
	Indicators []indicator.Kind  `json:"indicators"`
	Range      rangefilter.Range `json:"range"`
	ProductA   string            `json:"product_a,omitempty"`
	ProductB   string            `json:"product_b,omitempty"`
}

// Series is one product's contribution to the view.
type Series struct {
	Product model.Product         `json:"product"`
	Frame   *model.Frame          `json:"frame"`
	VWAP    map[time.Time]float64 `json:"vwap"`
	Table   []table.Row           `json:"table"`
}

// View is the complete dashboard payload.
type View struct {
	Status       Status          `json:"status"`
	Query        Query           `json:"query"`
	Products     []model.Product `json:"products"`
	A            *Series         `json:"a,omitempty"`
	B            *Series         `json:"b,omitempty"`
	Spread       []spread.Point  `json:"spread"`
	SpreadStatus SpreadStatus    `json:"spread_status,omitempty"`
	SnapshotAt   time.Time       `json:"snapshot_at"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// LocalNow returns the wall clock of now in loc as a naive UTC value, the
// representation trade timestamps use.
func LocalNow(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return ingest.Naive(now.In(loc))
}

// Products ranks the products of batch after the operation filter.
func Products(batch *model.Batch, operation string) []model.Product {
	if batch.Empty() {
		return []model.Product{}
	}
	return spread.RankProducts(ingest.FilterOperation(batch.Trades, operation), batch.Tickers)
}

// Build computes the view for q over batch. now is the naive "current"
// instant used by the range filter. Only unknown product ids are errors.
func Build(batch *model.Batch, q Query, now time.Time) (*View, error) {
	v := &View{
		Status:      StatusNoData,
		Query:       q,
		Products:    []model.Product{},
		Spread:      []spread.Point{},
		GeneratedAt: now,
	}
	if batch.Empty() {
		return v, nil
	}
	v.SnapshotAt = batch.FetchedAt

	trades := ingest.FilterOperation(batch.Trades, q.Operation)
	v.Products = spread.RankProducts(trades, batch.Tickers)
	if len(v.Products) < 2 {
		v.Status = StatusInsufficientProducts
		return v, nil
	}

	pa, err := pick(v.Products, q.ProductA, 0)
	if err != nil {
		return nil, err
	}
	pb, err := pick(v.Products, q.ProductB, 1)
	if err != nil {
		return nil, err
	}
	v.Query.ProductA, v.Query.ProductB = pa.ID, pb.ID

	byProduct := agg.ByProduct(trades)
	engine := indicator.NewEngine(q.Indicators)
	v.A = build(pa, byProduct[pa.ID], engine, q, now)
	v.B = build(pb, byProduct[pb.ID], engine, q, now)

	v.Status = StatusOK
	v.Spread, v.SpreadStatus = compare(v.A, v.B)
	return v, nil
}

// Product computes the series of a single product, as used by exports.
func Product(batch *model.Batch, q Query, id string, now time.Time) (*Series, error) {
	products := Products(batch, q.Operation)
	p, err := pick(products, id, -1)
	if err != nil {
		return nil, err
	}
	var trades []model.Trade
	for _, t := range ingest.FilterOperation(batch.Trades, q.Operation) {
		if t.ProductID == p.ID {
			trades = append(trades, t)
		}
	}
	return build(p, trades, indicator.NewEngine(q.Indicators), q, now), nil
}

// pick returns the product with id, or products[fallback] when id is empty.
func pick(products []model.Product, id string, fallback int) (model.Product, error) {
	if id == "" && fallback >= 0 && fallback < len(products) {
		return products[fallback], nil
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Product{}, fmt.Errorf("%w: %q", ErrUnknownProduct, id)
}

// build runs the pipeline for one product. Indicators see the full history;
// the range only trims what is shown.
func build(p model.Product, trades []model.Trade, engine *indicator.Engine, q Query, now time.Time) *Series {
	bars := agg.Aggregate(trades, q.Timeframe)
	vwap := agg.VWAP(trades, q.Timeframe)

	frame := rangefilter.Frame(engine.Apply(bars), q.Range, now)

	shown := make(map[time.Time]float64, frame.Len())
	for _, b := range frame.Bars {
		if x, ok := vwap[b.TS]; ok {
			shown[b.TS] = x
		}
	}

	return &Series{
		Product: p,
		Frame:   frame,
		VWAP:    shown,
		Table:   table.Build(frame.Bars, vwap, q.Timeframe),
	}
}

func compare(a, b *Series) ([]spread.Point, SpreadStatus) {
	if a.Frame.Len() == 0 || b.Frame.Len() == 0 {
		return []spread.Point{}, SpreadInsufficientData
	}
	pts := spread.Compute(a.Frame.Bars, b.Frame.Bars, a.Product.ID == b.Product.ID)
	if len(pts) == 0 {
		return pts, SpreadNoOverlap
	}
	return pts, SpreadOK
}
