package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"energy-dashboard/internal/dashboard"
	"energy-dashboard/internal/exporter"
	"energy-dashboard/internal/indicator"
	"energy-dashboard/internal/marketdata/ingest"
	"energy-dashboard/internal/marketdata/rangefilter"
	"energy-dashboard/internal/model"
	"energy-dashboard/internal/spread"
	"energy-dashboard/internal/table"
	"energy-dashboard/pkg/bbce"
)

func main() {
	log.SetFlags(0)

	dealsPath := flag.String("deals", "", "Path to an all-deals report JSON file (required)")
	tickersPath := flag.String("tickers", "", "Path to a negotiable-tickers JSON file (array or {\"tickers\": [...]})")
	productID := flag.String("product", "", "Product id (default: most traded)")
	tfStr := flag.String("tf", "daily", "Timeframe: daily, weekly, semimonthly, monthly")
	op := flag.String("op", "", "Operation type filter: Match or Boleta (default: all)")
	rangeStr := flag.String("range", "ALL", "Display range: 1M, 2M, 3M, 6M, YTD, ALL")
	inds := flag.String("ind", "", "Comma-separated indicators, e.g. SMA8,BB8,SAR")
	tz := flag.String("tz", "America/Sao_Paulo", "Timezone of the deal timestamps")
	out := flag.String("out", "", "Write the table to .csv/.xlsx or the bars to .parquet")
	flag.Parse()

	if *dealsPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("[ohlcreport] invalid -tz: %v", err)
	}

	batch, err := loadBatch(*dealsPath, *tickersPath, loc)
	if err != nil {
		log.Fatalf("[ohlcreport] %v", err)
	}

	tf, ok := model.ParseTimeframe(*tfStr)
	if !ok {
		log.Printf("[ohlcreport] unknown timeframe %q, using %s", *tfStr, tf)
	}
	q := dashboard.Query{
		Operation:  *op,
		Timeframe:  tf,
		Indicators: indicator.ParseKinds(strings.Split(*inds, ",")),
		Range:      rangefilter.Parse(*rangeStr),
	}

	id := *productID
	if id == "" {
		products := dashboard.Products(batch, *op)
		if len(products) == 0 {
			log.Fatalf("[ohlcreport] no ranked products in %s", *dealsPath)
		}
		id = products[0].ID
	}

	series, err := dashboard.Product(batch, q, id, dashboard.LocalNow(time.Now(), loc))
	if err != nil {
		log.Fatalf("[ohlcreport] %v", err)
	}

	fmt.Printf("%s (%s)  %s  range=%s  bars=%d\n\n",
		series.Product.Description, series.Product.ID, q.Timeframe, q.Range, len(series.Frame.Bars))
	if err := printTable(os.Stdout, series.Table); err != nil {
		log.Fatalf("[ohlcreport] %v", err)
	}

	if *out != "" {
		if err := writeExport(*out, series); err != nil {
			log.Fatalf("[ohlcreport] %v", err)
		}
		log.Printf("[ohlcreport] wrote %s", *out)
	}
}

func loadBatch(dealsPath, tickersPath string, loc *time.Location) (*model.Batch, error) {
	raw, err := os.ReadFile(dealsPath)
	if err != nil {
		return nil, err
	}
	var deals []bbce.Deal
	if err := json.Unmarshal(raw, &deals); err != nil {
		return nil, fmt.Errorf("%s: %w", dealsPath, err)
	}
	trades, err := ingest.Normalize(deals, ingest.Options{Location: loc})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dealsPath, err)
	}

	var tickers []model.Ticker
	if tickersPath != "" {
		if tickers, err = loadTickers(tickersPath); err != nil {
			return nil, err
		}
	} else {
		tickers = syntheticTickers(trades)
	}

	b := &model.Batch{
		Trades:    trades,
		Tickers:   spread.ValidTickers(tickers),
		FetchedAt: time.Now().UTC(),
	}
	if len(trades) > 0 {
		b.From, b.To = trades[0].TS, trades[len(trades)-1].TS
	}
	return b, nil
}

func loadTickers(path string) ([]model.Ticker, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []bbce.Ticker
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Tickers []bbce.Ticker `json:"tickers"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		list = wrapped.Tickers
	}
	out := make([]model.Ticker, 0, len(list))
	for _, t := range list {
		out = append(out, model.Ticker{ID: t.ID.String(), Description: t.Description})
	}
	return out, nil
}

// syntheticTickers names every traded product after its id so the report
// works without a ticker listing.
func syntheticTickers(trades []model.Trade) []model.Ticker {
	seen := make(map[string]bool)
	var out []model.Ticker
	for _, t := range trades {
		if seen[t.ProductID] {
			continue
		}
		seen[t.ProductID] = true
		out = append(out, model.Ticker{ID: t.ProductID, Description: "product " + t.ProductID})
	}
	return out
}

func printTable(w io.Writer, rows []table.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(exporter.Headers, "\t")+"\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t\n",
			r.Label, r.Open, r.High, r.Low, r.Close, r.Mean, r.Volume)
	}
	return tw.Flush()
}

func writeExport(path string, s *dashboard.Series) error {
	format, err := exporter.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exporter.Write(f, format, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
