// Package exporter renders a product's series as CSV, XLSX or Parquet.
// CSV and XLSX carry the display table; Parquet carries the bar series.
package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"energy-dashboard/internal/dashboard"
	"energy-dashboard/internal/model"
	"energy-dashboard/internal/table"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// ErrUnsupportedFormat is returned for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Headers are the display table columns.
var Headers = []string{"Data", "Open", "High", "Low", "Close", "Pmédio", "Vol (MWm)"}

// ParseFormat resolves a file extension, with or without the dot.
func ParseFormat(ext string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(ext, "."))); f {
	case FormatCSV, FormatXLSX, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

// Write renders s in format f.
func Write(w io.Writer, f Format, s *dashboard.Series) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, s.Table)
	case FormatXLSX:
		return WriteXLSX(w, s.Product.Description, s.Table)
	case FormatParquet:
		return WriteParquet(w, Records(s.Frame.Bars, s.VWAP))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteCSV writes the header line and one line per row.
func WriteCSV(w io.Writer, rows []table.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Label,
			price(r.Open),
			price(r.High),
			price(r.Low),
			price(r.Close),
			price(r.Mean),
			strconv.FormatInt(r.Volume, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SheetName turns a product description into a valid worksheet name.
func SheetName(desc string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '-'
		}
		return r
	}, strings.TrimSpace(desc))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		name = "Sheet1"
	}
	return name
}

// WriteXLSX writes a single-sheet workbook with the display table.
func WriteXLSX(w io.Writer, sheet string, rows []table.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	name := SheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{r.Label, r.Open, r.High, r.Low, r.Close, r.Mean, r.Volume}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}

// BarRecord is the Parquet row layout for one bar.
type BarRecord struct {
	Timestamp int64   `parquet:"t"` // bucket key, Unix milliseconds
	Open      float64 `parquet:"o"`
	High      float64 `parquet:"h"`
	Low       float64 `parquet:"l"`
	Close     float64 `parquet:"c"`
	Volume    float64 `parquet:"v"`
	Trades    int64   `parquet:"n"`
	VWAP      float64 `parquet:"vw,optional"`
}

// Records converts bars to Parquet rows in ascending time order. Buckets
// without a VWAP leave vw null.
func Records(bars []model.Bar, vwap map[time.Time]float64) []BarRecord {
	out := make([]BarRecord, 0, len(bars))
	for _, b := range bars {
		rec := BarRecord{
			Timestamp: b.TS.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Trades:    int64(b.Trades),
		}
		if v, ok := vwap[b.TS]; ok && !math.IsNaN(v) {
			rec.VWAP = v
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// WriteParquet writes records as a Parquet file.
func WriteParquet(w io.Writer, recs []BarRecord) error {
	if err := parquet.Write(w, recs); err != nil {
		return fmt.Errorf("parquet: write: %w", err)
	}
	return nil
}

// Filename builds the download name for a product export.
func Filename(productID string, tf model.Timeframe, f Format) string {
	return fmt.Sprintf("%s_%s.%s", productID, tf, f)
}
