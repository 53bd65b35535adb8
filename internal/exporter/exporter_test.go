package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"energy-dashboard/internal/dashboard"
	"energy-dashboard/internal/model"
	"energy-dashboard/internal/table"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	d1 = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	d2 = time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
)

func testBars() []model.Bar {
	return []model.Bar{
		{TS: d1, Open: 100, High: 105, Low: 98, Close: 98, Volume: 35, Trades: 3},
		{TS: d2, Open: 101, High: 101, Low: 101, Close: 101, Volume: 40, Trades: 1},
	}
}

func testRows() []table.Row {
	return table.Build(testBars(), map[time.Time]float64{d1: 3485.0 / 35}, model.Daily)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, ".XLSX": FormatXLSX, "parquet": FormatParquet} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRows()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, Headers, recs[0])
	assert.Equal(t, []string{"04/03/2025", "101.00", "101.00", "101.00", "101.00", "101.00", "40"}, recs[1])
	assert.Equal(t, []string{"03/03/2025", "100.00", "105.00", "98.00", "98.00", "99.57", "35"}, recs[2])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "SE CON MEN ABR/25 - Preço Fixo", testRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	assert.Equal(t, "SE CON MEN ABR-25 - Preço Fixo", sheet)
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, "03/03/2025", rows[2][0])
	assert.Equal(t, "99.57", rows[2][5])
	assert.Equal(t, "35", rows[2][6])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sheet1", SheetName("  "))
	assert.Equal(t, "a-b-c", SheetName("a:b?c"))
	assert.Len(t, []rune(SheetName("NE I5 MEN JAN/26 DEZ/26 - Preço Fixo Longo")), 31)
}

func TestWriteParquet_RoundTrip(t *testing.T) {
	recs := Records(testBars(), map[time.Time]float64{d1: 99.5})
	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, recs))

	got, err := parquet.Read[BarRecord](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d1.UnixMilli(), got[0].Timestamp)
	assert.Equal(t, 99.5, got[0].VWAP)
	assert.Equal(t, int64(3), got[0].Trades)
	assert.Equal(t, 0.0, got[1].VWAP, "missing vwap reads back as zero")
}

func TestWrite_Dispatch(t *testing.T) {
	s := &dashboard.Series{
		Product: model.Product{ID: "10", Description: "Alpha"},
		Frame:   model.NewFrame(testBars()),
		VWAP:    map[time.Time]float64{},
		Table:   testRows(),
	}
	for _, f := range []Format{FormatCSV, FormatXLSX, FormatParquet} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, f, s), f)
		assert.NotZero(t, buf.Len(), f)
		assert.NotEmpty(t, f.ContentType())
	}
	assert.ErrorIs(t, Write(&bytes.Buffer{}, Format("pdf"), s), ErrUnsupportedFormat)
	assert.Equal(t, "10_daily.csv", Filename("10", model.Daily, FormatCSV))
}
