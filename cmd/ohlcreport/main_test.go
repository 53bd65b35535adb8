package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"energy-dashboard/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dealsJSON = `[
 {"id": 1, "createdAt": "2025-03-03T09:00:00", "productId": 10, "unitPrice": "100.5", "quantity": 5, "originOperationType": "Match", "status": "Ativo"},
 {"id": 2, "createdAt": "2025-03-03T15:00:00", "productId": 10, "unitPrice": 102, "quantity": 5, "originOperationType": "Boleta", "status": "Ativo"},
 {"id": 3, "createdAt": "2025-03-04T10:00:00", "productId": 20, "unitPrice": 90, "quantity": 1, "originOperationType": "Match", "status": "Cancelado"}
]`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadBatch_SyntheticTickers(t *testing.T) {
	b, err := loadBatch(writeFile(t, "deals.json", dealsJSON), "", time.UTC)
	require.NoError(t, err)

	require.Len(t, b.Trades, 2) // the cancelled deal is dropped
	require.Len(t, b.Tickers, 1)
	assert.Equal(t, "10", b.Tickers[0].ID)
	assert.Equal(t, "product 10", b.Tickers[0].Description)
	assert.True(t, b.From.Equal(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)))
}

func TestLoadBatch_Malformed(t *testing.T) {
	bad := strings.Replace(dealsJSON, `"100.5"`, `"abc"`, 1)
	_, err := loadBatch(writeFile(t, "deals.json", bad), "", time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unitPrice")
}

func TestLoadTickers(t *testing.T) {
	for name, body := range map[string]string{
		"array":   `[{"id": 10, "description": "SE CON MEN ABR/25"}]`,
		"wrapped": `{"tickers": [{"id": "10", "description": "SE CON MEN ABR/25"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := loadTickers(writeFile(t, "tickers.json", body))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "10", got[0].ID)
		})
	}

	_, err := loadTickers(writeFile(t, "tickers.json", `"nope"`))
	assert.Error(t, err)
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	rows := []table.Row{{Label: "03/03/2025", Open: 100.5, High: 102, Low: 100.5, Close: 102, Mean: 101.25, Volume: 10}}
	require.NoError(t, printTable(&buf, rows))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Pmédio")
	assert.Contains(t, lines[1], "101.25")
}
