package spread

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"energy-dashboard/internal/model"
)

var placeholderName = regexp.MustCompile(`^Produto\s+\d+$`)

// ValidProductName rejects blank descriptions, generated placeholders such
// as "Produto 1234", and descriptions without a single letter.
func ValidProductName(desc string) bool {
	desc = strings.TrimSpace(desc)
	if desc == "" || placeholderName.MatchString(desc) {
		return false
	}
	return strings.IndexFunc(desc, unicode.IsLetter) >= 0
}

// ValidTickers returns the tickers whose description passes ValidProductName.
func ValidTickers(tickers []model.Ticker) []model.Ticker {
	out := make([]model.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if ValidProductName(t.Description) {
			out = append(out, t)
		}
	}
	return out
}

// RankProducts sums traded quantity per product and returns the products that
// have a valid ticker description, by descending volume. Equal volumes are
// ordered by product id so the ranking is deterministic.
func RankProducts(trades []model.Trade, tickers []model.Ticker) []model.Product {
	desc := make(map[string]string, len(tickers))
	for _, t := range tickers {
		if ValidProductName(t.Description) {
			desc[t.ID] = strings.TrimSpace(t.Description)
		}
	}

	volume := make(map[string]float64)
	for _, t := range trades {
		volume[t.ProductID] += t.Quantity
	}

	out := make([]model.Product, 0, len(volume))
	for id, v := range volume {
		d, ok := desc[id]
		if !ok {
			continue
		}
		out = append(out, model.Product{ID: id, Description: d, Volume: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].ID < out[j].ID
	})
	return out
}
