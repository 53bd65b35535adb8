package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"energy-dashboard/internal/dashboard"
	"energy-dashboard/internal/indicator"
	"energy-dashboard/internal/marketdata/rangefilter"
	"energy-dashboard/internal/model"

	"github.com/go-playground/validator/v10"
)

// queryParams are the raw dashboard selectors. Values are only checked for
// shape here; unknown enum values fall back to defaults in toQuery.
type queryParams struct {
	Operation  string   `validate:"max=16"`
	Timeframe  string   `validate:"max=16"`
	Range      string   `validate:"max=8"`
	Indicators []string `validate:"max=16,dive,max=32"`
	ProductA   string   `validate:"max=64,excludesall=/\\"`
	ProductB   string   `validate:"max=64,excludesall=/\\"`
}

func readParams(q url.Values) queryParams {
	var inds []string
	for _, v := range q["ind"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				inds = append(inds, name)
			}
		}
	}
	return queryParams{
		Operation:  strings.TrimSpace(q.Get("op")),
		Timeframe:  q.Get("tf"),
		Range:      q.Get("range"),
		Indicators: inds,
		ProductA:   strings.TrimSpace(q.Get("a")),
		ProductB:   strings.TrimSpace(q.Get("b")),
	}
}

// toQuery resolves the selectors. Unknown timeframes mean Daily, unknown
// ranges ALL, and unknown indicators are dropped.
func (p queryParams) toQuery() dashboard.Query {
	tf, _ := model.ParseTimeframe(p.Timeframe)
	rng := rangefilter.DefaultRange
	if p.Range != "" {
		rng = rangefilter.Parse(p.Range)
	}
	return dashboard.Query{
		Operation:  p.Operation,
		Timeframe:  tf,
		Indicators: indicator.ParseKinds(p.Indicators),
		Range:      rng,
		ProductA:   p.ProductA,
		ProductB:   p.ProductB,
	}
}

// parseQuery validates and resolves the request's dashboard selectors.
func (s *Server) parseQuery(r *http.Request) (dashboard.Query, error) {
	p := readParams(r.URL.Query())
	if err := s.validate.Struct(p); err != nil {
		return dashboard.Query{}, validationError(err)
	}
	return p.toQuery(), nil
}

// validationError reports the first failed field.
func validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q check", errInvalidRequest, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", errInvalidRequest, err)
}
