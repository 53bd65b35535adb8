// Package ingest validates raw marketplace deals and turns them into trades.
// A malformed deal aborts ingestion with a descriptive error; values are never
// coerced.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"energy-dashboard/internal/model"
	"energy-dashboard/pkg/bbce"
)

// ErrMalformedDeal wraps every validation failure.
var ErrMalformedDeal = errors.New("malformed deal")

// DefaultActiveStatus is the status value of live deals.
const DefaultActiveStatus = "Ativo"

// Options controls normalization.
type Options struct {
	// ActiveStatus keeps only deals with this status. Default "Ativo".
	ActiveStatus string

	// Location is the zone zone-aware timestamps are converted to before
	// their wall clock is kept. Default UTC.
	Location *time.Location
}

// DealError describes the first malformed deal of a batch.
type DealError struct {
	Index int
	ID    string
	Field string
	Value string
	Err   error
}

func (e *DealError) Error() string {
	return fmt.Sprintf("%s: index %d (id %q): field %s = %q: %v", ErrMalformedDeal, e.Index, e.ID, e.Field, e.Value, e.Err)
}

func (e *DealError) Unwrap() []error { return []error{ErrMalformedDeal, e.Err} }

var validate = validator.New(validator.WithRequiredStructEnabled())

// naive layouts carry no zone; the wall clock is kept as is.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses a createdAt value into a naive timestamp stored as
// UTC. RFC 3339 values with a zone are first converted to loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Naive(t.In(loc)), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}

// Naive drops t's zone, keeping its wall clock, and returns it as UTC.
func Naive(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ParseNumber reads a JSON number or a numeric JSON string. Missing, null,
// non-numeric and non-finite values are errors.
func ParseNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("missing")
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("not numeric")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not finite")
	}
	return v, nil
}

// Normalize converts deals to trades, keeping only opts.ActiveStatus deals.
// The first malformed deal aborts the call with a *DealError. The result is
// stable-sorted by timestamp.
func Normalize(deals []bbce.Deal, opts Options) ([]model.Trade, error) {
	if opts.ActiveStatus == "" {
		opts.ActiveStatus = DefaultActiveStatus
	}

	trades := make([]model.Trade, 0, len(deals))
	for i, d := range deals {
		t, err := toTrade(i, d, opts.Location)
		if err != nil {
			return nil, err
		}
		if t.Status != opts.ActiveStatus {
			continue
		}
		trades = append(trades, t)
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].TS.Before(trades[j].TS)
	})
	return trades, nil
}

func toTrade(i int, d bbce.Deal, loc *time.Location) (model.Trade, error) {
	fail := func(field, value string, err error) (model.Trade, error) {
		return model.Trade{}, &DealError{Index: i, ID: d.ID.String(), Field: field, Value: value, Err: err}
	}

	ts, err := ParseTimestamp(d.CreatedAt, loc)
	if err != nil {
		return fail("createdAt", d.CreatedAt, err)
	}
	price, err := ParseNumber(d.UnitPrice)
	if err != nil {
		return fail("unitPrice", string(d.UnitPrice), err)
	}
	qty, err := ParseNumber(d.Quantity)
	if err != nil {
		return fail("quantity", string(d.Quantity), err)
	}

	t := model.Trade{
		TS:            ts,
		ProductID:     d.ProductID.String(),
		UnitPrice:     price,
		Quantity:      qty,
		OperationType: strings.TrimSpace(d.OriginOperationType),
		Status:        strings.TrimSpace(d.Status),
	}

	if err := validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fail(fe.Field(), fmt.Sprint(fe.Value()), fmt.Errorf("failed %q check", fe.Tag()))
		}
		return fail("deal", "", err)
	}
	return t, nil
}

// FilterOperation keeps only Match deals when op is "Match". Any other value,
// including "Boleta" and "", keeps every trade.
func FilterOperation(trades []model.Trade, op string) []model.Trade {
	if !strings.EqualFold(strings.TrimSpace(op), model.OperationMatch) {
		return trades
	}
	out := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		if t.OperationType == model.OperationMatch {
			out = append(out, t)
		}
	}
	return out
}
