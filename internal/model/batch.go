package model

import "time"

// Batch is one immutable snapshot of ingested deals plus the ticker listing
// fetched alongside them. Consumers must treat every slice as read-only.
type Batch struct {
	Trades    []Trade   `json:"-"`
	Tickers   []Ticker  `json:"-"`
	FetchedAt time.Time `json:"fetched_at"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
}

// Len returns the number of trades in the batch. Nil-safe.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Trades)
}

// Empty reports whether the batch holds no trades.
func (b *Batch) Empty() bool { return b.Len() == 0 }
