// Package refresh keeps the current deal snapshot up to date: it logs in to
// the marketplace, fetches tickers and deals, validates them and atomically
// publishes the result.
package refresh

import (
	"sync/atomic"

	"energy-dashboard/internal/model"
)

// Store holds the current batch. Readers get either the previous or the new
// batch, never a partially built one.
type Store struct {
	p atomic.Pointer[model.Batch]
}

var (
	_ model.SnapshotReader = (*Store)(nil)
	_ model.SnapshotWriter = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Load returns the current batch, or nil before the first refresh.
func (s *Store) Load() *model.Batch { return s.p.Load() }

// Swap publishes b and returns the previous batch.
func (s *Store) Swap(b *model.Batch) *model.Batch { return s.p.Swap(b) }
