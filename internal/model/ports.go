package model

// ── Snapshot Port Interfaces ──
// These interfaces decouple the request path from the refresh loop that owns
// the current deal batch.

// SnapshotReader returns the current immutable batch.
type SnapshotReader interface {
	// Load returns the latest published batch, or nil before the first refresh.
	Load() *Batch
}

// SnapshotWriter publishes a new batch.
type SnapshotWriter interface {
	// Swap atomically replaces the current batch and returns the previous one.
	Swap(b *Batch) *Batch
}
