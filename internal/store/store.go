// Package store holds the persistent face embedding index.
package store

import (
	"context"
	"time"
)

// Record is one face embedding tied to the photo it was found in.
// A photo with several faces yields several records sharing the same PhotoRef.
// Records are immutable once created.
type Record struct {
	ID        string    // unique record ID
	PhotoRef  string    // photo path relative to the served directory, not unique
	Embedding []float32 // fixed-length face embedding vector
	Model     string    // embedding model that produced the vector
	Dim       int       // vector dimensionality
	CreatedAt time.Time
}

// Store is an append-only collection of face embedding records.
//
// Append is write-through: the full store is persisted after every call.
// Implementations perform no append serialization themselves; callers must
// ensure appends never run concurrently (see ingest.Controller). Snapshot is
// safe to call at any time and never observes a half-written record.
type Store interface {
	// Append adds one record and persists the store.
	Append(ctx context.Context, rec Record) error
	// Snapshot returns a point-in-time read-only view of all records.
	Snapshot(ctx context.Context) ([]Record, error)
	// Count returns the number of records stored.
	Count(ctx context.Context) (int, error)
	// Close persists any pending state and releases resources.
	Close() error
}
