// Package genstore tracks a write generation per account.
//
// The ledger snapshots the generations of every account an instruction
// touches before executing it, and bumps them when committing. A commit
// whose snapshot no longer matches is rejected as a conflict.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use LocalGenStore for a single process, RedisGenStore when several ledger
// processes share one account store.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// SnapshotMany returns gens for many keys; missing => 0.
	SnapshotMany(ctx context.Context, storageKeys []string) (map[string]uint64, error)
	// CompareAndBump increments the generation only if it still equals
	// expected. ok=false means another writer moved it first.
	CompareAndBump(ctx context.Context, storageKey string, expected uint64) (newGen uint64, ok bool, err error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
