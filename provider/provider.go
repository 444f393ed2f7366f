// Package provider defines the byte store the ledger keeps account records in.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the []byte previously passed to Set for a key. Stores that transform values
// internally (e.g. compression) must fully reverse the transform.
//
// The "acct:<ns>:" keyspace is owned by the ledger. Foreign writes under it
// fail wire validation and surface as corrupt accounts.
//
// Records do not expire. A store that evicts under memory pressure loses
// accounts; size it for the whole account set.
package provider

import "context"

// Provider is a minimal byte store. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value without expiry. May ignore cost if unsupported.
	// Returns ok=false when the store refused the write. ok=true means the
	// value was readable when Set returned; bounded in-memory stores may
	// still evict it later (see the package doc).
	Set(ctx context.Context, key string, value []byte, cost int64) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
