// Package codec serializes values the ledger and client persist or publish.
//
// The on-account price layout is fixed and lives in package state; codecs
// here are for the records around it (account records in the ledger's byte
// store, price reports handed to downstream consumers).
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Named is implemented by codecs that report an identifier for logs.
type Named interface {
	Name() string
}

// NameOf returns c's name, or "custom" if c does not implement Named.
func NameOf(c any) string {
	if n, ok := c.(Named); ok {
		return n.Name()
	}
	return "custom"
}
