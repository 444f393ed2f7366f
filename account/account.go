// Package account models the accounts a host hands to a program for one
// invocation, and the record a host persists for each account.
package account

import (
	"bytes"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var ErrNotEnoughAccountKeys = errors.New("pricelogger: not enough account keys")

// Info is the borrowed, per-invocation view of an account.
// Data is mutable in place; the host decides whether changes are kept.
type Info struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	Owner      solana.PublicKey
	Executable bool
	Data       []byte
}

// Iter hands out accounts in the order the caller listed them.
type Iter struct {
	accounts []*Info
	pos      int
}

func NewIter(accounts []*Info) *Iter {
	return &Iter{accounts: accounts}
}

// Next returns the next account or ErrNotEnoughAccountKeys once exhausted.
func (it *Iter) Next() (*Info, error) {
	if it.pos >= len(it.accounts) || it.accounts[it.pos] == nil {
		return nil, ErrNotEnoughAccountKeys
	}
	a := it.accounts[it.pos]
	it.pos++
	return a, nil
}

// Change is one account's data before and after a committed instruction.
type Change struct {
	Key    solana.PublicKey
	Owner  solana.PublicKey
	Before []byte
	After  []byte
}

// Record is what a host stores per account key.
type Record struct {
	Owner      solana.PublicKey `json:"owner" msgpack:"owner" cbor:"owner"`
	Executable bool             `json:"executable" msgpack:"executable" cbor:"executable"`
	Data       []byte           `json:"data" msgpack:"data" cbor:"data"`
}

// Equal reports whether r and o hold the same owner, flags and bytes.
func (r Record) Equal(o Record) bool {
	return r.Owner.Equals(o.Owner) && r.Executable == o.Executable && bytes.Equal(r.Data, o.Data)
}

// Clone returns a copy of r that shares no memory with it.
func (r Record) Clone() Record {
	out := r
	if r.Data != nil {
		out.Data = append([]byte(nil), r.Data...)
	}
	return out
}
