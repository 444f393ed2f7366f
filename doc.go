// Package pricelogger implements an on-ledger program that stores a single
// price per logger account. A signed UpdatePrice instruction overwrites the
// price held in an account owned by the program.
//
// Components:
//   - instruction: decodes the raw payload (target_price u64 le).
//   - state: fixed 8-byte account layout (price u64 le at offset 0).
//   - Processor: validates the updater (signer + owner) and rewrites state.
//   - ledger: in-process host. Provisions accounts, verifies signatures and
//     commits account changes atomically over a pluggable byte store.
//   - client: convenience calls mirroring the off-chain price updater.
//
// Invocation:
//
//	p := pricelogger.New(pricelogger.Options{})
//	err := p.Process(programID, []*account.Info{updater}, payload)
//	code, _ := pricelogger.CodeOf(err) // numeric code for the host
package pricelogger
