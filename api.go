package pricelogger

import (
	"github.com/gagliardetto/solana-go"

	"github.com/unkn0wn-root/pricelogger/account"
)

// Processor is the program entrypoint. A host calls Process once per
// instruction with the executing program's id, the instruction's accounts
// in order and the raw payload.
//
// Process either returns nil after rewriting the updater's state or returns
// an *Error without having touched any account data.
//
// A successful Process has only changed the caller's buffers. Hosts call
// Committed once those changes are persisted; PriceUpdated hooks fire from
// there, so a write the host later refuses is never reported.
type Processor interface {
	Process(programID solana.PublicKey, accounts []*account.Info, data []byte) error
	Committed(programID solana.PublicKey, changes []account.Change)
}

// Options tune logging and event hooks. The zero value is ready to use.
type Options struct {
	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used
}

func New(opts Options) Processor {
	return newProcessor(opts)
}
