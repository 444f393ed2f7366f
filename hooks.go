package pricelogger

// Hooks receive high-signal events from the processor and the ledger.
// Implementations MUST be cheap and non-blocking; wrap slow sinks with
// hooks/async.
type Hooks interface {
	// Payload could not be decoded into an instruction.
	InstructionRejected(payloadLen int)

	// Updater failed an authorization check.
	// reason ∈ {"missing_signature", "incorrect_owner"}
	AuthorizationFailed(account, reason string)

	// A host persisted a new price for a logger account. Fired from
	// Processor.Committed, never for a write the host refused.
	PriceUpdated(account string, oldPrice, newPrice uint64)

	// Ledger refused to commit because the account generation moved
	// while the instruction was executing.
	CommitConflict(account string)

	// Store returned ok=false when the ledger wrote an account record.
	StoreSetRejected(account string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) InstructionRejected(int)             {}
func (NopHooks) AuthorizationFailed(string, string)  {}
func (NopHooks) PriceUpdated(string, uint64, uint64) {}
func (NopHooks) CommitConflict(string)               {}
func (NopHooks) StoreSetRejected(string)             {}
