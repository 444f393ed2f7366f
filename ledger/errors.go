package ledger

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrAccountExists    = errors.New("ledger: account already exists")
	ErrAccountNotFound  = errors.New("ledger: account not found")
	ErrProgramNotFound  = errors.New("ledger: program not deployed")
	ErrNotExecutable    = errors.New("ledger: program account is not executable")
	ErrSignatureMissing = errors.New("ledger: missing or invalid signature")
	ErrConflict         = errors.New("ledger: account changed during execution")
	ErrStoreRejected    = errors.New("ledger: store rejected account write")
	ErrCorruptAccount   = errors.New("ledger: corrupt account record")
	ErrReadonlyModified = errors.New("ledger: instruction modified a read-only account")
	ErrExternalModified = errors.New("ledger: instruction modified data of an account its program does not own")
	ErrDataResized      = errors.New("ledger: instruction resized account data")
)

// AccountError ties a ledger failure to the account it concerns.
type AccountError struct {
	Account solana.PublicKey
	Err     error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Account)
}

func (e *AccountError) Unwrap() error { return e.Err }

func accountErr(key solana.PublicKey, err error) error {
	return &AccountError{Account: key, Err: err}
}

// ProgramError wraps the error a program returned from Process.
// Unwrap exposes the program's own error value.
type ProgramError struct {
	Program solana.PublicKey
	Err     error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("ledger: program %s failed: %v", e.Program, e.Err)
}

func (e *ProgramError) Unwrap() error { return e.Err }
