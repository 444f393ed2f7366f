package pricelogger

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrorKind is the closed set of failures the processor can signal.
type ErrorKind uint8

const (
	KindInvalidInstruction ErrorKind = iota + 1
	KindMissingAccount
	KindMissingRequiredSignature
	KindIncorrectProgramID
	KindCodec
)

// Builtin host errors are encoded as n << builtinShift, custom ones as-is.
const builtinShift = 32

const (
	customInvalidInstruction uint64 = 1

	builtinInvalidAccountData       uint64 = 4 << builtinShift
	builtinIncorrectProgramID       uint64 = 7 << builtinShift
	builtinMissingRequiredSignature uint64 = 8 << builtinShift
	builtinNotEnoughAccountKeys     uint64 = 11 << builtinShift
)

// Code returns the numeric code reported to the host.
func (k ErrorKind) Code() uint64 {
	switch k {
	case KindInvalidInstruction:
		return customInvalidInstruction
	case KindMissingAccount:
		return builtinNotEnoughAccountKeys
	case KindMissingRequiredSignature:
		return builtinMissingRequiredSignature
	case KindIncorrectProgramID:
		return builtinIncorrectProgramID
	case KindCodec:
		return builtinInvalidAccountData
	default:
		return 0
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInstruction:
		return "invalid instruction"
	case KindMissingAccount:
		return "missing account"
	case KindMissingRequiredSignature:
		return "missing required signature"
	case KindIncorrectProgramID:
		return "incorrect program id"
	case KindCodec:
		return "invalid account data"
	default:
		return fmt.Sprintf("unknown kind %d", uint8(k))
	}
}

// Error is returned by Processor.Process for every failed invocation.
// Account is zero when no account was involved (e.g. a bad payload).
type Error struct {
	Kind    ErrorKind
	Account solana.PublicKey
	Err     error
}

var (
	ErrInvalidInstruction       = &Error{Kind: KindInvalidInstruction}
	ErrMissingAccount           = &Error{Kind: KindMissingAccount}
	ErrMissingRequiredSignature = &Error{Kind: KindMissingRequiredSignature}
	ErrIncorrectProgramID       = &Error{Kind: KindIncorrectProgramID}
	ErrCodec                    = &Error{Kind: KindCodec}
)

func (e *Error) Error() string {
	switch {
	case !e.Account.IsZero() && e.Err != nil:
		return fmt.Sprintf("pricelogger: %s (account %s): %v", e.Kind, e.Account, e.Err)
	case !e.Account.IsZero():
		return fmt.Sprintf("pricelogger: %s (account %s)", e.Kind, e.Account)
	case e.Err != nil:
		return fmt.Sprintf("pricelogger: %s: %v", e.Kind, e.Err)
	default:
		return "pricelogger: " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrCodec) works
// regardless of account or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t != nil && t.Kind == e.Kind
}

// Code is shorthand for e.Kind.Code().
func (e *Error) Code() uint64 { return e.Kind.Code() }

func newError(kind ErrorKind, key solana.PublicKey, cause error) *Error {
	return &Error{Kind: kind, Account: key, Err: cause}
}

// KindOf extracts the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// CodeOf maps err to its host code. ok is false for nil and for errors that
// did not originate in the processor.
func CodeOf(err error) (code uint64, ok bool) {
	k, ok := KindOf(err)
	if !ok {
		return 0, false
	}
	return k.Code(), true
}
