// Package state defines the on-account layout of the price logger.
//
// Layout (Len = 8 bytes, no header, no padding):
//
//	price(u64 le)
//
// Only buf[0:Len] is owned by this package. Any extra capacity the host
// allocated for the account is neither read nor written.
package state

import (
	"encoding/binary"
	"errors"
)

// Len is the number of account bytes occupied by a PriceLogger.
const Len = 8

var ErrAccountDataTooSmall = errors.New("pricelogger: account data too small")

// PriceLogger is the record persisted in a logger account.
type PriceLogger struct {
	Price uint64
}

// Unpack reads a PriceLogger from the first Len bytes of buf.
// Every u64 is a legal price so no value validation happens here.
func Unpack(buf []byte) (PriceLogger, error) {
	if len(buf) < Len {
		return PriceLogger{}, ErrAccountDataTooSmall
	}
	return PriceLogger{Price: binary.LittleEndian.Uint64(buf[:Len])}, nil
}

// Pack overwrites buf[0:Len] with p. buf is left untouched on error.
func Pack(p PriceLogger, buf []byte) error {
	if len(buf) < Len {
		return ErrAccountDataTooSmall
	}
	binary.LittleEndian.PutUint64(buf[:Len], p.Price)
	return nil
}
