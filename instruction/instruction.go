// Package instruction decodes price logger instruction payloads.
//
// Wire format: target_price(u64 le). The payload carries no leading tag;
// bytes after the first eight are ignored.
package instruction

import (
	"encoding/binary"
	"errors"
)

// PayloadLen is the minimum payload length accepted by Unpack.
const PayloadLen = 8

var ErrInvalidInstruction = errors.New("pricelogger: invalid instruction")

// Instruction is the closed set of commands the program understands.
type Instruction interface {
	isInstruction()
}

// UpdatePrice overwrites the logger's stored price with TargetPrice.
type UpdatePrice struct {
	TargetPrice uint64
}

func (UpdatePrice) isInstruction() {}

// Unpack parses payload into an Instruction.
func Unpack(payload []byte) (Instruction, error) {
	price, err := unpackPrice(payload)
	if err != nil {
		return nil, err
	}
	return UpdatePrice{TargetPrice: price}, nil
}

func unpackPrice(b []byte) (uint64, error) {
	if len(b) < PayloadLen {
		return 0, ErrInvalidInstruction
	}
	return binary.LittleEndian.Uint64(b[:PayloadLen]), nil
}

// Pack returns the wire payload for ix.
func Pack(ix Instruction) []byte {
	switch v := ix.(type) {
	case UpdatePrice:
		out := make([]byte, PayloadLen)
		binary.LittleEndian.PutUint64(out, v.TargetPrice)
		return out
	default:
		panic("pricelogger: unknown instruction")
	}
}
