package wire

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/gagliardetto/solana-go"
)

const (
	version     byte = 1
	kindAccount byte = 1
	kindMessage byte = 2
)

var (
	ErrCorrupt = errors.New("pricelogger: corrupt account entry")
	magic4     = [...]byte{'P', 'L', 'A', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Account: magic(4) | ver(1) | kind(1=account) | gen(u64 be) | vlen(u32 be) | payload(vlen)
//
// gen is the account generation the record was committed under; payload
// is the codec-encoded account.Record.
func EncodeAccount(gen uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindAccount)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeAccount returns a payload that aliases b.
func DecodeAccount(b []byte) (gen uint64, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindAccount {
		return 0, nil, ErrCorrupt
	}

	off := 6

	gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off { // truncated or trailing junk
		return 0, nil, ErrCorrupt
	}

	return gen, b[off : off+vlen], nil
}

// Message is the byte string signers sign for one instruction:
//
//	magic(4) | ver(1) | kind(2=message) | program(32) | n(u16 be)
//	key(32) | flags(1: bit0 signer, bit1 writable) * n
//	dlen(u32 be) | data(dlen)
func EncodeMessage(program solana.PublicKey, metas []solana.AccountMeta, data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 32 + 2 + len(metas)*33 + 4 + len(data))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindMessage)
	buf.Write(program[:])

	var u4 [4]byte
	var u2 [2]byte

	if len(metas) > 0xFFFF {
		panic("pricelogger: too many accounts in message")
	}
	binary.BigEndian.PutUint16(u2[:], uint16(len(metas)))
	buf.Write(u2[:])

	for _, m := range metas {
		buf.Write(m.PublicKey[:])
		var flags byte
		if m.IsSigner {
			flags |= 1
		}
		if m.IsWritable {
			flags |= 2
		}
		buf.WriteByte(flags)
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(data)))
	buf.Write(u4[:])
	buf.Write(data)
	return buf.Bytes()
}
