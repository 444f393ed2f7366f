package ledger

import (
	"github.com/gagliardetto/solana-go"

	"github.com/unkn0wn-root/pricelogger/internal/wire"
)

// Instruction addresses one program with an ordered account list.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.AccountMeta
	Data      []byte
}

// Transaction carries one instruction plus the signatures over its message.
type Transaction struct {
	Instruction Instruction
	Signatures  map[solana.PublicKey]solana.Signature
}

func NewTransaction(ix Instruction) *Transaction {
	return &Transaction{
		Instruction: ix,
		Signatures:  make(map[solana.PublicKey]solana.Signature),
	}
}

// Message returns the bytes signers sign.
func (tx *Transaction) Message() []byte {
	ix := tx.Instruction
	return wire.EncodeMessage(ix.ProgramID, ix.Accounts, ix.Data)
}

// Sign adds a signature from each key. Keys not referenced by the
// instruction are accepted and ignored at verification time.
func (tx *Transaction) Sign(keys ...solana.PrivateKey) error {
	msg := tx.Message()
	if tx.Signatures == nil {
		tx.Signatures = make(map[solana.PublicKey]solana.Signature, len(keys))
	}
	for _, k := range keys {
		sig, err := k.Sign(msg)
		if err != nil {
			return err
		}
		tx.Signatures[k.PublicKey()] = sig
	}
	return nil
}

// verify checks that every meta flagged as signer carries a valid signature.
func (tx *Transaction) verify() error {
	msg := tx.Message()
	for _, m := range tx.Instruction.Accounts {
		if !m.IsSigner {
			continue
		}
		sig, ok := tx.Signatures[m.PublicKey]
		if !ok || !m.PublicKey.Verify(msg, sig) {
			return accountErr(m.PublicKey, ErrSignatureMissing)
		}
	}
	return nil
}
