package pricelogger

import (
	"github.com/gagliardetto/solana-go"

	"github.com/unkn0wn-root/pricelogger/account"
	"github.com/unkn0wn-root/pricelogger/instruction"
	"github.com/unkn0wn-root/pricelogger/state"
)

type processor struct {
	log   Logger
	hooks Hooks
}

var _ Processor = (*processor)(nil)

func newProcessor(opts Options) *processor {
	return &processor{
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
	}
}

func (p *processor) Process(programID solana.PublicKey, accounts []*account.Info, data []byte) error {
	ix, err := instruction.Unpack(data)
	if err != nil {
		p.hooks.InstructionRejected(len(data))
		return newError(KindInvalidInstruction, solana.PublicKey{}, err)
	}

	switch ix := ix.(type) {
	case instruction.UpdatePrice:
		p.log.Debug("instruction: update price", Fields{"target_price": ix.TargetPrice})
		return p.updatePrice(programID, accounts, ix.TargetPrice)
	default:
		return newError(KindInvalidInstruction, solana.PublicKey{}, instruction.ErrInvalidInstruction)
	}
}

func (p *processor) updatePrice(programID solana.PublicKey, accounts []*account.Info, targetPrice uint64) error {
	it := account.NewIter(accounts)
	updater, err := it.Next()
	if err != nil {
		return newError(KindMissingAccount, solana.PublicKey{}, err)
	}

	if !updater.IsSigner {
		p.hooks.AuthorizationFailed(updater.Key.String(), "missing_signature")
		return newError(KindMissingRequiredSignature, updater.Key, nil)
	}

	// only the owning program may modify account data
	if !updater.Owner.Equals(programID) {
		p.hooks.AuthorizationFailed(updater.Key.String(), "incorrect_owner")
		p.log.Warn("updater not owned by program", Fields{
			"account": updater.Key.String(),
			"owner":   updater.Owner.String(),
		})
		return newError(KindIncorrectProgramID, updater.Key, nil)
	}

	rec, err := state.Unpack(updater.Data)
	if err != nil {
		return newError(KindCodec, updater.Key, err)
	}
	old := rec.Price
	rec.Price = targetPrice

	if err := state.Pack(rec, updater.Data); err != nil {
		return newError(KindCodec, updater.Key, err)
	}

	p.log.Debug("price written", Fields{"account": updater.Key.String(), "old": old, "new": targetPrice})
	return nil
}

func (p *processor) Committed(programID solana.PublicKey, changes []account.Change) {
	for _, c := range changes {
		if !c.Owner.Equals(programID) {
			continue
		}
		before, err := state.Unpack(c.Before)
		if err != nil {
			continue
		}
		after, err := state.Unpack(c.After)
		if err != nil {
			continue
		}
		p.hooks.PriceUpdated(c.Key.String(), before.Price, after.Price)
	}
}
