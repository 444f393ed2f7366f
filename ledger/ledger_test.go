package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/unkn0wn-root/pricelogger"
	"github.com/unkn0wn-root/pricelogger/account"
	c "github.com/unkn0wn-root/pricelogger/codec"
	gen "github.com/unkn0wn-root/pricelogger/genstore"
	"github.com/unkn0wn-root/pricelogger/instruction"
	"github.com/unkn0wn-root/pricelogger/internal/util"
	pr "github.com/unkn0wn-root/pricelogger/provider"
	"github.com/unkn0wn-root/pricelogger/provider/ristretto"
	"github.com/unkn0wn-root/pricelogger/state"
)

type memProvider struct {
	m         map[string][]byte
	rejectSet bool
	rejectKey string
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64) (bool, error) {
	if p.rejectSet || key == p.rejectKey {
		return false, nil
	}
	p.m[key] = append([]byte(nil), value...)
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error { delete(p.m, key); return nil }
func (p *memProvider) Close(_ context.Context) error           { return nil }

type recHooks struct {
	pricelogger.NopHooks
	conflicts []string
	rejected  []string
	prices    []uint64
}

func (h *recHooks) CommitConflict(a string)                { h.conflicts = append(h.conflicts, a) }
func (h *recHooks) StoreSetRejected(a string)              { h.rejected = append(h.rejected, a) }
func (h *recHooks) PriceUpdated(_ string, _, price uint64) { h.prices = append(h.prices, price) }

// programFunc adapts a function to Program.
type programFunc func(solana.PublicKey, []*account.Info, []byte) error

func (f programFunc) Process(id solana.PublicKey, accs []*account.Info, data []byte) error {
	return f(id, accs, data)
}

type fixture struct {
	ctx    context.Context
	mp     *memProvider
	led    *Ledger
	prog   solana.PublicKey
	logger solana.PrivateKey
}

func newFixture(t *testing.T, optsOpt func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()
	mp := newMemProvider()
	opts := Options{Namespace: "test", Provider: mp}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	led, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = led.Close(ctx) })

	f := &fixture{
		ctx:    ctx,
		mp:     mp,
		led:    led,
		prog:   solana.NewWallet().PublicKey(),
		logger: solana.NewWallet().PrivateKey,
	}
	if err := led.Deploy(ctx, f.prog, pricelogger.New(pricelogger.Options{})); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if err := led.CreateAccount(ctx, f.logger.PublicKey(), f.prog, state.Len); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return f
}

func (f *fixture) updateTx(t *testing.T, price uint64, signer, writable bool) *Transaction {
	t.Helper()
	tx := NewTransaction(Instruction{
		ProgramID: f.prog,
		Accounts: []solana.AccountMeta{
			{PublicKey: f.logger.PublicKey(), IsSigner: signer, IsWritable: writable},
		},
		Data: instruction.Pack(instruction.UpdatePrice{TargetPrice: price}),
	})
	if signer {
		if err := tx.Sign(f.logger); err != nil {
			t.Fatalf("Sign: %v", err)
		}
	}
	return tx
}

func (f *fixture) data(t *testing.T) []byte {
	t.Helper()
	rec, err := f.led.Account(f.ctx, f.logger.PublicKey())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	return rec.Data
}

func TestExecuteUpdatesPrice(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.led.Execute(f.ctx, f.updateTx(t, 42, true, true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := f.data(t); !bytes.Equal(got, []byte{42, 0, 0, 0, 0, 0, 0, 0}) {
		t.Fatalf("data: %v", got)
	}

	rec, _ := f.led.Account(f.ctx, f.logger.PublicKey())
	if !rec.Owner.Equals(f.prog) || rec.Executable {
		t.Fatalf("record metadata changed: %+v", rec)
	}
}

func TestExecuteTwiceSameState(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 2; i++ {
		if err := f.led.Execute(f.ctx, f.updateTx(t, 1234, true, true)); err != nil {
			t.Fatalf("Execute #%d: %v", i, err)
		}
	}
	st, err := state.Unpack(f.data(t))
	if err != nil || st.Price != 1234 {
		t.Fatalf("price=%d err=%v", st.Price, err)
	}
}

func TestExecuteUnsignedUpdaterLeavesState(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.led.Execute(f.ctx, f.updateTx(t, 7, true, true)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := f.led.Execute(f.ctx, f.updateTx(t, 42, false, true))
	if !errors.Is(err, pricelogger.ErrMissingRequiredSignature) {
		t.Fatalf("got %v want MissingRequiredSignature", err)
	}
	var pe *ProgramError
	if !errors.As(err, &pe) || !pe.Program.Equals(f.prog) {
		t.Fatalf("expected ProgramError for %s, got %v", f.prog, err)
	}
	if code, ok := pricelogger.CodeOf(err); !ok || code != 8<<32 {
		t.Fatalf("code=%#x ok=%v", code, ok)
	}
	if got := f.data(t); !bytes.Equal(got, []byte{7, 0, 0, 0, 0, 0, 0, 0}) {
		t.Fatalf("data changed: %v", got)
	}
}

func TestExecuteRejectsMissingSignature(t *testing.T) {
	f := newFixture(t, nil)
	tx := f.updateTx(t, 42, true, true)
	delete(tx.Signatures, f.logger.PublicKey())

	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, ErrSignatureMissing) {
		t.Fatalf("got %v want ErrSignatureMissing", err)
	}
}

func TestExecuteRejectsSignatureOverOtherMessage(t *testing.T) {
	f := newFixture(t, nil)
	tx := f.updateTx(t, 42, true, true)
	// tamper with the payload after signing
	tx.Instruction.Data = instruction.Pack(instruction.UpdatePrice{TargetPrice: 43})

	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, ErrSignatureMissing) {
		t.Fatalf("got %v want ErrSignatureMissing", err)
	}
	if got := f.data(t); !bytes.Equal(got, make([]byte, state.Len)) {
		t.Fatalf("data changed: %v", got)
	}
}

func TestExecuteWrongOwner(t *testing.T) {
	f := newFixture(t, nil)
	other := solana.NewWallet().PrivateKey
	if err := f.led.CreateAccount(f.ctx, other.PublicKey(), solana.SystemProgramID, state.Len); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	tx := NewTransaction(Instruction{
		ProgramID: f.prog,
		Accounts:  []solana.AccountMeta{{PublicKey: other.PublicKey(), IsSigner: true, IsWritable: true}},
		Data:      instruction.Pack(instruction.UpdatePrice{TargetPrice: 42}),
	})
	if err := tx.Sign(other); err != nil {
		t.Fatal(err)
	}
	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, pricelogger.ErrIncorrectProgramID) {
		t.Fatalf("got %v want IncorrectProgramID", err)
	}
}

func TestExecuteUnknownAccountIsSystemOwned(t *testing.T) {
	f := newFixture(t, nil)
	ghost := solana.NewWallet().PrivateKey
	tx := NewTransaction(Instruction{
		ProgramID: f.prog,
		Accounts:  []solana.AccountMeta{{PublicKey: ghost.PublicKey(), IsSigner: true, IsWritable: true}},
		Data:      instruction.Pack(instruction.UpdatePrice{TargetPrice: 1}),
	})
	if err := tx.Sign(ghost); err != nil {
		t.Fatal(err)
	}
	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, pricelogger.ErrIncorrectProgramID) {
		t.Fatalf("got %v want IncorrectProgramID", err)
	}
	if _, err := f.led.Account(f.ctx, ghost.PublicKey()); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("ghost account materialized: %v", err)
	}
}

func TestExecuteUndersizedAccount(t *testing.T) {
	f := newFixture(t, nil)
	small := solana.NewWallet().PrivateKey
	if err := f.led.CreateAccount(f.ctx, small.PublicKey(), f.prog, state.Len-1); err != nil {
		t.Fatal(err)
	}
	tx := NewTransaction(Instruction{
		ProgramID: f.prog,
		Accounts:  []solana.AccountMeta{{PublicKey: small.PublicKey(), IsSigner: true, IsWritable: true}},
		Data:      instruction.Pack(instruction.UpdatePrice{TargetPrice: 1}),
	})
	if err := tx.Sign(small); err != nil {
		t.Fatal(err)
	}
	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, pricelogger.ErrCodec) {
		t.Fatalf("got %v want ErrCodec", err)
	}
}

func TestExecuteReadonlyAccountCannotChange(t *testing.T) {
	f := newFixture(t, nil)
	err := f.led.Execute(f.ctx, f.updateTx(t, 42, true, false))
	if !errors.Is(err, ErrReadonlyModified) {
		t.Fatalf("got %v want ErrReadonlyModified", err)
	}
	if got := f.data(t); !bytes.Equal(got, make([]byte, state.Len)) {
		t.Fatalf("data changed: %v", got)
	}
}

func TestPriceUpdatedOnlyAfterCommit(t *testing.T) {
	h := &recHooks{}
	f := newFixture(t, func(o *Options) { o.Hooks = h })
	if err := f.led.Deploy(f.ctx, f.prog, pricelogger.New(pricelogger.Options{Hooks: h})); err != nil {
		t.Fatal(err)
	}

	if err := f.led.Execute(f.ctx, f.updateTx(t, 42, true, false)); !errors.Is(err, ErrReadonlyModified) {
		t.Fatalf("got %v want ErrReadonlyModified", err)
	}
	if len(h.prices) != 0 {
		t.Fatalf("refused write reported as price update: %v", h.prices)
	}

	f.mp.rejectSet = true
	if err := f.led.Execute(f.ctx, f.updateTx(t, 43, true, true)); !errors.Is(err, ErrStoreRejected) {
		t.Fatalf("got %v want ErrStoreRejected", err)
	}
	if len(h.prices) != 0 {
		t.Fatalf("rejected store reported as price update: %v", h.prices)
	}

	f.mp.rejectSet = false
	if err := f.led.Execute(f.ctx, f.updateTx(t, 44, true, true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(h.prices) != 1 || h.prices[0] != 44 {
		t.Fatalf("prices: %v", h.prices)
	}
}

func TestFailedWriteRestoresEarlierAccounts(t *testing.T) {
	h := &recHooks{}
	f := newFixture(t, func(o *Options) { o.Hooks = h })
	second := solana.NewWallet().PublicKey()
	if err := f.led.CreateAccount(f.ctx, second, f.prog, state.Len); err != nil {
		t.Fatal(err)
	}
	both := programFunc(func(_ solana.PublicKey, accs []*account.Info, _ []byte) error {
		for _, a := range accs {
			a.Data[0] = 1
		}
		return nil
	})
	if err := f.led.Deploy(f.ctx, f.prog, both); err != nil {
		t.Fatal(err)
	}

	// refuse whichever record is written last
	k1 := util.AccountKey("test", f.logger.PublicKey())
	k2 := util.AccountKey("test", second)
	f.mp.rejectKey = k1
	if k2 > k1 {
		f.mp.rejectKey = k2
	}

	tx := NewTransaction(Instruction{
		ProgramID: f.prog,
		Accounts: []solana.AccountMeta{
			{PublicKey: f.logger.PublicKey(), IsWritable: true},
			{PublicKey: second, IsWritable: true},
		},
	})
	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, ErrStoreRejected) {
		t.Fatalf("got %v want ErrStoreRejected", err)
	}
	for _, key := range []solana.PublicKey{f.logger.PublicKey(), second} {
		rec, err := f.led.Account(f.ctx, key)
		if err != nil {
			t.Fatalf("Account %s: %v", key, err)
		}
		if !bytes.Equal(rec.Data, make([]byte, state.Len)) {
			t.Fatalf("partial commit left %s as %v", key, rec.Data)
		}
	}
}

func TestExecuteHostRejectsForeignWrites(t *testing.T) {
	f := newFixture(t, nil)
	rogue := solana.NewWallet().PublicKey()
	scribble := programFunc(func(_ solana.PublicKey, accs []*account.Info, _ []byte) error {
		accs[0].Data[0] = 0xFF
		return nil
	})
	if err := f.led.Deploy(f.ctx, rogue, scribble); err != nil {
		t.Fatal(err)
	}
	tx := NewTransaction(Instruction{
		ProgramID: rogue,
		Accounts:  []solana.AccountMeta{{PublicKey: f.logger.PublicKey(), IsWritable: true}},
	})
	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, ErrExternalModified) {
		t.Fatalf("got %v want ErrExternalModified", err)
	}
	if got := f.data(t); got[0] != 0 {
		t.Fatalf("foreign write persisted: %v", got)
	}
}

func TestExecuteResizeRejected(t *testing.T) {
	f := newFixture(t, nil)
	grow := programFunc(func(_ solana.PublicKey, accs []*account.Info, _ []byte) error {
		accs[0].Data = append(accs[0].Data, 1)
		return nil
	})
	if err := f.led.Deploy(f.ctx, f.prog, grow); err != nil {
		t.Fatal(err)
	}
	tx := NewTransaction(Instruction{
		ProgramID: f.prog,
		Accounts:  []solana.AccountMeta{{PublicKey: f.logger.PublicKey(), IsWritable: true}},
	})
	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, ErrDataResized) {
		t.Fatalf("got %v want ErrDataResized", err)
	}
}

func TestExecuteConflictCommitsNothing(t *testing.T) {
	gs := gen.NewLocalGenStore(0, 0)
	h := &recHooks{}
	f := newFixture(t, func(o *Options) {
		o.GenStore = gs
		o.Hooks = h
	})

	inner := pricelogger.New(pricelogger.Options{})
	racy := programFunc(func(id solana.PublicKey, accs []*account.Info, data []byte) error {
		// another writer commits while this instruction runs
		ctx := context.Background()
		sk := util.AccountKey("test", accs[0].Key)
		g, err := gs.Snapshot(ctx, sk)
		if err != nil {
			return err
		}
		if _, ok, err := gs.CompareAndBump(ctx, sk, g); err != nil || !ok {
			return fmt.Errorf("concurrent bump: ok=%v err=%v", ok, err)
		}
		return inner.Process(id, accs, data)
	})
	if err := f.led.Deploy(f.ctx, f.prog, racy); err != nil {
		t.Fatal(err)
	}

	err := f.led.Execute(f.ctx, f.updateTx(t, 42, true, true))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("got %v want ErrConflict", err)
	}
	if got := f.data(t); !bytes.Equal(got, make([]byte, state.Len)) {
		t.Fatalf("conflicting write persisted: %v", got)
	}
	if len(h.conflicts) != 1 || h.conflicts[0] != f.logger.PublicKey().String() {
		t.Fatalf("conflict hook: %v", h.conflicts)
	}
}

func TestExecuteDuplicateMetasShareAccount(t *testing.T) {
	f := newFixture(t, nil)
	var seen []*account.Info
	spy := programFunc(func(_ solana.PublicKey, accs []*account.Info, _ []byte) error {
		seen = accs
		return nil
	})
	if err := f.led.Deploy(f.ctx, f.prog, spy); err != nil {
		t.Fatal(err)
	}
	key := f.logger.PublicKey()
	tx := NewTransaction(Instruction{
		ProgramID: f.prog,
		Accounts: []solana.AccountMeta{
			{PublicKey: key, IsWritable: true},
			{PublicKey: key, IsSigner: true},
		},
	})
	if err := tx.Sign(f.logger); err != nil {
		t.Fatal(err)
	}
	if err := f.led.Execute(f.ctx, tx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(seen) != 2 || seen[0] != seen[1] || !seen[0].IsSigner || !seen[0].IsWritable {
		t.Fatalf("unexpected account views: %+v", seen)
	}
}

func TestExecuteUnknownProgram(t *testing.T) {
	f := newFixture(t, nil)
	tx := NewTransaction(Instruction{ProgramID: solana.NewWallet().PublicKey()})
	if err := f.led.Execute(f.ctx, tx); !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("got %v want ErrProgramNotFound", err)
	}
}

func TestCreateAccountTwiceFails(t *testing.T) {
	f := newFixture(t, nil)
	err := f.led.CreateAccount(f.ctx, f.logger.PublicKey(), f.prog, state.Len)
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("got %v want ErrAccountExists", err)
	}
	var ae *AccountError
	if !errors.As(err, &ae) || !ae.Account.Equals(f.logger.PublicKey()) {
		t.Fatalf("expected AccountError naming the key, got %v", err)
	}
}

func TestCreateAccountWithSeed(t *testing.T) {
	f := newFixture(t, nil)
	payer := solana.NewWallet().PublicKey()
	key, err := f.led.CreateAccountWithSeed(f.ctx, payer, "btc-usd", f.prog, state.Len)
	if err != nil {
		t.Fatalf("CreateAccountWithSeed: %v", err)
	}
	want, _ := solana.CreateWithSeed(payer, "btc-usd", f.prog)
	if !key.Equals(want) {
		t.Fatalf("key %s want %s", key, want)
	}
	rec, err := f.led.Account(f.ctx, key)
	if err != nil || !rec.Owner.Equals(f.prog) || len(rec.Data) != state.Len {
		t.Fatalf("rec=%+v err=%v", rec, err)
	}
}

func TestCreateAccountRejectsBadSize(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.led.CreateAccount(f.ctx, solana.NewWallet().PublicKey(), f.prog, -1); err == nil {
		t.Fatalf("expected error on negative size")
	}
}

func TestDeployOntoDataAccountFails(t *testing.T) {
	f := newFixture(t, nil)
	err := f.led.Deploy(f.ctx, f.logger.PublicKey(), pricelogger.New(pricelogger.Options{}))
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("got %v want ErrAccountExists", err)
	}
}

func TestCorruptRecordSurfaces(t *testing.T) {
	f := newFixture(t, nil)
	f.mp.m[util.AccountKey("test", f.logger.PublicKey())] = []byte("junk")

	if _, err := f.led.Account(f.ctx, f.logger.PublicKey()); !errors.Is(err, ErrCorruptAccount) {
		t.Fatalf("got %v want ErrCorruptAccount", err)
	}
	if err := f.led.Execute(f.ctx, f.updateTx(t, 1, true, true)); !errors.Is(err, ErrCorruptAccount) {
		t.Fatalf("Execute: got %v want ErrCorruptAccount", err)
	}
}

func TestStoreRejectionReported(t *testing.T) {
	h := &recHooks{}
	f := newFixture(t, func(o *Options) { o.Hooks = h })
	f.mp.rejectSet = true

	if err := f.led.Execute(f.ctx, f.updateTx(t, 1, true, true)); !errors.Is(err, ErrStoreRejected) {
		t.Fatalf("got %v want ErrStoreRejected", err)
	}
	if len(h.rejected) != 1 {
		t.Fatalf("store rejection hook: %v", h.rejected)
	}
}

func TestLedgerWithCBORCodec(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Codec = c.MustCBOR[account.Record](true) })
	if err := f.led.Execute(f.ctx, f.updateTx(t, 99, true, true)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := f.data(t); got[0] != 99 {
		t.Fatalf("data: %v", got)
	}
}

func TestLedgerOverRistretto(t *testing.T) {
	ctx := context.Background()
	rp, err := ristretto.New(ristretto.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		t.Fatalf("ristretto: %v", err)
	}
	led, err := New(Options{Namespace: "rist", Provider: rp, Codec: c.JSON[account.Record]{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = led.Close(ctx) })

	prog := solana.NewWallet().PublicKey()
	logger := solana.NewWallet().PrivateKey
	if err := led.Deploy(ctx, prog, pricelogger.New(pricelogger.Options{})); err != nil {
		t.Fatal(err)
	}
	if err := led.CreateAccount(ctx, logger.PublicKey(), prog, state.Len); err != nil {
		t.Fatal(err)
	}
	tx := NewTransaction(Instruction{
		ProgramID: prog,
		Accounts:  []solana.AccountMeta{{PublicKey: logger.PublicKey(), IsSigner: true, IsWritable: true}},
		Data:      instruction.Pack(instruction.UpdatePrice{TargetPrice: 5}),
	})
	if err := tx.Sign(logger); err != nil {
		t.Fatal(err)
	}
	if err := led.Execute(ctx, tx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	rec, err := led.Account(ctx, logger.PublicKey())
	if err != nil || rec.Data[0] != 5 {
		t.Fatalf("rec=%+v err=%v", rec, err)
	}
}

func TestNewRequiresProviderAndNamespace(t *testing.T) {
	if _, err := New(Options{Namespace: "x"}); err == nil {
		t.Fatalf("expected error without provider")
	}
	if _, err := New(Options{Provider: newMemProvider()}); err == nil {
		t.Fatalf("expected error without namespace")
	}
}
