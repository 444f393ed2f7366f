// Package ledger is an in-process host for programs such as the price
// logger. It provisions accounts, verifies signatures and executes one
// instruction at a time against account records kept in a provider.
//
// Records are stored as wire-framed, codec-encoded account.Record values
// under "acct:<ns>:<base58 key>". Every account carries a generation in a
// GenStore; Execute commits only if none of the touched accounts moved
// while the program ran, so concurrent ledgers over one store never
// interleave writes to the same account.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/unkn0wn-root/pricelogger"
	"github.com/unkn0wn-root/pricelogger/account"
	c "github.com/unkn0wn-root/pricelogger/codec"
	gen "github.com/unkn0wn-root/pricelogger/genstore"
	"github.com/unkn0wn-root/pricelogger/internal/util"
	"github.com/unkn0wn-root/pricelogger/internal/wire"
	pr "github.com/unkn0wn-root/pricelogger/provider"
)

// MaxAccountSize bounds the data length CreateAccount accepts.
const MaxAccountSize = 10 << 20

// framing and codec overhead allowed on top of MaxAccountSize when decoding
const recordOverhead = 4 << 10

// Program is executed by the ledger. pricelogger.Processor satisfies it.
type Program interface {
	Process(programID solana.PublicKey, accounts []*account.Info, data []byte) error
}

// CommitObserver is implemented by programs that want to hear which account
// changes were persisted. Committed runs after a successful commit only.
type CommitObserver interface {
	Committed(programID solana.PublicKey, changes []account.Change)
}

// Options configure a Ledger. Only Namespace and Provider are required.
type Options struct {
	Namespace string // keyspace within the provider, e.g. "devnet"
	Provider  pr.Provider

	Codec    c.Codec[account.Record] // nil => Msgpack, wrapped in a size Limit
	GenStore gen.GenStore            // nil => LocalGenStore (in-process)
	Logger   pricelogger.Logger      // nil => NopLogger
	Hooks    pricelogger.Hooks       // nil => NopHooks
}

type Ledger struct {
	ns       string
	provider pr.Provider
	codec    c.Codec[account.Record]
	gen      gen.GenStore
	log      pricelogger.Logger
	hooks    pricelogger.Hooks

	mu       sync.RWMutex
	programs map[solana.PublicKey]Program
}

func New(opts Options) (*Ledger, error) {
	if opts.Provider == nil {
		return nil, errors.New("ledger: provider is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("ledger: namespace is required")
	}

	l := &Ledger{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		gen:      opts.GenStore,
		log:      opts.Logger,
		hooks:    opts.Hooks,
		programs: make(map[solana.PublicKey]Program),
	}
	if l.codec == nil {
		l.codec = c.Limit[account.Record]{
			Inner:     c.Msgpack[account.Record]{},
			MaxDecode: MaxAccountSize + recordOverhead,
		}
	}
	if l.gen == nil {
		l.gen = gen.NewLocalGenStore(0, 0)
	}
	if l.log == nil {
		l.log = pricelogger.NopLogger{}
	}
	if l.hooks == nil {
		l.hooks = pricelogger.NopHooks{}
	}
	return l, nil
}

// Close releases the generation store, then the provider.
func (l *Ledger) Close(ctx context.Context) error {
	_ = l.gen.Close(ctx)
	return l.provider.Close(ctx)
}

// Deploy registers prog under programID and marks the program account
// executable. Deploying onto an existing executable account only
// re-registers the implementation (e.g. a second process sharing a store).
func (l *Ledger) Deploy(ctx context.Context, programID solana.PublicKey, prog Program) error {
	rec, ok, err := l.load(ctx, programID)
	if err != nil {
		return err
	}
	if ok && !rec.Executable {
		return accountErr(programID, ErrAccountExists)
	}
	if !ok {
		rec = account.Record{Owner: solana.BPFLoaderUpgradeableProgramID, Executable: true}
		if err := l.create(ctx, programID, rec); err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.programs[programID] = prog
	l.mu.Unlock()

	l.log.Info("program deployed", pricelogger.Fields{"program": programID.String()})
	return nil
}

// CreateAccount allocates a zeroed account of space bytes owned by owner.
func (l *Ledger) CreateAccount(ctx context.Context, key, owner solana.PublicKey, space int) error {
	if space < 0 || space > MaxAccountSize {
		return fmt.Errorf("ledger: invalid account size %d", space)
	}
	return l.create(ctx, key, account.Record{Owner: owner, Data: make([]byte, space)})
}

// CreateAccountWithSeed derives the account address from base, seed and
// owner, then allocates it like CreateAccount.
func (l *Ledger) CreateAccountWithSeed(ctx context.Context, base solana.PublicKey, seed string, owner solana.PublicKey, space int) (solana.PublicKey, error) {
	key, err := solana.CreateWithSeed(base, seed, owner)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("ledger: derive address: %w", err)
	}
	if err := l.CreateAccount(ctx, key, owner, space); err != nil {
		return solana.PublicKey{}, err
	}
	return key, nil
}

// Account returns a copy of the stored record.
func (l *Ledger) Account(ctx context.Context, key solana.PublicKey) (account.Record, error) {
	rec, ok, err := l.load(ctx, key)
	if err != nil {
		return account.Record{}, err
	}
	if !ok {
		return account.Record{}, accountErr(key, ErrAccountNotFound)
	}
	return rec, nil
}

func (l *Ledger) program(id solana.PublicKey) (Program, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.programs[id]
	return p, ok
}

// loaded is one distinct account touched by an instruction.
type loaded struct {
	storageKey string
	gen        uint64
	existed    bool
	orig       account.Record
	info       *account.Info
}

// Execute verifies tx, runs its program and commits the resulting account
// changes. Either every change is committed or none is: a program error,
// a host rule violation, a generation conflict or a refused write leaves
// the store as it was. A rollback that itself fails is logged at error.
func (l *Ledger) Execute(ctx context.Context, tx *Transaction) error {
	ix := tx.Instruction
	prog, ok := l.program(ix.ProgramID)
	if !ok {
		return accountErr(ix.ProgramID, ErrProgramNotFound)
	}
	progRec, ok, err := l.load(ctx, ix.ProgramID)
	if err != nil {
		return err
	}
	if !ok {
		return accountErr(ix.ProgramID, ErrProgramNotFound)
	}
	if !progRec.Executable {
		return accountErr(ix.ProgramID, ErrNotExecutable)
	}

	if err := tx.verify(); err != nil {
		return err
	}

	accs, infos, err := l.loadAccounts(ctx, ix.Accounts)
	if err != nil {
		return err
	}

	if err := prog.Process(ix.ProgramID, infos, ix.Data); err != nil {
		l.log.Debug("instruction failed", pricelogger.Fields{
			"program": ix.ProgramID.String(),
			"err":     err.Error(),
		})
		return &ProgramError{Program: ix.ProgramID, Err: err}
	}

	dirty, err := l.changed(ix.ProgramID, accs)
	if err != nil {
		return err
	}
	if err := l.commit(ctx, dirty); err != nil {
		return err
	}

	if obs, ok := prog.(CommitObserver); ok && len(dirty) > 0 {
		changes := make([]account.Change, len(dirty))
		for i, a := range dirty {
			changes[i] = account.Change{
				Key:    a.info.Key,
				Owner:  a.orig.Owner,
				Before: a.orig.Data,
				After:  a.info.Data,
			}
		}
		obs.Committed(ix.ProgramID, changes)
	}
	return nil
}

// loadAccounts snapshots generations and builds the program's account
// views. A key listed twice maps to one shared *account.Info whose signer
// and writable flags are the union of its metas.
func (l *Ledger) loadAccounts(ctx context.Context, metas []solana.AccountMeta) ([]*loaded, []*account.Info, error) {
	byKey := make(map[solana.PublicKey]*loaded, len(metas))
	order := make([]*loaded, 0, len(metas))
	storageKeys := make([]string, 0, len(metas))

	for _, m := range metas {
		if a, ok := byKey[m.PublicKey]; ok {
			a.info.IsSigner = a.info.IsSigner || m.IsSigner
			a.info.IsWritable = a.info.IsWritable || m.IsWritable
			continue
		}
		a := &loaded{
			storageKey: util.AccountKey(l.ns, m.PublicKey),
			info: &account.Info{
				Key:        m.PublicKey,
				IsSigner:   m.IsSigner,
				IsWritable: m.IsWritable,
			},
		}
		byKey[m.PublicKey] = a
		order = append(order, a)
		storageKeys = append(storageKeys, a.storageKey)
	}

	// generations first: anything committed after this point is a conflict
	gens, err := l.gen.SnapshotMany(ctx, storageKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: snapshot generations: %w", err)
	}

	for _, a := range order {
		rec, ok, err := l.load(ctx, a.info.Key)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			// unknown keys behave like empty system accounts
			rec = account.Record{Owner: solana.SystemProgramID}
		}
		a.gen = gens[a.storageKey]
		a.existed = ok
		a.orig = rec
		a.info.Owner = rec.Owner
		a.info.Executable = rec.Executable
		a.info.Data = append([]byte(nil), rec.Data...)
	}

	infos := make([]*account.Info, len(metas))
	for i, m := range metas {
		infos[i] = byKey[m.PublicKey].info
	}
	return order, infos, nil
}

// changed applies the host's write rules and returns the accounts whose
// data the program modified.
func (l *Ledger) changed(programID solana.PublicKey, accs []*loaded) ([]*loaded, error) {
	var dirty []*loaded
	for _, a := range accs {
		if bytes.Equal(a.info.Data, a.orig.Data) {
			continue
		}
		switch {
		case len(a.info.Data) != len(a.orig.Data):
			return nil, accountErr(a.info.Key, ErrDataResized)
		case !a.info.IsWritable:
			return nil, accountErr(a.info.Key, ErrReadonlyModified)
		case !a.orig.Owner.Equals(programID):
			return nil, accountErr(a.info.Key, ErrExternalModified)
		}
		dirty = append(dirty, a)
	}
	return dirty, nil
}

// commit encodes every dirty record and claims its next generation before
// writing any of them. If a write fails, the records already written are
// put back to their pre-instruction state.
func (l *Ledger) commit(ctx context.Context, dirty []*loaded) error {
	if len(dirty) == 0 {
		return nil
	}
	sort.Slice(dirty, func(i, j int) bool { return dirty[i].storageKey < dirty[j].storageKey })

	payloads := make([][]byte, len(dirty))
	for i, a := range dirty {
		rec := a.orig
		rec.Data = a.info.Data
		b, err := l.codec.Encode(rec)
		if err != nil {
			return fmt.Errorf("ledger: encode %s: %w", a.info.Key, err)
		}
		payloads[i] = b
	}

	newGens := make([]uint64, len(dirty))
	for i, a := range dirty {
		g, ok, err := l.gen.CompareAndBump(ctx, a.storageKey, a.gen)
		if err != nil {
			return fmt.Errorf("ledger: bump generation: %w", err)
		}
		if !ok {
			l.hooks.CommitConflict(a.info.Key.String())
			l.log.Warn("commit conflict", pricelogger.Fields{
				"account": a.info.Key.String(),
				"gen":     a.gen,
			})
			return accountErr(a.info.Key, ErrConflict)
		}
		newGens[i] = g
	}

	for i, a := range dirty {
		if err := l.put(ctx, a.info.Key, a.storageKey, wire.EncodeAccount(newGens[i], payloads[i])); err != nil {
			l.rollback(ctx, dirty[:i], newGens[:i])
			return err
		}
		l.log.Debug("account committed", pricelogger.Fields{
			"account": a.info.Key.String(),
			"gen":     newGens[i],
		})
	}
	return nil
}

// rollback restores accounts written by a commit that failed part way.
// Their generations stay bumped, so concurrent readers still see a change.
func (l *Ledger) rollback(ctx context.Context, written []*loaded, gens []uint64) {
	for i, a := range written {
		var err error
		if a.existed {
			err = l.store(ctx, a.info.Key, a.storageKey, gens[i], a.orig)
		} else {
			err = l.provider.Del(ctx, a.storageKey)
		}
		if err != nil {
			l.log.Error("rollback failed", pricelogger.Fields{
				"account": a.info.Key.String(),
				"err":     err.Error(),
			})
		}
	}
}

func (l *Ledger) create(ctx context.Context, key solana.PublicKey, rec account.Record) error {
	sk := util.AccountKey(l.ns, key)
	obs, err := l.gen.Snapshot(ctx, sk)
	if err != nil {
		return fmt.Errorf("ledger: snapshot generation: %w", err)
	}
	if _, ok, err := l.load(ctx, key); err != nil {
		return err
	} else if ok {
		return accountErr(key, ErrAccountExists)
	}

	g, ok, err := l.gen.CompareAndBump(ctx, sk, obs)
	if err != nil {
		return fmt.Errorf("ledger: bump generation: %w", err)
	}
	if !ok {
		// lost the race to another creator
		return accountErr(key, ErrAccountExists)
	}
	if err := l.store(ctx, key, sk, g, rec); err != nil {
		return err
	}
	l.log.Debug("account created", pricelogger.Fields{
		"account": key.String(),
		"owner":   rec.Owner.String(),
		"space":   len(rec.Data),
	})
	return nil
}

func (l *Ledger) load(ctx context.Context, key solana.PublicKey) (account.Record, bool, error) {
	raw, ok, err := l.provider.Get(ctx, util.AccountKey(l.ns, key))
	if err != nil {
		return account.Record{}, false, fmt.Errorf("ledger: read %s: %w", key, err)
	}
	if !ok {
		return account.Record{}, false, nil
	}
	_, payload, err := wire.DecodeAccount(raw)
	if err != nil {
		l.log.Error("corrupt account frame", pricelogger.Fields{"account": key.String()})
		return account.Record{}, false, accountErr(key, fmt.Errorf("%w: %w", ErrCorruptAccount, err))
	}
	rec, err := l.codec.Decode(payload)
	if err != nil {
		l.log.Error("account record decode failed", pricelogger.Fields{
			"account": key.String(),
			"codec":   c.NameOf(l.codec),
		})
		return account.Record{}, false, accountErr(key, fmt.Errorf("%w: %w", ErrCorruptAccount, err))
	}
	return rec, true, nil
}

func (l *Ledger) store(ctx context.Context, key solana.PublicKey, storageKey string, g uint64, rec account.Record) error {
	payload, err := l.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("ledger: encode %s: %w", key, err)
	}
	return l.put(ctx, key, storageKey, wire.EncodeAccount(g, payload))
}

func (l *Ledger) put(ctx context.Context, key solana.PublicKey, storageKey string, framed []byte) error {
	ok, err := l.provider.Set(ctx, storageKey, framed, int64(len(framed)))
	if err != nil {
		return fmt.Errorf("ledger: write %s: %w", key, err)
	}
	if !ok {
		l.hooks.StoreSetRejected(key.String())
		return accountErr(key, ErrStoreRejected)
	}
	return nil
}
