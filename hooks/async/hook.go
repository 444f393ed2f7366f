// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    PriceUpdatedEvery: 100, // sample logs: ~every 100th update
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	led, _ := ledger.New(ledger.Options{
//	    Namespace: "devnet",
//	    Provider:  provider,
//	    Hooks:     hooks,
//	})
//	_ = led.Deploy(ctx, programID, pricelogger.New(pricelogger.Options{Hooks: hooks}))
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/pricelogger"
)

type Hooks struct {
	inner pricelogger.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ pricelogger.Hooks = (*Hooks)(nil)

func New(inner pricelogger.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Hooks fired after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) InstructionRejected(n int)       { h.try(func() { h.inner.InstructionRejected(n) }) }
func (h *Hooks) CommitConflict(a string)         { h.try(func() { h.inner.CommitConflict(a) }) }
func (h *Hooks) StoreSetRejected(a string)       { h.try(func() { h.inner.StoreSetRejected(a) }) }
func (h *Hooks) AuthorizationFailed(a, r string) { h.try(func() { h.inner.AuthorizationFailed(a, r) }) }
func (h *Hooks) PriceUpdated(a string, o, n uint64) {
	h.try(func() { h.inner.PriceUpdated(a, o, n) })
}
