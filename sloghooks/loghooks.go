package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/pricelogger"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	PriceUpdatedEvery uint64
	RejectedEvery     uint64
	// Optional account redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	priceCtr    atomic.Uint64
	rejectedCtr atomic.Uint64
}

var _ pricelogger.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) InstructionRejected(payloadLen int) {
	if h.l == nil || !sample(h.opts.RejectedEvery, &h.rejectedCtr) {
		return
	}
	h.l.Info("pricelogger.instruction_rejected",
		"payload_len", payloadLen)
}

func (h *Hooks) AuthorizationFailed(account, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("pricelogger.authorization_failed",
		"account", h.redact(account),
		"reason", reason)
}

func (h *Hooks) PriceUpdated(account string, oldPrice, newPrice uint64) {
	if h.l == nil || !sample(h.opts.PriceUpdatedEvery, &h.priceCtr) {
		return
	}
	h.l.Debug("pricelogger.price_updated",
		"account", h.redact(account),
		"old", oldPrice,
		"new", newPrice)
}

func (h *Hooks) CommitConflict(account string) {
	if h.l == nil {
		return
	}
	h.l.Warn("pricelogger.commit_conflict",
		"account", h.redact(account))
}

func (h *Hooks) StoreSetRejected(account string) {
	if h.l == nil {
		return
	}
	h.l.Error("pricelogger.store_set_rejected",
		"account", h.redact(account))
}
