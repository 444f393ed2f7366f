// Package prom counts processor and ledger events as Prometheus metrics.
//
//	h, err := prom.New(prometheus.DefaultRegisterer, "pricelogger")
//	p := pricelogger.New(pricelogger.Options{Hooks: h})
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/pricelogger"
)

type Hooks struct {
	rejected      prometheus.Counter
	authFailed    *prometheus.CounterVec
	priceUpdates  prometheus.Counter
	lastPrice     prometheus.Gauge
	conflicts     prometheus.Counter
	storeRejected prometheus.Counter
}

var _ pricelogger.Hooks = (*Hooks)(nil)

// New registers the collectors with reg under namespace.
// Registering twice on one registry fails with prometheus.AlreadyRegisteredError.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_rejected_total",
			Help:      "Instruction payloads that could not be decoded.",
		}),
		authFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_failures_total",
			Help:      "Updater accounts that failed the signer or owner check.",
		}, []string{"reason"}),
		priceUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_updates_total",
			Help:      "Successful price updates.",
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_price",
			Help:      "Most recent price written by any logger account.",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_conflicts_total",
			Help:      "Ledger commits refused because an account moved during execution.",
		}),
		storeRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_set_rejected_total",
			Help:      "Account writes the provider refused.",
		}),
	}
	for _, c := range []prometheus.Collector{
		h.rejected, h.authFailed, h.priceUpdates, h.lastPrice, h.conflicts, h.storeRejected,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) InstructionRejected(int)              { h.rejected.Inc() }
func (h *Hooks) AuthorizationFailed(_, reason string) { h.authFailed.WithLabelValues(reason).Inc() }
func (h *Hooks) CommitConflict(string)                { h.conflicts.Inc() }
func (h *Hooks) StoreSetRejected(string)              { h.storeRejected.Inc() }

// PriceUpdated exports the new price as a float64 gauge; prices above 2^53
// lose precision there.
func (h *Hooks) PriceUpdated(_ string, _, newPrice uint64) {
	h.priceUpdates.Inc()
	h.lastPrice.Set(float64(newPrice))
}
