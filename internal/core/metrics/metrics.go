// Package metrics exposes the loyalty engine's Prometheus instruments.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/domain"
)

type Engine struct {
	pointsIssued   prometheus.Counter
	pointsRedeemed prometheus.Counter
	operations     *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	webhooks       *prometheus.CounterVec
}

var (
	engineOnce     sync.Once
	engineRegistry *Engine
)

// Default returns the engine registered with the default Prometheus registry.
func Default() *Engine {
	engineOnce.Do(func() {
		engineRegistry = New(prometheus.DefaultRegisterer)
	})
	return engineRegistry
}

// New builds the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Engine {
	m := &Engine{
		pointsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_points_issued_total",
			Help: "Points minted into customer wallets.",
		}),
		pointsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_points_redeemed_total",
			Help: "Points burned from customer wallets.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_operations_total",
			Help: "Engine operations by outcome code.",
		}, []string{"op", "outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_tx_conflicts_total",
			Help: "Units of work retried after a concurrent update.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loyalty_operation_duration_seconds",
			Help:    "Latency of engine operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loyalty_webhook_deliveries_total",
			Help: "Webhook delivery attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.pointsIssued, m.pointsRedeemed, m.operations, m.conflicts, m.duration, m.webhooks)
	return m
}

func (m *Engine) Observe(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, domain.Code(err)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Engine) Points(typ domain.EntryType, n int64) {
	if m == nil || n <= 0 {
		return
	}
	switch typ {
	case domain.EntryMint:
		m.pointsIssued.Add(float64(n))
	case domain.EntryBurn:
		m.pointsRedeemed.Add(float64(n))
	}
}

func (m *Engine) Conflict(op string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(op).Inc()
}

// Webhook counts a delivery attempt. result is delivered, retry or failed.
func (m *Engine) Webhook(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.webhooks.WithLabelValues(result).Inc()
}
