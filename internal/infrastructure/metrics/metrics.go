// Package metrics exposes ledger and HTTP measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

const namespace = "stockledger"

// Metrics holds all Prometheus metrics. It implements usecase.Metrics.
type Metrics struct {
	// Ledger metrics
	EntitiesRegistered prometheus.Counter
	MovementsApplied   *prometheus.CounterVec
	MovementMagnitude  *prometheus.HistogramVec
	MovementDuration   prometheus.Histogram
	MovementFailures   *prometheus.CounterVec
	LockWaitDuration   prometheus.Histogram
	LowBalanceEvents   prometheus.Counter

	// Outbox metrics
	EventsPublished *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
}

// New creates all metrics and registers them with reg.
// A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EntitiesRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_registered_total",
			Help:      "Total number of entities registered",
		}),
		MovementsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "movements_applied_total",
				Help:      "Total number of movements applied by direction",
			},
			[]string{"direction"},
		),
		MovementMagnitude: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "movement_magnitude",
				Help:      "Magnitude of applied movements",
				Buckets:   []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"direction"},
		),
		MovementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "movement_duration_seconds",
			Help:      "Duration of apply_movement including lock wait",
			Buckets:   prometheus.DefBuckets,
		}),
		MovementFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "movement_failures_total",
				Help:      "Total number of rejected or failed movements by error kind",
			},
			[]string{"kind"},
		),
		LockWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for the per-entity lock",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		LowBalanceEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_balance_events_total",
			Help:      "Total number of low-balance threshold crossings",
		}),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_events_published_total",
				Help:      "Total outbox events relayed by type",
			},
			[]string{"event_type"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
	}
}

// EntityRegistered counts a registration.
func (m *Metrics) EntityRegistered() {
	m.EntitiesRegistered.Inc()
}

// MovementApplied records a committed movement.
func (m *Metrics) MovementApplied(direction domain.Direction, magnitude decimal.Decimal, duration time.Duration) {
	m.MovementsApplied.WithLabelValues(string(direction)).Inc()
	m.MovementMagnitude.WithLabelValues(string(direction)).Observe(magnitude.InexactFloat64())
	m.MovementDuration.Observe(duration.Seconds())
}

// MovementFailed counts a movement that ended in an error of the given kind.
func (m *Metrics) MovementFailed(kind string) {
	m.MovementFailures.WithLabelValues(kind).Inc()
}

// LockWait records time spent acquiring an entity lock.
func (m *Metrics) LockWait(duration time.Duration) {
	m.LockWaitDuration.Observe(duration.Seconds())
}

// LowBalance counts a threshold crossing.
func (m *Metrics) LowBalance() {
	m.LowBalanceEvents.Inc()
}

// EventPublished counts a relayed outbox event.
func (m *Metrics) EventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}
