package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rzpsarthak13/thinorm/internal/core"
)

// Namespace prefixes every collector.
const Namespace = "thinorm"

// Default histogram buckets for statement duration (in seconds)
var defaultBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics wraps the prometheus collectors for one connection.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	statementsTotal   *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	throttleWait      *prometheus.HistogramVec
	publishFailures   *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Collectors already registered by another connection are reused, so
// several connections may share one registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		statementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "statements_total",
				Help:      "Total number of executed statements",
			},
			[]string{"dialect", "op", "status"},
		),

		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "statement_duration_seconds",
				Help:      "Statement execution time",
				Buckets:   defaultBuckets,
			},
			[]string{"dialect", "op"},
		),

		throttleWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "throttle_wait_seconds",
				Help:      "Time statements spent waiting for the rate limiter",
				Buckets:   defaultBuckets,
			},
			[]string{"dialect"},
		),

		publishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "changefeed_publish_failures_total",
				Help:      "Change events that could not be published",
			},
			[]string{"table", "operation"},
		),

		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "changefeed_events_total",
				Help:      "Change events published",
			},
			[]string{"table", "operation"},
		),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	m.statementsTotal, err = register(reg, m.statementsTotal)
	if err != nil {
		return nil, err
	}
	m.statementDuration, err = register(reg, m.statementDuration)
	if err != nil {
		return nil, err
	}
	m.throttleWait, err = register(reg, m.throttleWait)
	if err != nil {
		return nil, err
	}
	m.publishFailures, err = register(reg, m.publishFailures)
	if err != nil {
		return nil, err
	}
	m.eventsPublished, err = register(reg, m.eventsPublished)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Status returns the status label for a statement outcome.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	switch core.KindOf(err) {
	case core.ConnectionError:
		return "connection_error"
	case core.SQLError:
		return "sql_error"
	case core.MappingError:
		return "mapping_error"
	case core.InsertError:
		return "insert_error"
	case core.RenderError:
		return "render_error"
	}
	return "error"
}

// ObserveStatement records one executed statement.
func (m *Metrics) ObserveStatement(dialect, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.statementsTotal.WithLabelValues(dialect, op, Status(err)).Inc()
	m.statementDuration.WithLabelValues(dialect, op).Observe(d.Seconds())
}

// ObserveThrottle records time spent waiting for the rate limiter.
func (m *Metrics) ObserveThrottle(dialect string, d time.Duration) {
	if m == nil {
		return
	}
	m.throttleWait.WithLabelValues(dialect).Observe(d.Seconds())
}

// EventPublished counts a published change event.
func (m *Metrics) EventPublished(table string, op core.OperationType) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(table, string(op)).Inc()
}

// PublishFailed counts a change event the publisher rejected.
func (m *Metrics) PublishFailed(table string, op core.OperationType) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(table, string(op)).Inc()
}
