// Package metrics exposes bridge activity as prometheus metrics.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/types"
)

const namespace = "sei_bridge"

// Metrics holds every collector of the process on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	workflowTransitionsTotal *prometheus.CounterVec
	workflowFailuresTotal    *prometheus.CounterVec
	workflowState            *prometheus.GaugeVec
	balanceAmount            *prometheus.GaugeVec
	balanceReadFailuresTotal *prometheus.CounterVec
	balanceLastObserved      *prometheus.GaugeVec
	blockHeight              prometheus.Gauge
	sessionEventsTotal       *prometheus.CounterVec
}

// New creates the collectors and registers them with the Go and process
// collectors.
func New(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		workflowTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "transitions_total",
				Help:      "Total number of workflow state transitions",
			},
			[]string{"from", "to"},
		),
		workflowFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "step_failures_total",
				Help:      "Total number of failed workflow steps by error kind",
			},
			[]string{"step", "kind"},
		),
		workflowState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "state",
				Help:      "1 for the current workflow state, 0 otherwise",
			},
			[]string{"state"},
		),
		balanceAmount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "balance",
				Name:      "amount",
				Help:      "Latest observed token balance",
			},
			[]string{"side", "denom"},
		),
		balanceReadFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "balance",
				Name:      "read_failures_total",
				Help:      "Total number of failed balance reads",
			},
			[]string{"side"},
		),
		balanceLastObserved: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "balance",
				Name:      "last_observed_timestamp_seconds",
				Help:      "Unix timestamp of the last successful balance read",
			},
			[]string{"side"},
		),
		blockHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "block_height",
				Help:      "Latest source chain block height seen",
			},
		),
		sessionEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "events_total",
				Help:      "Total number of wallet session changes",
			},
			[]string{"role", "kind"},
		),
	}

	m.register(collectors.NewGoCollector(), "go_collector", logger)
	m.register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)
	m.register(m.workflowTransitionsTotal, "workflow_transitions_total", logger)
	m.register(m.workflowFailuresTotal, "workflow_step_failures_total", logger)
	m.register(m.workflowState, "workflow_state", logger)
	m.register(m.balanceAmount, "balance_amount", logger)
	m.register(m.balanceReadFailuresTotal, "balance_read_failures_total", logger)
	m.register(m.balanceLastObserved, "balance_last_observed", logger)
	m.register(m.blockHeight, "block_height", logger)
	m.register(m.sessionEventsTotal, "session_events_total", logger)

	return m
}

func (m *Metrics) register(collector prometheus.Collector, name string, logger *zap.Logger) {
	if err := m.registry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debug("collector already registered", zap.String("name", name))
			return
		}
		logger.Error("failed to register collector", zap.String("name", name), zap.Error(err))
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordTransition counts a workflow transition and moves the state gauge.
func (m *Metrics) RecordTransition(from, to types.WorkflowState) {
	m.workflowTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	m.workflowState.WithLabelValues(string(from)).Set(0)
	m.workflowState.WithLabelValues(string(to)).Set(1)
}

// RecordStepFailure counts a failed workflow step.
func (m *Metrics) RecordStepFailure(step string, kind errs.Kind) {
	if kind == "" {
		kind = "UNKNOWN"
	}
	m.workflowFailuresTotal.WithLabelValues(step, string(kind)).Inc()
}

// RecordBalance publishes a successful balance read.
func (m *Metrics) RecordBalance(side string, snap types.BalanceSnapshot) {
	value, _ := snap.Amount.Float64()
	m.balanceAmount.WithLabelValues(side, snap.Denom).Set(value)
	m.balanceLastObserved.WithLabelValues(side).Set(float64(snap.ObservedAt.Unix()))
}

// RecordBalanceReadFailure counts a failed balance read.
func (m *Metrics) RecordBalanceReadFailure(side string) {
	m.balanceReadFailuresTotal.WithLabelValues(side).Inc()
}

// RecordBlockHeight publishes the latest source block height.
func (m *Metrics) RecordBlockHeight(height uint64) {
	m.blockHeight.Set(float64(height))
}

// RecordSessionEvent counts a wallet session change.
func (m *Metrics) RecordSessionEvent(role types.ChainRole, kind string) {
	m.sessionEventsTotal.WithLabelValues(string(role), kind).Inc()
}
