package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the versioned-record subsystem.
type Metrics struct {
	VersionsCreated    *prometheus.CounterVec
	SupersedeConflicts *prometheus.CounterVec
	PolicyResolutions  *prometheus.CounterVec
	Decisions          *prometheus.CounterVec
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the metrics against a caller-supplied registerer. Tests use
// a fresh registry per suite so parallel suites cannot collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VersionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_versions_created_total",
			Help: "Total version rows inserted, by record kind.",
		}, []string{"kind"}),
		SupersedeConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_supersede_conflicts_total",
			Help: "Supersede attempts that lost the optimistic concurrency race, by record kind.",
		}, []string{"kind"}),
		PolicyResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_policy_resolutions_total",
			Help: "Policy resolutions by policy domain and result (hit, miss, stale, not_configured).",
		}, []string{"domain", "result"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solace_policy_decisions_total",
			Help: "Validator decisions by policy domain and outcome.",
		}, []string{"domain", "outcome"}),
	}
}

// ObserveVersionCreated records an inserted version row.
func (m *Metrics) ObserveVersionCreated(kind string) {
	if m == nil {
		return
	}
	m.VersionsCreated.WithLabelValues(kind).Inc()
}

// ObserveSupersedeConflict records a lost optimistic concurrency race.
func (m *Metrics) ObserveSupersedeConflict(kind string) {
	if m == nil {
		return
	}
	m.SupersedeConflicts.WithLabelValues(kind).Inc()
}

// ObservePolicyResolution records the outcome of a policy lookup.
func (m *Metrics) ObservePolicyResolution(domain, result string) {
	if m == nil {
		return
	}
	m.PolicyResolutions.WithLabelValues(domain, result).Inc()
}

// ObserveDecision records a validator outcome.
func (m *Metrics) ObserveDecision(domain, outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(domain, outcome).Inc()
}
