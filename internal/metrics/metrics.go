// Package metrics exports adaptive policy activity as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/npipolicy/internal/adaptive"
)

// Metrics implements adaptive.Observer.
type Metrics struct {
	// Regime: 0 initial, 1 restricted, 2 open
	Regime *prometheus.GaugeVec

	Transitions *prometheus.CounterVec

	// Incidence: last evaluated 7-day incidence per 100k
	Incidence *prometheus.GaugeVec

	reg *prometheus.Registry
}

var _ adaptive.Observer = (*Metrics)(nil)

// New registers the collectors with reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Regime: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "npi_regime",
			Help: "Current regime per trigger group and scope (0=initial, 1=restricted, 2=open).",
		}, []string{"group", "scope"}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "npi_transitions_total",
			Help: "Total number of regime transitions.",
		}, []string{"group", "from", "to"}),

		Incidence: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "npi_incidence",
			Help: "Last evaluated incidence per trigger group and scope.",
		}, []string{"group", "scope"}),

		reg: reg,
	}
}

// RegimeValue maps a regime to its gauge value.
func RegimeValue(r adaptive.Regime) float64 {
	switch r {
	case adaptive.RegimeRestricted:
		return 1
	case adaptive.RegimeOpen:
		return 2
	default:
		return 0
	}
}

func (m *Metrics) ObserveIncidence(group, scope string, value float64) {
	m.Incidence.WithLabelValues(group, scope).Set(value)
}

func (m *Metrics) ObserveRegime(group, scope string, r adaptive.Regime) {
	m.Regime.WithLabelValues(group, scope).Set(RegimeValue(r))
}

func (m *Metrics) ObserveTransition(t adaptive.Transition) {
	m.Transitions.WithLabelValues(t.Group, string(t.From), string(t.To)).Inc()
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteFile writes the text exposition of all collectors to path.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
