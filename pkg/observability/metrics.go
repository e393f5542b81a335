// Package observability exports engine activity as Prometheus metrics.
// The collector consumes the binding surface like any other observer; the
// core never depends on it.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/espalier/pkg/binding"
	"github.com/aretw0/espalier/pkg/domain"
)

// Collector counts inputs, state changes, outputs and handler errors for
// one machine definition.
type Collector struct {
	inputs      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	outputs     *prometheus.CounterVec
	errors      prometheus.Counter
}

// NewCollector creates and registers the counters. The definition name
// becomes a constant label so several machines can share a registerer.
func NewCollector(reg prometheus.Registerer, definition string) *Collector {
	constLabels := prometheus.Labels{"definition": definition}
	c := &Collector{
		inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "espalier_inputs_total",
			Help:        "Inputs routed through the machine, by input kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "espalier_transitions_total",
			Help:        "Actual state changes, by new state kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		outputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "espalier_outputs_total",
			Help:        "Outputs announced by handlers and lifecycle callbacks, by kind.",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "espalier_handler_errors_total",
			Help:        "Handler failures converted to error events.",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(c.inputs, c.transitions, c.outputs, c.errors)
	return c
}

// Attach wires the collector to a binding and returns the binding for
// further chained registrations.
func (c *Collector) Attach(b *binding.Binding) *binding.Binding {
	b.WatchAll(func(v any) {
		c.inputs.WithLabelValues(domain.KindName(domain.KindOfValue(v))).Inc()
	})
	b.WhenAll(func(change binding.StateChange) {
		c.transitions.WithLabelValues(domain.KindName(change.State.Kind)).Inc()
	})
	b.HandleAll(func(v any) {
		c.outputs.WithLabelValues(domain.KindName(domain.KindOfValue(v))).Inc()
	})
	b.CatchAll(func(err error) {
		c.errors.Inc()
	})
	return b
}
