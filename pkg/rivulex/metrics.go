package rivulex

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine lifecycle events per hook. Attach it to a
// publisher's or subscriber's hook bus; the counters are cheap enough
// for synchronous listener dispatch.
type Metrics struct {
	events *prometheus.CounterVec
	tokens []string
}

// NewMetrics creates and registers the counters with reg. Pass
// prometheus.DefaultRegisterer for the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rivulex",
			Name:      "events_total",
			Help:      "Lifecycle events by hook name.",
		}, []string{"hook"}),
	}
	reg.MustRegister(m.events)
	return m
}

// Attach subscribes a counting listener for every hook on the bus.
func (m *Metrics) Attach(hooks *Hooks) {
	for _, hook := range []Hook{HookPublished, HookFailed, HookConfirmed, HookRejected, HookTimeout} {
		hook := hook
		token := hooks.On(hook, func(HookEvent) {
			m.events.WithLabelValues(string(hook)).Inc()
		})
		m.tokens = append(m.tokens, token)
	}
}

// Detach removes the listeners registered by Attach.
func (m *Metrics) Detach(hooks *Hooks) {
	for _, token := range m.tokens {
		hooks.Off(token)
	}
	m.tokens = nil
}
