// Package metrics holds the prometheus collectors shared by the gateway,
// the session controller and the web surface.
package metrics

import (
	"time"

	"github.com/iancoleman/strcase"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gotyper_live"

// Metrics groups every collector the application exports
type Metrics struct {
	GatewayRequests *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
	Dispatched      prometheus.Counter
	StaleOutcomes   prometheus.Counter
	ActiveSurfaces  prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Conversion requests by outcome",
			},
			[]string{"outcome"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Conversion request latency by outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		Dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "dispatched_total",
			Help:      "Debounced conversion requests dispatched by edit sessions",
		}),
		StaleOutcomes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "stale_outcomes_total",
			Help:      "Conversion outcomes discarded because the text had changed",
		}),
		ActiveSurfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "web",
			Name:      "active_surfaces",
			Help:      "Connected websocket editing surfaces",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.GatewayRequests,
			m.GatewayDuration,
			m.Dispatched,
			m.StaleOutcomes,
			m.ActiveSurfaces,
		)
	}
	return m
}

// OutcomeLabel turns an outcome name such as "NoResponse" into the label
// value "no_response"
func OutcomeLabel(name string) string {
	return strcase.ToSnake(name)
}

// ObserveGateway records one finished conversion request. Safe on a nil receiver.
func (m *Metrics) ObserveGateway(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := OutcomeLabel(outcome)
	m.GatewayRequests.WithLabelValues(label).Inc()
	m.GatewayDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// IncDispatched counts a dispatched conversion. Safe on a nil receiver.
func (m *Metrics) IncDispatched() {
	if m == nil {
		return
	}
	m.Dispatched.Inc()
}

// IncStale counts a discarded outcome. Safe on a nil receiver.
func (m *Metrics) IncStale() {
	if m == nil {
		return
	}
	m.StaleOutcomes.Inc()
}

// SurfaceOpened tracks a connected surface. Safe on a nil receiver.
func (m *Metrics) SurfaceOpened() {
	if m == nil {
		return
	}
	m.ActiveSurfaces.Inc()
}

// SurfaceClosed tracks a disconnected surface. Safe on a nil receiver.
func (m *Metrics) SurfaceClosed() {
	if m == nil {
		return
	}
	m.ActiveSurfaces.Dec()
}
