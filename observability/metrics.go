package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"shadowbridge/core/events"
)

// BridgeMetrics records settlement activity for the Prometheus endpoint.
type BridgeMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

var (
	bridgeMetricsOnce sync.Once
	bridgeRegistry    *BridgeMetrics
)

// Metrics returns the lazily-initialised metrics registry used to record RPC
// and settlement activity.
func Metrics() *BridgeMetrics {
	bridgeMetricsOnce.Do(func() {
		bridgeRegistry = &BridgeMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shadowbridge",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total RPC requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shadowbridge",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total RPC errors segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "shadowbridge",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shadowbridge",
				Subsystem: "settlement",
				Name:      "events_total",
				Help:      "Settlement events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(
			bridgeRegistry.requests,
			bridgeRegistry.errors,
			bridgeRegistry.latency,
			bridgeRegistry.events,
		)
	})
	return bridgeRegistry
}

// ObserveRequest records one RPC request with its outcome.
func (m *BridgeMetrics) ObserveRequest(route, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(seconds)
}

// ObserveError records one RPC error with its status code.
func (m *BridgeMetrics) ObserveError(route, status string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, status).Inc()
}

// Emit implements events.Emitter so the metrics registry can subscribe to the
// settlement event stream alongside the log.
func (m *BridgeMetrics) Emit(evt events.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(evt.EventType()).Inc()
}

// GaugeSources supplies live readings for the core-level gauges.
type GaugeSources struct {
	TotalSupply func() float64
	TotalQuota  func() float64
	Halted      func() float64
}

var coreGaugesOnce sync.Once

// RegisterCoreGauges exposes wrapped-token supply, aggregate quota, and the
// halt switch on the metrics endpoint. Call once after the core is built.
func RegisterCoreGauges(src GaugeSources) {
	coreGaugesOnce.Do(func() {
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "shadowbridge",
				Subsystem: "settlement",
				Name:      "token_supply",
				Help:      "Outstanding wrapped-token supply.",
			}, src.TotalSupply),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "shadowbridge",
				Subsystem: "settlement",
				Name:      "total_quota",
				Help:      "Aggregate quota across registered storeman groups.",
			}, src.TotalQuota),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "shadowbridge",
				Subsystem: "settlement",
				Name:      "halted",
				Help:      "1 while settlement traffic is paused.",
			}, src.Halted),
		)
	})
}
