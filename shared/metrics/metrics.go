package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics counts checkout outcomes and webhook events.
type EngineMetrics struct {
	Checkouts     *prometheus.CounterVec
	WebhookEvents *prometheus.CounterVec
	GatewayMS     *prometheus.HistogramVec
}

func NewEngineMetrics() *EngineMetrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "checkout",
		Name:      "operations_total",
		Help:      "Total checkout engine operations by outcome.",
	}, []string{"operation", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Total webhook events by type and result.",
	}, []string{"type", "result"})
	gatewayMS := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: "gateway",
		Name:      "request_duration_ms",
		Help:      "Payment gateway request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"gateway", "call"})

	prometheus.MustRegister(checkouts, webhookEvents, gatewayMS)
	return &EngineMetrics{Checkouts: checkouts, WebhookEvents: webhookEvents, GatewayMS: gatewayMS}
}

// CountOperation is nil-safe so callers without metrics wired (tests) can
// pass a nil *EngineMetrics.
func (m *EngineMetrics) CountOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(operation, outcome).Inc()
}

func (m *EngineMetrics) CountWebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *EngineMetrics) ObserveGatewayMS(gateway, call string, ms float64) {
	if m == nil {
		return
	}
	m.GatewayMS.WithLabelValues(gateway, call).Observe(ms)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
