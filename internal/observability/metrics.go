package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes engine counters via prometheus.
type Metrics struct {
	Registry *prometheus.Registry

	InboundEvents      *prometheus.CounterVec
	TicketsCreated     *prometheus.CounterVec
	Escalations        *prometheus.CounterVec
	Reactivations      prometheus.Counter
	WebhookDeliveries  *prometheus.CounterVec
	OutboundSends      *prometheus.CounterVec
	RequestsTotal      *prometheus.CounterVec
	RequestErrorsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns all engine counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		InboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_inbound_events_total",
			Help: "Inbound customer events handled, by channel.",
		}, []string{"channel"}),
		TicketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_tickets_created_total",
			Help: "Tickets created, by initial status.",
		}, []string{"status"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_escalations_total",
			Help: "Escalation attempts, by result.",
		}, []string{"result"}),
		Reactivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_reactivations_total",
			Help: "Bot reactivations.",
		}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_webhook_deliveries_total",
			Help: "Automation webhook deliveries, by result.",
		}, []string{"result"}),
		OutboundSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_outbound_sends_total",
			Help: "Customer-facing outbound sends, by result.",
		}, []string{"result"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_http_requests_total",
			Help: "HTTP requests, by path, method and status.",
		}, []string{"path", "method", "status"}),
		RequestErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_http_request_errors_total",
			Help: "HTTP request errors, by path, method and code.",
		}, []string{"path", "method", "code"}),
	}

	registry.MustRegister(
		m.InboundEvents,
		m.TicketsCreated,
		m.Escalations,
		m.Reactivations,
		m.WebhookDeliveries,
		m.OutboundSends,
		m.RequestsTotal,
		m.RequestErrorsTotal,
	)
	return m
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(path, method, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(path, method, status).Inc()
}

// RecordError increments the request error counter.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.RequestErrorsTotal.WithLabelValues(path, method, code).Inc()
}
