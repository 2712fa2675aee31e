package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgwss_gateway_requests_total",
			Help: "Total number of gateway HTTP requests issued by the client.",
		},
		[]string{"operation", "status"},
	)
	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "msgwss_gateway_request_duration_seconds",
			Help:    "Gateway request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	wsActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "msgwss_ws_active_subscriptions",
			Help: "Number of live room subscriptions currently open.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgwss_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	eventsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "msgwss_events_applied_total",
			Help: "Total number of room events applied to local state.",
		},
		[]string{"kind"},
	)
	eventDecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "msgwss_event_decode_errors_total",
			Help: "Total number of subscription frames dropped as undecodable.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "msgwss_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		gatewayRequestsTotal,
		gatewayRequestDuration,
		wsActiveSubscriptions,
		wsEventsTotal,
		eventsAppliedTotal,
		eventDecodeErrorsTotal,
		amqpPublishErrorsTotal,
	)
}

func IncGatewayRequest(operation, status string) {
	gatewayRequestsTotal.WithLabelValues(operation, status).Inc()
}

func ObserveGatewayDuration(operation string, d time.Duration) {
	gatewayRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func IncWSActive() {
	wsActiveSubscriptions.Inc()
}

func DecWSActive() {
	wsActiveSubscriptions.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncEventApplied(kind string) {
	eventsAppliedTotal.WithLabelValues(kind).Inc()
}

func IncDecodeError() {
	eventDecodeErrorsTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
