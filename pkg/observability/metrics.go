package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Subscription lifecycle metrics
	subscriptionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_transitions_total",
		Help: "Total number of subscription status transitions",
	}, []string{
		"from", // pending, active, cancelled, none
		"to",   // pending, active, cancelled
	})

	// Payment gateway metrics
	gatewayCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_calls_total",
		Help: "Total number of payment gateway calls",
	}, []string{
		"operation", // create_payment, charge_stored_method, refund, cancel_payment, get_payment
		"status",    // ok, error
	})

	gatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Duration of payment gateway calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	// Deferred task metrics
	taskExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduled_task_executions_total",
		Help: "Total deferred task executions",
	}, []string{
		"kind",   // renewal_charge, expire_subscription
		"status", // success, failed
	})

	taskExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduled_task_duration_seconds",
		Help:    "Duration of deferred task executions",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})

	// Webhook reconciliation metrics
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total inbound payment webhook events",
	}, []string{
		"outcome", // applied, duplicate, unmatched, malformed, error
	})
)

// ObserveTransition records one subscription status transition
func ObserveTransition(from, to string) {
	subscriptionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveGatewayCall records one payment gateway call
func ObserveGatewayCall(operation string, ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	gatewayCallsTotal.WithLabelValues(operation, status).Inc()
	gatewayCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveTaskExecution records one deferred task execution
func ObserveTaskExecution(kind string, ok bool, duration time.Duration) {
	status := "success"
	if !ok {
		status = "failed"
	}
	taskExecutionsTotal.WithLabelValues(kind, status).Inc()
	taskExecutionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveWebhookEvent records one inbound webhook outcome
func ObserveWebhookEvent(outcome string) {
	webhookEventsTotal.WithLabelValues(outcome).Inc()
}
