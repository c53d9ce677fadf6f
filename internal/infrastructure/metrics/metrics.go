package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SettlementMetrics holds every collector the service exports.
type SettlementMetrics struct {
	// Orders
	OrdersCreatedTotal       prometheus.Counter
	OrdersCreatedAmountTotal prometheus.Counter
	OrderTransitionsTotal    *prometheus.CounterVec
	OrderTransitionAmount    *prometheus.CounterVec
	PaymentOutcomesTotal     *prometheus.CounterVec
	OrderErrorsTotal         *prometheus.CounterVec

	// Queue
	QueueMessagesTotal *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	CleanupPurgedTotal prometheus.Counter

	// Security
	SecurityViolationsTotal *prometheus.CounterVec
	AnomaliesTotal          *prometheus.CounterVec
	ReplaySweepRemovedTotal prometheus.Counter

	// Gateway
	GatewayRequestDuration *prometheus.HistogramVec
	GatewayErrorsTotal     *prometheus.CounterVec

	// Settlement
	NotificationsTotal *prometheus.CounterVec
	AttachmentsMissing prometheus.Counter

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewSettlementMetrics registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	f := promauto.With(reg)
	return &SettlementMetrics{
		OrdersCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "settlement_orders_created_total",
			Help: "Orders created after a gateway transaction was opened",
		}),
		OrdersCreatedAmountTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "settlement_orders_created_amount_total",
			Help: "Sum of created order amounts in the smallest currency unit",
		}),
		OrderTransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_order_transitions_total",
			Help: "Order state transitions by resulting status",
		}, []string{"status", "applied"}),
		OrderTransitionAmount: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_order_transition_amount_total",
			Help: "Sum of amounts of applied transitions by status",
		}, []string{"status"}),
		PaymentOutcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_payment_outcomes_total",
			Help: "Outcomes reported to purchasers",
		}, []string{"outcome"}),
		OrderErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_order_errors_total",
			Help: "Errors while handling orders by stage",
		}, []string{"stage"}),

		QueueMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_queue_messages_total",
			Help: "Queue messages handled by type and result",
		}, []string{"type", "result"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "settlement_queue_depth",
			Help: "Pending messages in the work queue",
		}),
		CleanupPurgedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "settlement_queue_cleanup_purged_total",
			Help: "Completed and failed queue records purged by cleanup",
		}),

		SecurityViolationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_security_violations_total",
			Help: "Rejected transactions by reason",
		}, []string{"reason"}),
		AnomaliesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_anomalies_total",
			Help: "Failed anomaly checks by check name",
		}, []string{"check"}),
		ReplaySweepRemovedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "settlement_replay_sweep_removed_total",
			Help: "Expired replay entries removed by the sweeper",
		}),

		GatewayRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_gateway_request_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		GatewayErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_gateway_errors_total",
			Help: "Failed payment gateway calls",
		}, []string{"operation"}),

		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_notifications_total",
			Help: "Emails sent by kind and result",
		}, []string{"kind", "result"}),
		AttachmentsMissing: f.NewCounter(prometheus.CounterOpts{
			Name: "settlement_attachments_missing_total",
			Help: "Course attachments that could not be found",
		}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *SettlementMetrics) RecordOrderCreated(amount int64) {
	m.OrdersCreatedTotal.Inc()
	m.OrdersCreatedAmountTotal.Add(float64(amount))
}

func (m *SettlementMetrics) RecordTransition(status string, applied bool, amount int64) {
	label := "false"
	if applied {
		label = "true"
		m.OrderTransitionAmount.WithLabelValues(status).Add(float64(amount))
	}
	m.OrderTransitionsTotal.WithLabelValues(status, label).Inc()
}

func (m *SettlementMetrics) RecordOutcome(outcome string) {
	m.PaymentOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *SettlementMetrics) RecordError(stage string) {
	m.OrderErrorsTotal.WithLabelValues(stage).Inc()
}

func (m *SettlementMetrics) RecordQueueResult(msgType, result string) {
	m.QueueMessagesTotal.WithLabelValues(msgType, result).Inc()
}

func (m *SettlementMetrics) SetQueueDepth(depth float64) {
	m.QueueDepth.Set(depth)
}

func (m *SettlementMetrics) RecordCleanup(purged int) {
	m.CleanupPurgedTotal.Add(float64(purged))
}

func (m *SettlementMetrics) RecordSecurityViolation(reason string) {
	m.SecurityViolationsTotal.WithLabelValues(reason).Inc()
}

func (m *SettlementMetrics) RecordAnomaly(check string) {
	m.AnomaliesTotal.WithLabelValues(check).Inc()
}

func (m *SettlementMetrics) RecordReplaySweep(removed int) {
	m.ReplaySweepRemovedTotal.Add(float64(removed))
}

func (m *SettlementMetrics) ObserveGatewayCall(operation string, seconds float64, failed bool) {
	m.GatewayRequestDuration.WithLabelValues(operation).Observe(seconds)
	if failed {
		m.GatewayErrorsTotal.WithLabelValues(operation).Inc()
	}
}

func (m *SettlementMetrics) RecordNotification(kind string, sent bool) {
	result := "sent"
	if !sent {
		result = "failed"
	}
	m.NotificationsTotal.WithLabelValues(kind, result).Inc()
}

func (m *SettlementMetrics) RecordAttachmentMissing() {
	m.AttachmentsMissing.Inc()
}
