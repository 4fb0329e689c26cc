// Package metrics defines the Prometheus instrumentation surface: sessions
// opened/closed, messages sent/received per protocol, correlation table
// depth, and handler-dispatch errors. Callers wire the correlation.Tracker
// hooks (WithInflightGauge, WithTimeoutCounter, WithOrphanCounter) to the
// functions here at construction time.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etp_sessions_opened_total",
			Help: "Total number of sessions that completed negotiation.",
		},
		[]string{"role", "version"},
	)

	sessionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etp_sessions_closed_total",
			Help: "Total number of sessions closed, by reason.",
		},
		[]string{"reason"},
	)

	messagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etp_messages_sent_total",
			Help: "Total number of outbound messages, by protocol and message type.",
		},
		[]string{"protocol", "message_type"},
	)

	messagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etp_messages_received_total",
			Help: "Total number of inbound messages, by protocol and message type.",
		},
		[]string{"protocol", "message_type"},
	)

	handlerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etp_handler_errors_total",
			Help: "Total number of handler dispatch errors, by protocol.",
		},
		[]string{"protocol"},
	)

	correlationInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "etp_correlation_inflight",
			Help: "Current number of in-flight correlated requests across all sessions.",
		},
	)

	correlationTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etp_correlation_timeouts_total",
			Help: "Total number of correlated requests that expired before completion.",
		},
	)

	correlationOrphansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etp_correlation_orphans_total",
			Help: "Total number of replies received for an unknown or already-completed messageId.",
		},
	)
)

// RecordSessionOpened records a successfully negotiated session.
func RecordSessionOpened(role, version string) {
	sessionsOpenedTotal.WithLabelValues(role, version).Inc()
}

// RecordSessionClosed records a session close, tagged with its reason (the
// free-form reason string passed to Session.Close).
func RecordSessionClosed(reason string) {
	sessionsClosedTotal.WithLabelValues(reason).Inc()
}

// RecordMessageSent records one outbound message.
func RecordMessageSent(protocol, messageType uint16) {
	messagesSentTotal.WithLabelValues(protoLabel(protocol), typeLabel(messageType)).Inc()
}

// RecordMessageReceived records one inbound message.
func RecordMessageReceived(protocol, messageType uint16) {
	messagesReceivedTotal.WithLabelValues(protoLabel(protocol), typeLabel(messageType)).Inc()
}

// RecordHandlerError records a handler returning an error from HandleMessage.
func RecordHandlerError(protocol uint16) {
	handlerErrorsTotal.WithLabelValues(protoLabel(protocol)).Inc()
}

// CorrelationInflightDelta is passed to correlation.WithInflightGauge.
func CorrelationInflightDelta(delta int) {
	correlationInflight.Add(float64(delta))
}

// CorrelationTimeout is passed to correlation.WithTimeoutCounter.
func CorrelationTimeout() {
	correlationTimeoutsTotal.Inc()
}

// CorrelationOrphan is passed to correlation.WithOrphanCounter.
func CorrelationOrphan() {
	correlationOrphansTotal.Inc()
}

func protoLabel(p uint16) string { return strconv.Itoa(int(p)) }
func typeLabel(t uint16) string  { return strconv.Itoa(int(t)) }
