package metrics

import (
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookMetrics интерфейс для метрик обработки вебхуков биллинга
type WebhookMetrics interface {
	IncEventReceived(eventType string)
	IncEventApplied(eventType string, outcome string)
	IncEventFailed(eventType string)
	IncSignatureFailure()
	ObserveProcessingDuration(eventType string, seconds float64)
}

type webhookMetrics struct {
	log                *logger.Logger
	eventsReceived     *prometheus.CounterVec
	eventsApplied      *prometheus.CounterVec
	eventsFailed       *prometheus.CounterVec
	signatureFailures  prometheus.Counter
	processingDuration *prometheus.HistogramVec
}

// NewWebhookMetrics создает новые метрики вебхуков
func NewWebhookMetrics(registry *prometheus.Registry, log *logger.Logger) WebhookMetrics {
	eventsReceived := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_received_total",
			Help: "The total number of received billing webhook events",
		},
		[]string{"type"},
	)

	eventsApplied := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_applied_total",
			Help: "The total number of applied billing webhook events by outcome",
		},
		[]string{"type", "outcome"},
	)

	eventsFailed := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_failed_total",
			Help: "The total number of billing webhook events that failed to apply",
		},
		[]string{"type"},
	)

	signatureFailures := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "billing_webhook_signature_failures_total",
			Help: "The total number of webhook signature verification failures",
		},
	)

	processingDuration := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_webhook_processing_duration_seconds",
			Help:    "Billing webhook processing duration distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	return &webhookMetrics{
		log:                log,
		eventsReceived:     eventsReceived,
		eventsApplied:      eventsApplied,
		eventsFailed:       eventsFailed,
		signatureFailures:  signatureFailures,
		processingDuration: processingDuration,
	}
}

// IncEventReceived увеличивает счетчик полученных событий
func (m *webhookMetrics) IncEventReceived(eventType string) {
	m.eventsReceived.WithLabelValues(eventType).Inc()
}

// IncEventApplied увеличивает счетчик примененных событий
func (m *webhookMetrics) IncEventApplied(eventType string, outcome string) {
	m.eventsApplied.WithLabelValues(eventType, outcome).Inc()
}

// IncEventFailed увеличивает счетчик сбоев обработки
func (m *webhookMetrics) IncEventFailed(eventType string) {
	m.eventsFailed.WithLabelValues(eventType).Inc()
}

// IncSignatureFailure увеличивает счетчик неверных подписей
func (m *webhookMetrics) IncSignatureFailure() {
	m.signatureFailures.Inc()
}

// ObserveProcessingDuration записывает длительность обработки события
func (m *webhookMetrics) ObserveProcessingDuration(eventType string, seconds float64) {
	m.processingDuration.WithLabelValues(eventType).Observe(seconds)
}
