package metrics

import (
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EntitlementMetrics интерфейс для метрик проверок доступа
type EntitlementMetrics interface {
	IncCheckAllowed(tier string)
	IncCheckDenied(code string)
	IncLimitReached(resource string, tier string)
	ObserveCheckDuration(seconds float64)
}

type entitlementMetrics struct {
	log           *logger.Logger
	checksAllowed *prometheus.CounterVec
	checksDenied  *prometheus.CounterVec
	limitsReached *prometheus.CounterVec
	checkDuration prometheus.Histogram
}

// NewEntitlementMetrics создает новые метрики проверок доступа
func NewEntitlementMetrics(registry *prometheus.Registry, log *logger.Logger) EntitlementMetrics {
	checksAllowed := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_checks_allowed_total",
			Help: "The total number of allowed entitlement checks",
		},
		[]string{"tier"},
	)

	checksDenied := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_checks_denied_total",
			Help: "The total number of denied entitlement checks by code",
		},
		[]string{"code"},
	)

	limitsReached := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_limits_reached_total",
			Help: "The total number of denials caused by usage limits",
		},
		[]string{"resource", "tier"},
	)

	checkDuration := promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "entitlement_check_duration_seconds",
			Help:    "Entitlement check duration distribution",
			Buckets: prometheus.DefBuckets,
		},
	)

	return &entitlementMetrics{
		log:           log,
		checksAllowed: checksAllowed,
		checksDenied:  checksDenied,
		limitsReached: limitsReached,
		checkDuration: checkDuration,
	}
}

// IncCheckAllowed увеличивает счетчик разрешенных проверок
func (m *entitlementMetrics) IncCheckAllowed(tier string) {
	m.checksAllowed.WithLabelValues(tier).Inc()
}

// IncCheckDenied увеличивает счетчик отказов по коду
func (m *entitlementMetrics) IncCheckDenied(code string) {
	m.checksDenied.WithLabelValues(code).Inc()
}

// IncLimitReached увеличивает счетчик отказов по лимиту
func (m *entitlementMetrics) IncLimitReached(resource string, tier string) {
	m.limitsReached.WithLabelValues(resource, tier).Inc()
}

// ObserveCheckDuration записывает длительность проверки
func (m *entitlementMetrics) ObserveCheckDuration(seconds float64) {
	m.checkDuration.Observe(seconds)
}
