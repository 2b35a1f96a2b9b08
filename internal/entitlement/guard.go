package entitlement

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/metrics"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/middleware"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/res"
	"github.com/gin-gonic/gin"
)

// Ключи контекста gin, заполняемые цепочкой проверок
const (
	// ContextTierKey эффективный тариф, по которому разрешен доступ
	ContextTierKey = "entitlementTier"

	// ContextLimitsKey лимиты эффективного тарифа
	ContextLimitsKey = "entitlementLimits"
)

// Guard одна проверка доступа в цепочке. Проверки выполняются по порядку,
// первая неуспешная останавливает цепочку и определяет ответ.
type Guard interface {
	Check(ctx context.Context, tenant *domain.Tenant) (CheckResult, error)
}

// GuardFunc адаптер функции к интерфейсу Guard
type GuardFunc func(ctx context.Context, tenant *domain.Tenant) (CheckResult, error)

// Check реализует интерфейс Guard
func (f GuardFunc) Check(ctx context.Context, tenant *domain.Tenant) (CheckResult, error) {
	return f(ctx, tenant)
}

// TierGuard проверка минимального тарифа
func TierGuard(checker *Checker, requiredTier string) Guard {
	return GuardFunc(func(_ context.Context, tenant *domain.Tenant) (CheckResult, error) {
		return checker.Check(tenant, requiredTier)
	})
}

// FeatureGuard проверка доступности фичи на тарифе арендатора
func FeatureGuard(checker *Checker, resolver *FeatureResolver, featureKey string) Guard {
	return GuardFunc(func(_ context.Context, tenant *domain.Tenant) (CheckResult, error) {
		if err := resolver.CheckFeature(tenant, featureKey); err != nil {
			return CheckResult{}, err
		}
		return checker.Check(tenant, resolver.catalog.Lowest())
	})
}

// LimitGuard проверка количественного лимита ресурса
func LimitGuard(checker *Checker, enforcer *Enforcer, resource string) Guard {
	return GuardFunc(func(ctx context.Context, tenant *domain.Tenant) (CheckResult, error) {
		if err := enforcer.EnforceResource(ctx, tenant, resource); err != nil {
			return CheckResult{}, err
		}
		return checker.Check(tenant, enforcer.catalog.Lowest())
	})
}

// Chain последовательность проверок доступа для одного маршрута
type Chain struct {
	guards  []Guard
	metrics metrics.EntitlementMetrics
	log     *logger.Logger
}

// NewChain создает цепочку из переданных проверок
func NewChain(log *logger.Logger, guards ...Guard) *Chain {
	return &Chain{guards: guards, log: log}
}

// WithMetrics включает запись метрик решений цепочки
func (ch *Chain) WithMetrics(m metrics.EntitlementMetrics) *Chain {
	ch.metrics = m
	return ch
}

// Check прогоняет арендатора через все проверки цепочки.
// Возвращается результат последней проверки.
func (ch *Chain) Check(ctx context.Context, tenant *domain.Tenant) (CheckResult, error) {
	var result CheckResult
	for _, g := range ch.guards {
		var err error
		result, err = g.Check(ctx, tenant)
		if err != nil {
			return CheckResult{}, err
		}
	}
	return result, nil
}

// Middleware возвращает gin-обработчик, прогоняющий запрос через цепочку.
// При успехе эффективный тариф и лимиты кладутся в контекст запроса.
func (ch *Chain) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := middleware.TenantFromGin(c)

		started := time.Now()
		result, err := ch.Check(c.Request.Context(), tenant)
		if ch.metrics != nil {
			ch.metrics.ObserveCheckDuration(time.Since(started).Seconds())
		}
		if err != nil {
			ch.deny(c, tenant, err)
			return
		}

		if ch.metrics != nil {
			ch.metrics.IncCheckAllowed(result.Tier)
		}
		c.Set(ContextTierKey, result.Tier)
		c.Set(ContextLimitsKey, result.Limits)
		c.Next()
	}
}

func (ch *Chain) deny(c *gin.Context, tenant *domain.Tenant, err error) {
	status, body := DenialResponse(err)

	if ch.metrics != nil {
		ch.metrics.IncCheckDenied(body.Code)
		var limitErr *domain.LimitError
		if errors.As(err, &limitErr) {
			ch.metrics.IncLimitReached(limitErr.Resource, limitErr.Tier)
		}
	}

	if tenant != nil {
		ch.log.Infow("Access denied",
			"tenantID", tenant.ID, "path", c.Request.URL.Path, "code", body.Code)
	} else {
		ch.log.Infow("Access denied", "path", c.Request.URL.Path, "code", body.Code)
	}

	res.JsonResponse(c.Writer, body, status)
	c.Abort()
}

// DenialResponse преобразует ошибку проверки доступа в HTTP-статус и тело
// ответа с машиночитаемым кодом
func DenialResponse(err error) (int, res.ErrorResponse) {
	var entErr *domain.EntitlementError
	if errors.As(err, &entErr) {
		return entErr.StatusCode, res.ErrorResponse{
			Error: entErr.Message,
			Code:  string(entErr.Code),
			Details: gin.H{
				"current_tier":  entErr.CurrentTier,
				"required_tier": entErr.RequiredTier,
				"upgrade_url":   entErr.UpgradeURL,
			},
		}
	}

	var limitErr *domain.LimitError
	if errors.As(err, &limitErr) {
		return http.StatusForbidden, res.ErrorResponse{
			Error: limitErr.Error(),
			Code:  string(limitErr.Code()),
			Details: gin.H{
				"resource":    limitErr.Resource,
				"current":     limitErr.Current,
				"limit":       limitErr.Limit,
				"tier":        limitErr.Tier,
				"upgrade_url": domain.UpgradeURL,
			},
		}
	}

	var featErr *domain.FeatureError
	if errors.As(err, &featErr) {
		return http.StatusForbidden, res.ErrorResponse{
			Error: featErr.Error(),
			Code:  string(featErr.Code()),
			Details: gin.H{
				"feature":       featErr.Feature,
				"current_tier":  featErr.CurrentTier,
				"required_tier": featErr.RequiredTier,
				"upgrade_url":   domain.UpgradeURL,
			},
		}
	}

	return http.StatusInternalServerError, res.ErrorResponse{
		Error: "Internal server error",
		Code:  string(domain.CodeServerError),
	}
}
