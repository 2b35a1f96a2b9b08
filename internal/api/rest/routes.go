package rest

import (
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/api/rest/handlers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/entitlement"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/metrics"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/middleware"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps собранные зависимости HTTP-слоя.
type RouterDeps struct {
	Registry *prometheus.Registry
	Auth     *middleware.JWTMiddleware
	Checker  *entitlement.Checker
	Catalog  *tiers.Catalog
	Metrics  metrics.EntitlementMetrics

	Tenant      *handlers.TenantHandler
	Tier        *handlers.TierHandler
	Entitlement *handlers.EntitlementHandler
	Billing     *handlers.BillingHandler
	Webhook     *handlers.WebhookHandler
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(log *logger.Logger, deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// Публичные маршруты: каталог тарифов и регистрация
	r.GET("/tiers", deps.Tier.ListTiers)
	r.GET("/tiers/:name", deps.Tier.GetTier)
	r.POST("/tenants", deps.Tenant.Register)

	v1 := r.Group("/api/v1")
	v1.Use(deps.Auth.RequireAuth())
	{
		v1.GET("/tenants/me", deps.Tenant.Me)

		// Решение о доступе с деталями отказа, без побочных эффектов
		v1.GET("/entitlement", deps.Entitlement.CheckEntitlement)
		v1.GET("/features/:key", deps.Entitlement.CheckFeature)
		v1.POST("/batch/validate", deps.Entitlement.ValidateBatch)

		// Сводка использования доступна и без активной подписки,
		// арендатор должен видеть свои лимиты до оплаты
		v1.GET("/usage", deps.Entitlement.GetUsage)

		// Фиксация использования требует действующей подписки
		entitled := entitlement.NewChain(log, entitlement.TierGuard(deps.Checker, deps.Catalog.Lowest())).WithMetrics(deps.Metrics)
		v1.POST("/usage/events", entitled.Middleware(), deps.Entitlement.RecordUsage)

		billing := v1.Group("/billing")
		{
			billing.GET("/subscription", deps.Billing.GetSubscription)
			billing.POST("/checkout", deps.Billing.CreateCheckout)
			billing.POST("/portal", deps.Billing.CreatePortal)
			billing.POST("/cancel", deps.Billing.CancelSubscription)
			billing.POST("/reactivate", deps.Billing.ReactivateSubscription)
		}
	}

	// Вебхуки на корневом уровне роутера
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", deps.Webhook.HandleStripeWebhook)
	}
	return r
}
