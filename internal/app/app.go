package app

import (
	"context"
	"fmt"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/api/rest"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/api/rest/handlers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/config"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/db"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/entitlement"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/kafka"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/metrics"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/middleware"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/reconcile"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/stripe"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/usage"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Router   *gin.Engine
	Server   *rest.Server

	Catalog    *tiers.Catalog
	Checker    *entitlement.Checker
	Enforcer   *entitlement.Enforcer
	Resolver   *entitlement.FeatureResolver
	Counter    *usage.Counter
	Reconciler *reconcile.Reconciler

	SystemMetrics metrics.SystemMetrics

	pool          *pgxpool.Pool
	usageDB       *db.DBClient
	redisCache    *repository.RedisCacheRepository
	producer      kafka.Producer
	usageConsumer *kafka.UsageEventConsumer
}

// NewApp создает и инициализирует новый экземпляр приложения
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	// Подключаемся к базе данных
	pool, err := repository.NewPgxPool(ctx, cfg.Database.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	zapLog, err := zap.NewProduction()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize usage db logger: %w", err)
	}
	usageDB, err := db.NewDBClient(cfg.Database.DSN, zapLog)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to usage database: %w", err)
	}

	// Инициализируем Redis кеш арендаторов. Недоступный Redis не фатален,
	// сервис продолжает работать без кеширования.
	var tenantRepo repository.TenantRepository = repository.NewPostgresTenantRepository(pool, log)
	redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		redisCache = nil
	} else {
		tenantRepo = repository.NewCachedTenantRepository(tenantRepo, redisCache, log)
		log.Infow("Redis cache initialized")
	}

	subscriptionRepo := repository.NewPostgresSubscriptionRepository(pool, log)
	txRunner := repository.NewPgxTxRunner(pool, log)

	// Каталог тарифов с привязкой к price id из Stripe
	catalog := tiers.New().WithPriceIDs(cfg.Stripe.PriceIDs)

	// Метрики Prometheus
	registry := prometheus.NewRegistry()
	entitlementMetrics := metrics.NewEntitlementMetrics(registry, log)
	webhookMetrics := metrics.NewWebhookMetrics(registry, log)
	systemMetrics := metrics.NewSystemMetrics(registry, log)

	// Инициализируем Kafka Producer. Недоступный брокер не фатален,
	// события об изменении подписок просто не публикуются.
	var producer kafka.Producer
	if err := kafka.EnsureKafkaTopics(cfg.Kafka.Brokers, log); err != nil {
		log.Warnw("Failed to ensure Kafka topics, continuing without event publishing", "error", err)
	} else if producer, err = kafka.NewKafkaProducer(cfg.Kafka.Brokers, log); err != nil {
		log.Warnw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		producer = nil
	} else {
		log.Infow("Kafka producer initialized")
	}

	// Доменные компоненты
	counter := usage.NewCounter(usageDB, catalog, log)
	checker := entitlement.NewChecker(catalog, log)
	enforcer := entitlement.NewEnforcer(checker, counter, catalog, log)
	resolver := entitlement.NewFeatureResolver(checker, catalog, log)
	reconciler := reconcile.NewReconciler(tenantRepo, subscriptionRepo, catalog, txRunner, producer, webhookMetrics, log)

	// Консьюмер событий использования. Поднимается только если брокер
	// доступен; события, записанные напрямую через HTTP, проходят мимо него.
	var usageConsumer *kafka.UsageEventConsumer
	if producer != nil {
		kafkaCfg := kafka.NewConfig(cfg.Kafka.Brokers)
		if cfg.Kafka.GroupID != "" {
			kafkaCfg.Consumer.Group = cfg.Kafka.GroupID
		}
		usageConsumer, err = kafka.NewUsageEventConsumer(kafkaCfg, counter, log)
		if err != nil {
			log.Warnw("Failed to initialize usage event consumer", "error", err)
			usageConsumer = nil
		} else {
			usageConsumer.Start(ctx)
			log.Infow("Usage event consumer started", "group", kafkaCfg.Consumer.Group)
		}
	}

	// Клиент Stripe и верификатор вебхуков
	billingClient := stripe.NewBillingClient(cfg.Stripe.APIKey, log)
	verifier, err := stripe.NewWebhookVerifier(cfg.Stripe.WebhookSecret, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize webhook verifier: %w", err)
	}

	// Middleware аутентификации
	auth := middleware.NewJWTMiddleware(tenantRepo, log, &middleware.DefaultTokenValidator{
		Secret: []byte(cfg.Auth.JWTSecret),
	})

	// HTTP слой
	router := rest.SetupRouter(log, rest.RouterDeps{
		Registry: registry,
		Auth:     auth,
		Checker:  checker,
		Catalog:  catalog,
		Metrics:  entitlementMetrics,

		Tenant:      handlers.NewTenantHandler(tenantRepo, catalog, cfg.Auth.JWTSecret, log),
		Tier:        handlers.NewTierHandler(catalog, log),
		Entitlement: handlers.NewEntitlementHandler(checker, enforcer, resolver, counter, catalog, log),
		Billing:     handlers.NewBillingHandler(billingClient, tenantRepo, subscriptionRepo, catalog, cfg, log),
		Webhook:     handlers.NewWebhookHandler(verifier, reconciler, webhookMetrics, log),
	})
	server := rest.NewServer(router, cfg, log)

	return &App{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Router:   router,
		Server:   server,

		Catalog:    catalog,
		Checker:    checker,
		Enforcer:   enforcer,
		Resolver:   resolver,
		Counter:    counter,
		Reconciler: reconciler,

		SystemMetrics: systemMetrics,

		pool:          pool,
		usageDB:       usageDB,
		redisCache:    redisCache,
		producer:      producer,
		usageConsumer: usageConsumer,
	}, nil
}

// Close освобождает ресурсы приложения
func (a *App) Close() {
	if a.usageConsumer != nil {
		if err := a.usageConsumer.Close(); err != nil {
			a.Logger.Errorw("Error closing usage event consumer", "error", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.Logger.Errorw("Error closing Kafka producer", "error", err)
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.Logger.Errorw("Error closing Redis connection", "error", err)
		}
	}
	if a.usageDB != nil {
		if err := a.usageDB.Close(); err != nil {
			a.Logger.Errorw("Error closing usage database connection", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
