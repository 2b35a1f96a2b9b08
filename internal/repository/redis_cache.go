package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	tenantKeyPrefix        = "tenant:"
	tenantByCustomerPrefix = "tenant_by_customer:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование снимков арендаторов с использованием Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheTenant кеширует снимок арендатора в Redis
func (r *RedisCacheRepository) CacheTenant(ctx context.Context, tenant domain.Tenant) error {
	key := fmt.Sprintf("%s%s", tenantKeyPrefix, tenant.ID)

	data, err := json.Marshal(tenant)
	if err != nil {
		r.log.Errorw("Failed to marshal tenant for caching", "error", err, "tenantID", tenant.ID)
		return fmt.Errorf("failed to marshal tenant: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache tenant in Redis", "error", err, "tenantID", tenant.ID)
		return fmt.Errorf("failed to cache tenant: %w", err)
	}

	if tenant.StripeCustomerID != "" {
		customerKey := fmt.Sprintf("%s%s", tenantByCustomerPrefix, tenant.StripeCustomerID)
		if err := r.client.Set(ctx, customerKey, tenant.ID.String(), defaultCacheTTL).Err(); err != nil {
			r.log.Warnw("Failed to cache customer mapping", "error", err, "customerID", tenant.StripeCustomerID)
		}
	}

	r.log.Debugw("Tenant cached successfully", "tenantID", tenant.ID)
	return nil
}

// GetCachedTenant получает снимок арендатора из кеша
func (r *RedisCacheRepository) GetCachedTenant(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error) {
	key := fmt.Sprintf("%s%s", tenantKeyPrefix, tenantID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Ключ не найден в кеше
			r.log.Debugw("Tenant not found in cache", "tenantID", tenantID)
			return nil, nil
		}
		r.log.Errorw("Error getting tenant from Redis", "error", err, "tenantID", tenantID)
		return nil, fmt.Errorf("failed to get tenant from cache: %w", err)
	}

	var tenant domain.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		r.log.Errorw("Failed to unmarshal cached tenant", "error", err, "tenantID", tenantID)
		return nil, fmt.Errorf("failed to unmarshal cached tenant: %w", err)
	}

	r.log.Debugw("Tenant retrieved from cache", "tenantID", tenantID)
	return &tenant, nil
}

// GetCachedTenantIDByCustomer возвращает id арендатора по Stripe customer id из кеша
func (r *RedisCacheRepository) GetCachedTenantIDByCustomer(ctx context.Context, customerID string) (uuid.UUID, bool, error) {
	key := fmt.Sprintf("%s%s", tenantByCustomerPrefix, customerID)

	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, false, nil
		}
		r.log.Errorw("Error getting customer mapping from Redis", "error", err, "customerID", customerID)
		return uuid.Nil, false, fmt.Errorf("failed to get customer mapping from cache: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to parse cached tenant id: %w", err)
	}
	return id, true, nil
}

// InvalidateTenant удаляет снимок арендатора из кеша
func (r *RedisCacheRepository) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	key := fmt.Sprintf("%s%s", tenantKeyPrefix, tenantID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Errorw("Failed to delete tenant from cache", "error", err, "tenantID", tenantID)
		return fmt.Errorf("failed to delete tenant from cache: %w", err)
	}

	r.log.Debugw("Tenant deleted from cache", "tenantID", tenantID)
	return nil
}
