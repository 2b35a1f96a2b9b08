package repository

import (
	"context"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
)

// CachedTenantRepository реализует TenantRepository с кешированием
type CachedTenantRepository struct {
	repo  TenantRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedTenantRepository создает новый репозиторий с кешированием
func NewCachedTenantRepository(
	repo TenantRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) TenantRepository {
	return &CachedTenantRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByID получает арендатора по ID (сначала из кеша, потом из БД)
func (r *CachedTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	// Пытаемся получить из кеша
	cached, err := r.cache.GetCachedTenant(ctx, id)
	if err != nil {
		r.log.Warnw("Error getting tenant from cache", "error", err, "tenantID", id)
		// Продолжаем выполнение при ошибке кеша
	}

	if cached != nil {
		r.log.Debugw("Tenant found in cache", "tenantID", id)
		return *cached, nil
	}

	// Если не нашли в кеше, ищем в БД
	tenant, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	if err := r.cache.CacheTenant(ctx, tenant); err != nil {
		r.log.Warnw("Failed to cache tenant after fetching", "error", err, "tenantID", id)
	}

	return tenant, nil
}

// GetByEmail получает арендатора по email напрямую из БД
func (r *CachedTenantRepository) GetByEmail(ctx context.Context, email string) (domain.Tenant, error) {
	// Поиск по email используется только при логине, кеш не нужен
	return r.repo.GetByEmail(ctx, email)
}

// GetByStripeCustomerID получает арендатора по Stripe customer id (через кешированную привязку)
func (r *CachedTenantRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (domain.Tenant, error) {
	id, ok, err := r.cache.GetCachedTenantIDByCustomer(ctx, customerID)
	if err != nil {
		r.log.Warnw("Error getting customer mapping from cache", "error", err, "customerID", customerID)
	}
	if ok {
		return r.GetByID(ctx, id)
	}

	tenant, err := r.repo.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return domain.Tenant{}, err
	}

	if err := r.cache.CacheTenant(ctx, tenant); err != nil {
		r.log.Warnw("Failed to cache tenant after customer lookup", "error", err, "tenantID", tenant.ID)
	}

	return tenant, nil
}

// Create сохраняет арендатора в БД и кеширует его
func (r *CachedTenantRepository) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	created, err := r.repo.Create(ctx, tenant)
	if err != nil {
		return domain.Tenant{}, err
	}

	if err := r.cache.CacheTenant(ctx, created); err != nil {
		r.log.Warnw("Failed to cache tenant after creation", "error", err, "tenantID", created.ID)
		// Продолжаем выполнение, несмотря на ошибку кеширования
	}

	return created, nil
}

// Update обновляет арендатора в БД и инвалидирует кеш
func (r *CachedTenantRepository) Update(ctx context.Context, tenant domain.Tenant) error {
	if err := r.repo.Update(ctx, tenant); err != nil {
		return err
	}

	// Инвалидируем вместо перезаписи: обновление может идти внутри транзакции,
	// и закешированный снимок до коммита был бы неверным
	if err := r.cache.InvalidateTenant(ctx, tenant.ID); err != nil {
		r.log.Warnw("Failed to invalidate tenant cache after update", "error", err, "tenantID", tenant.ID)
	}

	return nil
}
