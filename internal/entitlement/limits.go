package entitlement

import (
	"context"
	"fmt"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/usage"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
)

// Enforcer проверяет количественные лимиты тарифа против текущего
// использования. Лимит, отсутствующий в тарифе, трактуется как
// отсутствие ограничения.
type Enforcer struct {
	checker *Checker
	counter *usage.Counter
	catalog *tiers.Catalog
	log     *logger.Logger
}

// NewEnforcer создает новый Enforcer
func NewEnforcer(checker *Checker, counter *usage.Counter, catalog *tiers.Catalog, log *logger.Logger) *Enforcer {
	return &Enforcer{
		checker: checker,
		counter: counter,
		catalog: catalog,
		log:     log,
	}
}

// EnforceResource проверяет, может ли арендатор занять еще одну единицу
// ресурса. Доступ разрешен строго при usage < limit: использование,
// равное лимиту, уже означает отказ.
func (e *Enforcer) EnforceResource(ctx context.Context, tenant *domain.Tenant, resource string) error {
	return e.EnforceQuantity(ctx, tenant, resource, 1)
}

// EnforceQuantity проверяет, может ли арендатор занять qty единиц ресурса
func (e *Enforcer) EnforceQuantity(ctx context.Context, tenant *domain.Tenant, resource string, qty int) error {
	result, err := e.checker.Check(tenant, e.catalog.Lowest())
	if err != nil {
		return err
	}

	// Роль администратора снимает и количественные лимиты
	if result.AdminBypass {
		return nil
	}

	limitKey, ok := usage.LimitKeyFor(resource)
	if !ok {
		return fmt.Errorf("%w: unknown resource %q", domain.ErrInvalidInput, resource)
	}

	limit, ok := result.Limits[limitKey]
	if !ok {
		// Тариф не ограничивает этот ресурс
		return nil
	}
	if limit == tiers.Unlimited {
		return nil
	}

	current, err := e.counter.CountFor(ctx, tenant.ID, resource)
	if err != nil {
		return fmt.Errorf("failed to count usage for %s: %w", resource, err)
	}

	if current+qty > limit {
		e.log.Infow("Limit reached",
			"tenantID", tenant.ID, "resource", resource,
			"current", current, "requested", qty, "limit", limit, "tier", result.Tier)
		return domain.NewLimitError(resource, current, limit, result.Tier)
	}

	return nil
}

// ValidateBatchSize проверяет размер пакетной операции против лимита
// тарифа. В отличие от остальных ресурсов размер пакета не накапливается,
// сравнивается только сам запрошенный размер.
func (e *Enforcer) ValidateBatchSize(tenant *domain.Tenant, size int) error {
	if size < 1 {
		return fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidInput)
	}

	result, err := e.checker.Check(tenant, e.catalog.Lowest())
	if err != nil {
		return err
	}
	if result.AdminBypass {
		return nil
	}

	limit, ok := result.Limits[tiers.LimitBatchSize]
	if !ok || limit == tiers.Unlimited {
		return nil
	}

	if size > limit {
		return domain.NewLimitError(domain.ResourceBatchSize, size, limit, result.Tier)
	}
	return nil
}
