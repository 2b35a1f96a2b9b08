package usage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
)

// monthlyWindow скользящее окно месячных лимитов.
// Именно последние 30 суток, а не календарный месяц.
const monthlyWindow = 30 * 24 * time.Hour

// Counter вычисляет текущее использование ресурсов арендатора.
// Использование всегда считается запросом к хранилищу в момент проверки,
// кеширование счетчиков привело бы к пропуску превышения лимита.
type Counter struct {
	store   repository.UsageStore
	catalog *tiers.Catalog
	log     *logger.Logger
}

// NewCounter создает новый счетчик использования
func NewCounter(store repository.UsageStore, catalog *tiers.Catalog, log *logger.Logger) *Counter {
	return &Counter{
		store:   store,
		catalog: catalog,
		log:     log,
	}
}

// LimitKeyFor возвращает ключ лимита каталога для ресурса
func LimitKeyFor(resource string) (string, bool) {
	switch resource {
	case domain.ResourceFacebookAccounts:
		return tiers.LimitFacebookAccounts, true
	case domain.ResourceActiveListings:
		return tiers.LimitActiveListings, true
	case domain.ResourceListingsPerMonth:
		return tiers.LimitListingsPerMonth, true
	case domain.ResourceBatchSize:
		return tiers.LimitBatchSize, true
	default:
		return "", false
	}
}

// CountFor возвращает текущее использование ресурса арендатором
func (c *Counter) CountFor(ctx context.Context, tenantID uuid.UUID, resource string) (int, error) {
	switch resource {
	case domain.ResourceFacebookAccounts:
		return c.store.CountActiveAccounts(ctx, tenantID)
	case domain.ResourceActiveListings:
		return c.store.CountActiveListings(ctx, tenantID)
	case domain.ResourceListingsPerMonth:
		since := time.Now().Add(-monthlyWindow)
		return c.store.CountUsageEvents(ctx, tenantID, domain.ActionListingCreated, since)
	default:
		return 0, fmt.Errorf("%w: unknown resource %q", domain.ErrInvalidInput, resource)
	}
}

// Record сохраняет событие использования в журнал
func (c *Counter) Record(ctx context.Context, event domain.UsageEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := c.store.RecordUsageEvent(ctx, event); err != nil {
		c.log.Errorw("Failed to record usage event",
			"error", err, "tenantID", event.TenantID, "actionType", event.ActionType)
		return err
	}

	c.log.Debugw("Usage event recorded", "tenantID", event.TenantID, "actionType", event.ActionType)
	return nil
}

// Summary строит сводку использования арендатора по его тарифу
func (c *Counter) Summary(ctx context.Context, tenant domain.Tenant) (domain.UsageSummary, error) {
	tier, err := c.catalog.Get(tenant.SubscriptionTier)
	if err != nil {
		return domain.UsageSummary{}, err
	}

	accounts, err := c.CountFor(ctx, tenant.ID, domain.ResourceFacebookAccounts)
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("failed to count accounts: %w", err)
	}

	activeListings, err := c.CountFor(ctx, tenant.ID, domain.ResourceActiveListings)
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("failed to count active listings: %w", err)
	}

	monthlyListings, err := c.CountFor(ctx, tenant.ID, domain.ResourceListingsPerMonth)
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("failed to count monthly listings: %w", err)
	}

	return domain.UsageSummary{
		Tier:            tier.Name,
		Accounts:        buildResourceUsage(domain.ResourceFacebookAccounts, accounts, tier.Limits[tiers.LimitFacebookAccounts]),
		ActiveListings:  buildResourceUsage(domain.ResourceActiveListings, activeListings, tier.Limits[tiers.LimitActiveListings]),
		MonthlyListings: buildResourceUsage(domain.ResourceListingsPerMonth, monthlyListings, tier.Limits[tiers.LimitListingsPerMonth]),
		Features:        tier.Features,
	}, nil
}

func buildResourceUsage(resource string, current, limit int) domain.ResourceUsage {
	ru := domain.ResourceUsage{
		Resource: resource,
		Current:  current,
		Limit:    limit,
	}

	if limit == tiers.Unlimited {
		ru.Unlimited = true
		ru.Remaining = tiers.Unlimited
		return ru
	}

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	ru.Remaining = remaining

	if limit > 0 {
		ru.Percentage = math.Round(float64(current)/float64(limit)*1000) / 10
	}
	return ru
}
