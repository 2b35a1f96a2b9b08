package repository

import (
	"context"
	"sync"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/google/uuid"
)

// InMemoryTenantRepository реализация репозитория арендаторов в памяти для тестов
type InMemoryTenantRepository struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]domain.Tenant
}

// NewInMemoryTenantRepository создает новый репозиторий арендаторов в памяти
func NewInMemoryTenantRepository() *InMemoryTenantRepository {
	return &InMemoryTenantRepository{
		tenants: make(map[uuid.UUID]domain.Tenant),
	}
}

// GetByID возвращает арендатора по ID
func (r *InMemoryTenantRepository) GetByID(_ context.Context, id uuid.UUID) (domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenant, ok := r.tenants[id]
	if !ok {
		return domain.Tenant{}, ErrNotFound
	}
	return tenant, nil
}

// GetByEmail возвращает арендатора по email
func (r *InMemoryTenantRepository) GetByEmail(_ context.Context, email string) (domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tenant := range r.tenants {
		if tenant.Email == email {
			return tenant, nil
		}
	}
	return domain.Tenant{}, ErrNotFound
}

// GetByStripeCustomerID возвращает арендатора по Stripe customer id
func (r *InMemoryTenantRepository) GetByStripeCustomerID(_ context.Context, customerID string) (domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tenant := range r.tenants {
		if tenant.StripeCustomerID != "" && tenant.StripeCustomerID == customerID {
			return tenant, nil
		}
	}
	return domain.Tenant{}, ErrNotFound
}

// Create создает нового арендатора
func (r *InMemoryTenantRepository) Create(_ context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	if _, ok := r.tenants[tenant.ID]; ok {
		return domain.Tenant{}, ErrDuplicate
	}
	for _, existing := range r.tenants {
		if existing.Email == tenant.Email {
			return domain.Tenant{}, ErrDuplicate
		}
	}

	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	r.tenants[tenant.ID] = tenant
	return tenant, nil
}

// Update обновляет существующего арендатора
func (r *InMemoryTenantRepository) Update(_ context.Context, tenant domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[tenant.ID]; !ok {
		return ErrNotFound
	}
	tenant.UpdatedAt = time.Now()
	r.tenants[tenant.ID] = tenant
	return nil
}

// InMemorySubscriptionRepository реализация репозитория подписок в памяти для тестов
type InMemorySubscriptionRepository struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]domain.SubscriptionRecord
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository() *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subs: make(map[uuid.UUID]domain.SubscriptionRecord),
	}
}

// GetByStripeSubscriptionID возвращает подписку по Stripe subscription id
func (r *InMemorySubscriptionRepository) GetByStripeSubscriptionID(_ context.Context, stripeSubID string) (domain.SubscriptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs {
		if sub.StripeSubscriptionID == stripeSubID {
			return sub, nil
		}
	}
	return domain.SubscriptionRecord{}, ErrNotFound
}

// GetByTenantID возвращает самую свежую подписку арендатора
func (r *InMemorySubscriptionRepository) GetByTenantID(_ context.Context, tenantID uuid.UUID) (domain.SubscriptionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest domain.SubscriptionRecord
	found := false
	for _, sub := range r.subs {
		if sub.TenantID != tenantID {
			continue
		}
		if !found || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
			found = true
		}
	}
	if !found {
		return domain.SubscriptionRecord{}, ErrNotFound
	}
	return latest, nil
}

// Create создает новую подписку
func (r *InMemorySubscriptionRepository) Create(_ context.Context, sub domain.SubscriptionRecord) (domain.SubscriptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if _, ok := r.subs[sub.ID]; ok {
		return domain.SubscriptionRecord{}, ErrDuplicate
	}
	for _, existing := range r.subs {
		if existing.StripeSubscriptionID == sub.StripeSubscriptionID {
			return domain.SubscriptionRecord{}, ErrDuplicate
		}
	}

	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	r.subs[sub.ID] = sub
	return sub, nil
}

// Update обновляет существующую подписку
func (r *InMemorySubscriptionRepository) Update(_ context.Context, sub domain.SubscriptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[sub.ID]; !ok {
		return ErrNotFound
	}
	sub.UpdatedAt = time.Now()
	r.subs[sub.ID] = sub
	return nil
}

// InMemoryUsageStore хранилище событий использования в памяти для тестов
type InMemoryUsageStore struct {
	mu       sync.RWMutex
	events   []domain.UsageEvent
	accounts map[uuid.UUID]int
	listings map[uuid.UUID]int
}

// NewInMemoryUsageStore создает новое хранилище использования в памяти
func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		accounts: make(map[uuid.UUID]int),
		listings: make(map[uuid.UUID]int),
	}
}

// SetActiveAccounts задает число подключенных аккаунтов арендатора
func (s *InMemoryUsageStore) SetActiveAccounts(tenantID uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[tenantID] = n
}

// SetActiveListings задает число активных объявлений арендатора
func (s *InMemoryUsageStore) SetActiveListings(tenantID uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[tenantID] = n
}

// CountActiveAccounts возвращает число подключенных аккаунтов
func (s *InMemoryUsageStore) CountActiveAccounts(_ context.Context, tenantID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[tenantID], nil
}

// CountActiveListings возвращает число активных объявлений
func (s *InMemoryUsageStore) CountActiveListings(_ context.Context, tenantID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listings[tenantID], nil
}

// CountUsageEvents возвращает число событий указанного типа начиная с since
func (s *InMemoryUsageStore) CountUsageEvents(_ context.Context, tenantID uuid.UUID, actionType string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, ev := range s.events {
		if ev.TenantID == tenantID && ev.ActionType == actionType && !ev.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

// RecordUsageEvent сохраняет событие использования
func (s *InMemoryUsageStore) RecordUsageEvent(_ context.Context, event domain.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.events = append(s.events, event)
	return nil
}
