package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/usage"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnforcer() (*Enforcer, *repository.InMemoryUsageStore) {
	log := logger.New(logger.ERROR)
	catalog := tiers.New()
	store := repository.NewInMemoryUsageStore()
	counter := usage.NewCounter(store, catalog, log)
	checker := NewChecker(catalog, log)
	return NewEnforcer(checker, counter, catalog, log), store
}

func requireLimitError(t *testing.T, err error) *domain.LimitError {
	t.Helper()
	require.Error(t, err)
	limitErr, ok := err.(*domain.LimitError)
	require.True(t, ok, "expected *domain.LimitError, got %T", err)
	return limitErr
}

func TestEnforceResource_UnderLimit(t *testing.T) {
	enforcer, store := newTestEnforcer()
	tenant := activeTenant(tiers.TierBasic)
	store.SetActiveAccounts(tenant.ID, 2)

	err := enforcer.EnforceResource(context.Background(), tenant, domain.ResourceFacebookAccounts)
	assert.NoError(t, err)
}

func TestEnforceResource_AtLimit(t *testing.T) {
	enforcer, store := newTestEnforcer()
	tenant := activeTenant(tiers.TierBasic)

	// basic разрешает 3 аккаунта, третий занят
	store.SetActiveAccounts(tenant.ID, 3)

	err := enforcer.EnforceResource(context.Background(), tenant, domain.ResourceFacebookAccounts)
	limitErr := requireLimitError(t, err)
	assert.Equal(t, domain.ResourceFacebookAccounts, limitErr.Resource)
	assert.Equal(t, 3, limitErr.Current)
	assert.Equal(t, 3, limitErr.Limit)
	assert.Equal(t, tiers.TierBasic, limitErr.Tier)
	assert.Equal(t, domain.CodeLimitReached, limitErr.Code())
}

func TestEnforceResource_OneBelowLimit(t *testing.T) {
	enforcer, store := newTestEnforcer()
	tenant := activeTenant(tiers.TierBasic)
	store.SetActiveAccounts(tenant.ID, 2)

	require.NoError(t, enforcer.EnforceResource(context.Background(), tenant, domain.ResourceFacebookAccounts))

	store.SetActiveAccounts(tenant.ID, 3)
	assert.Error(t, enforcer.EnforceResource(context.Background(), tenant, domain.ResourceFacebookAccounts))
}

func TestEnforceResource_Unlimited(t *testing.T) {
	enforcer, store := newTestEnforcer()
	tenant := activeTenant(tiers.TierPremium)
	store.SetActiveAccounts(tenant.ID, 10000)

	err := enforcer.EnforceResource(context.Background(), tenant, domain.ResourceFacebookAccounts)
	assert.NoError(t, err)
}

func TestEnforceResource_MonthlyWindow(t *testing.T) {
	enforcer, store := newTestEnforcer()
	tenant := activeTenant(tiers.TierBasic)

	// 100 созданий в окне, месячный лимит basic исчерпан
	for i := 0; i < 100; i++ {
		require.NoError(t, store.RecordUsageEvent(context.Background(), domain.UsageEvent{
			TenantID:   tenant.ID,
			ActionType: domain.ActionListingCreated,
			Timestamp:  time.Now().Add(-time.Hour),
		}))
	}

	err := enforcer.EnforceResource(context.Background(), tenant, domain.ResourceListingsPerMonth)
	limitErr := requireLimitError(t, err)
	assert.Equal(t, 100, limitErr.Limit)
}

func TestEnforceQuantity(t *testing.T) {
	enforcer, store := newTestEnforcer()
	tenant := activeTenant(tiers.TierPro)

	// pro разрешает 200 активных объявлений
	store.SetActiveListings(tenant.ID, 190)

	assert.NoError(t, enforcer.EnforceQuantity(context.Background(), tenant, domain.ResourceActiveListings, 10))
	assert.Error(t, enforcer.EnforceQuantity(context.Background(), tenant, domain.ResourceActiveListings, 11))
}

func TestEnforceResource_InactiveSubscription(t *testing.T) {
	enforcer, _ := newTestEnforcer()
	tenant := activeTenant(tiers.TierBasic)
	tenant.SubscriptionStatus = domain.SubscriptionStatusCanceled

	err := enforcer.EnforceResource(context.Background(), tenant, domain.ResourceFacebookAccounts)
	requireDenied(t, err, domain.CodeSubscriptionRequired)
}

func TestEnforceResource_AdminBypass(t *testing.T) {
	enforcer, store := newTestEnforcer()
	tenant := activeTenant(tiers.TierBasic)
	tenant.IsAdmin = true
	tenant.SubscriptionStatus = domain.SubscriptionStatusInactive
	store.SetActiveAccounts(tenant.ID, 1000)

	err := enforcer.EnforceResource(context.Background(), tenant, domain.ResourceFacebookAccounts)
	assert.NoError(t, err)
}

func TestEnforceResource_UnknownResource(t *testing.T) {
	enforcer, _ := newTestEnforcer()
	tenant := activeTenant(tiers.TierBasic)

	err := enforcer.EnforceResource(context.Background(), tenant, "gpu_hours")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateBatchSize(t *testing.T) {
	enforcer, _ := newTestEnforcer()

	tests := []struct {
		name    string
		tier    string
		size    int
		wantErr bool
	}{
		{"basic single listing", tiers.TierBasic, 1, false},
		{"basic batch denied", tiers.TierBasic, 2, true},
		{"pro within limit", tiers.TierPro, 50, false},
		{"pro over limit", tiers.TierPro, 51, true},
		{"premium within limit", tiers.TierPremium, 100, false},
		{"premium over limit", tiers.TierPremium, 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := enforcer.ValidateBatchSize(activeTenant(tt.tier), tt.size)
			if tt.wantErr {
				requireLimitError(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBatchSize_NonPositive(t *testing.T) {
	enforcer, _ := newTestEnforcer()

	err := enforcer.ValidateBatchSize(activeTenant(tiers.TierPro), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateBatchSize_AdminBypass(t *testing.T) {
	enforcer, _ := newTestEnforcer()
	tenant := activeTenant(tiers.TierBasic)
	tenant.IsAdmin = true

	assert.NoError(t, enforcer.ValidateBatchSize(tenant, 500))
}
