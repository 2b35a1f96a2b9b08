package entitlement

import (
	"testing"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChecker() *Checker {
	return NewChecker(tiers.New(), logger.New(logger.ERROR))
}

func activeTenant(tier string) *domain.Tenant {
	expires := time.Now().Add(30 * 24 * time.Hour)
	return &domain.Tenant{
		ID:                    uuid.New(),
		Email:                 "seller@example.com",
		SubscriptionTier:      tier,
		SubscriptionStatus:    domain.SubscriptionStatusActive,
		SubscriptionExpiresAt: &expires,
	}
}

func requireDenied(t *testing.T, err error, code domain.ErrorCode) *domain.EntitlementError {
	t.Helper()
	require.Error(t, err)
	entErr, ok := err.(*domain.EntitlementError)
	require.True(t, ok, "expected *domain.EntitlementError, got %T", err)
	assert.Equal(t, code, entErr.Code)
	return entErr
}

func TestCheck_NilTenant(t *testing.T) {
	checker := newTestChecker()

	_, err := checker.Check(nil, tiers.TierBasic)
	requireDenied(t, err, domain.CodeAuthRequired)
}

func TestCheck_ActiveSufficientTier(t *testing.T) {
	checker := newTestChecker()

	result, err := checker.Check(activeTenant(tiers.TierPro), tiers.TierPro)
	require.NoError(t, err)
	assert.Equal(t, tiers.TierPro, result.Tier)
	assert.Equal(t, 10, result.Limits[tiers.LimitFacebookAccounts])
	assert.False(t, result.AdminBypass)
}

func TestCheck_HigherTierPassesLowerRequirement(t *testing.T) {
	checker := newTestChecker()

	result, err := checker.Check(activeTenant(tiers.TierPremium), tiers.TierBasic)
	require.NoError(t, err)
	assert.Equal(t, tiers.TierPremium, result.Tier)
}

func TestCheck_InsufficientTier(t *testing.T) {
	checker := newTestChecker()

	_, err := checker.Check(activeTenant(tiers.TierBasic), tiers.TierPro)
	entErr := requireDenied(t, err, domain.CodeInsufficientTier)
	assert.Equal(t, tiers.TierBasic, entErr.CurrentTier)
	assert.Equal(t, tiers.TierPro, entErr.RequiredTier)
	assert.Equal(t, domain.UpgradeURL, entErr.UpgradeURL)
}

func TestCheck_InactiveStatuses(t *testing.T) {
	checker := newTestChecker()

	for _, status := range []domain.SubscriptionStatus{
		domain.SubscriptionStatusInactive,
		domain.SubscriptionStatusPastDue,
		domain.SubscriptionStatusCanceled,
	} {
		t.Run(string(status), func(t *testing.T) {
			tenant := activeTenant(tiers.TierPro)
			tenant.SubscriptionStatus = status

			_, err := checker.Check(tenant, tiers.TierBasic)
			entErr := requireDenied(t, err, domain.CodeSubscriptionRequired)
			assert.Equal(t, status, entErr.CurrentStatus)
		})
	}
}

func TestCheck_TrialingIsEntitled(t *testing.T) {
	checker := newTestChecker()

	tenant := activeTenant(tiers.TierPro)
	tenant.SubscriptionStatus = domain.SubscriptionStatusTrialing

	_, err := checker.Check(tenant, tiers.TierPro)
	assert.NoError(t, err)
}

func TestCheck_ExpiryBoundary(t *testing.T) {
	checker := newTestChecker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	checker.now = func() time.Time { return now }

	tests := []struct {
		name      string
		expiresAt time.Time
		wantErr   bool
	}{
		{"expired one second ago", now.Add(-time.Second), true},
		{"expires one second from now", now.Add(time.Second), false},
		{"expires exactly now", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := activeTenant(tiers.TierPro)
			tenant.SubscriptionExpiresAt = &tt.expiresAt

			_, err := checker.Check(tenant, tiers.TierBasic)
			if tt.wantErr {
				requireDenied(t, err, domain.CodeSubscriptionExpired)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheck_NoExpiryMeansNoExpiryCheck(t *testing.T) {
	checker := newTestChecker()

	tenant := activeTenant(tiers.TierPro)
	tenant.SubscriptionExpiresAt = nil

	_, err := checker.Check(tenant, tiers.TierBasic)
	assert.NoError(t, err)
}

func TestCheck_UnknownTenantTier(t *testing.T) {
	checker := newTestChecker()

	_, err := checker.Check(activeTenant("enterprise"), tiers.TierBasic)
	entErr := requireDenied(t, err, domain.CodeInvalidTier)
	assert.Equal(t, "enterprise", entErr.CurrentTier)
}

func TestCheck_LegacyFreeNormalizedToBasic(t *testing.T) {
	checker := newTestChecker()

	result, err := checker.Check(activeTenant("free"), tiers.TierBasic)
	require.NoError(t, err)
	assert.Equal(t, tiers.TierBasic, result.Tier)

	_, err = checker.Check(activeTenant("FREE"), tiers.TierPro)
	requireDenied(t, err, domain.CodeInsufficientTier)
}

func TestCheck_UnknownRequiredTierIsServerError(t *testing.T) {
	checker := newTestChecker()

	_, err := checker.Check(activeTenant(tiers.TierPro), "platinum")
	requireDenied(t, err, domain.CodeServerError)
}

func TestCheck_AdminBypassesEverything(t *testing.T) {
	checker := newTestChecker()

	expired := time.Now().Add(-time.Hour)
	tenant := &domain.Tenant{
		ID:                    uuid.New(),
		Email:                 "admin@example.com",
		SubscriptionTier:      tiers.TierBasic,
		SubscriptionStatus:    domain.SubscriptionStatusInactive,
		SubscriptionExpiresAt: &expired,
		IsAdmin:               true,
	}

	result, err := checker.Check(tenant, tiers.TierPremium)
	require.NoError(t, err)
	assert.True(t, result.AdminBypass)
	assert.Equal(t, tiers.TierPremium, result.Tier)
	assert.Equal(t, tiers.Unlimited, result.Limits[tiers.LimitFacebookAccounts])
}
