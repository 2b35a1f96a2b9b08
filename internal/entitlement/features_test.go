package entitlement

import (
	"testing"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *FeatureResolver {
	log := logger.New(logger.ERROR)
	catalog := tiers.New()
	return NewFeatureResolver(NewChecker(catalog, log), catalog, log)
}

func TestResolve(t *testing.T) {
	resolver := newTestResolver()

	assert.False(t, resolver.Resolve(tiers.TierBasic, domain.FeatureBatchOperations).Granted())
	assert.True(t, resolver.Resolve(tiers.TierPro, domain.FeatureBatchOperations).Granted())
	assert.Equal(t, "advanced", resolver.Resolve(tiers.TierPro, domain.FeatureAnalytics).Level)
	assert.False(t, resolver.Resolve("enterprise", domain.FeatureBatchOperations).Granted())
	assert.False(t, resolver.Resolve(tiers.TierPremium, "teleportation").Granted())
}

func TestRequiredTierFor(t *testing.T) {
	resolver := newTestResolver()

	tier, ok := resolver.RequiredTierFor(domain.FeatureBatchOperations)
	require.True(t, ok)
	assert.Equal(t, tiers.TierPro, tier)

	tier, ok = resolver.RequiredTierFor(domain.FeatureAI)
	require.True(t, ok)
	assert.Equal(t, tiers.TierPremium, tier)

	tier, ok = resolver.RequiredTierFor(domain.FeatureImageOptimization)
	require.True(t, ok)
	assert.Equal(t, tiers.TierBasic, tier)

	_, ok = resolver.RequiredTierFor("teleportation")
	assert.False(t, ok)
}

func TestCheckFeature_Granted(t *testing.T) {
	resolver := newTestResolver()

	assert.NoError(t, resolver.CheckFeature(activeTenant(tiers.TierPro), domain.FeatureBatchOperations))
}

func TestCheckFeature_Denied(t *testing.T) {
	resolver := newTestResolver()

	err := resolver.CheckFeature(activeTenant(tiers.TierBasic), domain.FeatureAI)
	require.Error(t, err)
	featErr, ok := err.(*domain.FeatureError)
	require.True(t, ok, "expected *domain.FeatureError, got %T", err)
	assert.Equal(t, domain.FeatureAI, featErr.Feature)
	assert.Equal(t, tiers.TierBasic, featErr.CurrentTier)
	assert.Equal(t, tiers.TierPremium, featErr.RequiredTier)
	assert.Equal(t, domain.CodeFeatureNotAvailable, featErr.Code())
}

func TestCheckFeature_InactiveSubscription(t *testing.T) {
	resolver := newTestResolver()

	tenant := activeTenant(tiers.TierPremium)
	tenant.SubscriptionStatus = domain.SubscriptionStatusInactive

	err := resolver.CheckFeature(tenant, domain.FeatureAI)
	requireDenied(t, err, domain.CodeSubscriptionRequired)
}

func TestCheckFeature_AdminBypass(t *testing.T) {
	resolver := newTestResolver()

	tenant := activeTenant(tiers.TierBasic)
	tenant.IsAdmin = true

	assert.NoError(t, resolver.CheckFeature(tenant, domain.FeatureAI))
}
