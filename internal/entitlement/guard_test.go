package entitlement

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/middleware"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/usage"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardFixture struct {
	checker  *Checker
	enforcer *Enforcer
	resolver *FeatureResolver
	store    *repository.InMemoryUsageStore
	log      *logger.Logger
}

func newGuardFixture() *guardFixture {
	log := logger.New(logger.ERROR)
	catalog := tiers.New()
	store := repository.NewInMemoryUsageStore()
	counter := usage.NewCounter(store, catalog, log)
	checker := NewChecker(catalog, log)
	return &guardFixture{
		checker:  checker,
		enforcer: NewEnforcer(checker, counter, catalog, log),
		resolver: NewFeatureResolver(checker, catalog, log),
		store:    store,
		log:      log,
	}
}

func performGuarded(t *testing.T, chain *Chain, tenant *domain.Tenant) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	if tenant != nil {
		router.Use(func(c *gin.Context) {
			c.Set(string(middleware.ContextTenantKey), tenant)
		})
	}
	router.GET("/protected", chain.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tier": c.GetString(ContextTierKey)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)
	return w
}

func decodeDenial(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestChainMiddleware_Allows(t *testing.T) {
	f := newGuardFixture()
	chain := NewChain(f.log, TierGuard(f.checker, tiers.TierPro))

	w := performGuarded(t, chain, activeTenant(tiers.TierPro))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, tiers.TierPro, body["tier"])
}

func TestChainMiddleware_Unauthenticated(t *testing.T) {
	f := newGuardFixture()
	chain := NewChain(f.log, TierGuard(f.checker, tiers.TierBasic))

	w := performGuarded(t, chain, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(domain.CodeAuthRequired), decodeDenial(t, w)["code"])
}

func TestChainMiddleware_InsufficientTier(t *testing.T) {
	f := newGuardFixture()
	chain := NewChain(f.log, TierGuard(f.checker, tiers.TierPremium))

	w := performGuarded(t, chain, activeTenant(tiers.TierBasic))
	assert.Equal(t, http.StatusForbidden, w.Code)

	body := decodeDenial(t, w)
	assert.Equal(t, string(domain.CodeInsufficientTier), body["code"])

	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, tiers.TierPremium, details["required_tier"])
	assert.Equal(t, domain.UpgradeURL, details["upgrade_url"])
}

func TestChainMiddleware_FeatureDenied(t *testing.T) {
	f := newGuardFixture()
	chain := NewChain(f.log, FeatureGuard(f.checker, f.resolver, domain.FeatureAI))

	w := performGuarded(t, chain, activeTenant(tiers.TierBasic))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(domain.CodeFeatureNotAvailable), decodeDenial(t, w)["code"])
}

func TestChainMiddleware_LimitReached(t *testing.T) {
	f := newGuardFixture()
	tenant := activeTenant(tiers.TierBasic)
	f.store.SetActiveAccounts(tenant.ID, 3)
	chain := NewChain(f.log, LimitGuard(f.checker, f.enforcer, domain.ResourceFacebookAccounts))

	w := performGuarded(t, chain, tenant)
	assert.Equal(t, http.StatusForbidden, w.Code)

	body := decodeDenial(t, w)
	assert.Equal(t, string(domain.CodeLimitReached), body["code"])

	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, details["limit"])
}

func TestChainMiddleware_StopsAtFirstFailure(t *testing.T) {
	f := newGuardFixture()

	// Тариф недостаточен, до проверки фичи дело не доходит
	chain := NewChain(f.log,
		TierGuard(f.checker, tiers.TierPremium),
		FeatureGuard(f.checker, f.resolver, domain.FeatureBatchOperations),
	)

	w := performGuarded(t, chain, activeTenant(tiers.TierBasic))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(domain.CodeInsufficientTier), decodeDenial(t, w)["code"])
}
