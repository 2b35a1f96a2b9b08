package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/metrics"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/reconcile"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/stripe"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v78"
)

// Версия API в теле события должна совпадать с версией клиентской
// библиотеки, иначе верификатор отклонит событие.
const stripeAPIVersion = stripego.APIVersion

const testWebhookSecret = "whsec_test_secret"

type webhookFixture struct {
	router  *gin.Engine
	tenants *repository.InMemoryTenantRepository
	subs    *repository.InMemorySubscriptionRepository
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.ERROR)

	tenants := repository.NewInMemoryTenantRepository()
	subs := repository.NewInMemorySubscriptionRepository()
	webhookMetrics := metrics.NewWebhookMetrics(prometheus.NewRegistry(), log)
	reconciler := reconcile.NewReconciler(tenants, subs, tiers.New(), repository.NoopTxRunner{}, nil, webhookMetrics, log)

	verifier, err := stripe.NewWebhookVerifier(testWebhookSecret, log)
	require.NoError(t, err)

	handler := NewWebhookHandler(verifier, reconciler, webhookMetrics, log)
	router := gin.New()
	router.POST("/webhooks/stripe", handler.HandleStripeWebhook)

	return &webhookFixture{router: router, tenants: tenants, subs: subs}
}

func (f *webhookFixture) seedTenant(t *testing.T, customerID string) domain.Tenant {
	t.Helper()
	tenant, err := f.tenants.Create(context.Background(), domain.Tenant{
		Email:              "seller@example.com",
		StripeCustomerID:   customerID,
		SubscriptionTier:   tiers.TierBasic,
		SubscriptionStatus: domain.SubscriptionStatusInactive,
	})
	require.NoError(t, err)
	return tenant
}

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func subscriptionPayload(eventType, subID, customerID, priceID, status string) []byte {
	now := time.Now()
	payload := map[string]any{
		"id":          "evt_" + uuid.NewString(),
		"type":        eventType,
		"api_version": stripeAPIVersion,
		"data": map[string]any{
			"object": map[string]any{
				"id":                   subID,
				"customer":             customerID,
				"status":               status,
				"cancel_at_period_end": false,
				"current_period_start": now.Unix(),
				"current_period_end":   now.Add(30 * 24 * time.Hour).Unix(),
				"items": map[string]any{
					"data": []map[string]any{
						{"price": map[string]any{"id": priceID}},
					},
				},
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func (f *webhookFixture) deliver(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(payload)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleStripeWebhook_MissingSignature(t *testing.T) {
	f := newWebhookFixture(t)

	payload := subscriptionPayload("customer.subscription.created", "sub_1", "cus_1", "price_pro_monthly", "active")
	rec := f.deliver(t, payload, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStripeWebhook_InvalidSignature(t *testing.T) {
	f := newWebhookFixture(t)

	payload := subscriptionPayload("customer.subscription.created", "sub_1", "cus_1", "price_pro_monthly", "active")
	rec := f.deliver(t, payload, signPayload(payload, "whsec_wrong_secret", time.Now()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStripeWebhook_SubscriptionCreated(t *testing.T) {
	f := newWebhookFixture(t)
	tenant := f.seedTenant(t, "cus_1")

	payload := subscriptionPayload("customer.subscription.created", "sub_1", "cus_1", "price_pro_monthly", "active")
	rec := f.deliver(t, payload, signPayload(payload, testWebhookSecret, time.Now()))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["received"])
	assert.Equal(t, string(reconcile.OutcomeApplied), body["outcome"])

	updated, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.TierPro, updated.SubscriptionTier)
	assert.Equal(t, domain.SubscriptionStatusActive, updated.SubscriptionStatus)
}

func TestHandleStripeWebhook_UnknownCustomerAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	payload := subscriptionPayload("customer.subscription.created", "sub_1", "cus_unknown", "price_pro_monthly", "active")
	rec := f.deliver(t, payload, signPayload(payload, testWebhookSecret, time.Now()))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(reconcile.OutcomeTenantNotFound), body["outcome"])
}

func TestHandleStripeWebhook_UnhandledEventType(t *testing.T) {
	f := newWebhookFixture(t)

	payload := []byte(`{"id":"evt_1","type":"customer.created","api_version":"` + stripeAPIVersion + `","data":{"object":{"id":"cus_1"}}}`)
	rec := f.deliver(t, payload, signPayload(payload, testWebhookSecret, time.Now()))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["received"])
	_, hasOutcome := body["outcome"]
	assert.False(t, hasOutcome)
}

func TestHandleStripeWebhook_ReplayIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	tenant := f.seedTenant(t, "cus_1")

	payload := subscriptionPayload("customer.subscription.created", "sub_1", "cus_1", "price_pro_monthly", "active")
	rec := f.deliver(t, payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.deliver(t, payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code)

	record, err := f.subs.GetByTenantID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", record.StripeSubscriptionID)
	assert.Equal(t, domain.SubscriptionStatusActive, record.Status)
}
