package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/kafka"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/metrics"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingProducer struct {
	mu       sync.Mutex
	messages []kafka.EntitlementChangedMessage
}

func (p *capturingProducer) PublishEntitlementChanged(_ context.Context, msg kafka.EntitlementChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

func (p *capturingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type fixture struct {
	reconciler *Reconciler
	tenants    *repository.InMemoryTenantRepository
	subs       *repository.InMemorySubscriptionRepository
	producer   *capturingProducer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New(logger.ERROR)
	tenants := repository.NewInMemoryTenantRepository()
	subs := repository.NewInMemorySubscriptionRepository()
	producer := &capturingProducer{}
	webhookMetrics := metrics.NewWebhookMetrics(prometheus.NewRegistry(), log)

	return &fixture{
		reconciler: NewReconciler(tenants, subs, tiers.New(), repository.NoopTxRunner{}, producer, webhookMetrics, log),
		tenants:    tenants,
		subs:       subs,
		producer:   producer,
	}
}

func (f *fixture) seedTenant(t *testing.T, customerID string) domain.Tenant {
	t.Helper()
	tenant, err := f.tenants.Create(context.Background(), domain.Tenant{
		ID:                 uuid.New(),
		Email:              "seller@example.com",
		StripeCustomerID:   customerID,
		SubscriptionTier:   tiers.TierBasic,
		SubscriptionStatus: domain.SubscriptionStatusInactive,
	})
	require.NoError(t, err)
	return tenant
}

func subscriptionEvent(eventType, subID, customerID, priceID, status string) domain.BillingEvent {
	now := time.Now()
	return domain.BillingEvent{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Subscription: domain.BillingSubscription{
			ID:                 subID,
			CustomerID:         customerID,
			Status:             status,
			PriceID:            priceID,
			CurrentPeriodStart: now.Unix(),
			CurrentPeriodEnd:   now.Add(30 * 24 * time.Hour).Unix(),
		},
	}
}

func invoiceEvent(eventType, subID string) domain.BillingEvent {
	return domain.BillingEvent{
		ID:                    "evt_" + uuid.NewString(),
		Type:                  eventType,
		InvoiceSubscriptionID: subID,
	}
}

func TestApply_SubscriptionCreated(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "cus_123")

	event := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_123", "price_pro_monthly", "active")
	result, err := f.reconciler.Apply(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, tiers.TierPro, result.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, result.Status)

	updated, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.TierPro, updated.SubscriptionTier)
	assert.Equal(t, domain.SubscriptionStatusActive, updated.SubscriptionStatus)
	require.NotNil(t, updated.SubscriptionExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *updated.SubscriptionExpiresAt, time.Minute)

	record, err := f.subs.GetByStripeSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, record.TenantID)
	assert.Equal(t, tiers.TierPro, record.PlanTier)

	assert.Equal(t, 1, f.producer.count())
}

func TestApply_UnknownPriceDefaultsToLowestTier(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "cus_123")

	event := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_123", "price_mystery", "active")
	result, err := f.reconciler.Apply(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, tiers.TierBasic, result.Tier)
}

func TestApply_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	event := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_missing", "price_pro_monthly", "active")
	result, err := f.reconciler.Apply(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, OutcomeTenantNotFound, result.Outcome)
	assert.Equal(t, 0, f.producer.count())
}

func TestApply_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "cus_123")

	event := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_123", "price_premium_monthly", "active")

	first, err := f.reconciler.Apply(context.Background(), event)
	require.NoError(t, err)
	second, err := f.reconciler.Apply(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, first.Outcome, second.Outcome)
	assert.Equal(t, first.Tier, second.Tier)

	updated, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.TierPremium, updated.SubscriptionTier)
	assert.Equal(t, domain.SubscriptionStatusActive, updated.SubscriptionStatus)
}

func TestApply_CreatedDeletedCreated(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "cus_123")

	created := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_123", "price_pro_monthly", "active")
	deleted := subscriptionEvent(domain.EventSubscriptionDeleted, "sub_123", "cus_123", "price_pro_monthly", "canceled")

	_, err := f.reconciler.Apply(context.Background(), created)
	require.NoError(t, err)

	result, err := f.reconciler.Apply(context.Background(), deleted)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)

	afterDelete, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, afterDelete.SubscriptionStatus)
	assert.False(t, afterDelete.SubscriptionStatus.IsEntitled())

	record, err := f.subs.GetByStripeSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.NotNil(t, record.CanceledAt)

	// Повторная покупка с тем же subscription id снова открывает доступ
	_, err = f.reconciler.Apply(context.Background(), created)
	require.NoError(t, err)

	final, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, final.SubscriptionStatus)
	assert.True(t, final.SubscriptionStatus.IsEntitled())

	record, err = f.subs.GetByStripeSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Nil(t, record.CanceledAt)
}

func TestApply_UpdatedUnknownSubscription(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "cus_123")

	event := subscriptionEvent(domain.EventSubscriptionUpdated, "sub_never_created", "cus_123", "price_pro_monthly", "active")
	result, err := f.reconciler.Apply(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscriptionNotFound, result.Outcome)

	// Обновление неизвестной подписки не создает запись и не меняет арендатора
	_, err = f.subs.GetByStripeSubscriptionID(context.Background(), "sub_never_created")
	require.ErrorIs(t, err, repository.ErrNotFound)

	unchanged, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.TierBasic, unchanged.SubscriptionTier)
	assert.Equal(t, domain.SubscriptionStatusInactive, unchanged.SubscriptionStatus)
	assert.Equal(t, 0, f.producer.count())
}

func TestApply_UpdatedChangesPlanAndStatus(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "cus_123")

	created := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_123", "price_pro_monthly", "active")
	_, err := f.reconciler.Apply(context.Background(), created)
	require.NoError(t, err)

	updated := subscriptionEvent(domain.EventSubscriptionUpdated, "sub_123", "cus_123", "price_premium_monthly", "active")
	result, err := f.reconciler.Apply(context.Background(), updated)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, result.Outcome)
	assert.Equal(t, tiers.TierPremium, result.Tier)

	record, err := f.subs.GetByStripeSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, tiers.TierPremium, record.PlanTier)

	after, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tiers.TierPremium, after.SubscriptionTier)
}

func TestApply_DeletedUnknownSubscription(t *testing.T) {
	f := newFixture(t)

	event := subscriptionEvent(domain.EventSubscriptionDeleted, "sub_missing", "cus_123", "", "canceled")
	result, err := f.reconciler.Apply(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscriptionNotFound, result.Outcome)
}

func TestApply_PastDueRecovery(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "cus_123")

	created := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_123", "price_pro_monthly", "active")
	_, err := f.reconciler.Apply(context.Background(), created)
	require.NoError(t, err)

	result, err := f.reconciler.Apply(context.Background(), invoiceEvent(domain.EventPaymentFailed, "sub_123"))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPastDue, result.Status)

	blocked, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.False(t, blocked.SubscriptionStatus.IsEntitled())

	result, err = f.reconciler.Apply(context.Background(), invoiceEvent(domain.EventPaymentSucceeded, "sub_123"))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, result.Status)

	recovered, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.True(t, recovered.SubscriptionStatus.IsEntitled())
	assert.Equal(t, tiers.TierPro, recovered.SubscriptionTier)
}

func TestApply_InvoiceWithoutSubscription(t *testing.T) {
	f := newFixture(t)

	result, err := f.reconciler.Apply(context.Background(), invoiceEvent(domain.EventPaymentSucceeded, ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSubscription, result.Outcome)
}

func TestApply_InvoiceUnknownSubscription(t *testing.T) {
	f := newFixture(t)

	result, err := f.reconciler.Apply(context.Background(), invoiceEvent(domain.EventPaymentFailed, "sub_missing"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubscriptionNotFound, result.Outcome)
}

func TestApply_InvoiceOnCanceledSubscriptionIsNoop(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "cus_123")

	created := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_123", "price_pro_monthly", "active")
	deleted := subscriptionEvent(domain.EventSubscriptionDeleted, "sub_123", "cus_123", "price_pro_monthly", "canceled")

	_, err := f.reconciler.Apply(context.Background(), created)
	require.NoError(t, err)
	_, err = f.reconciler.Apply(context.Background(), deleted)
	require.NoError(t, err)

	// Запоздавший счет не воскрешает отмененную подписку
	result, err := f.reconciler.Apply(context.Background(), invoiceEvent(domain.EventPaymentSucceeded, "sub_123"))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, result.Status)

	final, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, final.SubscriptionStatus)
}

func TestApply_UnhandledEventType(t *testing.T) {
	f := newFixture(t)

	result, err := f.reconciler.Apply(context.Background(), domain.BillingEvent{
		ID:   "evt_1",
		Type: "customer.created",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnhandled, result.Outcome)
}

func TestApply_ConcurrentEventsForOneSubscription(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "cus_123")

	created := subscriptionEvent(domain.EventSubscriptionCreated, "sub_123", "cus_123", "price_pro_monthly", "active")
	_, err := f.reconciler.Apply(context.Background(), created)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var event domain.BillingEvent
			if i%2 == 0 {
				event = invoiceEvent(domain.EventPaymentFailed, "sub_123")
			} else {
				event = invoiceEvent(domain.EventPaymentSucceeded, "sub_123")
			}
			_, applyErr := f.reconciler.Apply(context.Background(), event)
			assert.NoError(t, applyErr)
		}(i)
	}
	wg.Wait()

	final, err := f.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)

	// Итоговый статус зависит от порядка, но всегда согласован с записью подписки
	record, err := f.subs.GetByStripeSubscriptionID(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, record.Status, final.SubscriptionStatus)
	assert.Contains(t, []domain.SubscriptionStatus{
		domain.SubscriptionStatusActive,
		domain.SubscriptionStatusPastDue,
	}, final.SubscriptionStatus)
}
