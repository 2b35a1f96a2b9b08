package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/kafka"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/metrics"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
)

// Outcome исход применения события биллинга
type Outcome string

const (
	// OutcomeApplied событие применено, права арендатора обновлены
	OutcomeApplied Outcome = "applied"

	// OutcomeTenantNotFound арендатор с таким customer id не зарегистрирован.
	// Событие подтверждается без изменений, повторная доставка не нужна.
	OutcomeTenantNotFound Outcome = "tenant_not_found"

	// OutcomeSubscriptionNotFound подписка из события неизвестна системе
	OutcomeSubscriptionNotFound Outcome = "subscription_not_found"

	// OutcomeNoSubscription событие счета без привязки к подписке
	OutcomeNoSubscription Outcome = "no_subscription"

	// OutcomeUnhandled тип события системой не обрабатывается
	OutcomeUnhandled Outcome = "unhandled_event"
)

// Result результат применения события биллинга
type Result struct {
	Outcome  Outcome
	TenantID uuid.UUID
	Tier     string
	Status   domain.SubscriptionStatus
}

// Reconciler приводит локальное состояние подписок в соответствие
// с событиями биллинга. Применение идемпотентно: каждое событие
// записывает абсолютное состояние, а не инкремент, поэтому повторная
// доставка не меняет результат.
type Reconciler struct {
	tenants  repository.TenantRepository
	subs     repository.SubscriptionRepository
	catalog  *tiers.Catalog
	tx       repository.TxRunner
	producer kafka.Producer
	metrics  metrics.WebhookMetrics
	log      *logger.Logger

	// События одной подписки применяются строго последовательно
	locks *keyedMutex

	now func() time.Time
}

// NewReconciler создает новый Reconciler
func NewReconciler(
	tenants repository.TenantRepository,
	subs repository.SubscriptionRepository,
	catalog *tiers.Catalog,
	tx repository.TxRunner,
	producer kafka.Producer,
	webhookMetrics metrics.WebhookMetrics,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		tenants:  tenants,
		subs:     subs,
		catalog:  catalog,
		tx:       tx,
		producer: producer,
		metrics:  webhookMetrics,
		log:      log,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Apply применяет событие биллинга к локальному состоянию.
// Ошибка означает сбой записи: вызывающая сторона должна ответить
// провайдеру неуспехом, чтобы событие было доставлено повторно.
func (r *Reconciler) Apply(ctx context.Context, event domain.BillingEvent) (Result, error) {
	start := r.now()
	r.metrics.IncEventReceived(event.Type)

	subscriptionID := r.subscriptionKey(event)
	if subscriptionID == "" {
		switch event.Type {
		case domain.EventPaymentSucceeded, domain.EventPaymentFailed:
			r.log.Debugw("Invoice event without subscription, skipping", "eventID", event.ID)
			r.metrics.IncEventApplied(event.Type, string(OutcomeNoSubscription))
			return Result{Outcome: OutcomeNoSubscription}, nil
		default:
			r.log.Infow("Ignored billing event type", "type", event.Type, "eventID", event.ID)
			r.metrics.IncEventApplied(event.Type, string(OutcomeUnhandled))
			return Result{Outcome: OutcomeUnhandled}, nil
		}
	}

	unlock := r.locks.Lock(subscriptionID)
	defer unlock()

	var result Result
	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var applyErr error
		switch event.Type {
		case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated:
			result, applyErr = r.applySubscriptionChange(txCtx, event)
		case domain.EventSubscriptionDeleted:
			result, applyErr = r.applySubscriptionDeleted(txCtx, event)
		case domain.EventPaymentSucceeded:
			result, applyErr = r.applyInvoiceStatus(txCtx, event, domain.SubscriptionStatusActive)
		case domain.EventPaymentFailed:
			result, applyErr = r.applyInvoiceStatus(txCtx, event, domain.SubscriptionStatusPastDue)
		}
		return applyErr
	})
	if err != nil {
		r.metrics.IncEventFailed(event.Type)
		return Result{}, &domain.ReconciliationError{
			EventType: event.Type,
			EventID:   event.ID,
			Err:       err,
		}
	}

	r.metrics.IncEventApplied(event.Type, string(result.Outcome))
	r.metrics.ObserveProcessingDuration(event.Type, r.now().Sub(start).Seconds())

	if result.Outcome == OutcomeApplied {
		r.publishChange(ctx, event, subscriptionID, result)
	}

	return result, nil
}

// subscriptionKey возвращает ключ сериализации события.
// Пустой ключ означает, что событие не привязано к подписке.
func (r *Reconciler) subscriptionKey(event domain.BillingEvent) string {
	switch event.Type {
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		return event.Subscription.ID
	case domain.EventPaymentSucceeded, domain.EventPaymentFailed:
		return event.InvoiceSubscriptionID
	default:
		return ""
	}
}

// applySubscriptionChange обрабатывает создание и обновление подписки.
// События записывают абсолютное состояние; created выполняет upsert,
// чтобы повтор доставки и повторное created после deleted возвращали
// арендатору доступ. Событие updated применяется только к известной
// подписке, для неизвестной оно завершается как subscription_not_found.
func (r *Reconciler) applySubscriptionChange(ctx context.Context, event domain.BillingEvent) (Result, error) {
	sub := event.Subscription

	tenant, err := r.tenants.GetByStripeCustomerID(ctx, sub.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Billing event for unknown customer",
				"customerID", sub.CustomerID, "eventID", event.ID)
			return Result{Outcome: OutcomeTenantNotFound}, nil
		}
		return Result{}, err
	}

	tier, ok := r.catalog.TierFromPriceID(sub.PriceID)
	if !ok {
		tier = r.catalog.Lowest()
		r.log.Warnw("Unknown price id in billing event, defaulting to lowest tier",
			"priceID", sub.PriceID, "tier", tier, "eventID", event.ID)
	}

	status := mapBillingStatus(sub.Status)
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0)
	periodStart := time.Unix(sub.CurrentPeriodStart, 0)

	record, err := r.subs.GetByStripeSubscriptionID(ctx, sub.ID)
	switch {
	case err == nil:
		record.StripePriceID = sub.PriceID
		record.PlanTier = tier
		record.Status = status
		record.CurrentPeriodStart = &periodStart
		record.CurrentPeriodEnd = &periodEnd
		record.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		if status != domain.SubscriptionStatusCanceled {
			record.CanceledAt = nil
		}
		if err := r.subs.Update(ctx, record); err != nil {
			return Result{}, err
		}
	case errors.Is(err, repository.ErrNotFound):
		if event.Type == domain.EventSubscriptionUpdated {
			r.log.Warnw("Update event for unknown subscription",
				"subscriptionID", sub.ID, "eventID", event.ID)
			return Result{Outcome: OutcomeSubscriptionNotFound}, nil
		}
		record = domain.SubscriptionRecord{
			ID:                   uuid.New(),
			TenantID:             tenant.ID,
			StripeSubscriptionID: sub.ID,
			StripePriceID:        sub.PriceID,
			PlanTier:             tier,
			Status:               status,
			CurrentPeriodStart:   &periodStart,
			CurrentPeriodEnd:     &periodEnd,
			CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		}
		if _, err := r.subs.Create(ctx, record); err != nil {
			return Result{}, err
		}
	default:
		return Result{}, err
	}

	tenant.SubscriptionTier = tier
	tenant.SubscriptionStatus = status
	tenant.SubscriptionExpiresAt = &periodEnd
	if err := r.tenants.Update(ctx, tenant); err != nil {
		return Result{}, err
	}

	r.log.Infow("Subscription reconciled",
		"tenantID", tenant.ID, "subscriptionID", sub.ID,
		"tier", tier, "status", status, "eventType", event.Type)

	return Result{
		Outcome:  OutcomeApplied,
		TenantID: tenant.ID,
		Tier:     tier,
		Status:   status,
	}, nil
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, event domain.BillingEvent) (Result, error) {
	sub := event.Subscription

	record, err := r.subs.GetByStripeSubscriptionID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Deletion event for unknown subscription",
				"subscriptionID", sub.ID, "eventID", event.ID)
			return Result{Outcome: OutcomeSubscriptionNotFound}, nil
		}
		return Result{}, err
	}

	now := r.now()
	record.Status = domain.SubscriptionStatusCanceled
	record.CanceledAt = &now
	if err := r.subs.Update(ctx, record); err != nil {
		return Result{}, err
	}

	tenant, err := r.tenants.GetByID(ctx, record.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{Outcome: OutcomeTenantNotFound}, nil
		}
		return Result{}, err
	}

	// Тариф в записи остается для истории, доступ закрывает статус
	tenant.SubscriptionStatus = domain.SubscriptionStatusCanceled
	if err := r.tenants.Update(ctx, tenant); err != nil {
		return Result{}, err
	}

	r.log.Infow("Subscription cancellation reconciled",
		"tenantID", tenant.ID, "subscriptionID", sub.ID)

	return Result{
		Outcome:  OutcomeApplied,
		TenantID: tenant.ID,
		Tier:     tenant.SubscriptionTier,
		Status:   domain.SubscriptionStatusCanceled,
	}, nil
}

func (r *Reconciler) applyInvoiceStatus(ctx context.Context, event domain.BillingEvent, status domain.SubscriptionStatus) (Result, error) {
	record, err := r.subs.GetByStripeSubscriptionID(ctx, event.InvoiceSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Invoice event for unknown subscription",
				"subscriptionID", event.InvoiceSubscriptionID, "eventID", event.ID)
			return Result{Outcome: OutcomeSubscriptionNotFound}, nil
		}
		return Result{}, err
	}

	// Счет по уже отмененной подписке состояние не меняет
	if record.Status == domain.SubscriptionStatusCanceled {
		return Result{
			Outcome:  OutcomeApplied,
			TenantID: record.TenantID,
			Tier:     record.PlanTier,
			Status:   record.Status,
		}, nil
	}

	record.Status = status
	if err := r.subs.Update(ctx, record); err != nil {
		return Result{}, err
	}

	tenant, err := r.tenants.GetByID(ctx, record.TenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result{Outcome: OutcomeTenantNotFound}, nil
		}
		return Result{}, err
	}

	tenant.SubscriptionStatus = status
	if err := r.tenants.Update(ctx, tenant); err != nil {
		return Result{}, err
	}

	r.log.Infow("Invoice event reconciled",
		"tenantID", tenant.ID, "subscriptionID", event.InvoiceSubscriptionID, "status", status)

	return Result{
		Outcome:  OutcomeApplied,
		TenantID: tenant.ID,
		Tier:     tenant.SubscriptionTier,
		Status:   status,
	}, nil
}

// publishChange отправляет событие изменения прав в Kafka.
// Состояние уже зафиксировано, поэтому сбой публикации не считается
// сбоем применения: повторная доставка вебхука все равно приведет
// к тому же состоянию.
func (r *Reconciler) publishChange(ctx context.Context, event domain.BillingEvent, subscriptionID string, result Result) {
	if r.producer == nil {
		return
	}

	msg := kafka.EntitlementChangedMessage{
		TenantID:             result.TenantID,
		StripeSubscriptionID: subscriptionID,
		Tier:                 result.Tier,
		Status:               string(result.Status),
		EventType:            event.Type,
		OccurredAt:           r.now(),
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	err := backoff.Retry(func() error {
		return r.producer.PublishEntitlementChanged(ctx, msg)
	}, policy)
	if err != nil {
		r.log.Errorw("Failed to publish entitlement change after retries",
			"error", err, "subscriptionID", subscriptionID, "eventID", event.ID)
	}
}

// mapBillingStatus отображает статус подписки провайдера на внутренний
func mapBillingStatus(status string) domain.SubscriptionStatus {
	switch status {
	case "active":
		return domain.SubscriptionStatusActive
	case "trialing":
		return domain.SubscriptionStatusTrialing
	case "past_due":
		return domain.SubscriptionStatusPastDue
	case "canceled", "unpaid", "incomplete_expired":
		return domain.SubscriptionStatusCanceled
	default:
		return domain.SubscriptionStatusInactive
	}
}
