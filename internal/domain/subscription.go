package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionRecord представляет собой запись о подписке Stripe.
// Создается единожды на внешний subscription id и никогда не удаляется,
// только переводится в статус canceled.
type SubscriptionRecord struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`

	// Stripe метаданные
	StripeSubscriptionID string `json:"stripe_subscription_id"`
	StripePriceID        string `json:"stripe_price_id,omitempty"`

	// Детали подписки
	PlanTier string             `json:"plan_tier"`
	Status   SubscriptionStatus `json:"status"`

	// Расчетный период
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	// Отмена. CancelAtPeriodEnd это флаг, а не статус:
	// вступает в силу только через событие deleted в конце периода.
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
