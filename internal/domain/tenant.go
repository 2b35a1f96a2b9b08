package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки арендатора
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// IsEntitled проверяет, дает ли статус право на доступ
func (s SubscriptionStatus) IsEntitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Tenant представляет собой арендатора (платящий аккаунт)
type Tenant struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`

	// ID клиента в Stripe
	StripeCustomerID string `json:"stripe_customer_id,omitempty"`

	// Денормализованные данные подписки для быстрого доступа
	SubscriptionTier      string             `json:"subscription_tier"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status"`
	SubscriptionExpiresAt *time.Time         `json:"subscription_expires_at,omitempty"`

	// Роль администратора, выставляется явным административным действием.
	// Администратор обходит все проверки подписки и лимитов.
	IsAdmin bool `json:"is_admin"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// TenantRequest представляет запрос на создание/обновление арендатора
type TenantRequest struct {
	Email string `json:"email" binding:"required,email" validate:"required,email"`
}
