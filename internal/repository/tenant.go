package repository

import (
	"context"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/google/uuid"
)

// TenantRepository определяет методы для работы с хранилищем арендаторов.
type TenantRepository interface {
	// GetByID возвращает арендатора по его ID.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error)

	// GetByEmail возвращает арендатора по email.
	GetByEmail(ctx context.Context, email string) (domain.Tenant, error)

	// GetByStripeCustomerID возвращает арендатора по его Stripe customer id
	// (понадобится для вебхуков).
	GetByStripeCustomerID(ctx context.Context, customerID string) (domain.Tenant, error)

	// Create сохраняет нового арендатора в хранилище.
	Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error)

	// Update обновляет данные существующего арендатора
	// (например, денормализованные тариф/статус подписки).
	Update(ctx context.Context, tenant domain.Tenant) error
}
