package repository

import (
	"context"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/google/uuid"
)

// SubscriptionRepository определяет методы для работы с хранилищем записей подписок.
type SubscriptionRepository interface {
	// GetByStripeSubscriptionID возвращает запись по внешнему subscription id.
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (domain.SubscriptionRecord, error)

	// GetByTenantID возвращает самую свежую запись подписки арендатора.
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (domain.SubscriptionRecord, error)

	// Create сохраняет новую запись подписки.
	Create(ctx context.Context, record domain.SubscriptionRecord) (domain.SubscriptionRecord, error)

	// Update обновляет существующую запись подписки.
	// Записи никогда не удаляются, только переводятся в статус canceled.
	Update(ctx context.Context, record domain.SubscriptionRecord) error
}
