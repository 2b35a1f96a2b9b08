package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const subscriptionColumns = `
	id, tenant_id, stripe_subscription_id, stripe_price_id,
	plan_tier, status, current_period_start, current_period_end,
	cancel_at_period_end, canceled_at, created_at, updated_at
`

// PostgresSubscriptionRepository реализация репозитория подписок через PostgreSQL
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый репозиторий подписок через PostgreSQL
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{
		pool: pool,
		log:  log,
	}
}

func scanSubscription(row pgx.Row) (domain.SubscriptionRecord, error) {
	var sub domain.SubscriptionRecord

	err := row.Scan(
		&sub.ID,
		&sub.TenantID,
		&sub.StripeSubscriptionID,
		&sub.StripePriceID,
		&sub.PlanTier,
		&sub.Status,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.CanceledAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return domain.SubscriptionRecord{}, err
	}

	return sub, nil
}

// GetByStripeSubscriptionID возвращает подписку по Stripe subscription id
func (r *PostgresSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (domain.SubscriptionRecord, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`

	sub, err := scanSubscription(querierFor(ctx, r.pool).QueryRow(ctx, query, stripeSubID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubscriptionRecord{}, ErrNotFound
		}
		return domain.SubscriptionRecord{}, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// GetByTenantID возвращает самую свежую подписку арендатора
func (r *PostgresSubscriptionRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (domain.SubscriptionRecord, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	sub, err := scanSubscription(querierFor(ctx, r.pool).QueryRow(ctx, query, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubscriptionRecord{}, ErrNotFound
		}
		return domain.SubscriptionRecord{}, fmt.Errorf("failed to get subscription by tenant: %w", err)
	}

	return sub, nil
}

// Create создает новую подписку в базе данных
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub domain.SubscriptionRecord) (domain.SubscriptionRecord, error) {
	query := `
		INSERT INTO subscriptions (
			id, tenant_id, stripe_subscription_id, stripe_price_id,
			plan_tier, status, current_period_start, current_period_end,
			cancel_at_period_end, canceled_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING id, created_at, updated_at
	`

	now := time.Now()
	err := querierFor(ctx, r.pool).QueryRow(
		ctx,
		query,
		sub.ID,
		sub.TenantID,
		sub.StripeSubscriptionID,
		sub.StripePriceID,
		sub.PlanTier,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.CanceledAt,
		now,
		now,
	).Scan(
		&sub.ID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.SubscriptionRecord{}, ErrDuplicate
		}
		return domain.SubscriptionRecord{}, fmt.Errorf("failed to create subscription: %w", err)
	}

	r.log.Debugw("Subscription created",
		"subscriptionID", sub.ID,
		"stripeSubscriptionID", sub.StripeSubscriptionID,
		"tier", sub.PlanTier,
	)
	return sub, nil
}

// Update обновляет существующую подписку в базе данных
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub domain.SubscriptionRecord) error {
	query := `
		UPDATE subscriptions SET
			stripe_price_id = $2,
			plan_tier = $3,
			status = $4,
			current_period_start = $5,
			current_period_end = $6,
			cancel_at_period_end = $7,
			canceled_at = $8,
			updated_at = $9
		WHERE id = $1
	`

	tag, err := querierFor(ctx, r.pool).Exec(
		ctx,
		query,
		sub.ID,
		sub.StripePriceID,
		sub.PlanTier,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.CanceledAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
