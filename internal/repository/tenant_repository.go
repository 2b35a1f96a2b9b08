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

const tenantColumns = `
	id, email, stripe_customer_id,
	subscription_tier, subscription_status, subscription_expires_at,
	is_admin, created_at, updated_at, last_login_at
`

// PostgresTenantRepository реализация репозитория арендаторов через PostgreSQL
type PostgresTenantRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresTenantRepository создает новый репозиторий арендаторов через PostgreSQL
func NewPostgresTenantRepository(pool *pgxpool.Pool, log *logger.Logger) *PostgresTenantRepository {
	return &PostgresTenantRepository{
		pool: pool,
		log:  log,
	}
}

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var tenant domain.Tenant
	var stripeCustomerID *string

	err := row.Scan(
		&tenant.ID,
		&tenant.Email,
		&stripeCustomerID,
		&tenant.SubscriptionTier,
		&tenant.SubscriptionStatus,
		&tenant.SubscriptionExpiresAt,
		&tenant.IsAdmin,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
		&tenant.LastLoginAt,
	)
	if err != nil {
		return domain.Tenant{}, err
	}

	if stripeCustomerID != nil {
		tenant.StripeCustomerID = *stripeCustomerID
	}

	return tenant, nil
}

// GetByID возвращает арендатора по ID из базы данных
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`

	tenant, err := scanTenant(querierFor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, ErrNotFound
		}
		return domain.Tenant{}, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// GetByEmail возвращает арендатора по email из базы данных
func (r *PostgresTenantRepository) GetByEmail(ctx context.Context, email string) (domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE email = $1`

	tenant, err := scanTenant(querierFor(ctx, r.pool).QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, ErrNotFound
		}
		return domain.Tenant{}, fmt.Errorf("failed to get tenant by email: %w", err)
	}

	return tenant, nil
}

// GetByStripeCustomerID возвращает арендатора по Stripe customer id
func (r *PostgresTenantRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE stripe_customer_id = $1`

	tenant, err := scanTenant(querierFor(ctx, r.pool).QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tenant{}, ErrNotFound
		}
		return domain.Tenant{}, fmt.Errorf("failed to get tenant by customer id: %w", err)
	}

	return tenant, nil
}

// Create создает нового арендатора в базе данных
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant domain.Tenant) (domain.Tenant, error) {
	query := `
		INSERT INTO tenants (
			id, email, stripe_customer_id,
			subscription_tier, subscription_status, subscription_expires_at,
			is_admin, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING id, created_at, updated_at
	`

	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}

	var stripeCustomerID *string
	if tenant.StripeCustomerID != "" {
		stripeCustomerID = &tenant.StripeCustomerID
	}

	now := time.Now()
	err := querierFor(ctx, r.pool).QueryRow(
		ctx,
		query,
		tenant.ID,
		tenant.Email,
		stripeCustomerID,
		tenant.SubscriptionTier,
		tenant.SubscriptionStatus,
		tenant.SubscriptionExpiresAt,
		tenant.IsAdmin,
		now,
		now,
	).Scan(
		&tenant.ID,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Tenant{}, ErrDuplicate
		}
		return domain.Tenant{}, fmt.Errorf("failed to create tenant: %w", err)
	}

	r.log.Debugw("Tenant created", "tenantID", tenant.ID, "email", tenant.Email)
	return tenant, nil
}

// Update обновляет существующего арендатора в базе данных
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant domain.Tenant) error {
	query := `
		UPDATE tenants SET
			email = $2,
			stripe_customer_id = $3,
			subscription_tier = $4,
			subscription_status = $5,
			subscription_expires_at = $6,
			is_admin = $7,
			last_login_at = $8,
			updated_at = $9
		WHERE id = $1
	`

	var stripeCustomerID *string
	if tenant.StripeCustomerID != "" {
		stripeCustomerID = &tenant.StripeCustomerID
	}

	tag, err := querierFor(ctx, r.pool).Exec(
		ctx,
		query,
		tenant.ID,
		tenant.Email,
		stripeCustomerID,
		tenant.SubscriptionTier,
		tenant.SubscriptionStatus,
		tenant.SubscriptionExpiresAt,
		tenant.IsAdmin,
		tenant.LastLoginAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
