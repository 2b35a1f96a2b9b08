package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DBClient представляет клиент для работы с базой данных учета использования.
type DBClient struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewDBClient создает новый экземпляр DBClient.
func NewDBClient(dsn string, log *zap.Logger) (*DBClient, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Error("Failed to ping database", zap.Error(err))
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DBClient{db: db, log: log}, nil
}

// Close закрывает соединение с базой данных.
func (dc *DBClient) Close() error {
	err := dc.db.Close()
	if err != nil {
		dc.log.Error("Failed to close database connection", zap.Error(err))
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// CountActiveAccounts возвращает число подключенных маркетплейс-аккаунтов арендатора.
func (dc *DBClient) CountActiveAccounts(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM facebook_accounts
        WHERE tenant_id = $1 AND is_active = TRUE
    `
	var count int
	err := dc.db.QueryRowxContext(ctx, query, tenantID).Scan(&count)
	if err != nil {
		dc.log.Error("Failed to count active accounts", zap.Error(err), zap.String("tenant_id", tenantID.String()))
		return 0, fmt.Errorf("failed to count active accounts: %w", err)
	}
	return count, nil
}

// CountActiveListings возвращает число активных объявлений арендатора.
func (dc *DBClient) CountActiveListings(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM listings
        WHERE tenant_id = $1 AND status = 'active'
    `
	var count int
	err := dc.db.QueryRowxContext(ctx, query, tenantID).Scan(&count)
	if err != nil {
		dc.log.Error("Failed to count active listings", zap.Error(err), zap.String("tenant_id", tenantID.String()))
		return 0, fmt.Errorf("failed to count active listings: %w", err)
	}
	return count, nil
}

// CountUsageEvents возвращает число событий действия арендатора начиная с указанного момента.
func (dc *DBClient) CountUsageEvents(ctx context.Context, tenantID uuid.UUID, actionType string, since time.Time) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM usage_logs
        WHERE tenant_id = $1 AND action_type = $2 AND created_at >= $3
    `
	var count int
	err := dc.db.QueryRowxContext(ctx, query, tenantID, actionType, since).Scan(&count)
	if err != nil {
		dc.log.Error("Failed to count usage events", zap.Error(err),
			zap.String("tenant_id", tenantID.String()), zap.String("action_type", actionType))
		return 0, fmt.Errorf("failed to count usage events: %w", err)
	}
	return count, nil
}

// RecordUsageEvent сохраняет событие использования в журнал.
func (dc *DBClient) RecordUsageEvent(ctx context.Context, event domain.UsageEvent) error {
	query := `
        INSERT INTO usage_logs (id, tenant_id, action_type, listing_id, action_data, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var actionData []byte
	if event.ActionData != nil {
		data, err := json.Marshal(event.ActionData)
		if err != nil {
			return fmt.Errorf("failed to marshal action data: %w", err)
		}
		actionData = data
	}

	_, err := dc.db.ExecContext(ctx, query,
		event.ID, event.TenantID, event.ActionType,
		event.ListingID, actionData, event.Timestamp)
	if err != nil {
		dc.log.Error("Failed to record usage event", zap.Error(err),
			zap.String("tenant_id", event.TenantID.String()), zap.String("action_type", event.ActionType))
		return fmt.Errorf("failed to record usage event: %w", err)
	}
	dc.log.Debug("Usage event recorded",
		zap.String("tenant_id", event.TenantID.String()), zap.String("action_type", event.ActionType))
	return nil
}
