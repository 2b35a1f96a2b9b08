package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/db"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Обе реализации журнала использования обязаны удовлетворять UsageStore.
var (
	_ repository.UsageStore = (*db.DBClient)(nil)
	_ repository.UsageStore = (*repository.InMemoryUsageStore)(nil)
)

func TestInMemoryUsageStore_RecordAndCount(t *testing.T) {
	store := repository.NewInMemoryUsageStore()
	ctx := context.Background()
	tenantID := uuid.New()

	since := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		err := store.RecordUsageEvent(ctx, domain.UsageEvent{
			ID:         uuid.New(),
			TenantID:   tenantID,
			ActionType: domain.ActionListingCreated,
			Timestamp:  time.Now(),
		})
		require.NoError(t, err)
	}

	count, err := store.CountUsageEvents(ctx, tenantID, domain.ActionListingCreated, since)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = store.CountUsageEvents(ctx, tenantID, domain.ActionAIGeneration, since)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	other, err := store.CountUsageEvents(ctx, uuid.New(), domain.ActionListingCreated, since)
	require.NoError(t, err)
	assert.Equal(t, 0, other)
}
