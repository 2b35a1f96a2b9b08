package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	events []domain.UsageEvent
	err    error
}

func (h *recordingHandler) Record(_ context.Context, event domain.UsageEvent) error {
	if h.err != nil {
		return h.err
	}
	h.events = append(h.events, event)
	return nil
}

func newClaimHandler(handler UsageEventHandler) *usageClaimHandler {
	return &usageClaimHandler{handler: handler, log: logger.New(logger.ERROR)}
}

func TestHandleMessage_ValidEvent(t *testing.T) {
	rec := &recordingHandler{}
	h := newClaimHandler(rec)

	event := domain.UsageEvent{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		ActionType: domain.ActionListingCreated,
		Timestamp:  time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, h.handleMessage(context.Background(), payload))
	require.Len(t, rec.events, 1)
	assert.Equal(t, event.TenantID, rec.events[0].TenantID)
	assert.Equal(t, domain.ActionListingCreated, rec.events[0].ActionType)
}

func TestHandleMessage_InvalidJSON(t *testing.T) {
	rec := &recordingHandler{}
	h := newClaimHandler(rec)

	err := h.handleMessage(context.Background(), []byte("{not json"))
	require.ErrorIs(t, err, errMalformedMessage)
	assert.Empty(t, rec.events)
}

func TestHandleMessage_MissingTenantID(t *testing.T) {
	rec := &recordingHandler{}
	h := newClaimHandler(rec)

	payload, err := json.Marshal(domain.UsageEvent{ActionType: domain.ActionListingCreated})
	require.NoError(t, err)

	err = h.handleMessage(context.Background(), payload)
	require.ErrorIs(t, err, errMalformedMessage)
	assert.Empty(t, rec.events)
}

func TestHandleMessage_MissingActionType(t *testing.T) {
	rec := &recordingHandler{}
	h := newClaimHandler(rec)

	payload, err := json.Marshal(domain.UsageEvent{TenantID: uuid.New()})
	require.NoError(t, err)

	err = h.handleMessage(context.Background(), payload)
	require.ErrorIs(t, err, errMalformedMessage)
	assert.Empty(t, rec.events)
}

func TestHandleMessage_RecordFailureIsNotMalformed(t *testing.T) {
	rec := &recordingHandler{err: errors.New("db down")}
	h := newClaimHandler(rec)

	payload, err := json.Marshal(domain.UsageEvent{
		TenantID:   uuid.New(),
		ActionType: domain.ActionAIGeneration,
	})
	require.NoError(t, err)

	err = h.handleMessage(context.Background(), payload)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errMalformedMessage)
}
