package domain

import (
	"time"

	"github.com/google/uuid"
)

// Типы лимитируемых ресурсов
const (
	ResourceFacebookAccounts = "facebook_accounts"
	ResourceActiveListings   = "active_listings"
	ResourceListingsPerMonth = "listings_per_month"
	ResourceBatchSize        = "batch_size"
)

// Типы действий, записываемых в журнал использования
const (
	ActionListingCreated = "listing_created"
	ActionListingDeleted = "listing_deleted"
	ActionListingRelist  = "listing_relisted"
	ActionAIGeneration   = "ai_generation"
)

// UsageEvent представляет запись журнала использования (append-only).
// Записи никогда не изменяются и не удаляются: текущее использование
// всегда вычисляется запросом по журналу и таблицам текущего состояния,
// а не инкрементальным счетчиком.
type UsageEvent struct {
	ID         uuid.UUID      `json:"id"`
	TenantID   uuid.UUID      `json:"tenant_id"`
	ActionType string         `json:"action_type"`
	ListingID  *uuid.UUID     `json:"listing_id,omitempty"`
	ActionData map[string]any `json:"action_data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ResourceUsage текущее использование одного ресурса относительно лимита
type ResourceUsage struct {
	Resource   string  `json:"resource"`
	Current    int     `json:"current"`
	Limit      int     `json:"limit"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage"`
	Unlimited  bool    `json:"unlimited"`
}

// UsageSummary сводка использования арендатора по всем лимитируемым ресурсам
type UsageSummary struct {
	Tier            string                  `json:"tier"`
	Accounts        ResourceUsage           `json:"accounts"`
	ActiveListings  ResourceUsage           `json:"active_listings"`
	MonthlyListings ResourceUsage           `json:"monthly_listings"`
	Features        map[string]FeatureValue `json:"features"`
}
