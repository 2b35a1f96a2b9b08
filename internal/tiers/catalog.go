package tiers

import (
	"fmt"
	"strings"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
)

// Названия тарифов в порядке иерархии
const (
	TierBasic   = "basic"
	TierPro     = "pro"
	TierPremium = "premium"

	// Устаревший алиас, нормализуется в basic на границе каталога
	legacyFreeAlias = "free"
)

// Ключи лимитов в каталоге
const (
	LimitFacebookAccounts  = "max_facebook_accounts"
	LimitListingsPerMonth  = "max_listings_per_month"
	LimitActiveListings    = "max_active_listings"
	LimitBatchSize         = "max_batch_size"
	LimitAPIRequestsPerMin = "api_requests_per_minute"

	// Unlimited значение лимита "без ограничений"
	Unlimited = -1
)

// Tier представляет собой тариф подписки. Неизменяем после создания каталога.
type Tier struct {
	Name          string                         `json:"name"`
	DisplayName   string                         `json:"display_name"`
	Price         float64                        `json:"price"`
	Currency      string                         `json:"currency"`
	StripePriceID string                         `json:"stripe_price_id"`
	Description   string                         `json:"description"`
	Limits        map[string]int                 `json:"limits"`
	Features      map[string]domain.FeatureValue `json:"features"`
	Highlights    []string                       `json:"highlights"`
}

// Catalog статический каталог тарифов с фиксированной иерархией
type Catalog struct {
	tiers     map[string]Tier
	hierarchy []string
	byPriceID map[string]string
}

// New создает каталог со стандартным набором тарифов basic < pro < premium
func New() *Catalog {
	return NewWithTiers(defaultTiers())
}

// NewWithTiers создает каталог из переданного упорядоченного списка тарифов
func NewWithTiers(ordered []Tier) *Catalog {
	c := &Catalog{
		tiers:     make(map[string]Tier, len(ordered)),
		hierarchy: make([]string, 0, len(ordered)),
		byPriceID: make(map[string]string, len(ordered)),
	}
	for _, t := range ordered {
		c.tiers[t.Name] = t
		c.hierarchy = append(c.hierarchy, t.Name)
		if t.StripePriceID != "" {
			c.byPriceID[t.StripePriceID] = t.Name
		}
	}
	return c
}

// WithPriceIDs возвращает копию каталога с переопределенными Stripe price id.
// Используется при загрузке реальных price id из конфигурации.
func (c *Catalog) WithPriceIDs(priceIDs map[string]string) *Catalog {
	ordered := make([]Tier, 0, len(c.hierarchy))
	for _, name := range c.hierarchy {
		t := c.tiers[name]
		if id, ok := priceIDs[name]; ok && id != "" {
			t.StripePriceID = id
		}
		ordered = append(ordered, t)
	}
	return NewWithTiers(ordered)
}

// Normalize приводит название тарифа к каноническому виду: нижний регистр,
// устаревший алиас free отображается на низший платный тариф.
// Применяется один раз на границе, а не в каждом вызывающем коде.
func (c *Catalog) Normalize(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == legacyFreeAlias {
		return c.Lowest()
	}
	return normalized
}

// Get возвращает тариф по названию. Неизвестный тариф это всегда ошибка,
// политику отката выбирает вызывающий код.
func (c *Catalog) Get(name string) (Tier, error) {
	tier, ok := c.tiers[c.Normalize(name)]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", domain.ErrTierNotFound, name)
	}
	return tier, nil
}

// LimitsOf возвращает лимиты тарифа
func (c *Catalog) LimitsOf(name string) (map[string]int, error) {
	tier, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	return tier.Limits, nil
}

// FeaturesOf возвращает фичи тарифа
func (c *Catalog) FeaturesOf(name string) (map[string]domain.FeatureValue, error) {
	tier, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	return tier.Features, nil
}

// HasFeature проверяет, дает ли тариф доступ к фиче.
// Для неизвестного тарифа или отсутствующего ключа возвращает false.
func (c *Catalog) HasFeature(name, featureKey string) bool {
	tier, err := c.Get(name)
	if err != nil {
		return false
	}
	value, ok := tier.Features[featureKey]
	if !ok {
		return false
	}
	return value.Granted()
}

// HierarchyIndex возвращает позицию тарифа в иерархии (0 для низшего)
func (c *Catalog) HierarchyIndex(name string) (int, error) {
	normalized := c.Normalize(name)
	for i, tierName := range c.hierarchy {
		if tierName == normalized {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrTierNotFound, name)
}

// CanUpgrade проверяет, является ли переход повышением тарифа
func (c *Catalog) CanUpgrade(from, to string) bool {
	fromIdx, err := c.HierarchyIndex(from)
	if err != nil {
		return false
	}
	toIdx, err := c.HierarchyIndex(to)
	if err != nil {
		return false
	}
	return toIdx > fromIdx
}

// CanDowngrade проверяет, является ли переход понижением тарифа
func (c *Catalog) CanDowngrade(from, to string) bool {
	fromIdx, err := c.HierarchyIndex(from)
	if err != nil {
		return false
	}
	toIdx, err := c.HierarchyIndex(to)
	if err != nil {
		return false
	}
	return toIdx < fromIdx
}

// TierFromPriceID отображает внешний Stripe price id на название тарифа
func (c *Catalog) TierFromPriceID(priceID string) (string, bool) {
	name, ok := c.byPriceID[priceID]
	return name, ok
}

// Hierarchy возвращает названия тарифов от низшего к высшему
func (c *Catalog) Hierarchy() []string {
	out := make([]string, len(c.hierarchy))
	copy(out, c.hierarchy)
	return out
}

// Lowest возвращает низший тариф каталога
func (c *Catalog) Lowest() string {
	return c.hierarchy[0]
}

// Highest возвращает высший тариф каталога
func (c *Catalog) Highest() string {
	return c.hierarchy[len(c.hierarchy)-1]
}

// All возвращает все тарифы от низшего к высшему
func (c *Catalog) All() []Tier {
	out := make([]Tier, 0, len(c.hierarchy))
	for _, name := range c.hierarchy {
		out = append(out, c.tiers[name])
	}
	return out
}
