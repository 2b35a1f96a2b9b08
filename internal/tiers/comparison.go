package tiers

import "strconv"

// TierComparison представление тарифа для страницы сравнения/прайсинга
type TierComparison struct {
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Price       float64          `json:"price"`
	Currency    string           `json:"currency"`
	Description string           `json:"description"`
	Features    []string         `json:"features"`
	Limits      ComparisonLimits `json:"limits"`
}

// ComparisonLimits лимиты тарифа в человекочитаемом виде
type ComparisonLimits struct {
	Accounts        string `json:"accounts"`
	MonthlyListings string `json:"monthly_listings"`
	ActiveListings  string `json:"active_listings"`
	BatchSize       string `json:"batch_size"`
}

// Comparison формирует сравнение тарифов для отображения
// (лендинг, таблица цен).
func (c *Catalog) Comparison() []TierComparison {
	out := make([]TierComparison, 0, len(c.hierarchy))
	for _, tier := range c.All() {
		out = append(out, TierComparison{
			Key:         tier.Name,
			Name:        tier.DisplayName,
			Price:       tier.Price,
			Currency:    tier.Currency,
			Description: tier.Description,
			Features:    tier.Highlights,
			Limits: ComparisonLimits{
				Accounts:        humanizeLimit(tier.Limits[LimitFacebookAccounts]),
				MonthlyListings: humanizeLimit(tier.Limits[LimitListingsPerMonth]),
				ActiveListings:  humanizeLimit(tier.Limits[LimitActiveListings]),
				BatchSize:       humanizeLimit(tier.Limits[LimitBatchSize]),
			},
		})
	}
	return out
}

func humanizeLimit(limit int) string {
	if limit == Unlimited {
		return "Unlimited"
	}
	return strconv.Itoa(limit)
}
