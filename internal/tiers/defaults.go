package tiers

import "github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"

// defaultTiers возвращает стандартный каталог тарифов.
// Реальные Stripe price id подставляются из конфигурации через WithPriceIDs.
func defaultTiers() []Tier {
	return []Tier{
		{
			Name:          TierBasic,
			DisplayName:   "Basic",
			Price:         15.00,
			Currency:      "gbp",
			StripePriceID: "price_basic_monthly",
			Description:   "Perfect for small-scale sellers",
			Limits: map[string]int{
				LimitFacebookAccounts:  3,
				LimitListingsPerMonth:  100,
				LimitActiveListings:    50,
				LimitBatchSize:         1,
				LimitAPIRequestsPerMin: 10,
			},
			Features: map[string]domain.FeatureValue{
				domain.FeatureBatchOperations:       domain.BoolFeature(false),
				domain.FeatureTemplates:             domain.BoolFeature(false),
				domain.FeatureAI:                    domain.BoolFeature(false),
				domain.FeatureAnalytics:             domain.LevelFeature("basic"),
				domain.FeaturePrioritySupport:       domain.BoolFeature(false),
				domain.FeatureImageOptimization:     domain.BoolFeature(true),
				domain.FeatureLocationRandomization: domain.BoolFeature(false),
			},
			Highlights: []string{
				"Single listing creation",
				"Up to 3 Facebook accounts",
				"100 listings per month",
				"Basic analytics dashboard",
				"Image optimization",
				"Email support",
			},
		},
		{
			Name:          TierPro,
			DisplayName:   "Professional",
			Price:         30.00,
			Currency:      "gbp",
			StripePriceID: "price_pro_monthly",
			Description:   "For growing businesses",
			Limits: map[string]int{
				LimitFacebookAccounts:  10,
				LimitListingsPerMonth:  500,
				LimitActiveListings:    200,
				LimitBatchSize:         50,
				LimitAPIRequestsPerMin: 30,
			},
			Features: map[string]domain.FeatureValue{
				domain.FeatureBatchOperations:       domain.BoolFeature(true),
				domain.FeatureTemplates:             domain.BoolFeature(true),
				domain.FeatureAI:                    domain.BoolFeature(false),
				domain.FeatureAnalytics:             domain.LevelFeature("advanced"),
				domain.FeaturePrioritySupport:       domain.BoolFeature(false),
				domain.FeatureImageOptimization:     domain.BoolFeature(true),
				domain.FeatureLocationRandomization: domain.BoolFeature(true),
			},
			Highlights: []string{
				"All Basic features",
				"Batch create/delete/relist",
				"Up to 10 Facebook accounts",
				"500 listings per month",
				"Listing templates",
				"Advanced analytics",
				"Location randomization",
				"Activity logging",
			},
		},
		{
			Name:          TierPremium,
			DisplayName:   "Premium",
			Price:         50.00,
			Currency:      "gbp",
			StripePriceID: "price_premium_monthly",
			Description:   "For power users and agencies",
			Limits: map[string]int{
				LimitFacebookAccounts:  Unlimited,
				LimitListingsPerMonth:  Unlimited,
				LimitActiveListings:    Unlimited,
				LimitBatchSize:         100,
				LimitAPIRequestsPerMin: 60,
			},
			Features: map[string]domain.FeatureValue{
				domain.FeatureBatchOperations:       domain.BoolFeature(true),
				domain.FeatureTemplates:             domain.BoolFeature(true),
				domain.FeatureAI:                    domain.BoolFeature(true),
				domain.FeatureAnalytics:             domain.LevelFeature("premium"),
				domain.FeaturePrioritySupport:       domain.BoolFeature(true),
				domain.FeatureImageOptimization:     domain.BoolFeature(true),
				domain.FeatureLocationRandomization: domain.BoolFeature(true),
			},
			Highlights: []string{
				"All Pro features",
				"Unlimited Facebook accounts",
				"Unlimited listings",
				"AI title variations",
				"AI description generation",
				"Premium analytics",
				"Priority support",
				"Early access to new features",
			},
		},
	}
}
