package entitlement

import (
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
)

// FeatureResolver отвечает на вопрос, доступна ли фича на тарифе,
// и подсказывает низший тариф, на котором она появляется
type FeatureResolver struct {
	checker *Checker
	catalog *tiers.Catalog
	log     *logger.Logger
}

// NewFeatureResolver создает новый FeatureResolver
func NewFeatureResolver(checker *Checker, catalog *tiers.Catalog, log *logger.Logger) *FeatureResolver {
	return &FeatureResolver{
		checker: checker,
		catalog: catalog,
		log:     log,
	}
}

// Resolve возвращает значение фичи для тарифа.
// Неизвестный тариф или ключ дают нулевое значение (фича выключена).
func (r *FeatureResolver) Resolve(tierName, featureKey string) domain.FeatureValue {
	features, err := r.catalog.FeaturesOf(tierName)
	if err != nil {
		return domain.FeatureValue{}
	}
	return features[featureKey]
}

// RequiredTierFor возвращает низший тариф, предоставляющий фичу.
// false, если фича не предлагается ни на одном тарифе.
func (r *FeatureResolver) RequiredTierFor(featureKey string) (string, bool) {
	for _, name := range r.catalog.Hierarchy() {
		if r.catalog.HasFeature(name, featureKey) {
			return name, true
		}
	}
	return "", false
}

// CheckFeature проверяет доступ арендатора к фиче.
// При отказе возвращается *domain.FeatureError с подсказкой о тарифе,
// либо *domain.EntitlementError, если подписка сама по себе не дает доступа.
func (r *FeatureResolver) CheckFeature(tenant *domain.Tenant, featureKey string) error {
	result, err := r.checker.Check(tenant, r.catalog.Lowest())
	if err != nil {
		return err
	}
	if result.AdminBypass {
		return nil
	}

	if r.catalog.HasFeature(result.Tier, featureKey) {
		return nil
	}

	required, _ := r.RequiredTierFor(featureKey)
	r.log.Debugw("Feature not available",
		"tenantID", tenant.ID, "feature", featureKey,
		"currentTier", result.Tier, "requiredTier", required)
	return &domain.FeatureError{
		Feature:      featureKey,
		CurrentTier:  result.Tier,
		RequiredTier: required,
	}
}
