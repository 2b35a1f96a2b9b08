package entitlement

import (
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
)

// CheckResult результат успешной проверки доступа
type CheckResult struct {
	// Эффективный тариф, по которому разрешен доступ.
	// Для администратора это высший тариф каталога.
	Tier string

	// Лимиты эффективного тарифа
	Limits map[string]int

	// Доступ разрешен в обход проверок по роли администратора
	AdminBypass bool
}

// Checker проверяет право арендатора на доступ по требуемому тарифу.
// Проверки выполняются в фиксированном порядке, первая неуспешная
// определяет код отказа.
type Checker struct {
	catalog *tiers.Catalog
	log     *logger.Logger

	// Подменяется в тестах для проверки границы истечения
	now func() time.Time
}

// NewChecker создает новый Checker
func NewChecker(catalog *tiers.Catalog, log *logger.Logger) *Checker {
	return &Checker{
		catalog: catalog,
		log:     log,
		now:     time.Now,
	}
}

// Check проверяет, разрешен ли арендатору доступ к функциональности
// требуемого тарифа. nil означает неаутентифицированный запрос.
// При отказе возвращается *domain.EntitlementError.
func (c *Checker) Check(tenant *domain.Tenant, requiredTier string) (CheckResult, error) {
	if tenant == nil {
		return CheckResult{}, domain.NewAuthRequiredError()
	}

	// Администратор обходит проверки подписки целиком
	if tenant.IsAdmin {
		highest := c.catalog.Highest()
		limits, err := c.catalog.LimitsOf(highest)
		if err != nil {
			return CheckResult{}, domain.NewServerTierError(highest)
		}
		c.log.Debugw("Admin bypass", "tenantID", tenant.ID, "email", tenant.Email)
		return CheckResult{Tier: highest, Limits: limits, AdminBypass: true}, nil
	}

	if !tenant.SubscriptionStatus.IsEntitled() {
		return CheckResult{}, domain.NewSubscriptionRequiredError(tenant.SubscriptionStatus)
	}

	if tenant.SubscriptionExpiresAt != nil && tenant.SubscriptionExpiresAt.Before(c.now()) {
		return CheckResult{}, domain.NewSubscriptionExpiredError()
	}

	requiredIdx, err := c.catalog.HierarchyIndex(requiredTier)
	if err != nil {
		// Требуемый тариф задается кодом, его отсутствие в каталоге
		// означает ошибку конфигурации, а не проблему арендатора
		c.log.Errorw("Required tier not in catalog", "requiredTier", requiredTier)
		return CheckResult{}, domain.NewServerTierError(requiredTier)
	}

	currentName := c.catalog.Normalize(tenant.SubscriptionTier)
	currentIdx, err := c.catalog.HierarchyIndex(currentName)
	if err != nil {
		return CheckResult{}, domain.NewInvalidTierError(tenant.SubscriptionTier)
	}

	if currentIdx < requiredIdx {
		return CheckResult{}, domain.NewInsufficientTierError(currentName, c.catalog.Normalize(requiredTier))
	}

	limits, err := c.catalog.LimitsOf(currentName)
	if err != nil {
		return CheckResult{}, domain.NewInvalidTierError(tenant.SubscriptionTier)
	}

	return CheckResult{Tier: currentName, Limits: limits}, nil
}
