package handlers

import (
	"errors"
	"net/http"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/entitlement"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/middleware"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/usage"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/req"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/res"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RecordUsageRequest тело запроса на фиксацию события использования.
type RecordUsageRequest struct {
	ActionType string         `json:"action_type" validate:"required"`
	ListingID  *uuid.UUID     `json:"listing_id,omitempty"`
	ActionData map[string]any `json:"action_data,omitempty"`
}

// ValidateBatchRequest тело запроса на проверку размера пакета.
type ValidateBatchRequest struct {
	Size int `json:"size" validate:"required"`
}

// EntitlementHandler обрабатывает запросы на проверку прав,
// использование ресурсов и доступность фич для текущего арендатора.
type EntitlementHandler struct {
	checker  *entitlement.Checker
	enforcer *entitlement.Enforcer
	resolver *entitlement.FeatureResolver
	counter  *usage.Counter
	catalog  *tiers.Catalog
	log      *logger.Logger
}

// NewEntitlementHandler создает новый экземпляр EntitlementHandler.
func NewEntitlementHandler(
	checker *entitlement.Checker,
	enforcer *entitlement.Enforcer,
	resolver *entitlement.FeatureResolver,
	counter *usage.Counter,
	catalog *tiers.Catalog,
	log *logger.Logger,
) *EntitlementHandler {
	return &EntitlementHandler{
		checker:  checker,
		enforcer: enforcer,
		resolver: resolver,
		counter:  counter,
		catalog:  catalog,
		log:      log,
	}
}

// GetUsage - обработчик GET /usage, сводка использования по всем ресурсам.
func (h *EntitlementHandler) GetUsage(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)
	if tenant == nil {
		h.respondDenied(c, domain.NewAuthRequiredError())
		return
	}

	summary, err := h.counter.Summary(c.Request.Context(), *tenant)
	if err != nil {
		if errors.Is(err, domain.ErrTierNotFound) {
			h.respondDenied(c, domain.NewInvalidTierError(tenant.SubscriptionTier))
			return
		}
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to load usage summary", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RecordUsage - обработчик POST /usage/events, фиксирует событие использования.
func (h *EntitlementHandler) RecordUsage(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)
	if tenant == nil {
		h.respondDenied(c, domain.NewAuthRequiredError())
		return
	}

	body, err := req.HandleBody[RecordUsageRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	event := domain.UsageEvent{
		TenantID:   tenant.ID,
		ActionType: body.ActionType,
		ListingID:  body.ListingID,
		ActionData: body.ActionData,
	}
	if err := h.counter.Record(c.Request.Context(), event); err != nil {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to record usage event", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recorded": true})
}

// CheckEntitlement - обработчик GET /entitlement, текущий тариф и лимиты.
func (h *EntitlementHandler) CheckEntitlement(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)

	result, err := h.checker.Check(tenant, c.DefaultQuery("tier", h.catalog.Lowest()))
	if err != nil {
		h.respondDenied(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entitled":     true,
		"tier":         result.Tier,
		"limits":       result.Limits,
		"admin_bypass": result.AdminBypass,
	})
}

// CheckFeature - обработчик GET /features/:key, доступность фичи на текущем тарифе.
func (h *EntitlementHandler) CheckFeature(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)
	featureKey := c.Param("key")

	if err := h.resolver.CheckFeature(tenant, featureKey); err != nil {
		h.respondDenied(c, err)
		return
	}

	tier := ""
	if tenant != nil {
		tier = tenant.SubscriptionTier
	}
	c.JSON(http.StatusOK, gin.H{
		"feature":   featureKey,
		"available": true,
		"value":     h.resolver.Resolve(tier, featureKey),
	})
}

// ValidateBatch - обработчик POST /batch/validate, проверка размера пакета
// против лимита тарифа. Размер пакета не накапливается между запросами.
func (h *EntitlementHandler) ValidateBatch(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)

	body, err := req.HandleBody[ValidateBatchRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	if err := h.enforcer.ValidateBatchSize(tenant, body.Size); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Batch size must be positive"}, http.StatusUnprocessableEntity)
			c.Abort()
			return
		}
		h.respondDenied(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": true, "size": body.Size})
}

func (h *EntitlementHandler) respondDenied(c *gin.Context, err error) {
	status, payload := entitlement.DenialResponse(err)
	res.JsonResponse(c.Writer, payload, status)
	c.Abort()
}
