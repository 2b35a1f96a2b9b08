package handlers

import (
	"errors"
	"net/http"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/config"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/middleware"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/stripe"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/req"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/res"
	"github.com/gin-gonic/gin"
)

// CheckoutRequest тело запроса на создание сессии оплаты.
type CheckoutRequest struct {
	Tier string `json:"tier" validate:"required"`
}

// BillingHandler обрабатывает запросы управления подпиской:
// оплата, биллинг-портал, отмена и возобновление.
// Смена тарифа и статуса при этом приходит только через вебхуки,
// обработчики ниже не трогают поля подписки арендатора напрямую.
type BillingHandler struct {
	billing stripe.BillingClient
	tenants repository.TenantRepository
	subs    repository.SubscriptionRepository
	catalog *tiers.Catalog
	cfg     *config.Config
	log     *logger.Logger
}

// NewBillingHandler создает новый экземпляр BillingHandler.
func NewBillingHandler(
	billing stripe.BillingClient,
	tenants repository.TenantRepository,
	subs repository.SubscriptionRepository,
	catalog *tiers.Catalog,
	cfg *config.Config,
	log *logger.Logger,
) *BillingHandler {
	return &BillingHandler{
		billing: billing,
		tenants: tenants,
		subs:    subs,
		catalog: catalog,
		cfg:     cfg,
		log:     log,
	}
}

// CreateCheckout - обработчик POST /billing/checkout.
// Создает сессию оплаты Stripe для выбранного тарифа и возвращает URL.
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)
	if tenant == nil {
		respondAuthRequired(c)
		return
	}

	body, err := req.HandleBody[CheckoutRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	tier, err := h.catalog.Get(body.Tier)
	if err != nil {
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Error: "Unknown tier: " + body.Tier,
			Code:  string(domain.CodeInvalidTier),
		}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}
	if tier.StripePriceID == "" {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{
			Error: "Tier is not available for purchase",
			Code:  string(domain.CodeServerError),
		}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	customerID, err := h.ensureCustomer(c, tenant)
	if err != nil {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to prepare billing customer", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	url, err := h.billing.CreateCheckoutSession(c.Request.Context(), customerID, tier.StripePriceID, h.cfg.Stripe.SuccessURL, h.cfg.Stripe.CancelURL)
	if err != nil {
		h.log.Errorw("Failed to create checkout session", "error", err, "tenantID", tenant.ID)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to create checkout session", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "tier": tier.Name})
}

// CreatePortal - обработчик POST /billing/portal.
// Возвращает URL биллинг-портала Stripe для управления подпиской.
func (h *BillingHandler) CreatePortal(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)
	if tenant == nil {
		respondAuthRequired(c)
		return
	}
	if tenant.StripeCustomerID == "" {
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Error: "No billing account, start a subscription first",
			Code:  string(domain.CodeSubscriptionRequired),
		}, http.StatusForbidden)
		c.Abort()
		return
	}

	url, err := h.billing.CreatePortalSession(c.Request.Context(), tenant.StripeCustomerID, h.cfg.Stripe.ReturnURL)
	if err != nil {
		h.log.Errorw("Failed to create portal session", "error", err, "tenantID", tenant.ID)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to create portal session", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GetSubscription - обработчик GET /billing/subscription.
// Возвращает текущее состояние подписки арендатора.
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)
	if tenant == nil {
		respondAuthRequired(c)
		return
	}

	record, err := h.latestRecord(c, tenant)
	if err != nil {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to load subscription", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	payload := gin.H{
		"tier":       h.catalog.Normalize(tenant.SubscriptionTier),
		"status":     tenant.SubscriptionStatus,
		"expires_at": tenant.SubscriptionExpiresAt,
	}
	if record != nil {
		payload["subscription"] = record
	}
	c.JSON(http.StatusOK, payload)
}

// CancelSubscription - обработчик POST /billing/cancel.
// Помечает подписку на отмену в конце оплаченного периода. Доступ
// сохраняется до события deleted от Stripe.
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	h.togglePeriodEndCancel(c, true)
}

// ReactivateSubscription - обработчик POST /billing/reactivate.
// Снимает пометку об отмене, пока период не закончился.
func (h *BillingHandler) ReactivateSubscription(c *gin.Context) {
	h.togglePeriodEndCancel(c, false)
}

func (h *BillingHandler) togglePeriodEndCancel(c *gin.Context, cancel bool) {
	tenant := middleware.TenantFromGin(c)
	if tenant == nil {
		respondAuthRequired(c)
		return
	}

	record, err := h.latestRecord(c, tenant)
	if err != nil || record == nil {
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Error: "No subscription found",
			Code:  string(domain.CodeSubscriptionRequired),
		}, http.StatusForbidden)
		c.Abort()
		return
	}
	if record.Status == domain.SubscriptionStatusCanceled {
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Error: "Subscription is already canceled",
			Code:  string(domain.CodeSubscriptionRequired),
		}, http.StatusConflict)
		c.Abort()
		return
	}

	if cancel {
		err = h.billing.CancelAtPeriodEnd(c.Request.Context(), record.StripeSubscriptionID)
	} else {
		err = h.billing.Reactivate(c.Request.Context(), record.StripeSubscriptionID)
	}
	if err != nil {
		h.log.Errorw("Failed to update subscription cancellation", "error", err, "tenantID", tenant.ID, "cancel", cancel)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to update subscription", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	record.CancelAtPeriodEnd = cancel
	if err := h.subs.Update(c.Request.Context(), *record); err != nil {
		h.log.Errorw("Failed to persist cancellation flag", "error", err, "subscriptionID", record.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"cancel_at_period_end": cancel,
		"expires_at":           record.CurrentPeriodEnd,
	})
}

// ensureCustomer возвращает Stripe customer id арендатора,
// создавая клиента и сохраняя привязку при первом обращении.
func (h *BillingHandler) ensureCustomer(c *gin.Context, tenant *domain.Tenant) (string, error) {
	if tenant.StripeCustomerID != "" {
		return tenant.StripeCustomerID, nil
	}

	customerID, err := h.billing.GetOrCreateCustomer(c.Request.Context(), tenant.ID.String(), tenant.Email)
	if err != nil {
		return "", err
	}

	tenant.StripeCustomerID = customerID
	if err := h.tenants.Update(c.Request.Context(), *tenant); err != nil {
		return "", err
	}
	return customerID, nil
}

func (h *BillingHandler) latestRecord(c *gin.Context, tenant *domain.Tenant) (*domain.SubscriptionRecord, error) {
	record, err := h.subs.GetByTenantID(c.Request.Context(), tenant.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func respondAuthRequired(c *gin.Context) {
	err := domain.NewAuthRequiredError()
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error: err.Message,
		Code:  string(err.Code),
	}, err.StatusCode)
	c.Abort()
}
