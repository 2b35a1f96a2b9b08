package handlers

import (
	"errors"
	"net/http"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/metrics"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/reconcile"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/stripe"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/res"
	"github.com/gin-gonic/gin"
)

// WebhookHandler обрабатывает входящие вебхуки биллинга от Stripe.
type WebhookHandler struct {
	verifier   *stripe.WebhookVerifier
	reconciler *reconcile.Reconciler
	metrics    metrics.WebhookMetrics
	log        *logger.Logger
}

// NewWebhookHandler создает новый экземпляр WebhookHandler.
func NewWebhookHandler(verifier *stripe.WebhookVerifier, reconciler *reconcile.Reconciler, webhookMetrics metrics.WebhookMetrics, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		metrics:    webhookMetrics,
		log:        log,
	}
}

// HandleStripeWebhook - обработчик для Gin, принимающий вебхуки Stripe.
// Неуспешный статус ответа заставляет Stripe доставить событие повторно,
// поэтому 5xx возвращается только при сбое записи. События, которые
// системе не о чем говорят (неизвестный клиент, необрабатываемый тип),
// подтверждаются как полученные.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	event, err := h.verifier.VerifyRequest(c.Writer, c.Request)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookValidationFailed) {
			h.metrics.IncSignatureFailure()
		}
		h.log.Warnw("Webhook verification failed", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Webhook verification failed"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	billingEvent, handled, err := stripe.ToBillingEvent(event, h.log)
	if err != nil {
		h.log.Errorw("Failed to parse webhook event", "error", err, "eventID", event.ID)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Failed to parse webhook event"}, http.StatusBadRequest)
		c.Abort()
		return
	}
	if !handled {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	result, err := h.reconciler.Apply(c.Request.Context(), billingEvent)
	if err != nil {
		h.log.Errorw("Failed to apply billing event",
			"error", err, "eventID", billingEvent.ID, "type", billingEvent.Type)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Failed to apply billing event"}, http.StatusInternalServerError)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"outcome":  string(result.Outcome),
	})
}
