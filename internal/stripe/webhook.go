package stripe

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

const (
	// Ограничение на размер тела запроса вебхука (Stripe рекомендует ~65kb)
	maxRequestBodySize = int64(65536)
)

// WebhookVerifier проверяет подпись вебхуков Stripe и преобразует
// события в доменные события биллинга
type WebhookVerifier struct {
	secret string
	log    *logger.Logger
}

// NewWebhookVerifier создает новый верификатор вебхуков
func NewWebhookVerifier(secret string, log *logger.Logger) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("stripe webhook secret is not configured")
	}
	return &WebhookVerifier{secret: secret, log: log}, nil
}

// VerifyRequest читает тело запроса, проверяет подпись и возвращает
// разобранное событие Stripe
func (v *WebhookVerifier) VerifyRequest(w http.ResponseWriter, r *http.Request) (stripe.Event, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	payload, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		return stripe.Event{}, fmt.Errorf("failed to read webhook body: %w", err)
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing Stripe-Signature header", domain.ErrWebhookValidationFailed)
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		v.log.Errorw("Webhook signature verification failed", "error", err)
		return stripe.Event{}, fmt.Errorf("%w: %v", domain.ErrWebhookValidationFailed, err)
	}

	return event, nil
}

// ToBillingEvent преобразует событие Stripe в доменное событие биллинга.
// false, если тип события системой не обрабатывается.
func ToBillingEvent(event stripe.Event, log *logger.Logger) (domain.BillingEvent, bool, error) {
	billingEvent := domain.BillingEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	switch billingEvent.Type {
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return domain.BillingEvent{}, false, fmt.Errorf("failed to parse subscription from event %s: %w", event.ID, err)
		}

		billingEvent.Subscription = domain.BillingSubscription{
			ID:                 sub.ID,
			Status:             string(sub.Status),
			CurrentPeriodStart: sub.CurrentPeriodStart,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd,
			CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		}
		if sub.Customer != nil {
			billingEvent.Subscription.CustomerID = sub.Customer.ID
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			billingEvent.Subscription.PriceID = sub.Items.Data[0].Price.ID
		}
		return billingEvent, true, nil

	case domain.EventPaymentSucceeded, domain.EventPaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return domain.BillingEvent{}, false, fmt.Errorf("failed to parse invoice from event %s: %w", event.ID, err)
		}
		if invoice.Subscription != nil {
			billingEvent.InvoiceSubscriptionID = invoice.Subscription.ID
		}
		return billingEvent, true, nil

	default:
		log.Debugw("Ignored webhook event type", "type", billingEvent.Type, "eventID", event.ID)
		return domain.BillingEvent{}, false, nil
	}
}
