package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Ключ метаданных для связи Stripe Customer с арендатором
	metadataTenantIDKey = "tenant_id"
)

// BillingClient определяет методы для взаимодействия со Stripe API.
type BillingClient interface {
	// GetOrCreateCustomer ищет клиента по tenantID, если не находит - создает нового.
	GetOrCreateCustomer(ctx context.Context, tenantID, email string) (string, error)

	// CreateCheckoutSession создает сессию оплаты подписки.
	// Возвращает URL, на который нужно перенаправить покупателя.
	CreateCheckoutSession(ctx context.Context, stripeCustomerID, priceID, successURL, cancelURL string) (string, error)

	// CreatePortalSession создает сессию биллинг-портала для управления подпиской.
	CreatePortalSession(ctx context.Context, stripeCustomerID, returnURL string) (string, error)

	// CancelAtPeriodEnd помечает подписку на отмену в конце оплаченного периода.
	CancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error

	// Reactivate снимает пометку об отмене с подписки.
	Reactivate(ctx context.Context, stripeSubscriptionID string) error
}

// billingClient реализует интерфейс BillingClient.
type billingClient struct {
	client *client.API
	log    *logger.Logger
}

// NewBillingClient создает новый экземпляр клиента Stripe.
func NewBillingClient(apiKey string, log *logger.Logger) BillingClient {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &billingClient{
		client: sc,
		log:    log,
	}
}

// GetOrCreateCustomer ищет клиента по tenantID в метаданных, если не находит - создает нового.
func (bc *billingClient) GetOrCreateCustomer(ctx context.Context, tenantID, email string) (string, error) {
	bc.log.Debugw("Searching for Stripe customer", "tenantID", tenantID)

	searchQuery := fmt.Sprintf("metadata['%s']:'%s'", metadataTenantIDKey, tenantID)
	searchParams := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   searchQuery,
			Limit:   stripe.Int64(1),
			Context: ctx,
		},
	}

	customers := bc.client.Customers.Search(searchParams)
	if customers.Next() {
		customer := customers.Customer()
		bc.log.Infow("Found existing Stripe customer", "stripeCustomerID", customer.ID, "tenantID", tenantID)
		return customer.ID, nil
	}

	if err := customers.Err(); err != nil {
		logStripeError(bc.log, "SearchCustomers", err)
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return "", fmt.Errorf("stripe: failed to search customer: %w", err)
		}
		bc.log.Warnw("Non-fatal error during customer search, proceeding to create", "error", err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			metadataTenantIDKey: tenantID,
		},
	}
	params.Context = ctx

	cus, err := bc.client.Customers.New(params)
	if err != nil {
		logStripeError(bc.log, "CreateCustomer", err)
		return "", fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	bc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "tenantID", tenantID)
	return cus.ID, nil
}

// CreateCheckoutSession создает сессию оплаты подписки в Stripe Checkout.
func (bc *billingClient) CreateCheckoutSession(ctx context.Context, stripeCustomerID, priceID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(stripeCustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx

	session, err := bc.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(bc.log, "CreateCheckoutSession", err)
		return "", fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	bc.log.Infow("Checkout session created", "sessionID", session.ID, "stripeCustomerID", stripeCustomerID, "priceID", priceID)
	return session.URL, nil
}

// CreatePortalSession создает сессию биллинг-портала Stripe.
func (bc *billingClient) CreatePortalSession(ctx context.Context, stripeCustomerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(stripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := bc.client.BillingPortalSessions.New(params)
	if err != nil {
		logStripeError(bc.log, "CreatePortalSession", err)
		return "", fmt.Errorf("stripe: failed to create portal session: %w", err)
	}

	bc.log.Infow("Billing portal session created", "stripeCustomerID", stripeCustomerID)
	return session.URL, nil
}

// CancelAtPeriodEnd помечает подписку на отмену в конце оплаченного периода.
// Доступ сохраняется до конца периода, событие отмены придет вебхуком.
func (bc *billingClient) CancelAtPeriodEnd(ctx context.Context, stripeSubscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	_, err := bc.client.Subscriptions.Update(stripeSubscriptionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			bc.log.Warnw("Attempted to cancel missing Stripe subscription", "stripeSubscriptionID", stripeSubscriptionID)
			return nil
		}
		logStripeError(bc.log, "CancelAtPeriodEnd", err)
		return fmt.Errorf("stripe: failed to cancel subscription: %w", err)
	}

	bc.log.Infow("Stripe subscription marked for cancellation", "stripeSubscriptionID", stripeSubscriptionID)
	return nil
}

// Reactivate снимает пометку об отмене с подписки.
func (bc *billingClient) Reactivate(ctx context.Context, stripeSubscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	params.Context = ctx

	_, err := bc.client.Subscriptions.Update(stripeSubscriptionID, params)
	if err != nil {
		logStripeError(bc.log, "Reactivate", err)
		return fmt.Errorf("stripe: failed to reactivate subscription: %w", err)
	}

	bc.log.Infow("Stripe subscription reactivated", "stripeSubscriptionID", stripeSubscriptionID)
	return nil
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
