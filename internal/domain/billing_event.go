package domain

// Типы событий биллинга, обрабатываемые системой
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventPaymentFailed       = "invoice.payment_failed"
)

// BillingEvent представляет событие биллинга от внешнего провайдера,
// уже прошедшее проверку подписи. Для событий customer.subscription.*
// заполняется Subscription; для событий invoice.* только
// InvoiceSubscriptionID (может быть пустым).
type BillingEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Subscription          BillingSubscription `json:"subscription"`
	InvoiceSubscriptionID string              `json:"invoice_subscription_id,omitempty"`
}

// BillingSubscription данные подписки из события биллинга
type BillingSubscription struct {
	ID                 string `json:"id"`       // внешний subscription id
	CustomerID         string `json:"customer"` // внешний customer id
	Status             string `json:"status"`
	PriceID            string `json:"price_id"`
	CurrentPeriodStart int64  `json:"current_period_start"` // epoch seconds
	CurrentPeriodEnd   int64  `json:"current_period_end"`   // epoch seconds
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}
