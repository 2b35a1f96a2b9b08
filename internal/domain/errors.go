package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrTenantNotFound арендатор не найден
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrSubscriptionNotFound подписка не найдена
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrTierNotFound тариф не найден в каталоге
	ErrTierNotFound = errors.New("tier not found in catalog")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")

	// ErrWebhookValidationFailed не удалось проверить подпись вебхука
	ErrWebhookValidationFailed = errors.New("webhook validation failed")
)

// ErrorCode машиночитаемый код решения о доступе
type ErrorCode string

const (
	CodeAuthRequired         ErrorCode = "AUTH_REQUIRED"
	CodeSubscriptionRequired ErrorCode = "SUBSCRIPTION_REQUIRED"
	CodeSubscriptionExpired  ErrorCode = "SUBSCRIPTION_EXPIRED"
	CodeInvalidTier          ErrorCode = "INVALID_TIER"
	CodeInsufficientTier     ErrorCode = "INSUFFICIENT_TIER"
	CodeLimitReached         ErrorCode = "LIMIT_REACHED"
	CodeFeatureNotAvailable  ErrorCode = "FEATURE_NOT_AVAILABLE"
	CodeServerError          ErrorCode = "SERVER_ERROR"
)

// UpgradeURL страница тарифов для подсказок об апгрейде
const UpgradeURL = "/pricing"

// EntitlementError представляет отказ в доступе по подписке
type EntitlementError struct {
	Code          ErrorCode
	Message       string
	StatusCode    int // HTTP-эквивалент
	CurrentTier   string
	RequiredTier  string
	CurrentStatus SubscriptionStatus
	UpgradeURL    string
}

// Error реализует интерфейс error
func (e *EntitlementError) Error() string {
	return fmt.Sprintf("entitlement denied [%s]: %s", e.Code, e.Message)
}

// NewAuthRequiredError создает ошибку отсутствия аутентификации
func NewAuthRequiredError() *EntitlementError {
	return &EntitlementError{
		Code:       CodeAuthRequired,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}
}

// NewSubscriptionRequiredError создает ошибку отсутствия активной подписки
func NewSubscriptionRequiredError(status SubscriptionStatus) *EntitlementError {
	return &EntitlementError{
		Code:          CodeSubscriptionRequired,
		Message:       "Active subscription required",
		StatusCode:    http.StatusForbidden,
		CurrentStatus: status,
		UpgradeURL:    UpgradeURL,
	}
}

// NewSubscriptionExpiredError создает ошибку истекшей подписки
func NewSubscriptionExpiredError() *EntitlementError {
	return &EntitlementError{
		Code:       CodeSubscriptionExpired,
		Message:    "Subscription expired",
		StatusCode: http.StatusForbidden,
		UpgradeURL: UpgradeURL,
	}
}

// NewInvalidTierError создает ошибку нераспознанного тарифа арендатора
func NewInvalidTierError(tier string) *EntitlementError {
	return &EntitlementError{
		Code:        CodeInvalidTier,
		Message:     "Invalid subscription tier",
		StatusCode:  http.StatusForbidden,
		CurrentTier: tier,
	}
}

// NewInsufficientTierError создает ошибку недостаточного тарифа
func NewInsufficientTierError(current, required string) *EntitlementError {
	return &EntitlementError{
		Code:         CodeInsufficientTier,
		Message:      fmt.Sprintf("%s plan required", required),
		StatusCode:   http.StatusForbidden,
		CurrentTier:  current,
		RequiredTier: required,
		UpgradeURL:   UpgradeURL,
	}
}

// NewServerTierError создает ошибку конфигурации: требуемый тариф
// не существует в каталоге (баг вызывающей стороны)
func NewServerTierError(required string) *EntitlementError {
	return &EntitlementError{
		Code:         CodeServerError,
		Message:      "Invalid required tier",
		StatusCode:   http.StatusInternalServerError,
		RequiredTier: required,
	}
}

// LimitError представляет отказ по лимиту использования
type LimitError struct {
	Resource string
	Current  int
	Limit    int
	Tier     string
}

// Error реализует интерфейс error
func (e *LimitError) Error() string {
	return fmt.Sprintf("limit reached [%s]: %d of %d used on %s plan", e.Resource, e.Current, e.Limit, e.Tier)
}

// Code возвращает машиночитаемый код ошибки
func (e *LimitError) Code() ErrorCode { return CodeLimitReached }

// NewLimitError создает новую ошибку лимита
func NewLimitError(resource string, current, limit int, tier string) *LimitError {
	return &LimitError{
		Resource: resource,
		Current:  current,
		Limit:    limit,
		Tier:     tier,
	}
}

// FeatureError представляет отказ в доступе к фиче тарифа
type FeatureError struct {
	Feature      string
	CurrentTier  string
	RequiredTier string // пустая строка: фича не предлагается ни на одном тарифе
}

// Error реализует интерфейс error
func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %s not available on %s plan", e.Feature, e.CurrentTier)
}

// Code возвращает машиночитаемый код ошибки
func (e *FeatureError) Code() ErrorCode { return CodeFeatureNotAvailable }

// ReconciliationError представляет сбой обработки события биллинга,
// требующий повторной доставки (партнер перешлет событие заново)
type ReconciliationError struct {
	EventType string
	EventID   string
	Err       error
}

// Error реализует интерфейс error
func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed for %s (%s): %v", e.EventType, e.EventID, e.Err)
}

// Unwrap возвращает оригинальную ошибку
func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
