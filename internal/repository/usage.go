package repository

import (
	"context"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/google/uuid"
)

// UsageStore определяет методы чтения текущего использования ресурсов.
// Использование всегда считается по таблицам-источникам и журналу событий,
// а не по отдельно поддерживаемому счетчику: частично откатившееся действие
// не может рассинхронизировать счет.
type UsageStore interface {
	// CountActiveAccounts возвращает число активных привязанных внешних
	// аккаунтов арендатора.
	CountActiveAccounts(ctx context.Context, tenantID uuid.UUID) (int, error)

	// CountActiveListings возвращает число объявлений арендатора в статусе active.
	CountActiveListings(ctx context.Context, tenantID uuid.UUID) (int, error)

	// CountUsageEvents возвращает число событий журнала заданного типа
	// начиная с указанного момента времени.
	CountUsageEvents(ctx context.Context, tenantID uuid.UUID, actionType string, since time.Time) (int, error)

	// RecordUsageEvent добавляет запись в журнал использования (append-only).
	RecordUsageEvent(ctx context.Context, event domain.UsageEvent) error
}
