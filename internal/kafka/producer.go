package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"

	"github.com/segmentio/kafka-go"
)

// Топики событий сервиса
const (
	TopicEntitlementChanged = "entitlement_changed"
	TopicUsageEvents        = "usage_events"
)

// EntitlementChangedMessage сообщение об изменении прав арендатора,
// публикуемое после применения события биллинга
type EntitlementChangedMessage struct {
	TenantID             uuid.UUID `json:"tenant_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
	Tier                 string    `json:"tier"`
	Status               string    `json:"status"`
	EventType            string    `json:"event_type"`
	OccurredAt           time.Time `json:"occurred_at"`
}

// Producer определяет интерфейс для публикации сообщений в Kafka.
type Producer interface {
	// PublishEntitlementChanged отправляет событие изменения прав.
	// Ключом сообщения служит subscription id: все события одной подписки
	// попадают в одну партицию и читаются по порядку.
	PublishEntitlementChanged(ctx context.Context, msg EntitlementChangedMessage) error
	// Close закрывает соединение продюсера Kafka.
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishEntitlementChanged преобразует событие в JSON и отправляет в Kafka.
func (k *kafkaProducer) PublishEntitlementChanged(ctx context.Context, msg EntitlementChangedMessage) error {
	messageKey := []byte(msg.StripeSubscriptionID)

	messageValue, err := json.Marshal(msg)
	if err != nil {
		k.log.Errorw("Failed to marshal entitlement change for Kafka",
			"error", err, "subscriptionID", msg.StripeSubscriptionID)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: TopicEntitlementChanged,
		Key:   messageKey,
		Value: messageValue,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err = k.writer.WriteMessages(writeCtx, message)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded",
				"error", err, "subscriptionID", msg.StripeSubscriptionID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka",
			"error", err, "subscriptionID", msg.StripeSubscriptionID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Infow("Published entitlement change to Kafka",
		"subscriptionID", msg.StripeSubscriptionID, "tier", msg.Tier, "status", msg.Status)
	return nil
}

// Close закрывает соединение Kafka Writer.
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer...")
	err := k.writer.Close()
	if err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer writer closed successfully")
	return nil
}
