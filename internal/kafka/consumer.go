package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/google/uuid"
)

// UsageEventHandler принимает событие использования из топика.
// Реализуется счетчиком использования.
type UsageEventHandler interface {
	Record(ctx context.Context, event domain.UsageEvent) error
}

// UsageEventConsumer читает события использования, которые публикуют
// внешние обработчики действий, и записывает их в журнал использования.
type UsageEventConsumer struct {
	group  sarama.ConsumerGroup
	claims *usageClaimHandler
	log    *logger.Logger
}

// NewUsageEventConsumer создает консьюмер событий использования поверх
// consumer group Sarama.
func NewUsageEventConsumer(cfg *Config, handler UsageEventHandler, log *logger.Logger) (*UsageEventConsumer, error) {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.Consumer.Group, NewSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &UsageEventConsumer{
		group:  group,
		claims: &usageClaimHandler{handler: handler, log: log},
		log:    log,
	}, nil
}

// Start запускает цикл потребления в фоне. Останавливается отменой контекста.
func (c *UsageEventConsumer) Start(ctx context.Context) {
	go func() {
		for {
			if err := c.group.Consume(ctx, []string{TopicUsageEvents}, c.claims); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.log.Errorw("Kafka consume cycle failed", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			c.log.Errorw("Kafka consumer error", "error", err)
		}
	}()
}

// Close останавливает консьюмер
func (c *UsageEventConsumer) Close() error {
	return c.group.Close()
}

// usageClaimHandler реализует sarama.ConsumerGroupHandler
type usageClaimHandler struct {
	handler UsageEventHandler
	log     *logger.Logger
}

func (h *usageClaimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *usageClaimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *usageClaimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.handleMessage(session.Context(), msg.Value); err != nil {
			if errors.Is(err, errMalformedMessage) {
				// Битое сообщение подтверждается, иначе партиция встанет
				h.log.Warnw("Skipping malformed usage event", "error", err, "offset", msg.Offset)
				session.MarkMessage(msg, "")
				continue
			}
			// Сбой записи: оффсет не подтверждается, событие придет повторно
			h.log.Errorw("Failed to record usage event from Kafka", "error", err, "offset", msg.Offset)
			continue
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

var errMalformedMessage = errors.New("malformed usage event message")

func (h *usageClaimHandler) handleMessage(ctx context.Context, value []byte) error {
	var event domain.UsageEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	if event.TenantID == uuid.Nil || event.ActionType == "" {
		return fmt.Errorf("%w: missing tenant id or action type", errMalformedMessage)
	}
	return h.handler.Record(ctx, event)
}
