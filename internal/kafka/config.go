package kafka

import (
	"github.com/IBM/sarama"
)

// Config конфигурация для Kafka
type Config struct {
	Brokers  []string
	Producer ProducerConfig
	Consumer ConsumerConfig
}

// ProducerConfig конфигурация для продюсера
type ProducerConfig struct {
	MaxMessageBytes  int
	Compression      sarama.CompressionCodec
	RequiredAcks     sarama.RequiredAcks
	FlushMaxMessages int
}

// ConsumerConfig конфигурация для консьюмера
type ConsumerConfig struct {
	Group              string
	InitialOffset      int64
	SessionTimeout     int
	HeartbeatInterval  int
	ReturnErrors       bool
	IsolationLevel     sarama.IsolationLevel
	EnableAutoCommit   bool
	AutoCommitInterval int
}

// NewConfig создает новую конфигурацию Kafka
func NewConfig(brokers []string) *Config {
	return &Config{
		Brokers: brokers,
		Producer: ProducerConfig{
			MaxMessageBytes:  1000000,
			Compression:      sarama.CompressionSnappy,
			RequiredAcks:     sarama.WaitForAll,
			FlushMaxMessages: 100,
		},
		Consumer: ConsumerConfig{
			Group:              "entitlement-service",
			InitialOffset:      sarama.OffsetNewest,
			SessionTimeout:     30000,
			HeartbeatInterval:  3000,
			ReturnErrors:       true,
			IsolationLevel:     sarama.ReadCommitted,
			EnableAutoCommit:   true,
			AutoCommitInterval: 1000,
		},
	}
}

// NewSaramaConfig создает новую конфигурацию Sarama
func NewSaramaConfig(cfg *Config) *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Version = sarama.V3_3_0_0

	saramaConfig.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	saramaConfig.Producer.Compression = cfg.Producer.Compression
	saramaConfig.Producer.RequiredAcks = cfg.Producer.RequiredAcks
	saramaConfig.Producer.Flush.MaxMessages = cfg.Producer.FlushMaxMessages
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	saramaConfig.Consumer.Offsets.Initial = cfg.Consumer.InitialOffset
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = cfg.Consumer.EnableAutoCommit
	saramaConfig.Consumer.IsolationLevel = cfg.Consumer.IsolationLevel
	saramaConfig.Consumer.Return.Errors = cfg.Consumer.ReturnErrors

	return saramaConfig
}
