package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/notification"
	"github.com/shop/backend/internal/infrastructure/config"
)

// KafkaSender publishes notifications to a Kafka topic where the
// messaging workers pick them up for email delivery
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaSender creates a Kafka-backed notification sender
func NewKafkaSender(cfg *config.KafkaConfig, logger *zap.Logger) (*KafkaSender, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaSender{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}, nil
}

// NewKafkaSenderWithProducer creates a sender with an existing producer, used in tests
func NewKafkaSenderWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic, logger: logger}
}

// Send publishes the notification keyed by customer so per-customer ordering holds
func (s *KafkaSender) Send(_ context.Context, n notification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(n.CustomerID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send notification message: %w", err)
	}

	s.logger.Debug("published notification",
		zap.String("kind", string(n.Kind)),
		zap.String("notification_id", n.ID.String()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close closes the underlying producer
func (s *KafkaSender) Close() error {
	return s.producer.Close()
}

// Ensure KafkaSender implements the sender port
var _ notification.Sender = (*KafkaSender)(nil)
