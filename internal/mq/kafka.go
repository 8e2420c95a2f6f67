package mq

import (
	"context"
	"errors"
	"strings"

	"github.com/IBM/sarama"
	"github.com/arcadehub/apiserver/config"
)

// KafkaClient wraps a sarama producer and consumer group.
type KafkaClient struct {
	brokers  []string
	groupID  string
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
}

// NewKafkaClient constructs a Kafka client from config.
func NewKafkaClient(cfg config.KafkaConfig) (*KafkaClient, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	groupID := cfg.GroupID
	if groupID == "" {
		groupID = "arcadehub-consumer"
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, saramaConfig)
	if err != nil {
		_ = producer.Close()
		return nil, err
	}

	return &KafkaClient{
		brokers:  cfg.Brokers,
		groupID:  groupID,
		producer: producer,
		group:    group,
	}, nil
}

// Publish sends a message to the named topic.
func (k *KafkaClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("kafka channel is required")
	}

	headers := make([]sarama.RecordHeader, 0, len(attrs))
	for key, value := range attrs {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(key),
			Value: []byte(value),
		})
	}

	messageID := newMessageID()
	msg := &sarama.ProducerMessage{
		Topic:   channel,
		Key:     sarama.StringEncoder(messageID),
		Value:   sarama.ByteEncoder(data),
		Headers: headers,
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named topic until ctx is canceled.
func (k *KafkaClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("kafka channel is required")
	}

	groupHandler := &kafkaGroupHandler{handler: handler}
	for {
		if err := k.group.Consume(ctx, []string{channel}, groupHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close closes the producer and consumer group.
func (k *KafkaClient) Close() error {
	var closeErr error
	if err := k.producer.Close(); err != nil {
		closeErr = err
	}
	if err := k.group.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	return closeErr
}

type kafkaGroupHandler struct {
	handler Handler
}

func (h *kafkaGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *kafkaGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *kafkaGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			attrs := make(map[string]string, len(msg.Headers))
			for _, header := range msg.Headers {
				attrs[string(header.Key)] = string(header.Value)
			}
			message := Message{
				ID:         string(msg.Key),
				Data:       msg.Value,
				Attributes: attrs,
			}
			if err := h.handler(session.Context(), message); err != nil {
				// Leave the offset unmarked so the message is redelivered.
				continue
			}
			session.MarkMessage(msg, "")
		}
	}
}
