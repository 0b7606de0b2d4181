package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"notification-events"`
}

// KafkaPublisher writes events as JSON messages keyed by event name.
type KafkaPublisher struct {
	w MessageWriter
}

// NewKafkaWriter returns a balanced async-off writer for cfg.
func NewKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}, nil
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, name string, payload Payload) error {
	body, err := json.Marshal(newEvent(name, payload))
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", name, err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(name), Value: body}); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
