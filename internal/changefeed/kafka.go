package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/logging"
	"github.com/segmentio/kafka-go"
)

func init() {
	RegisterFactory(&kafkaFactory{})
}

type kafkaFactory struct{}

func (f *kafkaFactory) Type() string { return "kafka" }

func (f *kafkaFactory) Validate(config Config) error {
	if len(config.Brokers) == 0 {
		return errors.New("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return errors.New("Kafka topic is required")
	}
	switch config.RequiredAcks {
	case 0, 1, -1:
	default:
		return fmt.Errorf("required acks must be 0, 1 or -1, got %d", config.RequiredAcks)
	}
	return nil
}

func (f *kafkaFactory) Create(_ context.Context, config Config) (core.ChangePublisher, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}

	logging.For("changefeed").Info("kafka publisher initialized",
		"brokers", config.Brokers, "topic", config.Topic, "required_acks", config.RequiredAcks)
	return NewKafkaPublisher(writer, config.Topic), nil
}

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher produces one message per event. The table name is the
// message key, so a table's events stay ordered within one partition.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	mu     sync.RWMutex
	closed bool
}

// NewKafkaPublisher creates a publisher over writer.
func NewKafkaPublisher(writer MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Message builds the Kafka message for an event.
func Message(event *core.ChangeEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal change event: %w", err)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Key:   []byte(event.Table),
		Value: data,
		Time:  ts,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
			{Key: "table", Value: []byte(event.Table)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}, nil
}

// Publish writes the event synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, event *core.ChangeEvent) error {
	if err := checkEvent(event); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msg, err := Message(event)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka topic %s: %w", p.topic, err)
	}

	logging.For("changefeed").Debug("event produced to kafka",
		"id", event.ID, "topic", p.topic, "table", event.Table, "duration", time.Since(start))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
