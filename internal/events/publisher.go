// Package events publishes payment state transitions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/baharkarakas/pix-reconciler/internal/models"
)

const DefaultTopic = "pix.payment.transitioned"

// PaymentEvent is emitted once per terminal transition.
type PaymentEvent struct {
	EventID       string        `json:"event_id"`
	TransactionID string        `json:"transaction_id"`
	State         models.State  `json:"state"`
	Origin        models.Origin `json:"origin"`
	Amount        models.Money  `json:"amount"`
	Source        models.Source `json:"source"`
	Payer         *models.Party `json:"payer,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewPaymentEvent(t models.Transaction, src models.Source) PaymentEvent {
	at := t.UpdatedAt
	switch {
	case t.ConfirmedAt != nil:
		at = *t.ConfirmedAt
	case t.ExpiredAt != nil:
		at = *t.ExpiredAt
	}
	return PaymentEvent{
		EventID:       uuid.NewString(),
		TransactionID: t.ID,
		State:         t.State,
		Origin:        t.Origin,
		Amount:        t.Amount,
		Source:        src,
		Payer:         t.Payer,
		OccurredAt:    at,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev PaymentEvent) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *slog.Logger
}

func NewKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	return cfg
}

func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaPublisherFromProducer(producer, topic, log), nil
}

func NewKafkaPublisherFromProducer(p sarama.SyncProducer, topic string, log *slog.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: p, topic: topic, log: log.With("component", "events")}
}

// Publish keys messages by transaction id so one payment's events stay ordered on a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, ev PaymentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.TransactionID),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.TransactionID, err)
	}
	p.log.Debug("event published", "id", ev.TransactionID, "state", ev.State, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }

// Nop discards events; used when KAFKA_BROKERS is empty.
type Nop struct{}

func (Nop) Publish(context.Context, PaymentEvent) error { return nil }
func (Nop) Close() error { return nil }
