package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
)

// producer is the part of *kgo.Client the publisher uses.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaPublisher produces one JSON record per event, keyed by entity ID so
// events for one wallet, code or payment stay ordered within a partition.
type KafkaPublisher struct {
	client producer
	topic  string
	log    zerolog.Logger
}

// NewKafkaPublisher connects a franz-go client with kprom hooks attached.
func NewKafkaPublisher(cfg config.KafkaConfig, metrics *kprom.Metrics, log zerolog.Logger) (*KafkaPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.RecordDeliveryTimeout(30 * time.Second),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka event publisher ready")
	return newKafkaPublisher(client, cfg.Topic, log), nil
}

func newKafkaPublisher(client producer, topic string, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic, log: log}
}

// Publish hands events to the client without waiting for acknowledgement.
// Failures are logged and never reach the caller.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...domain.Event) {
	// the request context ends before the broker acks
	ctx = context.WithoutCancel(ctx)

	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			p.log.Warn().Err(err).Str("event_type", string(e.Type)).Msg("event encode failed")
			continue
		}

		rec := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(e.EntityID.String()),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.Type)},
			},
			Timestamp: e.OccurredAt,
		}

		evt := e
		p.client.Produce(ctx, rec, func(_ *kgo.Record, err error) {
			if err != nil {
				p.log.Warn().Err(err).
					Str("event_type", string(evt.Type)).
					Str("entity_id", evt.EntityID.String()).
					Msg("event publish failed")
			}
		})
	}
}

// Close flushes buffered records, bounded by ctx, and closes the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	defer p.client.Close()
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}
