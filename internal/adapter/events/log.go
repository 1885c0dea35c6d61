package events

import (
	"context"

	"wallet-ledger/internal/core/domain"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log. Used when Kafka is disabled.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, events ...domain.Event) {
	for _, e := range events {
		p.log.Info().
			Str("event_type", string(e.Type)).
			Str("entity_id", e.EntityID.String()).
			Time("occurred_at", e.OccurredAt).
			Msg("event")
	}
}

// Close is a no-op.
func (p *LogPublisher) Close(context.Context) error { return nil }
