package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// WebhookDedupe implements ports.WebhookDedupe. It only short-circuits
// repeats; the database transition stays the source of truth.
type WebhookDedupe struct {
	client goredis.UniversalClient
	prefix string
}

// NewWebhookDedupe creates a Redis-backed webhook dedupe cache.
func NewWebhookDedupe(client goredis.UniversalClient) *WebhookDedupe {
	return &WebhookDedupe{
		client: client,
		prefix: "wle:eft:webhook:",
	}
}

// Resolved returns the status recorded for externalRef, if any.
func (d *WebhookDedupe) Resolved(ctx context.Context, externalRef string) (domain.EFTStatus, bool, error) {
	val, err := d.client.Get(ctx, d.prefix+externalRef).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis webhook dedupe get: %w", err)
	}
	return domain.EFTStatus(val), true, nil
}

// MarkResolved records that externalRef reached status.
func (d *WebhookDedupe) MarkResolved(ctx context.Context, externalRef string, status domain.EFTStatus, ttl time.Duration) error {
	if err := d.client.Set(ctx, d.prefix+externalRef, string(status), ttl).Err(); err != nil {
		return fmt.Errorf("redis webhook dedupe set: %w", err)
	}
	return nil
}
