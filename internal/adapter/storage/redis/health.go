package redis

import (
	"context"

	"wallet-ledger/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// NewHealthCheck probes the shared client used for nonces, rate limits and
// webhook dedupe.
func NewHealthCheck(client goredis.UniversalClient) ports.Probe {
	return ports.Probe{
		Dependency: "redis",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
