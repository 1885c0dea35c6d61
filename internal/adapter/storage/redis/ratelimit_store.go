package redis

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// windowIncr bumps a fixed-window counter and arms its expiry on the first
// hit, in one round trip so a counter is never left without a TTL.
var windowIncr = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RateLimitStore counts API and webhook requests per caller in fixed windows.
type RateLimitStore struct {
	client goredis.UniversalClient
	now    func() time.Time
}

func NewRateLimitStore(client goredis.UniversalClient) *RateLimitStore {
	return &RateLimitStore{client: client, now: time.Now}
}

// Allow counts one request for key. Windows are aligned to multiples of
// window since the epoch, so ResetAt is the same for every caller.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	if window < time.Second {
		window = time.Second
	}
	span := int64(window / time.Second)
	slot := s.now().Unix() / span

	count, err := windowIncr.Run(ctx, s.client,
		[]string{fmt.Sprintf("wle:rl:%s:%d", key, slot)},
		(window + time.Second).Milliseconds(),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}

	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   (slot + 1) * span,
	}, nil
}
