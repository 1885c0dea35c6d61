package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NonceStore remembers bank webhook delivery IDs. The stored value is the
// unix time the delivery was first seen, which helps when tracing replays
// with redis-cli.
type NonceStore struct {
	client goredis.UniversalClient
	now    func() time.Time
}

func NewNonceStore(client goredis.UniversalClient) *NonceStore {
	return &NonceStore{client: client, now: time.Now}
}

func nonceKey(scope, nonce string) string {
	return "wle:nonce:" + scope + ":" + nonce
}

// CheckAndSet claims nonce for ttl and reports whether this call was first.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	seen := strconv.FormatInt(s.now().Unix(), 10)
	claimed, err := s.client.SetNX(ctx, nonceKey(scope, nonce), seen, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim nonce %s/%s: %w", scope, nonce, err)
	}
	return claimed, nil
}

// Release drops a claim so the sender's retry is processed. Unknown nonces
// are ignored.
func (s *NonceStore) Release(ctx context.Context, scope string, nonce string) error {
	if err := s.client.Del(ctx, nonceKey(scope, nonce)).Err(); err != nil {
		return fmt.Errorf("release nonce %s/%s: %w", scope, nonce, err)
	}
	return nil
}
