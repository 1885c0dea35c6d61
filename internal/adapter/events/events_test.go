package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	mu       sync.Mutex
	records  []*kgo.Record
	fail     error
	flushed  bool
	closed   bool
	ctxAlive []bool
}

func (f *fakeProducer) Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.ctxAlive = append(f.ctxAlive, ctx.Err() == nil)
	f.mu.Unlock()
	promise(r, f.fail)
}

func (f *fakeProducer) Flush(context.Context) error {
	f.flushed = true
	return nil
}

func (f *fakeProducer) Close() { f.closed = true }

func TestKafkaPublisher_Publish(t *testing.T) {
	fp := &fakeProducer{}
	pub := newKafkaPublisher(fp, "wallet-ledger.events", zerolog.Nop())

	walletID, txID := uuid.New(), uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.Publish(ctx,
		domain.NewEvent(domain.EventWalletCreated, walletID, now),
		domain.NewEvent(domain.EventTransactionCreated, txID, now),
	)

	require.Len(t, fp.records, 2)
	rec := fp.records[0]
	assert.Equal(t, "wallet-ledger.events", rec.Topic)
	assert.Equal(t, walletID.String(), string(rec.Key))
	assert.Equal(t, "event_type", rec.Headers[0].Key)
	assert.Equal(t, "wallet.created", string(rec.Headers[0].Value))
	assert.Equal(t, now, rec.Timestamp)

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, domain.EventWalletCreated, decoded.Type)
	assert.Equal(t, walletID, decoded.EntityID)

	assert.Equal(t, []bool{true, true}, fp.ctxAlive, "publishing must outlive the caller's context")
}

func TestKafkaPublisher_FailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	fp := &fakeProducer{fail: errors.New("broker down")}
	pub := newKafkaPublisher(fp, "events", zerolog.New(&buf))

	pub.Publish(context.Background(), domain.NewEvent(domain.EventQRRedeemed, uuid.New(), time.Now()))

	assert.Contains(t, buf.String(), "event publish failed")
	assert.Contains(t, buf.String(), "broker down")
}

func TestKafkaPublisher_Close(t *testing.T) {
	fp := &fakeProducer{}
	pub := newKafkaPublisher(fp, "events", zerolog.Nop())

	require.NoError(t, pub.Close(context.Background()))
	assert.True(t, fp.flushed)
	assert.True(t, fp.closed)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&buf))
	id := uuid.New()

	pub.Publish(context.Background(), domain.NewEvent(domain.EventEFTCompleted, id, time.Now()))

	assert.Contains(t, buf.String(), `"event_type":"eft.completed"`)
	assert.Contains(t, buf.String(), id.String())
	assert.NoError(t, pub.Close(context.Background()))
}
