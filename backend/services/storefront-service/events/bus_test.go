package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSNS struct {
	types    []string
	messages [][]byte
	err      error
}

func (f *fakeSNS) PublishWithType(_ context.Context, _ string, eventType string, msg []byte) error {
	f.types = append(f.types, eventType)
	f.messages = append(f.messages, msg)
	return f.err
}

type fakeKafka struct {
	keys    []string
	headers []map[string]string
}

func (f *fakeKafka) Publish(_ context.Context, key, _ []byte, headers map[string]string) error {
	f.keys = append(f.keys, string(key))
	f.headers = append(f.headers, headers)
	return nil
}

func (f *fakeKafka) Close() error { return nil }

func TestBus_PublishesToBothSinks(t *testing.T) {
	sns := &fakeSNS{}
	k := &fakeKafka{}
	bus := NewBus(sns, "arn:events", k, zap.NewNop())

	bus.Publish(context.Background(), "order_created", "order-1", map[string]string{"order_id": "order-1"})

	require.Len(t, sns.types, 1)
	assert.Equal(t, "order_created", sns.types[0])
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(sns.messages[0]))
	assert.Equal(t, []string{"order-1"}, k.keys)
	assert.Equal(t, "order_created", k.headers[0]["event_type"])
}

func TestBus_SinkFailureIsLoggedNotRaised(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	k := &fakeKafka{}
	bus := NewBus(&fakeSNS{err: errors.New("throttled")}, "arn:events", k, zap.New(core))

	bus.Publish(context.Background(), "voucher_redeemed", "v-1", struct{}{})

	assert.Equal(t, 1, logs.FilterMessage("Failed to publish event to SNS").Len())
	assert.Len(t, k.keys, 1)
}

func TestBus_SkipsUnconfiguredSinks(t *testing.T) {
	bus := NewBus(nil, "", nil, zap.NewNop())
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), "order_created", "order-1", struct{}{})
	})
}
