package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTryPublish_DoesNotBlockWhenInboxFull(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "test.topic", 1, zap.NewNop())

	assert.True(t, p.TryPublish([]byte("k"), []byte("v1")))

	done := make(chan bool, 1)
	go func() { done <- p.TryPublish([]byte("k"), []byte("v2")) }()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("TryPublish blocked on a full inbox")
	}
}

func TestProducer_StopsOnContextCancel(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "test.topic", 4, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	select {
	case <-p.closeCh:
	case <-time.After(5 * time.Second):
		t.Fatal("producer loop did not exit")
	}
}

func TestTryPublish_AfterCloseIsRejected(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "test.topic", 4, zap.NewNop())
	p.Close()

	assert.NotPanics(t, func() {
		assert.False(t, p.TryPublish([]byte("k"), []byte("late")))
	})
	assert.NotPanics(t, p.Close)
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderNo string `json:"order_no"`
	}
	raw := json.RawMessage(MustMarshal(payload{OrderNo: "123"}))

	got, err := UnwrapPayload[payload](raw)
	require.NoError(t, err)
	assert.Equal(t, "123", got.OrderNo)

	_, err = UnwrapPayload[payload](json.RawMessage(`{`))
	assert.ErrorContains(t, err, "decode payload")
}
