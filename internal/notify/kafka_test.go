package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	full bool
	keys []string
	msgs [][]byte
	hdrs [][]kafkago.Header
}

func (r *recordingPublisher) TryPublish(key, value []byte, headers ...kafkago.Header) bool {
	if r.full {
		return false
	}
	r.keys = append(r.keys, string(key))
	r.msgs = append(r.msgs, value)
	r.hdrs = append(r.hdrs, headers)
	return true
}

func TestKafkaNotifier_OrderEventEnvelope(t *testing.T) {
	orders := &recordingPublisher{}
	n := &KafkaNotifier{Orders: orders, Stock: &recordingPublisher{}, Service: "storefront-api", Log: zap.NewNop()}

	n.OrderEvent(context.Background(), OrderEvent{
		Type: EventOrderShipped, OrderNo: "1790000000000000001", UserID: 7,
		Status: "done", TrackingNumber: "SF123", At: time.Now(),
	})

	require.Len(t, orders.msgs, 1)
	assert.Equal(t, "1790000000000000001", orders.keys[0])

	var env Envelope
	require.NoError(t, json.Unmarshal(orders.msgs[0], &env))
	assert.Equal(t, EventOrderShipped, env.EventType)
	assert.Equal(t, "storefront-api", env.Producer)
	assert.Equal(t, 1, env.EventVersion)
	assert.NotEmpty(t, env.EventID)

	p, err := kafkax.UnwrapPayload[OrderEvent](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "SF123", p.TrackingNumber)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, "x-event-type", orders.hdrs[0][0].Key)
	assert.Equal(t, EventOrderShipped, string(orders.hdrs[0][0].Value))
}

func TestKafkaNotifier_StockEventKeyedByVariant(t *testing.T) {
	stock := &recordingPublisher{}
	n := &KafkaNotifier{Orders: &recordingPublisher{}, Stock: stock, Service: "svc", Log: zap.NewNop()}

	n.StockEvent(context.Background(), StockEvent{ProductID: 3, VariantID: 12, Quantity: 10, StockAfter: 15})

	require.Len(t, stock.keys, 1)
	assert.Equal(t, "12", stock.keys[0])
}

func TestKafkaNotifier_FullInboxIsLoggedNotBlocking(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := &KafkaNotifier{Orders: &recordingPublisher{full: true}, Stock: &recordingPublisher{}, Service: "svc", Log: zap.New(core)}

	n.OrderEvent(context.Background(), OrderEvent{Type: EventOrderCanceled, OrderNo: "1"})

	assert.Equal(t, 1, logs.FilterMessage("notification dropped, producer inbox full").Len())
}
