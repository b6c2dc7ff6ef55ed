package notify

import (
	"context"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the subset of *kafka.Producer used here.
type Publisher interface {
	TryPublish(key, value []byte, headers ...kafkago.Header) bool
}

type KafkaNotifier struct {
	Orders  Publisher
	Stock   Publisher
	Service string
	Log     *zap.Logger
}

func (n *KafkaNotifier) OrderEvent(_ context.Context, ev OrderEvent) {
	n.publish(n.Orders, ev.Type, ev.OrderNo, ev)
}

func (n *KafkaNotifier) StockEvent(_ context.Context, ev StockEvent) {
	n.publish(n.Stock, EventStockReplenished, strconv.FormatInt(ev.VariantID, 10), ev)
}

func (n *KafkaNotifier) publish(p Publisher, eventType, key string, payload any) {
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: key,
		Payload:       kafkax.MustMarshal(payload),
	}
	ok := p.TryPublish([]byte(key), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if !ok {
		n.Log.Warn("notification dropped, producer inbox full",
			zap.String("event_type", eventType), zap.String("key", key))
	}
}
