package notify

import (
	"context"
	"errors"
	"testing"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	err  error
	sent []Mail
}

func (f *fakeSender) Send(_ context.Context, m Mail) error {
	f.sent = append(f.sent, m)
	return f.err
}

func envelopeMsg(eventType string, ev OrderEvent) kafkago.Message {
	env := Envelope{EventID: "e1", EventType: eventType, EventVersion: 1, Payload: kafkax.MustMarshal(ev)}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestComposeOrderMail(t *testing.T) {
	ev := OrderEvent{OrderNo: "42", Email: "a@example.com", AmountDue: "12.50",
		CancelReason: "unpaid for more than 24 hours, canceled automatically", TrackingNumber: "SF1"}

	m, ok := ComposeOrderMail(EventOrderCanceled, ev)
	require.True(t, ok)
	assert.Equal(t, "a@example.com", m.To)
	assert.Equal(t, "Order 42 canceled", m.Subject)
	assert.Contains(t, m.Body, "Reason: unpaid for more than 24 hours")

	m, ok = ComposeOrderMail(EventOrderShipped, ev)
	require.True(t, ok)
	assert.Contains(t, m.Body, "Tracking number: SF1")

	_, ok = ComposeOrderMail(EventOrderUnpaid, ev)
	assert.False(t, ok)

	ev.Email = ""
	_, ok = ComposeOrderMail(EventOrderCreated, ev)
	assert.False(t, ok)
}

func TestMailHandler_AlwaysCommits(t *testing.T) {
	s := &fakeSender{}
	h := &MailHandler{Sender: s, Log: zap.NewNop()}
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, envelopeMsg(EventOrderCreated, OrderEvent{OrderNo: "7", Email: "b@example.com", AmountDue: "3.00"})))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "Order 7 received", s.sent[0].Subject)

	require.NoError(t, h.Handle(ctx, kafkago.Message{Value: []byte("not json")}))

	s.err = errors.New("smtp down")
	require.NoError(t, h.Handle(ctx, envelopeMsg(EventOrderPaid, OrderEvent{OrderNo: "7", Email: "b@example.com"})))
	assert.Len(t, s.sent, 2)
}

func TestFormatMessage_UsesCRLF(t *testing.T) {
	b := string(formatMessage("shop@example.com", Mail{To: "a@example.com", Subject: "Hi", Body: "one\ntwo\n"}))
	assert.Contains(t, b, "Subject: Hi\r\n")
	assert.Contains(t, b, "\r\n\r\none\r\ntwo\r\n")
}
