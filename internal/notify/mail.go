package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Mail is one plain-text message.
type Mail struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, m Mail) error
}

// ComposeOrderMail returns the customer email for an order event, or false
// when the event has no recipient or is not mailed.
func ComposeOrderMail(eventType string, ev OrderEvent) (Mail, bool) {
	if ev.Email == "" {
		return Mail{}, false
	}
	m := Mail{To: ev.Email}
	var b strings.Builder
	switch eventType {
	case EventOrderCreated:
		m.Subject = fmt.Sprintf("Order %s received", ev.OrderNo)
		fmt.Fprintf(&b, "We received your order %s.\nAmount due: %s\n", ev.OrderNo, ev.AmountDue)
	case EventOrderPaid:
		m.Subject = fmt.Sprintf("Payment confirmed for order %s", ev.OrderNo)
		fmt.Fprintf(&b, "Your payment of %s for order %s was confirmed.\n", ev.AmountPaid, ev.OrderNo)
	case EventOrderCanceled:
		m.Subject = fmt.Sprintf("Order %s canceled", ev.OrderNo)
		fmt.Fprintf(&b, "Your order %s was canceled.\n", ev.OrderNo)
		if ev.CancelReason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", ev.CancelReason)
		}
	case EventOrderShipped:
		m.Subject = fmt.Sprintf("Order %s shipped", ev.OrderNo)
		fmt.Fprintf(&b, "Your order %s is on its way.\nTracking number: %s\n", ev.OrderNo, ev.TrackingNumber)
	default:
		return Mail{}, false
	}
	m.Body = b.String()
	return m, true
}

// MailHandler consumes order events and mails the customer. Delivery is best
// effort: undecodable messages and send failures are logged and committed.
type MailHandler struct {
	Sender Sender
	Log    *zap.Logger
}

func (h *MailHandler) Handle(ctx context.Context, msg kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.Log.Warn("skip undecodable envelope", zap.Error(err), zap.Int64("offset", msg.Offset))
		return nil
	}
	ev, err := kafkax.UnwrapPayload[OrderEvent](env.Payload)
	if err != nil {
		h.Log.Warn("skip undecodable order event", zap.Error(err), zap.String("event_id", env.EventID))
		return nil
	}
	m, ok := ComposeOrderMail(env.EventType, ev)
	if !ok {
		return nil
	}
	if err := h.Sender.Send(ctx, m); err != nil {
		h.Log.Error("send order mail failed", zap.Error(err),
			zap.String("event_type", env.EventType), zap.String("order_no", ev.OrderNo))
		return nil
	}
	h.Log.Info("order mail sent", zap.String("event_type", env.EventType), zap.String("order_no", ev.OrderNo))
	return nil
}

// SMTPSender delivers over implicit TLS, the usual setup on port 465.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (s *SMTPSender) Send(ctx context.Context, m Mail) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	d := tls.Dialer{Config: &tls.Config{ServerName: s.Host}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.User, s.Password, s.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.From); err != nil {
		return err
	}
	if err := c.Rcpt(m.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(formatMessage(s.From, m)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func formatMessage(from string, m Mail) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, m.To, m.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}
