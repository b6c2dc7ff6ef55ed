package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier receives events after their transaction committed. Implementations
// must not block the caller; delivery is best-effort.
type Notifier interface {
	OrderEvent(ctx context.Context, ev OrderEvent)
	StockEvent(ctx context.Context, ev StockEvent)
}

type nop struct{}

func (nop) OrderEvent(context.Context, OrderEvent) {}
func (nop) StockEvent(context.Context, StockEvent) {}

func Nop() Notifier { return nop{} }

type logNotifier struct{ log *zap.Logger }

// Log writes events to the logger only. Used when no broker is configured.
func Log(log *zap.Logger) Notifier { return logNotifier{log: log} }

func (n logNotifier) OrderEvent(_ context.Context, ev OrderEvent) {
	n.log.Info("order event",
		zap.String("type", ev.Type),
		zap.String("order_no", ev.OrderNo),
		zap.String("status", ev.Status),
		zap.Int64("user_id", ev.UserID))
}

func (n logNotifier) StockEvent(_ context.Context, ev StockEvent) {
	n.log.Info("stock event",
		zap.Int64("variant_id", ev.VariantID),
		zap.Int("quantity", ev.Quantity),
		zap.Int("stock_after", ev.StockAfter))
}
