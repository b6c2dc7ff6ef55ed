package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	CustomerCancelReason = "canceled by customer"
	maxReasonLen         = 200
)

// errNotEligible aborts an expiry whose order moved on since it was listed.
var errNotEligible = errors.New("order no longer eligible")

// Machine drives orders through pending, processing, done and canceled.
// Every transition locks the order row, validates the move against
// validNext, applies its side effects and commits before notifying.
type Machine struct {
	DB     postgres.TxBeginner
	Notify notify.Notifier
	Log    *zap.Logger
	Now    func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

type step struct {
	to    Status
	event string
	// check runs on the locked order before the transition table is consulted.
	check func(o *Order) error
	apply func(ctx context.Context, tx pgx.Tx, o *Order, at time.Time) error
}

// MarkPaid records payment of a pending order. amount defaults to the amount due.
func (m *Machine) MarkPaid(ctx context.Context, p auth.Principal, orderNo string, amount *decimal.Decimal) (*Order, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can confirm payment")
	}
	if amount != nil && amount.IsNegative() {
		return nil, apperr.Validation("amount paid must not be negative")
	}
	o, _, err := m.transition(ctx, `o.order_no=$1`, orderNo, step{
		to:    StatusProcessing,
		event: notify.EventOrderPaid,
		apply: func(ctx context.Context, tx pgx.Tx, o *Order, at time.Time) error {
			paid := o.AmountDue
			if amount != nil {
				paid = *amount
			}
			_, err := tx.Exec(ctx, `UPDATE orders SET status='processing', is_paid=true, paid_at=$2, amount_paid=$3 WHERE id=$1`,
				o.ID, at, paid)
			o.IsPaid, o.PaidAt, o.AmountPaid = true, &at, paid
			return err
		},
	})
	return o, err
}

// MarkUnpaid reverts a payment confirmation on an order that has not shipped.
func (m *Machine) MarkUnpaid(ctx context.Context, p auth.Principal, orderNo string) (*Order, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can revert payment")
	}
	o, _, err := m.transition(ctx, `o.order_no=$1`, orderNo, step{
		to:    StatusPending,
		event: notify.EventOrderUnpaid,
		check: func(o *Order) error {
			if o.ShippedAt != nil {
				return apperr.Validation("order %s has already shipped", o.OrderNo)
			}
			return nil
		},
		apply: func(ctx context.Context, tx pgx.Tx, o *Order, _ time.Time) error {
			_, err := tx.Exec(ctx, `UPDATE orders SET status='pending', is_paid=false, paid_at=NULL, amount_paid=0 WHERE id=$1`, o.ID)
			o.IsPaid, o.PaidAt, o.AmountPaid = false, nil, decimal.Zero
			return err
		},
	})
	return o, err
}

// Cancel cancels an order on behalf of p and restores its stock. Customers may
// cancel their own pending orders; administrators may cancel pending or
// processing orders and must give a reason. Cancelling an order that is
// already canceled changes nothing and reports changed=false.
func (m *Machine) Cancel(ctx context.Context, p auth.Principal, orderNo, reason string) (o *Order, changed bool, err error) {
	var check func(*Order) error
	switch p.Role {
	case auth.RoleCustomer:
		reason = CustomerCancelReason
		check = func(o *Order) error {
			if o.UserID != p.ID {
				return apperr.NotFound("order %s does not exist", orderNo)
			}
			if o.Status == StatusProcessing {
				return apperr.Validation("order %s is already paid, contact the shop to cancel it", orderNo)
			}
			return nil
		}
	case auth.RoleAdmin:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return nil, false, apperr.Validation("a cancel reason is required")
		}
	default:
		return nil, false, apperr.Forbidden("unknown principal %s", p)
	}
	return m.transition(ctx, `o.order_no=$1`, orderNo, cancelStep(reason, check))
}

// Expire cancels an unpaid pending order on behalf of the scheduler. It reports
// changed=false when the order was paid or canceled in the meantime.
func (m *Machine) Expire(ctx context.Context, orderID int64, reason string) (bool, error) {
	_, changed, err := m.transition(ctx, `o.id=$1`, orderID, cancelStep(reason, func(o *Order) error {
		if o.Status != StatusPending && o.Status != StatusCanceled {
			return errNotEligible
		}
		return nil
	}))
	if errors.Is(err, errNotEligible) {
		return false, nil
	}
	return changed, err
}

func cancelStep(reason string, check func(*Order) error) step {
	if r := []rune(reason); len(r) > maxReasonLen {
		reason = string(r[:maxReasonLen])
	}
	return step{
		to:    StatusCanceled,
		event: notify.EventOrderCanceled,
		check: check,
		apply: func(ctx context.Context, tx pgx.Tx, o *Order, at time.Time) error {
			if _, err := tx.Exec(ctx, `UPDATE orders SET status='canceled', canceled_at=$2, cancel_reason=$3 WHERE id=$1`,
				o.ID, at, reason); err != nil {
				return err
			}
			o.CanceledAt, o.CancelReason = &at, &reason
			return restoreStock(ctx, tx, o.ID)
		},
	}
}

func (m *Machine) transition(ctx context.Context, where string, key any, s step) (*Order, bool, error) {
	var (
		o       Order
		prev    Status
		changed bool
	)
	err := postgres.WithTx(ctx, m.DB, func(tx pgx.Tx) error {
		var err error
		o, err = scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+orderFrom+` WHERE `+where+` FOR UPDATE OF o`, key))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("order %v does not exist", key)
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if s.check != nil {
			if err := s.check(&o); err != nil {
				return err
			}
		}
		if s.to == StatusCanceled && o.Status == StatusCanceled {
			return nil
		}
		if o.Status.Terminal() {
			return apperr.Validation("order %s is already %s", o.OrderNo, o.Status)
		}
		if !CanTransition(o.Status, s.to) {
			return apperr.Validation("order %s is %s and cannot become %s", o.OrderNo, o.Status, s.to)
		}

		at := m.now()
		if err := s.apply(ctx, tx, &o, at); err != nil {
			return fmt.Errorf("apply %s: %w", s.to, err)
		}
		prev, o.Status, changed = o.Status, s.to, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if err := attachItems(ctx, m.DB, []*Order{&o}); err != nil {
		m.Log.Warn("load items after transition", zap.String("order_no", o.OrderNo), zap.Error(err))
	}
	if changed {
		m.Log.Info("order transition", zap.String("order_no", o.OrderNo),
			zap.String("from", string(prev)), zap.String("to", string(o.Status)))
		m.Notify.OrderEvent(ctx, orderEvent(s.event, &o, prev, m.now()))
	}
	return &o, changed, nil
}

// restoreStock puts every item's quantity back on its variant. Items whose
// variant was deleted are skipped.
func restoreStock(ctx context.Context, tx pgx.Tx, orderID int64) error {
	rows, err := tx.Query(ctx, `
		SELECT variant_id, SUM(qty) FROM order_items
		WHERE order_id = $1 AND variant_id IS NOT NULL
		GROUP BY variant_id ORDER BY variant_id`, orderID)
	if err != nil {
		return fmt.Errorf("sum order items: %w", err)
	}
	type back struct {
		variantID int64
		qty       int
	}
	var todo []back
	for rows.Next() {
		var b back
		if err := rows.Scan(&b.variantID, &b.qty); err != nil {
			rows.Close()
			return err
		}
		todo = append(todo, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, b := range todo {
		if _, err := catalog.AddStock(ctx, tx, b.variantID, b.qty); err != nil {
			return fmt.Errorf("restore variant %d: %w", b.variantID, err)
		}
	}
	return nil
}

func orderEvent(typ string, o *Order, prev Status, at time.Time) notify.OrderEvent {
	ev := notify.OrderEvent{
		Type:           typ,
		OrderNo:        o.OrderNo,
		UserID:         o.UserID,
		Email:          o.Email,
		Status:         string(o.Status),
		PreviousStatus: string(prev),
		AmountDue:      o.AmountDue.StringFixed(2),
		CancelReason:   str(o.CancelReason),
		TrackingNumber: str(o.TrackingNumber),
		At:             at,
	}
	if o.IsPaid {
		ev.AmountPaid = o.AmountPaid.StringFixed(2)
	}
	return ev
}
