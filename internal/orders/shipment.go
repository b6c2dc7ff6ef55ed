package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxTrackingLen = 100

// ShipmentFilter narrows the purchase lists. From and To are calendar days
// (inclusive) in the shop's time zone; zero values leave that side open.
type ShipmentFilter struct {
	From    time.Time
	To      time.Time
	Keyword string
}

// ShipmentGroup is the set of paid, unshipped orders one customer placed on
// one day, packed and shipped together.
type ShipmentGroup struct {
	Date      string          `json:"date"`
	UserID    int64           `json:"user_id"`
	Email     string          `json:"email"`
	Orders    []Order         `json:"orders"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

type Shipments struct {
	DB     postgres.TxBeginner
	Loc    *time.Location
	Notify notify.Notifier
	Log    *zap.Logger
	Now    func() time.Time
}

func (s *Shipments) loc() *time.Location {
	if s.Loc == nil {
		return time.UTC
	}
	return s.Loc
}

func (s *Shipments) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PendingShipments returns paid processing orders that have not shipped,
// grouped by creation day and customer.
func (s *Shipments) PendingShipments(ctx context.Context, f ShipmentFilter) ([]ShipmentGroup, error) {
	list, err := s.query(ctx, `o.is_paid AND o.status = 'processing' AND o.shipped_at IS NULL`, `o.created_at, o.id`, f)
	if err != nil {
		return nil, err
	}
	return groupShipments(list, s.loc()), nil
}

// ShippedOrders lists paid orders that already carry a tracking number, newest first.
func (s *Shipments) ShippedOrders(ctx context.Context, f ShipmentFilter) ([]Order, error) {
	return s.query(ctx, `o.is_paid AND o.shipped_at IS NOT NULL`, `o.shipped_at DESC, o.id DESC`, f)
}

func (s *Shipments) query(ctx context.Context, cond, orderBy string, f ShipmentFilter) ([]Order, error) {
	where := []string{cond}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.From.IsZero() {
		where = append(where, `o.created_at >= `+arg(startOfDay(f.From, s.loc())))
	}
	if !f.To.IsZero() {
		where = append(where, `o.created_at < `+arg(startOfDay(f.To, s.loc()).AddDate(0, 0, 1)))
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		p := arg(likePattern(kw))
		where = append(where, `(o.order_no ILIKE `+p+` OR u.email ILIKE `+p+`)`)
	}

	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+orderFrom+
		` WHERE `+strings.Join(where, " AND ")+` ORDER BY `+orderBy, args...)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	list, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	return list, attachItems(ctx, s.DB, ptrs(list))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a free-text keyword into a substring ILIKE pattern that
// matches wildcard characters literally.
func likePattern(kw string) string {
	return "%" + likeEscaper.Replace(kw) + "%"
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// groupShipments buckets orders by (creation day in loc, user). Groups are
// ordered by day then user id; orders keep their creation order.
func groupShipments(list []Order, loc *time.Location) []ShipmentGroup {
	type key struct {
		date string
		user int64
	}
	idx := map[key]int{}
	var out []ShipmentGroup
	for _, o := range list {
		k := key{date: o.CreatedAt.In(loc).Format("2006-01-02"), user: o.UserID}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, ShipmentGroup{Date: k.date, UserID: k.user, Email: o.Email, Total: decimal.Zero})
		}
		g := &out[i]
		g.Orders = append(g.Orders, o)
		g.ItemCount += o.ItemCount()
		g.Total = g.Total.Add(o.AmountDue)
	}
	for i := range out {
		sort.SliceStable(out[i].Orders, func(a, b int) bool {
			return out[i].Orders[a].CreatedAt.Before(out[i].Orders[b].CreatedAt)
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Date != out[b].Date {
			return out[a].Date < out[b].Date
		}
		return out[a].UserID < out[b].UserID
	})
	if out == nil {
		out = []ShipmentGroup{}
	}
	return out
}

// BulkShip marks every order in ids that is still paid, processing and
// unshipped as done with the given tracking number. Orders that no longer
// qualify are skipped. It returns the number of orders actually shipped.
func (s *Shipments) BulkShip(ctx context.Context, ids []int64, tracking string) (int, error) {
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return 0, apperr.Validation("tracking number is required")
	}
	if r := []rune(tracking); len(r) > maxTrackingLen {
		tracking = string(r[:maxTrackingLen])
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, apperr.Validation("no orders selected")
	}

	at := s.now()
	var shipped []Order
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			WITH shipped AS (
				UPDATE orders SET status = 'done', tracking_number = $2, shipped_at = $3, completed_at = $3
				WHERE id = ANY($1) AND is_paid AND status = 'processing' AND shipped_at IS NULL
				RETURNING *
			)
			SELECT `+orderColumns+` FROM shipped o LEFT JOIN users u ON u.id = o.user_id
			ORDER BY o.id`, ids, tracking, at)
		if err != nil {
			return fmt.Errorf("ship orders: %w", err)
		}
		shipped, err = collectOrders(rows)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.Log.Info("orders shipped", zap.String("tracking_number", tracking),
		zap.Int("requested", len(ids)), zap.Int("shipped", len(shipped)))
	for i := range shipped {
		s.Notify.OrderEvent(ctx, orderEvent(notify.EventOrderShipped, &shipped[i], StatusProcessing, at))
	}
	return len(shipped), nil
}
