package replenish

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Result struct {
	ProductID      int64  `json:"product_id"`
	VariantID      int64  `json:"variant_id"`
	VariantLocalID int    `json:"variant_local_id"`
	Quantity       int    `json:"quantity"`
	ProductTitle   string `json:"product_title"`
	VariantName    string `json:"variant_name"`
	StockAfter     int    `json:"stock_after"`
}

// Deduper remembers delivery keys so a retried report is applied once.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

type RedisDeduper struct {
	RDB redis.Cmdable
	TTL time.Duration
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = redisx.TTLDedup
	}
	return redisx.Claim(ctx, d.RDB, fmt.Sprintf(redisx.KeyDedupReplenish, key), "1", ttl)
}

func (d *RedisDeduper) Release(ctx context.Context, key string) {
	_ = d.RDB.Del(ctx, fmt.Sprintf(redisx.KeyDedupReplenish, key)).Err()
}

// Gateway applies stock-in reports from external devices. Reports without a
// delivery key are never deduplicated: each one is a separate increment.
type Gateway struct {
	DB     postgres.TxBeginner
	Key    string // empty rejects every request
	Dedup  Deduper
	Notify notify.Notifier
	Log    *zap.Logger
}

func (g *Gateway) Authorize(provided string) error {
	if g.Key == "" {
		return apperr.Auth("RFID_API_KEY is not configured, endpoint disabled")
	}
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(g.Key)) != 1 {
		return apperr.Auth("invalid API key")
	}
	return nil
}

// Ingest authorizes, parses and applies one command in a single transaction.
func (g *Gateway) Ingest(ctx context.Context, apiKey, raw, deliveryKey string) (*Result, error) {
	if err := g.Authorize(apiKey); err != nil {
		return nil, err
	}
	cmd, err := ParseCommand(raw)
	if err != nil {
		return nil, err
	}

	deliveryKey = strings.TrimSpace(deliveryKey)
	if deliveryKey != "" && g.Dedup != nil {
		ok, err := g.Dedup.Claim(ctx, deliveryKey)
		if err != nil {
			return nil, fmt.Errorf("claim delivery key: %w", err)
		}
		if !ok {
			return nil, apperr.Conflict("duplicate delivery %q", deliveryKey)
		}
	}

	res, err := g.apply(ctx, cmd)
	if err != nil {
		if deliveryKey != "" && g.Dedup != nil {
			g.Dedup.Release(ctx, deliveryKey)
		}
		return nil, err
	}

	g.Log.Info("stock replenished",
		zap.Int64("product_id", res.ProductID),
		zap.Int64("variant_id", res.VariantID),
		zap.Int("quantity", res.Quantity),
		zap.Int("stock_after", res.StockAfter))
	g.Notify.StockEvent(ctx, notify.StockEvent{
		ProductID:      res.ProductID,
		VariantID:      res.VariantID,
		VariantLocalID: res.VariantLocalID,
		Quantity:       res.Quantity,
		StockAfter:     res.StockAfter,
		At:             time.Now().UTC(),
	})
	return res, nil
}

func (g *Gateway) apply(ctx context.Context, cmd Command) (*Result, error) {
	res := &Result{ProductID: cmd.ProductID, Quantity: cmd.Quantity}
	err := postgres.WithTx(ctx, g.DB, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `SELECT title FROM products WHERE id=$1`, cmd.ProductID).Scan(&res.ProductTitle)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("product id=%d does not exist", cmd.ProductID)
		}
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}

		var v *catalog.Variant
		if cmd.ByLocalID {
			if v, err = catalog.LockVariantByLocalID(ctx, tx, cmd.ProductID, cmd.LocalID); err != nil {
				return err
			}
			if v == nil {
				return apperr.NotFound("product id=%d has no variant L:%d", cmd.ProductID, cmd.LocalID)
			}
		} else {
			if v, err = catalog.LockVariantByID(ctx, tx, cmd.VariantID); err != nil {
				return err
			}
			if v == nil {
				return apperr.NotFound("variant id=%d does not exist", cmd.VariantID)
			}
			if v.ProductID != cmd.ProductID {
				return apperr.Validation("variant id=%d does not belong to product id=%d", cmd.VariantID, cmd.ProductID)
			}
		}

		res.VariantID, res.VariantLocalID, res.VariantName = v.ID, v.LocalID, v.Name
		res.StockAfter, err = catalog.AddStock(ctx, tx, v.ID, cmd.Quantity)
		if err != nil {
			return fmt.Errorf("add stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
