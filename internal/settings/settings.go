package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	KeyAutoCancelEnabled = "auto_cancel_enabled"
	KeyAutoCancelHours   = "auto_cancel_hours"

	maxAutoCancelHours = 24 * 30
)

// OrderRules controls automatic cancellation of unpaid orders.
type OrderRules struct {
	AutoCancelEnabled bool `json:"auto_cancel_enabled"`
	AutoCancelHours   int  `json:"auto_cancel_hours"`
}

func (r OrderRules) Validate() error {
	if r.AutoCancelHours < 1 || r.AutoCancelHours > maxAutoCancelHours {
		return apperr.Validation("auto_cancel_hours must be between 1 and %d", maxAutoCancelHours)
	}
	return nil
}

// Store reads and writes the key/value settings table. Defaults apply to keys
// that have never been written.
type Store struct {
	DB       postgres.TxBeginner
	Defaults OrderRules
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.DB.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return set(ctx, s.DB, key, value)
}

func set(ctx context.Context, q postgres.DBTX, key, value string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO settings(key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// OrderRules returns the stored rules. Unparseable values fall back to defaults.
func (s *Store) OrderRules(ctx context.Context) (OrderRules, error) {
	rules := s.Defaults
	if v, ok, err := s.Get(ctx, KeyAutoCancelEnabled); err != nil {
		return rules, err
	} else if ok {
		rules.AutoCancelEnabled = parseBool(v, rules.AutoCancelEnabled)
	}
	if v, ok, err := s.Get(ctx, KeyAutoCancelHours); err != nil {
		return rules, err
	} else if ok {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			rules.AutoCancelHours = h
		}
	}
	return rules, nil
}

func (s *Store) SetOrderRules(ctx context.Context, r OrderRules) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := set(ctx, tx, KeyAutoCancelEnabled, strconv.FormatBool(r.AutoCancelEnabled)); err != nil {
			return err
		}
		return set(ctx, tx, KeyAutoCancelHours, strconv.Itoa(r.AutoCancelHours))
	})
}

func parseBool(v string, def bool) bool {
	switch v {
	case "1", "true", "True", "TRUE", "yes", "on":
		return true
	case "0", "false", "False", "FALSE", "no", "off":
		return false
	}
	return def
}
