package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"go.uber.org/zap"
)

const jobAutoCancel = "auto-cancel"

type RulesReader interface {
	OrderRules(ctx context.Context) (settings.OrderRules, error)
}

type Lister interface {
	ListExpirable(ctx context.Context, cutoff time.Time) ([]orders.Expirable, error)
}

// Expirer is the state machine entry point used to cancel an overdue order.
type Expirer interface {
	Expire(ctx context.Context, orderID int64, reason string) (bool, error)
}

// Locker keeps two processes from sweeping at the same time. A nil release
// means another process holds the lock.
type Locker interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (release func(), err error)
}

// Report summarizes one sweep.
type Report struct {
	Skipped  string // non-empty when the sweep did not run
	Cutoff   time.Time
	Found    int
	Canceled int
	Failed   int
}

// Service cancels unpaid pending orders older than the configured window.
type Service struct {
	Interval time.Duration
	LockTTL  time.Duration
	Rules    RulesReader
	Orders   Lister
	Machine  Expirer
	Lock     Locker // optional
	Log      *zap.Logger
	Now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func Reason(hours int) string {
	return fmt.Sprintf("unpaid for more than %d hours, canceled automatically", hours)
}

// Start launches the ticker loop. Calling Start on a running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		s.Log.Info("auto-cancel scheduler started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				s.Log.Info("auto-cancel scheduler stopped")
				return
			case <-t.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.Log.Error("auto-cancel run failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop ends the loop and waits for a sweep in progress to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RunOnce performs a single sweep. Per-order failures are logged and counted;
// only failures that stop the whole sweep are returned.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	rules, err := s.Rules.OrderRules(ctx)
	if err != nil {
		return rep, fmt.Errorf("read order rules: %w", err)
	}
	if !rules.AutoCancelEnabled {
		rep.Skipped = "disabled"
		return rep, nil
	}

	if s.Lock != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		release, err := s.Lock.Acquire(ctx, jobAutoCancel, ttl)
		if err != nil {
			return rep, fmt.Errorf("acquire lock: %w", err)
		}
		if release == nil {
			rep.Skipped = "locked"
			s.Log.Debug("auto-cancel sweep held by another process")
			return rep, nil
		}
		defer release()
	}

	rep.Cutoff = s.now().Add(-time.Duration(rules.AutoCancelHours) * time.Hour)
	due, err := s.Orders.ListExpirable(ctx, rep.Cutoff)
	if err != nil {
		return rep, err
	}
	rep.Found = len(due)

	reason := Reason(rules.AutoCancelHours)
	for _, o := range due {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		changed, err := s.Machine.Expire(ctx, o.ID, reason)
		if err != nil {
			rep.Failed++
			s.Log.Warn("auto-cancel failed", zap.String("order_no", o.OrderNo), zap.Error(err))
			continue
		}
		if changed {
			rep.Canceled++
		}
	}
	if rep.Canceled > 0 || rep.Failed > 0 {
		s.Log.Info("auto-cancel sweep finished",
			zap.Int("found", rep.Found), zap.Int("canceled", rep.Canceled), zap.Int("failed", rep.Failed))
	}
	return rep, nil
}
