package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fixedRules struct {
	rules settings.OrderRules
	err   error
}

func (f fixedRules) OrderRules(context.Context) (settings.OrderRules, error) { return f.rules, f.err }

type fakeOrders struct {
	mu      sync.Mutex
	due     []orders.Expirable
	cutoffs []time.Time
	failOn  map[int64]bool
	expired []int64
	reasons []string
}

func (f *fakeOrders) ListExpirable(_ context.Context, cutoff time.Time) ([]orders.Expirable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.due, nil
}

func (f *fakeOrders) Expire(_ context.Context, id int64, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[id] {
		return false, errors.New("deadlock detected")
	}
	f.expired = append(f.expired, id)
	f.reasons = append(f.reasons, reason)
	return true, nil
}

func (f *fakeOrders) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

type fakeLock struct {
	held     bool
	released int
}

func (l *fakeLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, nil
	}
	return func() { l.released++ }, nil
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(rules settings.OrderRules, fo *fakeOrders, log *zap.Logger) *Service {
	return &Service{
		Rules:   fixedRules{rules: rules},
		Orders:  fo,
		Machine: fo,
		Log:     log,
		Now:     func() time.Time { return t0 },
	}
}

func TestRunOnce_CancelsWithGeneratedReason(t *testing.T) {
	fo := &fakeOrders{due: []orders.Expirable{{ID: 1, OrderNo: "a"}, {ID: 2, OrderNo: "b"}}}
	s := newService(settings.OrderRules{AutoCancelEnabled: true, AutoCancelHours: 24}, fo, zap.NewNop())

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Canceled)
	assert.Equal(t, t0.Add(-24*time.Hour), rep.Cutoff)
	assert.Equal(t, []int64{1, 2}, fo.expired)
	assert.Equal(t, "unpaid for more than 24 hours, canceled automatically", fo.reasons[0])
}

func TestRunOnce_SkipsWhenDisabled(t *testing.T) {
	fo := &fakeOrders{due: []orders.Expirable{{ID: 1}}}
	s := newService(settings.OrderRules{AutoCancelEnabled: false, AutoCancelHours: 24}, fo, zap.NewNop())

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "disabled", rep.Skipped)
	assert.Zero(t, fo.runs())
}

func TestRunOnce_SkipsWhenLockHeldElsewhere(t *testing.T) {
	fo := &fakeOrders{due: []orders.Expirable{{ID: 1}}}
	s := newService(settings.OrderRules{AutoCancelEnabled: true, AutoCancelHours: 24}, fo, zap.NewNop())
	s.Lock = &fakeLock{held: true}

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "locked", rep.Skipped)
	assert.Empty(t, fo.expired)

	free := &fakeLock{}
	s.Lock = free
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, free.released)
}

func TestRunOnce_OneFailureDoesNotStopTheSweep(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fo := &fakeOrders{
		due:    []orders.Expirable{{ID: 1, OrderNo: "a"}, {ID: 2, OrderNo: "b"}, {ID: 3, OrderNo: "c"}},
		failOn: map[int64]bool{2: true},
	}
	s := newService(settings.OrderRules{AutoCancelEnabled: true, AutoCancelHours: 6}, fo, zap.New(core))

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Canceled)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, []int64{1, 3}, fo.expired)
	assert.Equal(t, 1, logs.FilterMessage("auto-cancel failed").Len())
}

func TestRunOnce_RulesErrorIsReturned(t *testing.T) {
	s := &Service{Rules: fixedRules{err: errors.New("db down")}, Log: zap.NewNop()}
	_, err := s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestService_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	fo := &fakeOrders{}
	s := newService(settings.OrderRules{AutoCancelEnabled: true, AutoCancelHours: 24}, fo, zap.NewNop())
	s.Interval = 5 * time.Millisecond

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return fo.runs() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	n := fo.runs()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, fo.runs())
}
