package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) RunSync(_ context.Context, provider string, _ SyncDepth, _ int) SyncResult {
	f.mu.Lock()
	f.calls = append(f.calls, provider)
	f.mu.Unlock()
	return SyncResult{DocumentsProcessed: 1, APICalls: 1}
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestScheduler_FairnessAcrossProvidersSameRing(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, WithMaxConcurrent(3))
	s.SetProviderRing("slack", RingOne)
	s.SetProviderRing("github", RingOne)

	s.Tick(context.Background(), []string{"slack", "github"})
	s.Wait()

	require.Equal(t, 2, runner.callCount())
}

func TestScheduler_MaxConcurrentCapsDispatch(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, WithMaxConcurrent(1))
	s.SetProviderRing("slack", RingOne)
	s.SetProviderRing("github", RingOne)
	s.SetProviderRing("linear", RingOne)

	s.Tick(context.Background(), []string{"slack", "github", "linear"})

	// max_concurrent=1 means only one sync starts this tick; the rest
	// stay pending until a slot frees up on a later tick.
	require.LessOrEqual(t, runner.callCount(), 1)
	s.Wait()
}

func TestScheduler_OnDemandBypassesCadence(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner)
	s.SetProviderRing("notion", RingBeyond)

	// Beyond never auto-syncs via Tick...
	s.Tick(context.Background(), []string{"notion"})
	s.Wait()
	require.Equal(t, 0, runner.callCount())

	// ...but an explicit on-demand request still runs.
	s.QueueOnDemand("notion", 0)
	s.Tick(context.Background(), []string{"notion"})
	s.Wait()
	require.Equal(t, 1, runner.callCount())
}

func TestBudget_ExhaustionBlocksUntilHourBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	b := NewBudget(2).WithClock(clock)
	require.True(t, b.Available())
	b.Charge(1)
	require.True(t, b.Available())
	b.Charge(1)
	require.False(t, b.Available())

	now = now.Add(30 * time.Minute)
	require.False(t, b.Available())

	now = now.Add(31 * time.Minute)
	require.True(t, b.Available())
	require.Equal(t, 2, b.Remaining())
}

func TestScheduler_BudgetExhaustionStopsDispatch(t *testing.T) {
	runner := &fakeRunner{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	budget := NewBudget(1).WithClock(func() time.Time { return now })
	s := New(runner, WithMaxConcurrent(3), WithBudget(budget))
	s.SetProviderRing("slack", RingOne)
	s.SetProviderRing("github", RingOne)

	s.Tick(context.Background(), []string{"slack", "github"})
	s.Wait()

	// Budget of 1 call: only one provider's sync should have run, since
	// the budget check happens before each dispatch within the tick.
	require.LessOrEqual(t, runner.callCount(), 1)
}
