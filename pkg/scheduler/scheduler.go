package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Runner invokes one provider's sync. Implemented by pkg/provider's
// registry; defined here to avoid a scheduler -> provider import cycle
// (provider already depends on scheduler-adjacent concepts like depth).
type Runner interface {
	RunSync(ctx context.Context, provider string, depth SyncDepth, sinceDays int) SyncResult
}

type pendingItem struct {
	provider  string
	priority  int
	depth     SyncDepth
	sinceDays int
	index     int
}

type pendingQueue []*pendingItem

func (q pendingQueue) Len() int { return len(q) }
func (q pendingQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].index < q[j].index // FIFO among equal priority
}
func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pendingQueue) Push(x interface{}) {
	*q = append(*q, x.(*pendingItem))
}
func (q *pendingQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithLogger overrides the default null logger.
func WithLogger(log hclog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithMaxConcurrent overrides the default max_concurrent of 3.
func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) { s.maxConcurrent = n }
}

// WithBudget overrides the default 1000-call hourly budget.
func WithBudget(b *Budget) Option {
	return func(s *Scheduler) { s.budget = b }
}

// Scheduler owns the pending queue, in-progress set, and last-sync map
// described in the ring-aware scheduler design. It is driven by calling
// Tick periodically (or RunLoop to do that on a ticker) and by
// QueueOnDemand for user-requested syncs.
type Scheduler struct {
	mu sync.Mutex

	log           hclog.Logger
	runner        Runner
	maxConcurrent int
	budget        *Budget

	providerRing map[string]Ring
	lastSync     map[string]time.Time
	state        map[string]ProviderState
	pending      pendingQueue
	pendingIndex int
	inProgress   map[string]struct{}
	inFlight     sync.WaitGroup
}

// New constructs a Scheduler bound to runner.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		log:           hclog.NewNullLogger(),
		runner:        runner,
		maxConcurrent: 3,
		budget:        NewBudget(1000),
		providerRing:  make(map[string]Ring),
		lastSync:      make(map[string]time.Time),
		state:         make(map[string]ProviderState),
		inProgress:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	heap.Init(&s.pending)
	return s
}

// SetProviderRing records the ring a provider's identity currently
// occupies; it drives both sync depth and cadence. The spec ties ring
// to graph nodes, not providers directly — this scheduler treats a
// provider's ring as whatever the caller (normally derived from the
// provider's own root node in the graph) last reported, defaulting new
// providers to Ring One until a recomputation says otherwise.
func (s *Scheduler) SetProviderRing(provider string, ring Ring) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.providerRing[provider]; !seen {
		s.state[provider] = StateIdle
	}
	s.providerRing[provider] = ring
}

// State returns a provider's current state-machine status.
func (s *Scheduler) State(provider string) ProviderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[provider]
	if !ok {
		return StateIdle
	}
	return st
}

// due reports whether provider's cadence has elapsed since its last
// sync. Must be called with s.mu held.
func (s *Scheduler) due(provider string, now time.Time) bool {
	ring := s.providerRing[provider]
	cadence := CadenceForRing(ring)
	if cadence == 0 {
		return false // Beyond: never auto-sync
	}
	last, ok := s.lastSync[provider]
	if !ok {
		return true
	}
	return now.Sub(last) >= cadence
}

func (s *Scheduler) enqueue(provider string, priority int, depth SyncDepth, sinceDays int) {
	// De-duplicate: at most one pending/in-progress entry per provider.
	if s.state[provider] == StatePending || s.state[provider] == StateInProgress {
		return
	}
	s.pendingIndex++
	heap.Push(&s.pending, &pendingItem{
		provider: provider, priority: priority, depth: depth, sinceDays: sinceDays, index: s.pendingIndex,
	})
	s.state[provider] = StatePending
}

// QueueOnDemand inserts a user-requested sync at the head of the
// pending queue (priority 0), bypassing the due check but still
// respecting concurrency and budget.
func (s *Scheduler) QueueOnDemand(provider string, sinceDays int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(provider, 0, DepthFull, sinceDays)
}

// Tick evaluates every known provider for due cadence syncs, enqueues
// them, then pops as many pending items as max_concurrent and budget
// allow and runs them asynchronously. It returns immediately; callers
// that need to wait for in-flight syncs use Wait.
func (s *Scheduler) Tick(ctx context.Context, providers []string) {
	now := time.Now()

	s.mu.Lock()
	for _, p := range providers {
		if _, known := s.providerRing[p]; !known {
			s.providerRing[p] = RingOne
		}
		if s.due(p, now) {
			ring := s.providerRing[p]
			s.enqueue(p, priorityForRing(ring), DepthForRing(ring), 0)
		}
	}

	for len(s.inProgress) < s.maxConcurrent && s.pending.Len() > 0 && s.budget.Available() {
		item := heap.Pop(&s.pending).(*pendingItem)
		if item.depth == DepthOnDemand && item.priority != 0 {
			// Beyond-ring providers never auto-sync; only an explicit
			// on-demand request (priority 0) may run them.
			s.state[item.provider] = StateIdle
			continue
		}
		s.inProgress[item.provider] = struct{}{}
		s.state[item.provider] = StateInProgress
		// Charge one call optimistically so a burst of dispatches within
		// a single tick can't all pass Available() before any of their
		// goroutines report back; runOne reconciles with the actual
		// count once the sync completes.
		s.budget.Charge(1)
		s.runOne(ctx, item)
	}
	s.mu.Unlock()
}

func (s *Scheduler) runOne(ctx context.Context, item *pendingItem) {
	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		result := s.runner.RunSync(ctx, item.provider, item.depth, item.sinceDays)

		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.inProgress, item.provider)
		s.budget.Charge(result.APICalls - 1) // reconcile the optimistic charge above
		if result.Err != nil {
			s.log.Warn("sync failed, eligible for retry next cadence tick", "provider", item.provider, "error", result.Err)
			s.state[item.provider] = StateIdle
			return
		}
		s.lastSync[item.provider] = time.Now()
		s.state[item.provider] = StateIdle
	}()
}

// Wait blocks until every currently in-flight sync completes. Intended
// for tests and graceful shutdown.
func (s *Scheduler) Wait() {
	s.inFlight.Wait()
}

// RunLoop ticks on interval until ctx is cancelled, matching the
// teacher's indexer orchestrator loop shape.
func (s *Scheduler) RunLoop(ctx context.Context, interval time.Duration, providers func() []string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Tick(ctx, providers())
	for {
		select {
		case <-ctx.Done():
			s.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx, providers())
		}
	}
}

// BudgetRemaining reports the calls left in the shared hourly bucket,
// for inspection (get_status).
func (s *Scheduler) BudgetRemaining() int {
	return s.budget.Remaining()
}
