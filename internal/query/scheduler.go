package query

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/clock"
)

// Scheduler refreshes a cache on a fixed interval and on demand. It is
// the only place that decides when reads go back to the backend.
type Scheduler struct {
	cache    *Cache
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
	trigger  chan []Key
	// refreshed, when set, observes every completed refresh cycle.
	refreshed func(prefixes []Key, err error)
}

type SchedulerOptions struct {
	Interval  time.Duration
	Clock     clock.Clock
	Logger    *zap.Logger
	Refreshed func(prefixes []Key, err error)
}

func NewScheduler(cache *Cache, opts SchedulerOptions) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cache:     cache,
		interval:  interval,
		clock:     clk,
		logger:    logger,
		trigger:   make(chan []Key, 16),
		refreshed: opts.Refreshed,
	}
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// InvalidateNow marks prefixes stale right away and asks Run to refetch
// them. It never blocks; if the request queue is full the entries stay
// stale and the next read or tick picks them up.
func (s *Scheduler) InvalidateNow(prefixes ...Key) {
	if len(prefixes) == 0 {
		prefixes = []Key{{}}
	}
	s.cache.Invalidate(prefixes...)
	select {
	case s.trigger <- prefixes:
	default:
		s.logger.Debug("refresh queue full; relying on staleness", zap.Int("prefixes", len(prefixes)))
	}
}

// Run refreshes everything every interval and serves InvalidateNow
// requests until ctx is done. Fetch errors are logged; the next tick
// tries again.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refresh(ctx, nil)
		case prefixes := <-s.trigger:
			s.refresh(ctx, prefixes)
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context, prefixes []Key) {
	err := s.cache.Refresh(ctx, prefixes...)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("refresh failed", zap.Error(err))
	}
	if s.refreshed != nil {
		s.refreshed(prefixes, err)
	}
}
