// Package query caches backend reads under hierarchical keys, the way the
// web panel keyed ["turnos", "esperando"] and ["estadisticas"]. Entries go
// stale after a fixed age or when a key prefix is invalidated.
package query

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/campe111/turnero/internal/clock"
)

type Key []string

func (k Key) String() string { return strings.Join(k, "/") }

// HasPrefix reports whether every element of prefix leads k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

type Fetcher func(ctx context.Context) (any, error)

type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	group    singleflight.Group
	clock    clock.Clock
	staleAge time.Duration
	logger   *zap.Logger
}

type entry struct {
	key       Key
	fetch     Fetcher
	value     any
	err       error
	hasValue  bool
	fetchedAt time.Time
	// generation bumps on invalidation so new reads do not join a fetch
	// that started before the data changed.
	generation uint64
	// issued and applied tag fetches; a response older than the last
	// applied one is dropped.
	issued  uint64
	applied uint64
	stale   bool
}

type Snapshot struct {
	Value     any
	Err       error
	FetchedAt time.Time
	Stale     bool
	HasValue  bool
}

func NewCache(clk clock.Clock, staleAge time.Duration, logger *zap.Logger) *Cache {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries:  make(map[string]*entry),
		clock:    clk,
		staleAge: staleAge,
		logger:   logger,
	}
}

// Register binds key to fetch. Registering an existing key replaces its
// fetcher and drops the cached value.
func (c *Cache) Register(key Key, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = &entry{key: append(Key(nil), key...), fetch: fetch, stale: true}
}

// Get returns the cached value for key, fetching it first when missing,
// stale or invalidated. A failed fetch keeps no value: reads degrade to
// "no data", not to an old answer.
func (c *Cache) Get(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok {
		c.mu.Unlock()
		return nil, &UnknownKeyError{Key: key}
	}
	if c.freshLocked(e) {
		value, err := e.value, e.err
		c.mu.Unlock()
		return value, err
	}
	c.mu.Unlock()
	return c.fetch(ctx, e)
}

// Peek returns what is cached for key without fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Value:     e.value,
		Err:       e.err,
		FetchedAt: e.fetchedAt,
		Stale:     !c.freshLocked(e),
		HasValue:  e.hasValue,
	}, true
}

// Invalidate marks every entry under any of prefixes stale.
func (c *Cache) Invalidate(prefixes ...Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []Key
	for _, e := range c.entries {
		for _, prefix := range prefixes {
			if e.key.HasPrefix(prefix) {
				e.stale = true
				e.generation++
				matched = append(matched, e.key)
				break
			}
		}
	}
	return matched
}

// Refresh refetches every entry under prefixes in parallel, regardless of
// freshness. With no prefixes it refreshes everything. The first fetch
// error is returned after all fetches finish.
func (c *Cache) Refresh(ctx context.Context, prefixes ...Key) error {
	c.mu.Lock()
	var targets []*entry
	for _, e := range c.entries {
		if len(prefixes) == 0 {
			targets = append(targets, e)
			continue
		}
		for _, prefix := range prefixes {
			if e.key.HasPrefix(prefix) {
				targets = append(targets, e)
				break
			}
		}
	}
	c.mu.Unlock()

	var g errgroup.Group
	for _, e := range targets {
		g.Go(func() error {
			_, err := c.fetchNow(ctx, e)
			return err
		})
	}
	return g.Wait()
}

func (c *Cache) freshLocked(e *entry) bool {
	if e.stale || e.fetchedAt.IsZero() {
		return false
	}
	if c.staleAge <= 0 {
		return true
	}
	return c.clock.Now().Sub(e.fetchedAt) < c.staleAge
}

// fetch shares one in-flight request among concurrent readers of the
// same key and generation. The shared request does not inherit any one
// reader's cancellation; each reader stops waiting when its own ctx ends.
func (c *Cache) fetch(ctx context.Context, e *entry) (any, error) {
	c.mu.Lock()
	flightKey := e.key.String() + "#" + strconv.FormatUint(e.generation, 10)
	c.mu.Unlock()

	shared := context.WithoutCancel(ctx)
	results := c.group.DoChan(flightKey, func() (any, error) {
		return c.fetchNow(shared, e)
	})
	select {
	case res := <-results:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fetchNow(ctx context.Context, e *entry) (any, error) {
	c.mu.Lock()
	e.issued++
	seq := e.issued
	generation := e.generation
	fetch := e.fetch
	c.mu.Unlock()

	value, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < e.applied {
		c.logger.Debug("discarding out-of-order response", zap.String("key", e.key.String()), zap.Uint64("seq", seq), zap.Uint64("applied", e.applied))
		return e.value, e.err
	}
	e.applied = seq
	e.fetchedAt = c.clock.Now()
	// An invalidation while the request was out means the answer may
	// predate the change; keep it but refetch on the next read.
	e.stale = generation != e.generation
	if err != nil {
		e.value = nil
		e.err = err
		e.hasValue = false
		return nil, err
	}
	e.value = value
	e.err = nil
	e.hasValue = true
	return value, nil
}

type UnknownKeyError struct {
	Key Key
}

func (e *UnknownKeyError) Error() string {
	return "query: no fetcher registered for " + e.Key.String()
}
