package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campe111/turnero/internal/clock"
)

type cycle struct {
	prefixes []Key
	err      error
}

func startScheduler(t *testing.T, c *Cache, clk *clock.FakeClock) (*Scheduler, <-chan cycle) {
	t.Helper()
	cycles := make(chan cycle, 8)
	s := NewScheduler(c, SchedulerOptions{
		Interval: 30 * time.Second,
		Clock:    clk,
		Refreshed: func(prefixes []Key, err error) {
			cycles <- cycle{prefixes: prefixes, err: err}
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
	clk.WaitForTickers(1)
	return s, cycles
}

func waitCycle(t *testing.T, cycles <-chan cycle) cycle {
	t.Helper()
	select {
	case c := <-cycles:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh cycle")
		return cycle{}
	}
}

func TestSchedulerRefreshesOnInterval(t *testing.T) {
	clk := clock.Fake(epoch)
	c := NewCache(clk, time.Hour, nil)
	var calls int32
	Register(c, Key{"estadisticas"}, counter(&calls))
	_, cycles := startScheduler(t, c, clk)

	clk.Advance(30 * time.Second)
	got := waitCycle(t, cycles)
	require.NoError(t, got.err)
	assert.Nil(t, got.prefixes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clk.Advance(30 * time.Second)
	waitCycle(t, cycles)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidateNowRefreshesOnlyMatchingKeys(t *testing.T) {
	clk := clock.Fake(epoch)
	c := NewCache(clk, time.Hour, nil)
	var tickets, categories int32
	Register(c, Key{"turnos", "esperando"}, counter(&tickets))
	Register(c, Key{"categorias"}, counter(&categories))
	s, cycles := startScheduler(t, c, clk)

	s.InvalidateNow(Key{"turnos"})
	got := waitCycle(t, cycles)
	require.NoError(t, got.err)
	assert.Equal(t, []Key{{"turnos"}}, got.prefixes)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tickets))
	assert.Equal(t, int32(0), atomic.LoadInt32(&categories))

	snap, ok := c.Peek(Key{"turnos", "esperando"})
	require.True(t, ok)
	assert.False(t, snap.Stale)
}

func TestInvalidateNowMarksStaleBeforeRefresh(t *testing.T) {
	clk := clock.Fake(epoch)
	c := NewCache(clk, time.Hour, nil)
	var calls int32
	q := Register(c, Key{"turnos"}, counter(&calls))
	_, err := q.Get(context.Background())
	require.NoError(t, err)

	s := NewScheduler(c, SchedulerOptions{Clock: clk})
	s.InvalidateNow(Key{"turnos"})

	snap, ok := c.Peek(Key{"turnos"})
	require.True(t, ok)
	assert.True(t, snap.Stale)

	v, err := q.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 30*time.Second, s.Interval())
}
