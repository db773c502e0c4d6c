package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-pedidos/internal/notify"
)

func TestMonitorTransitions(t *testing.T) {
	gw := newFakeGateway()
	m := NewMonitor(gw, 30*time.Second, quietLogger())

	var seen []bool
	m.Subscribe(func(online bool) { seen = append(seen, online) })

	assert.False(t, m.Online())
	assert.True(t, m.Check(context.Background()))
	assert.True(t, m.Check(context.Background()))

	gw.mu.Lock()
	gw.pingErr = errBoom
	gw.mu.Unlock()
	assert.False(t, m.Check(context.Background()))
	assert.False(t, m.Online())

	assert.Equal(t, []bool{true, false}, seen)
}

func TestMonitorRunStopsWithContext(t *testing.T) {
	m := NewMonitor(newFakeGateway(), 10*time.Millisecond, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	require.Eventually(t, m.Online, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestSchedulerTickSyncsPendingQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.True(t, env.queue.AddLocalOrder(ctx, sampleDraft()).OK)

	// offline: nothing happens
	env.sched.Tick(ctx)
	assert.Equal(t, 1, env.queue.Pending())

	// a running batch is respected
	env.conn.set(true)
	env.queue.syncing.Store(true)
	env.sched.Tick(ctx)
	assert.Equal(t, 1, env.queue.Pending())
	env.queue.syncing.Store(false)

	env.sched.Tick(ctx)
	assert.Zero(t, env.queue.Pending())
	feed := env.feed.All()
	require.NotEmpty(t, feed)
	assert.Equal(t, notify.LevelSuccess, feed[len(feed)-1].Level)
}

func TestSchedulerWakesOnReconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, env.queue.AddLocalOrder(ctx, sampleDraft()).OK)

	go env.sched.Run(ctx)
	env.conn.set(true)
	env.sched.ConnectivityChanged(true)

	require.Eventually(t, func() bool { return env.queue.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerWarnsWhenOffline(t *testing.T) {
	env := newTestEnv(t)
	env.sched.ConnectivityChanged(false)
	feed := env.feed.All()
	require.Len(t, feed, 1)
	assert.Equal(t, notify.LevelWarning, feed[0].Level)
}
