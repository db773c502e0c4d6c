package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-pedidos/internal/notify"
	"github.com/diewo77/go-pedidos/result"
)

// Pinger is a reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor keeps the latest outcome of a periodic reachability probe. It
// never blocks callers of Online.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	log      logrus.FieldLogger

	online  atomic.Bool
	checkMu sync.Mutex
	subMu   sync.Mutex
	subs    []func(online bool)
}

func NewMonitor(p Pinger, interval time.Duration, log logrus.FieldLogger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{pinger: p, interval: interval, log: log.WithField("module", "monitor")}
}

func (m *Monitor) Online() bool { return m.online.Load() }

// Subscribe registers fn to be called on every online/offline transition.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.subMu.Lock()
	m.subs = append(m.subs, fn)
	m.subMu.Unlock()
}

// Check probes now and returns the new state.
func (m *Monitor) Check(ctx context.Context) bool {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, min(m.interval, 10*time.Second))
	err := m.pinger.Ping(pctx)
	cancel()

	now := err == nil
	was := m.online.Swap(now)
	if was != now {
		m.log.WithField("online", now).Info("connectivity changed")
		m.subMu.Lock()
		subs := append([]func(bool){}, m.subs...)
		m.subMu.Unlock()
		for _, fn := range subs {
			fn(now)
		}
	}
	return now
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Check(ctx)
		}
	}
}

// Scheduler drives background syncs: the queue every interval while there
// is something to send, and everything as soon as the device comes back
// online.
type Scheduler struct {
	queue    *OrderQueue
	master   *MasterDataSync
	state    *AppState
	conn     Connectivity
	notifier notify.Notifier
	interval time.Duration
	log      logrus.FieldLogger

	wake chan struct{}
}

func NewScheduler(queue *OrderQueue, master *MasterDataSync, state *AppState, conn Connectivity, notifier notify.Notifier, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		queue:    queue,
		master:   master,
		state:    state,
		conn:     conn,
		notifier: notifier,
		interval: interval,
		log:      log.WithField("module", "scheduler"),
		wake:     make(chan struct{}, 1),
	}
}

// ConnectivityChanged is a Monitor subscriber.
func (s *Scheduler) ConnectivityChanged(online bool) {
	if !online {
		s.notifier.Notify(notify.LevelWarning, "Working offline. Orders will be queued on this device.")
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx)
		case <-s.wake:
			s.SyncAll(ctx)
		}
	}
}

// Tick syncs the queue when it is non-empty, the device is online, a
// session exists and no batch is running.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.queue.Pending() == 0 || !s.conn.Online() || s.queue.Syncing() || s.state.Token() == "" {
		return
	}
	s.SyncQueue(ctx)
}

// SyncQueue runs one queue batch and reports the outcome.
func (s *Scheduler) SyncQueue(ctx context.Context) result.Result[int] {
	res := s.queue.SyncLocalOrders(ctx)
	switch {
	case res.OK && res.Value > 0:
		s.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("%d queued order(s) sent", res.Value))
	case res.OK:
	case s.state.ExpireOn(ctx, res.Err):
		s.notifier.Notify(notify.LevelError, "Session expired. Please log in again.")
	case res.Err.Code == result.CodeSyncInProgress:
	default:
		s.notifier.Notify(notify.LevelError, "Order sync failed: "+res.Err.Message)
	}
	return res
}

// SyncMasterData refreshes the catalog and reports failures.
func (s *Scheduler) SyncMasterData(ctx context.Context) result.Result[SyncSummary] {
	res := s.master.Sync(ctx)
	switch {
	case res.OK:
	case s.state.ExpireOn(ctx, res.Err):
		s.notifier.Notify(notify.LevelError, "Session expired. Please log in again.")
	default:
		s.notifier.Notify(notify.LevelError, "Catalog sync failed: "+res.Err.Message)
	}
	return res
}

// SyncAll refreshes master data, then sends the queue.
func (s *Scheduler) SyncAll(ctx context.Context) {
	if s.state.Token() == "" || !s.conn.Online() {
		return
	}
	if res := s.SyncMasterData(ctx); !res.OK && s.state.Token() == "" {
		return
	}
	if s.queue.Pending() > 0 {
		s.SyncQueue(ctx)
	}
}
