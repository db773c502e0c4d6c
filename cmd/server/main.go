package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-pedidos/internal/config"
	"github.com/diewo77/go-pedidos/internal/db"
	"github.com/diewo77/go-pedidos/internal/gateway"
	"github.com/diewo77/go-pedidos/internal/notify"
	"github.com/diewo77/go-pedidos/internal/services"
	"github.com/diewo77/go-pedidos/internal/store"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	syncOnceFlag    = flag.Bool("sync-once", false, "Sync master data and the local queue once, then exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := config.NewLogger(cfg.Log)

	gdb, err := db.Open(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("open local store")
	}

	// the schema is always brought up to date; MIGRATIONS=false only
	// switches to gorm AutoMigrate
	if err := db.Migrate(gdb, cfg.Database.SQLMigrations); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	if *migrateOnlyFlag {
		log.Info("migrations completed successfully")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := newCore(ctx, cfg, store.New(gdb), log)
	if err != nil {
		log.WithError(err).Fatal("start order core")
	}

	if *syncOnceFlag {
		code := core.syncOnce(ctx)
		stop()
		os.Exit(code)
	}

	go core.monitor.Run(ctx)
	go core.sched.Run(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withLogging(NewApp(core), log),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	log.Info("server stopped gracefully")
}

// core holds the wired order services.
type core struct {
	st      *store.Store
	state   *services.AppState
	monitor *services.Monitor
	queue   *services.OrderQueue
	master  *services.MasterDataSync
	orders  *services.OrderService
	sched   *services.Scheduler
	feed    *notify.Feed
	log     logrus.FieldLogger
}

func newCore(ctx context.Context, cfg *config.Config, st *store.Store, log *logrus.Logger) (*core, error) {
	state := services.NewAppState(st, log)
	if err := state.Restore(ctx); err != nil {
		return nil, err
	}
	gw := gateway.New(cfg.Remote.BaseURL, cfg.Remote.Timeout, state.Token, log)
	monitor := services.NewMonitor(gw, cfg.Sync.ConnectivityInterval, log)
	reserver := services.NewReserver(gw, st, monitor, cfg.Sync.MaxReservationTries, log)
	queue := services.NewOrderQueue(st, gw, reserver, state, monitor, log)
	if err := queue.Reload(ctx); err != nil {
		return nil, err
	}
	master := services.NewMasterDataSync(gw, st, state, monitor, log)
	orders := services.NewOrderService(st, gw, queue, reserver, state, monitor, log)

	feed := notify.NewFeed(50)
	notifier := notify.Multi{feed, notify.NewLogNotifier(log)}
	sched := services.NewScheduler(queue, master, state, monitor, notifier, cfg.Sync.QueueInterval, log)
	monitor.Subscribe(sched.ConnectivityChanged)
	state.OnLogout(func() { notifier.Notify(notify.LevelInfo, "Signed out.") })

	return &core{
		st:      st,
		state:   state,
		monitor: monitor,
		queue:   queue,
		master:  master,
		orders:  orders,
		sched:   sched,
		feed:    feed,
		log:     log.WithField("module", "main"),
	}, nil
}

// syncOnce probes connectivity, refreshes master data and sends the queue.
// It returns the process exit code.
func (c *core) syncOnce(ctx context.Context) int {
	if c.state.Token() == "" {
		c.log.Error("no session stored, log in first")
		return 1
	}
	if !c.monitor.Check(ctx) {
		c.log.Error("remote service unreachable")
		return 1
	}
	summary := c.sched.SyncMasterData(ctx)
	if !summary.OK {
		c.log.WithError(summary.Err).Error("master data sync failed")
		return 1
	}
	c.log.WithFields(logrus.Fields{
		"products":  summary.Value.Products,
		"companies": summary.Value.Companies,
		"advisors":  summary.Value.Advisors,
		"clients":   summary.Value.Clients,
	}).Info("master data synced")

	if c.queue.Pending() == 0 {
		return 0
	}
	sent := c.sched.SyncQueue(ctx)
	if !sent.OK {
		c.log.WithError(sent.Err).Error("queue sync failed")
		return 1
	}
	c.log.WithField("synced", sent.Value).Info("queue synced")
	return 0
}

// withLogging adds request logging middleware.
func withLogging(next http.Handler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}
