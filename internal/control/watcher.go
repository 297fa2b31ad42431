package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/core/issue"
	"github.com/vietddude/vitality/internal/core/worker"
	"github.com/vietddude/vitality/internal/infra/amboss"
	"github.com/vietddude/vitality/internal/infra/lightning"
	"github.com/vietddude/vitality/internal/infra/netx"
	redisclient "github.com/vietddude/vitality/internal/infra/redis"
	"github.com/vietddude/vitality/internal/monitoring/check"
	"github.com/vietddude/vitality/internal/monitoring/health"
	"github.com/vietddude/vitality/internal/notify"
)

// grpcSyncInterval is how often the gRPC health statuses are refreshed.
const grpcSyncInterval = 5 * time.Second

// Watcher is the main application struct that manages the watchdog lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	store        *config.Store
	node         *lightning.Client
	dispatcher   *notify.Dispatcher
	tracker      *issue.Tracker
	scheduler    *worker.Scheduler
	healthMon    *health.Monitor
	healthServer *health.Server
	grpcServer   *health.GRPCServer
	redisClient  *redisclient.Client
	log          *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNodeClient picks the node transport from cfg: the unix socket when
// RPCFile is set, clnrest otherwise.
func NewNodeClient(cfg config.LightningConfig) (*lightning.Client, error) {
	switch {
	case cfg.RPCFile != "":
		return lightning.NewSocketClient(cfg.RPCFile, cfg.Timeout), nil
	case cfg.RestURL != "":
		return lightning.NewRestClient(lightning.RestConfig{
			URL:           cfg.RestURL,
			Rune:          cfg.Rune,
			Timeout:       cfg.Timeout,
			TLSSkipVerify: cfg.TLSSkipVerify,
		}), nil
	default:
		return nil, errors.New("no lightning transport configured")
	}
}

// NewDispatcher builds the notification dispatcher for cfg, including the
// redis provider when redis is configured. The returned client is nil
// without redis and must be closed by the caller otherwise.
func NewDispatcher(cfg *config.AppConfig) (*notify.Dispatcher, *redisclient.Client, error) {
	httpClient, err := netx.NewHTTPClient(cfg.Notify.Proxy, cfg.Notify.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build notify http client: %w", err)
	}

	var static []notify.Provider
	var rc *redisclient.Client
	if cfg.Redis.URL != "" {
		rc, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, event publishing disabled", "error", err)
			rc = nil
		} else {
			static = append(static, notify.NewRedisProvider(rc, cfg.Notify.RedisChannel))
			slog.Info("Publishing events to redis", "channel", cfg.Notify.RedisChannel)
		}
	}

	d := notify.NewDispatcher(notify.Config{
		Timeout:     cfg.Notify.Timeout,
		HTTPClient:  httpClient,
		TelegramAPI: cfg.Notify.TelegramAPI,
	}, static...)
	return d, rc, nil
}

// NewWatcher creates a new Watcher instance with all dependencies initialized.
func NewWatcher(cfg *config.AppConfig) (*Watcher, error) {
	opts, err := config.ParseOptions(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	store := config.NewStore(opts)

	// 1. Node connection
	node, err := NewNodeClient(cfg.Lightning)
	if err != nil {
		return nil, err
	}
	slog.Info("Using node transport", "transport", node.Name())

	// 2. Notifications
	dispatcher, rc, err := NewDispatcher(cfg)
	if err != nil {
		return nil, err
	}
	dispatcher.Configure(store.Snapshot())
	store.Subscribe(func(prev, next *config.Options) {
		if !prev.NotifySettingsEqual(next) {
			dispatcher.Configure(next)
		}
	})

	tracker := issue.NewTracker(dispatcher)

	// 3. Checkers
	probeClient, err := netx.NewHTTPClient(cfg.Notify.Proxy, cfg.Checks.Reachability.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe http client: %w", err)
	}
	ambossClient := amboss.NewClient(cfg.Notify.AmbossURL, probeClient, node)

	scheduler := worker.NewScheduler(store, tracker)
	scheduler.Register(check.NewChannelChecker(node), cfg.Checks.Channels.Interval, cfg.Checks.Channels.InitialDelay)
	scheduler.Register(check.NewHtlcChecker(node), cfg.Checks.Htlcs.Interval, cfg.Checks.Htlcs.InitialDelay)
	scheduler.Register(
		check.NewReachabilityChecker(node, ambossClient, cfg.Checks.Reachability.Timeout),
		cfg.Checks.Reachability.Interval,
		cfg.Checks.Reachability.InitialDelay,
	)

	// 4. Health
	healthMon := health.NewMonitor(tracker, scheduler, node, store)
	healthServer := health.NewServer(healthMon, store, dispatcher, cfg.Server)

	var grpcServer *health.GRPCServer
	if cfg.Server.GRPCPort > 0 {
		grpcServer = health.NewGRPCServer(healthMon, cfg.Server.Host, cfg.Server.GRPCPort)
	}

	return &Watcher{
		cfg:          cfg,
		store:        store,
		node:         node,
		dispatcher:   dispatcher,
		tracker:      tracker,
		scheduler:    scheduler,
		healthMon:    healthMon,
		healthServer: healthServer,
		grpcServer:   grpcServer,
		redisClient:  rc,
		log:          slog.Default(),
	}, nil
}

// Store returns the live options store.
func (w *Watcher) Store() *config.Store { return w.store }

// Start starts the watcher and all its components. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	// Start Health Server
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.healthServer.Start(); err != nil {
			w.log.Error("Health server failed", "error", err)
		}
	}()

	if w.grpcServer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.grpcServer.Run(ctx, grpcSyncInterval); err != nil {
				w.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start Scheduler
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.scheduler.Run(ctx); err != nil {
			w.log.Error("Scheduler failed", "error", err)
		}
	}()

	w.log.Info("Watcher started",
		"providers", w.dispatcher.Providers(),
		"options_version", w.store.Snapshot().Version,
	)
	return nil
}

// Stop stops the watcher. In-flight checks are given until ctx expires.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping Watcher...")

	if w.cancel != nil {
		w.cancel()
	}

	var errs []error
	if err := w.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop health server: %w", err))
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for workers: %w", ctx.Err()))
	}

	if w.redisClient != nil {
		if err := w.redisClient.Close(); err != nil {
			w.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if err := w.node.Close(); err != nil {
		w.log.Warn("Failed to close node client", "error", err)
	}

	return errors.Join(errs...)
}
