package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/gradestats/internal/adapters/cache"
	"github.com/okian/gradestats/internal/adapters/http/api"
	"github.com/okian/gradestats/internal/adapters/notify"
	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/adapters/repository/postgres"
	app "github.com/okian/gradestats/internal/app"
	"github.com/okian/gradestats/internal/config"
	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
	storageConnectTimeout  = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires storage, the grade service and the HTTP server, and blocks
// until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	records, snapshots, closeStores, err := openStores(ctx, cfg, loc, log)
	if err != nil {
		return err
	}
	defer closeStores()

	gate := notify.NewGate(
		notify.NewLogSender(log.Named("notify")),
		notify.WithCooldown(cfg.NotifyCooldown()),
	)

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithLeaderboardSize(cfg.LeaderboardSize),
		app.WithSemesterStore(records),
		app.WithSnapshotStore(snapshots),
		app.WithNotifier(gate),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = svc.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

// openStores builds the configured persistence backend. The returned func
// releases its connections.
func openStores(ctx context.Context, cfg *config.Config, loc *time.Location, log logger.Logger) (repository.SemesterStore, repository.SnapshotStore, func(), error) {
	if cfg.Storage == config.StorageMemory {
		mem := repository.NewMemoryStore(repository.WithLocation(loc))
		return mem, mem, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, storageConnectTimeout)
	defer cancel()

	conn, err := postgres.Connect(connectCtx, cfg.DatabaseURL, postgres.DefaultPoolConfig())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := postgres.Migrate(connectCtx, conn); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}
	log.Info(ctx, "postgres connected")

	records := postgres.NewRecordStore(conn)
	var snapshots repository.SnapshotStore = postgres.NewSnapshotStore(conn, postgres.WithLocation(loc))
	closers := []func(){conn.Close}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(connectCtx, cfg.RedisURL)
		if err != nil {
			conn.Close()
			return nil, nil, nil, err
		}
		log.Info(ctx, "redis connected", logger.Int("ttl_seconds", cfg.CacheTTLSeconds))
		snapshots = cache.NewSnapshotCache(snapshots, client, cache.WithTTL(cfg.CacheTTL()), cache.WithLogger(log.Named("snapshot-cache")))
		closers = append(closers, func() { _ = client.Close() })
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return records, snapshots, closeAll, nil
}

// startServiceMetricsUpdater periodically publishes service gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if queueSize, ok := stats["queueSize"].(int); ok {
		metrics.UpdateQueueCapacity(queueSize)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
