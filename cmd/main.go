package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/healthscore/internal/adapters/http/api"
	"github.com/okian/healthscore/internal/adapters/http/swagger"
	"github.com/okian/healthscore/internal/adapters/repository"
	service "github.com/okian/healthscore/internal/app"
	"github.com/okian/healthscore/internal/config"
	"github.com/okian/healthscore/internal/domain/calendar"
	"github.com/okian/healthscore/internal/domain/model"
	"github.com/okian/healthscore/internal/domain/scoring"
	"github.com/okian/healthscore/internal/domain/trend"
	"github.com/okian/healthscore/pkg/logger"
	"github.com/okian/healthscore/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	writeTimeoutSlack         = 10 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Error(ctx, "invalid timezone", logger.Error(err))
		return
	}
	calendar.SetLocation(loc)

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open history store", logger.Error(err))
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(context.Background(), "failed to close history store", logger.Error(err))
		}
	}()

	svc := newService(cfg, store, log.Named("analytics"))
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc, cfg.CommitQueueSize)
	if interval := cfg.CommitInterval(); interval > 0 {
		go startCommitScheduler(ctx, svc, interval, log.Named("scheduler"))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.QueryTimeout() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
}

// openStore opens the SQLite store at db_path, or an in-memory store when
// no path is configured.
func openStore(ctx context.Context, cfg *config.Config) (repository.ReadWriter, error) {
	if cfg.DBPath == "" {
		return repository.NewMemoryStore(), nil
	}
	store, err := repository.NewSQLiteStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	return store, nil
}

// newService builds the analytics service from configuration.
func newService(cfg *config.Config, store repository.Store, log logger.Logger) *service.Service {
	return service.New(store,
		service.WithLogger(log),
		service.WithScorer(scoring.NewEngine(scoring.WithPolicy(cfg.Scoring.Policy()))),
		service.WithQueryTimeout(cfg.QueryTimeout()),
		service.WithScanPageSize(cfg.ScanPageSize),
		service.WithSeedLookbackDays(cfg.SeedLookbackDays),
		service.WithSeriesCacheCapacity(cfg.CacheCapacity),
		service.WithScoreCacheCapacity(cfg.ScoreCacheCapacity),
		service.WithGroupBy(cfg.GroupBy),
		service.WithCommitQueueSize(cfg.CommitQueueSize),
		service.WithTrendOptions(
			trend.WithMargin(cfg.TrendMargin),
			trend.WithMateriality(cfg.PillarMateriality),
		),
	)
}

// newMux registers the API reference and business routes.
func newMux(ctx context.Context, cfg *config.Config, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithMaxRangeDays(cfg.MaxRangeDays)).Register(ctx, mux)
	return mux
}

// startCommitScheduler commits today's snapshot on every tick.
func startCommitScheduler(ctx context.Context, svc *service.Service, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Commit(ctx, calendar.Today(), model.Filter{}); err != nil {
				log.Warn(ctx, "scheduled commit rejected", logger.Error(err))
			}
		}
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service, queueCapacity int) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc, queueCapacity)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges that only change between requests.
func updateServiceMetrics(svc *service.Service, queueCapacity int) {
	stats := svc.GetStats()
	if n, ok := stats["rosterSize"].(int); ok {
		metrics.UpdateRosterSize(n)
	}
	if n, ok := stats["commitQueueLength"].(int); ok {
		metrics.UpdateCommitQueue(n, queueCapacity)
	}
}
