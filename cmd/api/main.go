package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wellfront/scheduling-engine/internal/api/router"
	"github.com/wellfront/scheduling-engine/internal/audit"
	"github.com/wellfront/scheduling-engine/internal/booking"
	appconfig "github.com/wellfront/scheduling-engine/internal/config"
	"github.com/wellfront/scheduling-engine/internal/events"
	"github.com/wellfront/scheduling-engine/internal/httpx"
	"github.com/wellfront/scheduling-engine/internal/observability/metrics"
	"github.com/wellfront/scheduling-engine/internal/schedule"
	"github.com/wellfront/scheduling-engine/internal/store/memory"
	"github.com/wellfront/scheduling-engine/internal/store/postgres"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

func main() {
	// Load .env in development; real deployments set the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	metricsHandler, engineMetrics, registry := setupEngineMetrics()

	// Store backend: postgres when configured, in-process memory otherwise.
	var (
		stores     schedule.Stores
		runner     booking.TxRunner
		lookup     booking.AppointmentLookup
		statsStore httpx.StatsReader
		trail      *audit.Trail
		backend    string
	)
	if cfg.UsePostgres() {
		pool := connectPostgresPool(bgCtx, cfg.DatabaseURL, logger)
		if pool == nil {
			logger.Error("postgres backend selected but unavailable")
			os.Exit(1)
		}
		defer pool.Close()

		store := postgres.NewStore(pool)
		stores = schedule.Stores{
			Templates:    store,
			Overrides:    store,
			Blackouts:    store,
			Appointments: store,
			Settings:     store,
		}
		runner = postgres.NewBookingTx(pool, logger).WithLockTimeout(cfg.BookingLockTimeout)
		lookup = store
		statsStore = store
		backend = "postgres"

		// The audit trail rides a database/sql handle on the same database.
		auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open audit db", "error", err)
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()
		trail = audit.NewTrail(auditDB)

		deliverer := events.NewDeliverer(events.NewOutboxStore(pool), events.NewLogHandler(logger), logger).
			WithBatchSize(int32(cfg.OutboxBatchSize)).
			WithInterval(cfg.OutboxInterval)
		go deliverer.Start(bgCtx)
	} else {
		store := memory.NewStore()
		stores = schedule.Stores{
			Templates:    store,
			Overrides:    store,
			Blackouts:    store,
			Appointments: store,
			Settings:     store,
		}
		runner = memory.NewTxRunner(store).WithLockTimeout(cfg.BookingLockTimeout)
		lookup = store
		statsStore = store
		backend = "memory"
		logger.Warn("running on the in-process store; schedules and bookings do not survive restarts")
	}

	// Engine services
	scheduleSvc := schedule.NewService(stores, logger).
		WithMetrics(engineMetrics).
		WithMaxRange(cfg.MaxRange()).
		WithDefaults(schedule.Defaults{
			SlotDurationMinutes: cfg.DefaultSlotMinutes,
			BufferMinutes:       cfg.DefaultBufferMinutes,
			MinLeadMinutes:      cfg.DefaultLeadMinutes,
		})
	if cache := setupSlotCache(bgCtx, cfg, logger); cache != nil {
		scheduleSvc = scheduleSvc.WithCache(cache)
	}

	bookingSvc := booking.NewService(scheduleSvc, runner, lookup, logger).WithMetrics(engineMetrics)
	if trail != nil {
		bookingSvc = bookingSvc.WithAudit(trail)
	}

	var auditReader httpx.AuditReader
	if trail != nil {
		auditReader = trail
	}

	// Router
	routerCfg := &router.Config{
		Logger:          logger,
		SlotsHandler:    httpx.NewSlotsHandler(scheduleSvc, logger),
		BookingsHandler: httpx.NewBookingsHandler(bookingSvc, logger),
		AdminHandler: httpx.NewAdminHandler(scheduleSvc, bookingSvc, statsStore, auditReader, logger).
			WithGatherer(registry),
		HealthHandler:      httpx.NewHealthHandler(backend),
		MetricsHandler:     metricsHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSec:    float64(cfg.RateLimitPerSec),
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "backend", backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancelBg()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// setupEngineMetrics wires a dedicated registry so the exposition carries
// only engine series.
func setupEngineMetrics() (http.Handler, *metrics.EngineMetrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler, engineMetrics, registry
}

// connectPostgresPool opens and pings a pgx pool. Returns nil when the URL
// is empty or the database is unreachable; the caller decides whether that
// is fatal.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// setupSlotCache connects the Redis slot cache. Returns nil when no Redis
// address is configured or the server cannot be reached; the engine then
// resolves every query from the store.
func setupSlotCache(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) schedule.SlotCache {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable, slot cache disabled", "error", err, "addr", cfg.RedisAddr)
		_ = client.Close()
		return nil
	}
	logger.Info("slot cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.SlotCacheTTL)
	return schedule.NewRedisSlotCache(client, cfg.SlotCacheTTL, logger)
}
