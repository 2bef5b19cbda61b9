package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/torqsys/tenantd/internal/adapter/api"
	"github.com/torqsys/tenantd/internal/adapter/api/handler"
	"github.com/torqsys/tenantd/internal/adapter/api/middleware"
	"github.com/torqsys/tenantd/internal/adapter/metrics"
	"github.com/torqsys/tenantd/internal/adapter/repository/postgres"
	redisrepo "github.com/torqsys/tenantd/internal/adapter/repository/redis"
	"github.com/torqsys/tenantd/internal/adapter/theme"
	"github.com/torqsys/tenantd/internal/pkg/config"
	"github.com/torqsys/tenantd/internal/pkg/logger"
	"github.com/torqsys/tenantd/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewResolverMetrics()

	// --- Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database and Redis Connections ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("postgres unreachable", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisAddr)
	if err != nil {
		logger.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "error", err)
		os.Exit(1)
	}

	// --- Repositories ---
	directoryRepo := postgres.NewDirectoryRepository(db, logger)
	markerRepo := redisrepo.NewMarkerRepository(redisClient, cfg.SessionMarkerTTL, logger)

	// --- Engine ---
	ledger := usecase.NewImpersonationLedger(markerRepo, directoryRepo, logger)
	sanitizer := theme.NewSanitizer(logger, m)
	resolver := usecase.NewTenantResolver(directoryRepo, ledger, sanitizer, m, logger)
	evaluator := usecase.NewPermissionEvaluator(resolver)

	// --- HTTP Surface ---
	impersonationHandler := handler.NewImpersonationHandler(resolver, ledger, evaluator, m, logger, cfg.ImpersonationStartsPerMin)
	sessionHandler := handler.NewSessionHandler(resolver, impersonationHandler, logger)

	router := api.NewRouter(cfg.JWTSecret, logger, sessionHandler, impersonationHandler)
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      middleware.Logging(logger)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting tenantd server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
