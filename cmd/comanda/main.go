package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"comanda/internal/auth"
	"comanda/internal/config"
	"comanda/internal/handler"
	"comanda/internal/metrics"
	"comanda/internal/mq"
	"comanda/internal/realtime"
	"comanda/internal/repository"
	"comanda/internal/service"
	"comanda/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// The permission table is validated once here so a bad triple aborts
	// startup instead of denying requests silently.
	if err := auth.ValidateGrants(); err != nil {
		logger.Error("permission table invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores.
	orderStore := store.NewOrderStore()
	sessionStore := store.NewSessionStore()

	// Repository: PostgreSQL when configured, otherwise memory-only.
	var repo repository.Orders = repository.Nop{}
	if cfg.DatabaseURL != "" {
		pg, err := repository.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("database connect failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		repo = pg
		logger.Info("database connected")
	}
	defer repo.Close()

	// Rehydrate open orders so a restart does not lose the active board.
	active, err := repo.ListActive(ctx)
	if err != nil {
		logger.Error("order rehydration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, o := range active {
		if err := orderStore.Create(o); err != nil {
			logger.Error("order rehydration failed",
				slog.String("order_id", o.ID),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}
	if len(active) > 0 {
		logger.Info("orders rehydrated", slog.Int("count", len(active)))
	}

	// Metrics and realtime.
	collector := metrics.NewCollector()
	hub := realtime.NewHub(logger)
	tracker := realtime.NewTracker(sessionStore, hub, cfg.SessionSweepInterval, collector, logger)

	// Event sinks: the hub always, the message broker when configured.
	sinks := service.Sinks{hub}
	if cfg.AMQPURL != "" {
		publisher, err := mq.Dial(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("message broker connect failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
		logger.Info("message broker connected")
	}

	// Write-behind persistence.
	persister := repository.NewPersister(repo, logger)
	persister.Start(ctx)

	// Service and router.
	orderSvc := service.NewOrderService(orderStore, sinks, persister, repo, collector, logger)
	verifier := auth.NewVerifier(cfg.JWTSecret)
	router := handler.NewRouter(orderSvc, tracker, verifier, logger)

	// Session sweep goroutine.
	tracker.Start(ctx)

	// Metrics server on its own port.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("metrics server starting", slog.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop both servers, then cancel the context to
	// stop the sweep and persistence goroutines.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
