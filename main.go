package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"staff-portal/config"
	"staff-portal/db"
	"staff-portal/logging"
	"staff-portal/metrics"
	"staff-portal/middleware"
	"staff-portal/routes"
	"staff-portal/secretmanager"
	"staff-portal/store"
	"staff-portal/telemetry"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	loadEnv        = godotenv.Load
	loadConfig     = config.Load
	getSecret      = secretmanager.GetSecret
	setEnv         = os.Setenv
	newLogger      = logging.New
	initTelemetry  = telemetry.Init
	openFirebase   = store.OpenFirebase
	connectDB      = db.Connect
	migrateDB      = db.Migrate
	setupRoutes    = routes.SetupRoutes
	notifyContext  = signal.NotifyContext
	listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }
	logFatal       = log.Fatal
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logFatal(err)
	}
}

func run() error {
	envErr := loadEnv()
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	if appEnv == "prod" {
		if err := loadProdSecrets(); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Info("No .env file found; using system environment variables")
	}
	logger.Info("configuration loaded", zap.String("env", cfg.AppEnv), zap.String("store", cfg.Store.Driver))

	ctx, stop := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := initTelemetry(ctx, cfg.AppEnv, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("telemetry error: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	var collector *metrics.Collector
	var recorder store.Recorder
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollector(registry)
		recorder = collector
	}

	backend, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
	}()
	accessor := store.NewInstrumented(backend, recorder, cfg.Store.Timeout)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, func(r *http.Request) {
		logger.Warn("rate limit exceeded", zap.String("path", r.URL.Path), zap.String("remote_addr", r.RemoteAddr))
		if collector != nil {
			collector.RecordRateLimited(metrics.RouteTemplate(r))
		}
	})
	defer limiter.Stop()

	router := setupRoutes(cfg, accessor, routes.Options{
		Logger:      logger,
		Metrics:     collector,
		Gatherer:    registry,
		RateLimiter: limiter,
	})

	corsOpts := []gorillaHandlers.CORSOption{
		gorillaHandlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
		gorillaHandlers.AllowCredentials(),
	}
	handler := otelhttp.NewHandler(gorillaHandlers.CORS(corsOpts...)(router), cfg.Telemetry.ServiceName)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(srv) }()

	logger.Info("starting server",
		zap.String("port", port),
		zap.String("env", cfg.AppEnv),
		zap.String("cors", strings.Join(cfg.CORS.AllowedOrigins, ",")),
	)

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}
}

// openStore builds the configured backend and returns a close func for it.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Accessor, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		conn, err := connectDB(cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection error: %w", err)
		}
		if cfg.DB.AutoMigrate {
			if err := migrateDB(conn); err != nil {
				_ = conn.Close()
				return nil, nil, fmt.Errorf("database migration error: %w", err)
			}
		}
		logger.Info("using postgres document store", zap.String("host", cfg.DB.Host), zap.String("database", cfg.DB.Name))
		return store.NewPostgresStore(conn), conn.Close, nil
	case config.StoreDriverMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		return store.NewMemoryStore(), noClose, nil
	default:
		firebaseStore, err := openFirebase(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, fmt.Errorf("firebase connection error: %w", err)
		}
		logger.Info("using firebase document store", zap.String("url", cfg.Firebase.DatabaseURL))
		return firebaseStore, noClose, nil
	}
}
