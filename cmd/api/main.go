package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/user-service/internal/config"
	"github.com/Dan9191/user-service/internal/handler"
	"github.com/Dan9191/user-service/internal/middleware"
	"github.com/Dan9191/user-service/internal/repository"
	"github.com/Dan9191/user-service/internal/service"
	"github.com/Dan9191/user-service/internal/utils/password"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns)

	repo := repository.NewRepository(db)
	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := repo.Ping(startupCtx); err != nil {
		cancel()
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repo.EnsureSchema(startupCtx); err != nil {
		cancel()
		logger.Fatalf("Failed to prepare schema: %v", err)
	}
	cancel()

	// Initialize layers
	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		logger.Fatalf("Failed to initialize password hasher: %v", err)
	}
	svc := service.NewService(repo, hasher, logger)
	h := handler.NewHandler(svc, logger, cfg.AppVersion)

	// Setup router
	r := mux.NewRouter()
	var metrics *middleware.Metrics
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err = middleware.NewMetrics(reg)
		if err != nil {
			logger.Fatalf("Failed to register metrics: %v", err)
		}
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	h.RegisterRoutes(r)

	var root http.Handler = r
	root = middleware.Recover(logger)(root)
	if metrics != nil {
		root = metrics.Middleware(r)(root)
	}
	root = middleware.Logging(logger)(root)
	root = middleware.RequestID(root)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
