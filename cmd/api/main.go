package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callagent-platform/internal/analytics"
	"callagent-platform/internal/audit"
	"callagent-platform/internal/auth"
	"callagent-platform/internal/config"
	"callagent-platform/internal/enrichment"
	"callagent-platform/internal/httpapi"
	"callagent-platform/internal/pipeline"
	"callagent-platform/internal/pricing"
	"callagent-platform/internal/session"
	"callagent-platform/internal/subscription"
	"callagent-platform/pkg/logger"
	"callagent-platform/pkg/storage"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional env file for local development; real deployments inject env.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("env file not loaded", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	var subRepo subscription.Repository
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := storage.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), storage.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		subRepo = subscription.NewPostgresRepo(db)
	default:
		subRepo = subscription.NewMemoryRepo()
	}

	var history session.HistoryStore
	switch cfg.History.Backend {
	case config.BackendRedis:
		rdb, err := storage.OpenRedis(rootCtx, storage.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.History.RedisPassword,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		history, err = session.NewRedisHistory(rdb, "")
		if err != nil {
			log.Error("history init failed", "err", err)
			os.Exit(1)
		}
	default:
		history = session.NewMemoryHistory()
	}

	catalog := pricing.NewCatalog()
	subs := subscription.NewService(catalog, subRepo)
	registry := session.NewRegistry(history)
	auditSvc := audit.NewService(audit.NewMemoryRepo())

	accel := enrichment.Acceleration{
		Available:     cfg.Pipeline.AccelBackend != "",
		Backend:       cfg.Pipeline.AccelBackend,
		SpeedupFactor: cfg.Pipeline.AccelSpeedup,
	}
	pipe := pipeline.NewService(subs, registry, pipeline.Options{
		Optimizer:     enrichment.NewNarrativeOptimizer(),
		Accelerator:   enrichment.NewStaticAccelerator(accel),
		Audit:         auditSvc,
		ProgressDelay: cfg.Pipeline.ProgressDelay,
	})

	h := httpapi.Handlers{
		Auth:      authManager,
		Catalog:   catalog,
		Subs:      subs,
		Pipeline:  pipe,
		Registry:  registry,
		Analytics: analytics.NewService(registry, subs),
		Audit:     auditSvc,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env,
			"store_backend", cfg.Store.Backend, "history_backend", cfg.History.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
