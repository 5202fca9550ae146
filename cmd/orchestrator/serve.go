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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"agent-orchestrator/internal/agent"
	"agent-orchestrator/internal/analytics"
	"agent-orchestrator/internal/api"
	"agent-orchestrator/internal/auth"
	"agent-orchestrator/internal/config"
	"agent-orchestrator/internal/executor"
	"agent-orchestrator/internal/logging"
	"agent-orchestrator/internal/mcp"
	"agent-orchestrator/internal/ratelimit"
	"agent-orchestrator/internal/registry"
	"agent-orchestrator/internal/repository"
	"agent-orchestrator/internal/services"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestration server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logging.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("Starting agent orchestration engine", "environment", cfg.Environment)

	// Storage: Postgres when configured, in-memory otherwise.
	var workflowStore repository.WorkflowStore
	var eventStore repository.EventStore
	if cfg.DB.Host != "" {
		dbPool, err := initDatabase(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("database initialization failed: %w", err)
		}
		defer dbPool.Close()

		store := repository.NewPostgresStore(dbPool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		workflowStore, eventStore = store, store
		logger.Info("Database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)
	} else {
		store := repository.NewMemoryStore()
		workflowStore, eventStore = store, store
		logger.Warn("No database configured, using in-memory workflow store")
	}

	// Agent registry from declarative definitions.
	agents := registry.New(logger)
	if err := agents.LoadDir(cfg.Agents.DefinitionsDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("agent definitions directory missing, starting with empty registry",
				"dir", cfg.Agents.DefinitionsDir)
		} else {
			return err
		}
	}
	if cfg.Agents.Watch {
		go func() {
			if err := agents.Watch(ctx, cfg.Agents.DefinitionsDir); err != nil && ctx.Err() == nil {
				logger.Error("agent definitions watcher stopped", "error", err)
			}
		}()
	}

	// Admission control: three tuned limiter instances sharing one backend
	// selection. Each tier gets its own key prefix so tiers never share
	// window counts.
	var redisClient *redis.Client
	if cfg.RateLimit.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	defaultLimiter := ratelimit.New(policyOf(cfg.RateLimit.Default), redisClient, "ratelimit:default", logger)
	authLimiter := ratelimit.New(policyOf(cfg.RateLimit.Auth), redisClient, "ratelimit:auth", logger)
	readLimiter := ratelimit.New(policyOf(cfg.RateLimit.Read), redisClient, "ratelimit:read", logger)

	// Background execution.
	events := analytics.NewRecorder(eventStore, logger)
	engine := executor.NewEngine(workflowStore, agents, agent.NewHTTPClient(), events,
		time.Duration(cfg.Executor.TaskTimeoutSeconds)*time.Second, logger)
	dispatcher := executor.NewDispatcher(engine, cfg.Executor.Workers, cfg.Executor.QueueSize, logger)
	dispatcher.Start(ctx)

	svc := services.NewOrchestrator(workflowStore, agents, dispatcher, events, logger)
	logger.Info("Service layer initialized")

	// Authentication.
	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	// HTTP server.
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("agent-orchestrator"))

	srv := api.NewServer(svc, events)
	e.GET("/healthz", srv.Health)

	// Identity-issuing endpoints carry the strictest limiter tier.
	authMW := ratelimit.Middleware(authLimiter, logger)
	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)), authMW)
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)), authMW)
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	defaultMW := ratelimit.Middleware(defaultLimiter, logger)
	readMW := ratelimit.Middleware(readLimiter, logger)
	apiGroup.POST("/workflows", srv.CreateWorkflow, defaultMW)
	apiGroup.GET("/workflows/:id", srv.GetWorkflow, readMW)
	apiGroup.GET("/agents", srv.ListAgents, readMW)
	apiGroup.GET("/analytics/events", srv.ListEvents, readMW)
	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(svc)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))
	logger.Info("MCP protocol handlers mounted")

	server := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		// Stop the worker pool after in-flight requests drain.
		cancel()
		dispatcher.Wait()
		logger.Info("Server stopped gracefully")
	}

	return nil
}

func policyOf(p config.RateLimitPolicy) ratelimit.Policy {
	return ratelimit.Policy{PerMinute: p.PerMinute, PerHour: p.PerHour, Burst: p.Burst}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
