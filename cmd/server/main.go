// Package main runs the MCP endpoint registry HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mcp-registry/backend/config"
	"github.com/mcp-registry/backend/internal/audit"
	"github.com/mcp-registry/backend/internal/auth"
	"github.com/mcp-registry/backend/internal/events"
	"github.com/mcp-registry/backend/internal/middleware"
	"github.com/mcp-registry/backend/internal/registrations"
	"github.com/mcp-registry/backend/pkg/database"
	"github.com/mcp-registry/backend/pkg/queue"
	"github.com/mcp-registry/backend/pkg/redis"
	"github.com/mcp-registry/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Auth
	tokenService := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(tokenService, authRepo, cfg.Auth.AdminGroupID, logger)
	authHandler := auth.NewHandler(authRepo, logger)

	// Event feed (Redis pub/sub bridges instances)
	pubsub := events.NewRedisPubSub(rdb.Client, logger)
	hub := events.NewHub(logger, pubsub)
	if err := hub.Start(pubsub); err != nil {
		logger.Warn("event feed degraded to local broadcast", zap.Error(err))
	}
	defer hub.Stop()

	// Registrations
	jobQueue := queue.NewQueue(rdb.Client, logger)
	registrationRepo := registrations.NewRepository(pool)
	registrationService := registrations.NewService(registrationRepo, logger)
	registrationHandler := registrations.NewHandler(registrationService, jobQueue, hub, logger)

	// Audit log
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unreachable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Protected API (bearer token required)
	api := router.Group("")
	api.Use(middleware.Auth(authService))
	{
		api.GET("/users/me", authHandler.Me)
		api.GET("/users/:id", middleware.RequireAdmin(), authHandler.GetByID)

		registrationHandler.RegisterRoutes(api)

		api.GET("/audit-logs", middleware.RequireAdmin(), auditHandler.Query)

		// WebSocket event feed (token via query parameter)
		api.GET("/ws", middleware.RequireAdmin(), events.ServeWs(hub, logger))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
