// Package main runs the campus events HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campus-hub/backend/config"
	"github.com/campus-hub/backend/internal/auth"
	"github.com/campus-hub/backend/internal/auth/token"
	"github.com/campus-hub/backend/internal/bookings"
	"github.com/campus-hub/backend/internal/categories"
	"github.com/campus-hub/backend/internal/chat"
	"github.com/campus-hub/backend/internal/events"
	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/internal/models"
	"github.com/campus-hub/backend/internal/notifications"
	"github.com/campus-hub/backend/internal/realtime"
	"github.com/campus-hub/backend/internal/registrations"
	"github.com/campus-hub/backend/pkg/database"
	"github.com/campus-hub/backend/pkg/queue"
	"github.com/campus-hub/backend/pkg/redis"
	"github.com/campus-hub/backend/pkg/response"
	"github.com/campus-hub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MaxConnLifetime: time.Hour,
	}, logger)
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

	var images events.ImageStore
	if cfg.AWS.Region != "" && cfg.AWS.MediaBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			MediaBucket:     cfg.AWS.MediaBucket,
			PublicBaseURL:   cfg.AWS.PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			images = s3Client
		}
	}

	jwtService := token.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	hub := realtime.NewHub(realtime.NewRedisPubSub(rdb.Client, logger), logger)

	// Users
	userRepo := auth.NewRepository(pool)
	if err := auth.EnsureDefaultAdmin(ctx, userRepo, cfg.Admin.Email, cfg.Admin.Password, logger); err != nil {
		logger.Error("ensure default admin", zap.Error(err))
	}
	authHandler := auth.NewHandler(userRepo, jwtService, jobQueue, images, auth.NewGoogleVerifier(cfg.Google.ClientID),
		auth.Options{ClientURL: cfg.Server.ClientURL, CookieSecure: cfg.Server.CookieSecure}, logger)

	// Notifications
	notificationSvc := notifications.NewService(notifications.NewRepository(pool), hub, logger)
	notificationHandler := notifications.NewHandler(notificationSvc, logger)

	// Events, seats, bookings, registrations
	categoryHandler := categories.NewHandler(categories.NewRepository(pool), logger)
	eventHandler := events.NewHandler(events.NewRepository(pool), images, notificationSvc, logger)
	bookingHandler := bookings.NewHandler(bookings.NewRepository(pool), logger)
	registrationHandler := registrations.NewHandler(registrations.NewRepository(pool), logger)

	// Chat
	chatSvc := chat.NewService(chat.NewRepository(pool), hub, logger)
	chatHandler := chat.NewHandler(chatSvc, logger)

	authMW := middleware.JWT(jwtService, userRepo)
	adminMW := middleware.RequireRole(string(models.RoleAdmin))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil || !rdb.Healthy(c.Request.Context(), 2*time.Second) {
			response.ServiceUnavailable(c, "dependencies unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	authHandler.RegisterRoutes(api.Group("/user"), authMW)
	categoryHandler.RegisterRoutes(api.Group("/categories"), authMW, adminMW)
	eventHandler.RegisterRoutes(api.Group("/events"), authMW)
	bookingHandler.RegisterRoutes(api.Group("/bookings"), authMW)
	registrationHandler.RegisterRoutes(api.Group("/registrations"), authMW, adminMW)
	notificationHandler.RegisterRoutes(api.Group("/notifications"), authMW, adminMW)
	chatHandler.RegisterRoutes(api.Group("/chat"), authMW)
	chatHandler.RegisterMessageRoutes(api.Group("/message"), authMW)

	// WebSocket (token cookie, or token in query for clients that cannot send cookies)
	router.GET("/ws", realtime.ServeWs(hub, chatSvc, func(raw string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(raw)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil {
			logger.Error("realtime bus stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	hubCancel()
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
