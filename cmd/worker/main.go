// Package main runs the background worker: email delivery and event reminders.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campus-hub/backend/config"
	"github.com/campus-hub/backend/internal/events"
	"github.com/campus-hub/backend/internal/notifications"
	"github.com/campus-hub/backend/internal/realtime"
	"github.com/campus-hub/backend/internal/registrations"
	"github.com/campus-hub/backend/internal/worker"
	"github.com/campus-hub/backend/pkg/database"
	"github.com/campus-hub/backend/pkg/email"
	"github.com/campus-hub/backend/pkg/queue"
	"github.com/campus-hub/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	mailer := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:          cfg.Email.SESRegion,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		},
	}, logger)
	processor := worker.NewEmailProcessor(email.NewRenderer(), mailer, jobQueue, logger)

	// Notifications created here reach sockets through the server's Redis subscription.
	dispatcher := realtime.NewPublisher(realtime.NewRedisPubSub(rdb.Client, logger), logger)
	notificationSvc := notifications.NewService(notifications.NewRepository(pool), dispatcher, logger)
	reminders := worker.NewReminderScheduler(
		events.NewRepository(pool),
		registrations.NewRepository(pool),
		notificationSvc,
		jobQueue,
		time.Duration(cfg.Worker.ReminderIntervalSec)*time.Second,
		time.Duration(cfg.Worker.ReminderLeadHours)*time.Hour,
		logger,
	)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go reminders.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
