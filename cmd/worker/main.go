package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/douglas-germano/advantage-crm-backend/internal/database"
	"github.com/douglas-germano/advantage-crm-backend/internal/storage"
	"github.com/douglas-germano/advantage-crm-backend/internal/tasks"
	"github.com/douglas-germano/advantage-crm-backend/pkg/config"
	"github.com/douglas-germano/advantage-crm-backend/pkg/queue"
	"github.com/douglas-germano/advantage-crm-backend/pkg/util"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting CRM worker")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	localStore, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		logger.Error("failed to init local storage", "error", err)
		os.Exit(1)
	}

	var remoteStore storage.Store
	if cfg.Storage.S3Enabled() {
		s3Store, err := storage.NewS3Store(context.Background(), cfg.Storage)
		if err != nil {
			logger.Error("failed to init S3 storage", "error", err)
			os.Exit(1)
		}
		remoteStore = s3Store
	}

	migrator := storage.NewMigrator(db, localStore, remoteStore, logger)

	srv := queue.NewServer(&cfg.Redis, 10)

	handler := tasks.NewHandler(db, logger, migrator)

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
