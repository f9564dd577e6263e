package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/abduss/treedrive/internal/auth"
	"github.com/abduss/treedrive/internal/config"
	"github.com/abduss/treedrive/internal/file"
	"github.com/abduss/treedrive/internal/folder"
	"github.com/abduss/treedrive/internal/logger"
	"github.com/abduss/treedrive/internal/metrics"
	"github.com/abduss/treedrive/internal/presigned"
	"github.com/abduss/treedrive/internal/server"
	"github.com/abduss/treedrive/internal/storage"
	"github.com/abduss/treedrive/internal/tracing"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

func main() {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	// config comes first so the logger can honour cfg.Log
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, zl)
	if err != nil {
		zl.Fatal("init tracing", zap.Error(err))
	}
	metrics.InitMetrics()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.Postgres.AutoMigrate {
		if err := storage.Migrate(ctx, dbPool, zl); err != nil {
			zl.Fatal("migrate", zap.Error(err))
		}
	}

	var (
		minioClient *minio.Client
		blobs       file.BlobStore
	)
	switch cfg.Storage.BlobBackend {
	case config.BlobBackendLocal:
		local, err := file.NewLocalStore(cfg.Storage.UploadDir)
		if err != nil {
			zl.Fatal("open upload dir", zap.Error(err))
		}
		blobs = local
	default:
		minioClient, err = storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			zl.Fatal("connect minio", zap.Error(err))
		}
		if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
			zl.Fatal("ensure bucket", zap.Error(err))
		}
		blobs = file.NewMinIOStore(minioClient, cfg.MinIO.Bucket)
	}

	txManager := storage.NewTxManager(dbPool, zl)
	folderRepo := folder.NewRepository(dbPool)
	fileRepo := file.NewRepository(dbPool)

	folderService := folder.NewService(folderRepo, fileRepo, blobs, txManager, zl.Named("folder"))
	fileService := file.NewService(fileRepo, folderService, blobs, cfg.Storage.MaxUploadBytes, zl.Named("file"))

	authRepo := auth.NewRepository(dbPool)
	authService := auth.NewService(authRepo, folderService, cfg.Auth, zl.Named("auth"))

	var presignedService *presigned.Service
	if minioClient != nil {
		presignedService = presigned.NewService(minioClient, fileService, cfg.MinIO.Bucket, cfg.Storage.PresignTTL)
	}

	router := server.NewRouter(server.Dependencies{
		Config:           cfg,
		DB:               dbPool,
		ObjectStore:      minioClient,
		AuthService:      authService,
		FolderService:    folderService,
		FileService:      fileService,
		PresignedService: presignedService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.NewHandler(router, cfg.CORS),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("treedrive API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("blob_backend", cfg.Storage.BlobBackend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	zl.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Warn("flush traces", zap.Error(err))
	}
}
