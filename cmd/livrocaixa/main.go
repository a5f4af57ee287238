package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"livrocaixa/internal/amqp"
	"livrocaixa/internal/auth"
	"livrocaixa/internal/blob"
	"livrocaixa/internal/cache"
	"livrocaixa/internal/cli"
	apphttp "livrocaixa/internal/http"
	"livrocaixa/internal/ledger"
	"livrocaixa/internal/services"
)

const balanceCacheSize = 256

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backend := cli.InitBackend(context.Background(), logger, cfg)

	// AMQP is optional; without it the worker never hears about changes.
	var (
		publisher  services.Publisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, ledger changes will not be published", "error", err)
		} else {
			amqpClient, publisher = c, c
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - ledger changes will not be published")
	}

	balances := cache.NewLRUCache[[]ledger.AccountBalance](balanceCacheSize, cfg.BalanceCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(balances)
	cacheManager.StartCleanup(time.Minute)

	calc := ledger.NewCalculator(backend.Store, balances, logger)

	var (
		attachments *services.AttachmentService
		gcs         *blob.GCS
	)
	if cfg.GCSBucket != "" {
		g, err := blob.NewGCS(context.Background(), cfg.GCSBucket)
		if err != nil {
			logger.Error("Failed to initialize attachment storage", "error", err, "bucket", cfg.GCSBucket)
			os.Exit(1)
		}
		gcs = g
		attachments = services.NewAttachmentService(backend.Store, g, cfg.AttachmentURLTTL, logger)
		logger.Info("Attachment storage initialized", "bucket", cfg.GCSBucket)
	} else if cfg.DataBackend == "memory" {
		attachments = services.NewAttachmentService(backend.Store, blob.NewMemory(), cfg.AttachmentURLTTL, logger)
		logger.Info("Attachments kept in memory")
	} else {
		logger.Info("Attachments disabled - no GCS_BUCKET provided")
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to initialize token issuer", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:       backend.Store,
		Ledger:      services.NewLedgerService(backend.Store, backend.Allocator, publisher, calc, logger),
		Imports:     services.NewImportService(backend.Store, cfg.ImportBatchSize, publisher, calc, logger),
		Admin:       services.NewAdminService(backend.Store, calc, logger),
		Attachments: attachments,
		Calculator:  calc,
		Issuer:      issuer,
		OrgName:     cfg.OrgName,
		Logger:      logger,
	})

	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if gcs != nil {
			if err := gcs.Close(); err != nil {
				logger.Warn("Attachment storage close error", "error", err)
			}
		}
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting livrocaixa server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"doc_numbers", cfg.DocSeqBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
