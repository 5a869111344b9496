package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/damsblt/helvetiforma-sub002/internal/client"
	"github.com/damsblt/helvetiforma-sub002/internal/config"
	"github.com/damsblt/helvetiforma-sub002/internal/repository"
	"github.com/damsblt/helvetiforma-sub002/internal/server"
	"github.com/damsblt/helvetiforma-sub002/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(&cfg.Log)

	db := client.InitSqliteClient(cfg.DatabasePath)
	identityClient := client.NewIdentityClient(&cfg.Identity)
	commerceClient := client.NewCommerceClient(&cfg.Commerce)
	learningClient := client.NewLearningClient(&cfg.Learning)

	contentRepo := repository.NewContentRepository(db)
	callbackRepo := repository.NewCallbackEventRepository(db)

	identity := service.NewIdentityResolver(identityClient, logger)
	ledger := service.NewPurchaseLedger(commerceClient)
	enrollmentService := service.NewEnrollmentService(learningClient, identityClient, callbackRepo, logger)
	entitlementService := service.NewEntitlementService(ledger, enrollmentService)
	purchaseRecorder := service.NewPurchaseRecorder(contentRepo, callbackRepo, ledger, identity, logger)
	contentService := service.NewContentService(contentRepo)

	srv := server.NewServer(
		logger,
		identity,
		entitlementService,
		purchaseRecorder,
		enrollmentService,
		contentService,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	logger.Info("starting HTTP server", "addr", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		os.Exit(1)
	}
}

func newLogger(logCfg *config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logCfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if logCfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
