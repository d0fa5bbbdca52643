package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"referral-tg-admin/internal/api"
	"referral-tg-admin/internal/config"
	"referral-tg-admin/internal/constants"
	"referral-tg-admin/internal/permissions"
	"referral-tg-admin/internal/services"
	"referral-tg-admin/internal/storage"
	"referral-tg-admin/pkg/telegrambot"
)

func main() {
	// Setup logger
	logger := setupLogger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: ", err)
	}
	applyLogLevel(logger, cfg.LogLevel)

	// Open the record store
	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open storage: ", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close storage: %v", err)
		}
	}()

	// Initialize services
	stateService := services.NewUserStateService(logger)
	qrService := services.NewQRService(logger)
	ledger := services.NewLedgerService(store, services.NewLogNotifier(logger), cfg, logger)
	authService := services.NewAuthService(store, cfg.Auth, logger)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		logger.Fatal("Failed to prepare admin account: ", err)
	}

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	var wg sync.WaitGroup

	if cfg.Telegram.Enabled() {
		permController := permissions.NewController(cfg.Telegram.AdminIDs, logger)

		bot, err := telegrambot.NewBot(cfg, ledger, stateService, qrService, permController, logger)
		if err != nil {
			logger.Fatal("Failed to create bot: ", err)
		}
		ledger.SetNotifier(bot)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Start(ctx); err != nil {
				logger.Errorf("Bot failed: %v", err)
				cancel()
			}
		}()
	} else {
		logger.Warn("Telegram bot token is not set, running the admin API only")
	}

	// Start admin API
	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewServer(ledger, authService, logger).Router(),
	}

	go func() {
		logger.Infof("Admin API listening on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Admin API failed: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Failed to shut down admin API: %v", err)
	}

	wg.Wait()
	logger.Info("Shutdown complete")
}

// setupLogger sets up the logger
func setupLogger() *logrus.Logger {
	logger := logrus.New()

	// Set log level from environment variable or default to info
	applyLogLevel(logger, os.Getenv("LOG_LEVEL"))

	// Set formatter
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: constants.TimestampFormat,
	})

	return logger
}

func applyLogLevel(logger *logrus.Logger, logLevel string) {
	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.Printf("Invalid log level %s, defaulting to info", logLevel)
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
}
