// Package main provides the API server entry point for the ETF dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etf-dashboard/internal/adapter"
	"github.com/etf-dashboard/internal/api"
	"github.com/etf-dashboard/internal/config"
	"github.com/etf-dashboard/internal/logging"
	"github.com/etf-dashboard/internal/service"
	"github.com/etf-dashboard/internal/storage"
)

func main() {
	fmt.Println("ETF Dashboard API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	conns, err := storage.Open(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	defer func() {
		if err := conns.Close(); err != nil {
			logger.WithError(err).Warn("Error closing storage connections")
		}
	}()

	provider := conns.WrapProvider(adapter.NewYahooClient(adapter.YahooConfig{
		BaseURL:           cfg.Market.BaseURL,
		Timeout:           cfg.Market.Timeout,
		RequestsPerSecond: cfg.Market.RequestsPerSecond,
		MaxAttempts:       cfg.Market.MaxAttempts,
	}))

	ledgerService := service.NewLedgerService(conns.LedgerStore(), cfg.Market.Instruments, cfg.Ledger.SessionKey)
	dashboardService := service.NewDashboardService(provider, ledgerService)

	logger.WithField("instruments", cfg.Market.Instruments).Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, dashboardService, ledgerService)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
