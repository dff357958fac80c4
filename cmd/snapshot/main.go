// Package main runs one dashboard refresh and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etf-dashboard/internal/adapter"
	"github.com/etf-dashboard/internal/config"
	"github.com/etf-dashboard/internal/errors"
	"github.com/etf-dashboard/internal/logging"
	"github.com/etf-dashboard/internal/service"
	"github.com/etf-dashboard/internal/storage"
	"github.com/etf-dashboard/internal/types"
)

func main() {
	var (
		rangeFlag = flag.String("range", string(types.DefaultRange), "Chart range: 1m, 6m, 1y, 2y, 5y, 10y")
		timeout   = flag.Duration("timeout", time.Minute, "Overall deadline for the refresh")
		pretty    = flag.Bool("pretty", true, "Indent the JSON output")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Logs go to stderr so stdout carries only the dashboard
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.SetOutput(os.Stderr)

	if err := run(cfg, *rangeFlag, *timeout, *pretty); err != nil {
		catErr := errors.Categorize(err)
		logger.WithFields(map[string]interface{}{
			"code":    catErr.Code,
			"details": catErr.Details,
		}).WithError(err).Error("Refresh failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, rangeStr string, timeout time.Duration, pretty bool) error {
	conns, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = conns.Close() }()

	provider := conns.WrapProvider(adapter.NewYahooClient(adapter.YahooConfig{
		BaseURL:           cfg.Market.BaseURL,
		Timeout:           cfg.Market.Timeout,
		RequestsPerSecond: cfg.Market.RequestsPerSecond,
		MaxAttempts:       cfg.Market.MaxAttempts,
	}))
	ledger := service.NewLedgerService(conns.LedgerStore(), cfg.Market.Instruments, cfg.Ledger.SessionKey)
	dashboards := service.NewDashboardService(provider, ledger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dashboard, err := dashboards.Refresh(ctx, rangeStr)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(dashboard)
}
