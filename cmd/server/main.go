// Package main is the entry point for the paper trading server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/di"
	"github.com/aristath/papertrader/internal/modules/backtest"
	backtesthandlers "github.com/aristath/papertrader/internal/modules/backtest/handlers"
	tradinghandlers "github.com/aristath/papertrader/internal/modules/trading/handlers"
	"github.com/aristath/papertrader/internal/scheduler"
	"github.com/aristath/papertrader/internal/server"
	"github.com/aristath/papertrader/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	logger.SetGlobalLogger(log)
	log.Info().Msg("Starting paper trader")

	sched := scheduler.New(log)
	container, _, err := di.Wire(cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	if !container.TradeGateway.Connect() {
		log.Fatal().Str("gateway", cfg.TradeGateway).Msg("Trade gateway failed to connect")
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
	connected := container.DataGateway.Connect(connectCtx)
	connectCancel()
	if !connected {
		log.Fatal().Str("gateway", cfg.DataGateway).Msg("Data gateway failed to connect")
	}
	if !container.DataGateway.Subscribe(cfg.Symbols) {
		log.Fatal().Strs("symbols", cfg.Symbols).Msg("Data gateway rejected subscription")
	}

	var symbols server.SymbolLister
	if lister, ok := container.DataGateway.(server.SymbolLister); ok {
		symbols = lister
	}

	srv := server.New(server.Config{
		Log:  log,
		Port: cfg.Port,
		Handlers: []server.RouteRegistrar{
			tradinghandlers.NewTradingHandlers(container.TradeGateway, container.Engine, container.Journal, log),
			backtesthandlers.NewBacktestHandlers(container.Results, backtest.Config{
				InitialCapital: cfg.InitialCapital,
				CommissionRate: cfg.CommissionRate,
				Slippage:       cfg.Slippage,
			}, log),
		},
		System: server.NewSystemHandlers(server.SystemInfo{
			DataGateway:  cfg.DataGateway,
			TradeGateway: cfg.TradeGateway,
			Jobs:         sched,
		}, container.Engine, symbols, container.Stream, log),
		Stream: container.Stream,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.DataGateway.Start()
	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()
	container.DataGateway.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	summary := container.Engine.Summary(nil)
	log.Info().
		Float64("total_value", summary.TotalValue).
		Float64("total_return", summary.TotalReturn).
		Int("trades", summary.TotalTrades).
		Msg("Server stopped")
}
