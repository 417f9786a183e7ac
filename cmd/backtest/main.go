// Package main runs a moving-average crossover backtest over a price CSV.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/modules/backtest"
	"github.com/aristath/papertrader/internal/modules/signals"
	"github.com/aristath/papertrader/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	var (
		csvPath    = flag.String("csv", "", "price CSV with Date and Close columns (required)")
		symbol     = flag.String("symbol", "AAPL", "symbol label for the report")
		fast       = flag.Int("fast", 5, "fast SMA window")
		slow       = flag.Int("slow", 20, "slow SMA window")
		capital    = flag.Float64("capital", 100000, "initial capital")
		commission = flag.Float64("commission", 0.001, "commission rate per side")
		slippage   = flag.Float64("slippage", 0, "slippage fraction")
		save       = flag.Bool("save", false, "archive the run in the backtests database")
		dataDir    = flag.String("data-dir", os.Getenv("TRADER_DATA_DIR"), "data directory for -save")
		logLevel   = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: *logLevel, Pretty: true})

	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open price file")
	}
	prices, err := backtest.LoadPriceCSV(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load prices")
	}

	strategy, err := signals.NewSMACross(*fast, *slow)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid strategy")
	}
	intents, err := strategy.Generate(prices.Values)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate signals")
	}

	engine := backtest.NewEngine(backtest.Config{
		InitialCapital: *capital,
		CommissionRate: *commission,
		Slippage:       *slippage,
	}, log)
	result, err := engine.Run(*symbol, backtest.SignalSeries{Index: prices.Index, Values: intents}, prices)
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}
	result.Strategy = strategy.Name()

	if *save {
		dir := *dataDir
		if dir == "" {
			dir = "./data"
		}
		if err := archive(dir, result, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to archive backtest")
		}
	}

	if err := backtest.WriteReport(os.Stdout, result); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
	if result.ID != "" {
		fmt.Printf("\nArchived as %s\n", result.ID)
	}
}

func archive(dir string, result *backtest.Result, log zerolog.Logger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "backtests.db"),
		Profile: database.ProfileStandard,
		Name:    "backtests",
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}
	_, err = backtest.NewResultRepository(db.Conn(), log).Save(result)
	return err
}
