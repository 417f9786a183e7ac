// Package di wires the paper trader's components together.
package di

import (
	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/events"
	"github.com/aristath/papertrader/internal/gateways"
	"github.com/aristath/papertrader/internal/modules/backtest"
	"github.com/aristath/papertrader/internal/modules/marketdata"
	"github.com/aristath/papertrader/internal/modules/trading"
	"github.com/aristath/papertrader/internal/scheduler"
	"github.com/aristath/papertrader/internal/server"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	JournalDB   *database.DB // trades journaled from the live paper engine
	BacktestsDB *database.DB // archived backtest runs

	// Plumbing
	Bus      *events.Bus
	Registry *gateways.Registry
	Stream   *server.EventStream

	// Gateways
	DataGateway  domain.DataGateway
	TradeGateway domain.TradeGateway

	// Trading
	Engine   *trading.Engine
	Journal  *trading.TradeJournal
	Recorder *marketdata.Recorder // nil unless tick recording is enabled

	// Backtesting
	Results *backtest.ResultRepository
}

// JobInstances holds the scheduled jobs
type JobInstances struct {
	PortfolioReport     scheduler.Job
	CheckWALCheckpoints scheduler.Job
}

// Close releases databases and the tick recording
func (c *Container) Close() {
	if c.Recorder != nil {
		_ = c.Recorder.Close()
	}
	if c.JournalDB != nil {
		_ = c.JournalDB.Close()
	}
	if c.BacktestsDB != nil {
		_ = c.BacktestsDB.Close()
	}
}
