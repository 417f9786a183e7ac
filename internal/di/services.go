package di

import (
	"errors"
	"fmt"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/events"
	"github.com/aristath/papertrader/internal/gateways"
	"github.com/aristath/papertrader/internal/modules/backtest"
	"github.com/aristath/papertrader/internal/modules/marketdata"
	"github.com/aristath/papertrader/internal/modules/trading"
	"github.com/aristath/papertrader/internal/server"
	"github.com/rs/zerolog"
)

// ErrNoEngine is returned when the trade gateway is not backed by a paper engine
var ErrNoEngine = errors.New("trade gateway has no paper engine")

// InitializeServices builds the bus, gateways and subscribers.
//
// Subscription order on EventTick: the engine matches first, then the
// recorder and the websocket stream see the same tick.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	bus := events.NewBus(log)
	container.Bus = bus
	container.Registry = gateways.NewRegistry(log)

	params := gateways.Params{
		YahooBaseURL: cfg.YahooBaseURL,
		ReplayPath:   cfg.ReplayPath,
		Polling:      marketdata.Options{Interval: cfg.PollInterval},
		Trading: trading.Config{
			InitialCapital: cfg.InitialCapital,
			CommissionRate: cfg.CommissionRate,
			Slippage:       cfg.Slippage,
		},
		Emitter: bus,
	}

	tradeGateway, err := container.Registry.CreateTradeGateway(cfg.TradeGateway, params)
	if err != nil {
		return err
	}
	container.TradeGateway = tradeGateway

	paper, ok := tradeGateway.(*trading.PaperGateway)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoEngine, cfg.TradeGateway)
	}
	container.Engine = paper.Engine()

	dataGateway, err := container.Registry.CreateDataGateway(cfg.DataGateway, params)
	if err != nil {
		return err
	}
	container.DataGateway = dataGateway
	dataGateway.SetTickHandler(func(tick domain.Tick) {
		bus.Emit(events.EventTick, tick)
	})

	engine := container.Engine
	bus.On(events.EventTick, events.SafeHandler("engine", func(data any) {
		if tick, ok := data.(domain.Tick); ok {
			engine.OnTick(tick)
		}
	}, log))

	if cfg.RecordTicks != "" {
		recorder, err := marketdata.OpenRecorder(cfg.RecordTicks, log)
		if err != nil {
			return fmt.Errorf("failed to open tick recording: %w", err)
		}
		container.Recorder = recorder
		bus.On(events.EventTick, events.SafeHandler("recorder", recorder.Handle, log))
	}

	container.Journal = trading.NewTradeJournal(container.JournalDB.Conn(), log)
	bus.On(events.EventTrade, events.SafeHandler("journal", container.Journal.Handle, log))

	container.Stream = server.NewEventStream(log)
	container.Stream.Attach(bus, events.EventTick, events.EventOrder, events.EventTrade,
		events.EventPosition, events.EventAccount)

	container.Results = backtest.NewResultRepository(container.BacktestsDB.Conn(), log)

	log.Info().
		Str("data_gateway", cfg.DataGateway).
		Str("trade_gateway", cfg.TradeGateway).
		Strs("symbols", cfg.Symbols).
		Msg("Services initialized")
	return nil
}
