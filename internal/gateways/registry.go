// Package gateways maps configuration names to data and trade gateway constructors.
package gateways

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/marketdata"
	"github.com/aristath/papertrader/internal/modules/trading"
	"github.com/rs/zerolog"
)

// ErrUnknownGateway is returned when a name has no registered constructor
var ErrUnknownGateway = errors.New("unknown gateway")

// Params carries everything a constructor may need. Constructors ignore
// fields they do not use.
type Params struct {
	BasePrices   map[string]float64 // sim: starting prices
	Seed         int64              // sim: random seed, 0 picks one from the clock
	YahooBaseURL string             // yahoo: API host override
	ReplayPath   string             // replay: msgpack recording to play back
	Polling      marketdata.Options
	Trading      trading.Config
	Emitter      trading.EventEmitter // paper: where engine events are published
}

// DataGatewayFactory builds a market-data gateway
type DataGatewayFactory func(p Params, log zerolog.Logger) (domain.DataGateway, error)

// TradeGatewayFactory builds a trade gateway
type TradeGatewayFactory func(p Params, log zerolog.Logger) (domain.TradeGateway, error)

// Registry holds gateway constructors by name. Each Registry is independent;
// there is no package-level default.
type Registry struct {
	mu    sync.RWMutex
	data  map[string]DataGatewayFactory
	trade map[string]TradeGatewayFactory
	log   zerolog.Logger
}

// NewRegistry creates a registry with the built-in gateways: data "sim",
// "yahoo" and "replay", trade "paper".
func NewRegistry(log zerolog.Logger) *Registry {
	r := &Registry{
		data:  make(map[string]DataGatewayFactory),
		trade: make(map[string]TradeGatewayFactory),
		log:   log.With().Str("component", "gateway_registry").Logger(),
	}
	r.RegisterDataGateway("sim", newSimGateway)
	r.RegisterDataGateway("yahoo", newYahooGateway)
	r.RegisterDataGateway("replay", newReplayGateway)
	r.RegisterTradeGateway("paper", newPaperGateway)
	return r
}

// RegisterDataGateway adds or replaces a data gateway constructor
func (r *Registry) RegisterDataGateway(name string, factory DataGatewayFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = factory
}

// RegisterTradeGateway adds or replaces a trade gateway constructor
func (r *Registry) RegisterTradeGateway(name string, factory TradeGatewayFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trade[name] = factory
}

// CreateDataGateway builds the data gateway registered under name
func (r *Registry) CreateDataGateway(name string, p Params) (domain.DataGateway, error) {
	r.mu.RLock()
	factory, ok := r.data[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: data gateway %q (available: %v)", ErrUnknownGateway, name, r.DataGatewayNames())
	}

	gw, err := factory(p, r.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create data gateway %q: %w", name, err)
	}
	r.log.Info().Str("gateway", name).Msg("Data gateway created")
	return gw, nil
}

// CreateTradeGateway builds the trade gateway registered under name
func (r *Registry) CreateTradeGateway(name string, p Params) (domain.TradeGateway, error) {
	r.mu.RLock()
	factory, ok := r.trade[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: trade gateway %q (available: %v)", ErrUnknownGateway, name, r.TradeGatewayNames())
	}

	gw, err := factory(p, r.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create trade gateway %q: %w", name, err)
	}
	r.log.Info().Str("gateway", name).Msg("Trade gateway created")
	return gw, nil
}

// DataGatewayNames returns the registered data gateway names, sorted
func (r *Registry) DataGatewayNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.data))
	for name := range r.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TradeGatewayNames returns the registered trade gateway names, sorted
func (r *Registry) TradeGatewayNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.trade))
	for name := range r.trade {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newSimGateway(p Params, log zerolog.Logger) (domain.DataGateway, error) {
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return marketdata.NewPollingGateway(marketdata.NewSimulatedSource(p.BasePrices, seed), p.Polling, log), nil
}

func newYahooGateway(p Params, log zerolog.Logger) (domain.DataGateway, error) {
	return marketdata.NewPollingGateway(marketdata.NewYahooSource(p.YahooBaseURL, log), p.Polling, log), nil
}

func newReplayGateway(p Params, log zerolog.Logger) (domain.DataGateway, error) {
	if p.ReplayPath == "" {
		return nil, errors.New("replay gateway requires a recording path")
	}
	src, err := marketdata.OpenReplaySource(p.ReplayPath)
	if err != nil {
		return nil, err
	}
	return marketdata.NewPollingGateway(src, p.Polling, log), nil
}

func newPaperGateway(p Params, log zerolog.Logger) (domain.TradeGateway, error) {
	engine := trading.NewEngine(p.Trading, p.Emitter, log)
	return trading.NewPaperGateway(engine, log), nil
}
