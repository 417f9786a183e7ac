// Package backtest replays a signal series against a price series using the
// paper execution engine's accounting.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/modules/trading"
	"github.com/rs/zerolog"
)

var (
	// ErrShapeMismatch is returned when signals and prices differ in length or index
	ErrShapeMismatch = errors.New("signal and price series shapes differ")
	// ErrInvalidPrice is returned for non-positive, NaN or infinite prices
	ErrInvalidPrice = errors.New("invalid price in series")
)

// Signal intents
const (
	SignalSell = -1
	SignalHold = 0
	SignalBuy  = 1
)

// PriceSeries is a close price per index point. Index may be nil for a
// purely positional series.
type PriceSeries struct {
	Index  []time.Time
	Values []float64
}

// Len returns the number of points
func (s PriceSeries) Len() int { return len(s.Values) }

// SignalSeries is a trading intent per index point
type SignalSeries struct {
	Index  []time.Time
	Values []int
}

// Len returns the number of points
func (s SignalSeries) Len() int { return len(s.Values) }

// Config holds the simulated account parameters
type Config struct {
	CostBasis      trading.CostBasisPolicy
	InitialCapital float64
	CommissionRate float64
	Slippage       float64
}

// Result is a finished backtest
type Result struct {
	ID        string                     `json:"id,omitempty"`
	Symbol    string                     `json:"symbol"`
	Strategy  string                     `json:"strategy,omitempty"`
	Config    Config                     `json:"-"`
	Trades    []domain.Trade             `json:"trades"`
	Snapshots []domain.PortfolioSnapshot `json:"values"`
	Metrics   Metrics                    `json:"metrics"`
	CreatedAt time.Time                  `json:"created_at"`
}

// Engine runs deterministic backtests. It holds no state between runs.
type Engine struct {
	cfg Config
	log zerolog.Logger
	now func() time.Time
}

// NewEngine creates a backtest engine
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "backtest").Logger(),
		now: time.Now,
	}
}

// RunBacktest replays signals over prices with the given capital and
// commission rate, returning the trade list and one snapshot per row.
func RunBacktest(symbol string, signals SignalSeries, prices PriceSeries, initialCapital, commission float64) ([]domain.Trade, []domain.PortfolioSnapshot, error) {
	engine := NewEngine(Config{InitialCapital: initialCapital, CommissionRate: commission}, zerolog.Nop())
	result, err := engine.Run(symbol, signals, prices)
	if err != nil {
		return nil, nil, err
	}
	return result.Trades, result.Snapshots, nil
}

// Run replays signals over prices.
//
// Row by row: a buy signal spends as much cash as whole shares allow, a
// sell signal closes the whole position, anything else holds. A sell while
// flat does nothing. A snapshot is taken after acting.
func (e *Engine) Run(symbol string, signals SignalSeries, prices PriceSeries) (*Result, error) {
	if err := checkShape(signals, prices); err != nil {
		return nil, err
	}

	acct := trading.NewEngine(trading.Config{
		InitialCapital: e.cfg.InitialCapital,
		CommissionRate: e.cfg.CommissionRate,
		Slippage:       e.cfg.Slippage,
		CostBasis:      e.cfg.CostBasis,
		// Rows without an index keep the zero time
		Clock: func() time.Time { return time.Time{} },
	}, nil, e.log.Level(zerolog.WarnLevel))

	unitFactor := (1 + e.cfg.Slippage) * (1 + e.cfg.CommissionRate)
	snapshots := make([]domain.PortfolioSnapshot, 0, prices.Len())

	for i, price := range prices.Values {
		date := rowDate(prices, i)
		signal := signals.Values[i]

		switch {
		case signal > 0:
			qty := int64(math.Floor(acct.Cash() / (price * unitFactor)))
			if qty > 0 {
				acct.ExecuteTrade(symbol, qty, price, date)
			}
		case signal < 0:
			if held := acct.Position(symbol); held > 0 {
				acct.ExecuteTrade(symbol, -held, price, date)
			}
		}

		held := acct.Position(symbol)
		cash := acct.Cash()
		posValue := float64(held) * price
		snap := domain.PortfolioSnapshot{
			Date:          date,
			Signal:        signal,
			Price:         price,
			Cash:          cash,
			PositionQty:   held,
			PositionValue: posValue,
			TotalValue:    cash + posValue,
		}
		if i > 0 {
			snap.DailyPnL = snap.TotalValue - snapshots[i-1].TotalValue
		}
		snapshots = append(snapshots, snap)
	}

	trades := acct.Trades()
	result := &Result{
		Symbol:    symbol,
		Config:    e.cfg,
		Trades:    trades,
		Snapshots: snapshots,
		Metrics:   ComputeMetrics(trades, snapshots, e.cfg.InitialCapital),
		CreatedAt: e.now(),
	}

	e.log.Info().
		Str("symbol", symbol).
		Int("rows", len(snapshots)).
		Int("trades", len(trades)).
		Float64("total_return", result.Metrics.TotalReturn).
		Msg("Backtest complete")

	return result, nil
}

func rowDate(prices PriceSeries, i int) time.Time {
	if i < len(prices.Index) {
		return prices.Index[i]
	}
	return time.Time{}
}

func checkShape(signals SignalSeries, prices PriceSeries) error {
	if signals.Len() != prices.Len() {
		return fmt.Errorf("%w: %d signals vs %d prices", ErrShapeMismatch, signals.Len(), prices.Len())
	}
	if signals.Index != nil && len(signals.Index) != signals.Len() {
		return fmt.Errorf("%w: signal index has %d entries for %d values", ErrShapeMismatch, len(signals.Index), signals.Len())
	}
	if prices.Index != nil && len(prices.Index) != prices.Len() {
		return fmt.Errorf("%w: price index has %d entries for %d values", ErrShapeMismatch, len(prices.Index), prices.Len())
	}
	if (signals.Index == nil) != (prices.Index == nil) {
		return fmt.Errorf("%w: only one series is indexed", ErrShapeMismatch)
	}
	for i := range signals.Index {
		if !signals.Index[i].Equal(prices.Index[i]) {
			return fmt.Errorf("%w: index differs at row %d (%s vs %s)", ErrShapeMismatch, i,
				signals.Index[i].Format(time.RFC3339), prices.Index[i].Format(time.RFC3339))
		}
	}
	for i, p := range prices.Values {
		if !domain.ValidPrice(p) {
			return fmt.Errorf("%w: %v at row %d", ErrInvalidPrice, p, i)
		}
	}
	return nil
}
