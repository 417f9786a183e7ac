package trading

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/events"
	"github.com/rs/zerolog"
)

// EventEmitter is the part of the event bus the engine publishes to
type EventEmitter interface {
	Emit(eventType events.EventType, data any)
}

var _ EventEmitter = (*events.Bus)(nil)

// Config holds the accounting parameters of an engine
type Config struct {
	CostBasis      CostBasisPolicy // Defaults to LastBuyCost
	InitialCapital float64
	CommissionRate float64 // Fraction of gross notional charged on both sides
	Slippage       float64 // Fraction applied against the trader before commission
	// Clock stamps orders and trades that arrive without a timestamp.
	// Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the paper account defaults: 100k capital, 0.1% commission, no slippage
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100000,
		CommissionRate: 0.001,
		CostBasis:      LastBuyCost{},
	}
}

// Engine is the paper execution engine. It owns the order registry, the
// position ledger, the trade ledger and the cash balance. One mutex guards
// all four and is held for a full match-and-account step, so cash and
// positions always move together.
//
// Events are published after the mutex is released; handlers may call back
// into the engine.
type Engine struct {
	mu         sync.Mutex
	cfg        Config
	cash       float64
	orders     *OrderRegistry
	positions  *PositionLedger
	trades     []domain.Trade
	lastPrices map[string]float64

	emitter EventEmitter
	now     func() time.Time
	log     zerolog.Logger
}

// NewEngine creates an engine funded with cfg.InitialCapital. emitter may be nil.
func NewEngine(cfg Config, emitter EventEmitter, log zerolog.Logger) *Engine {
	if cfg.CostBasis == nil {
		cfg.CostBasis = LastBuyCost{}
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:        cfg,
		cash:       cfg.InitialCapital,
		orders:     NewOrderRegistry(),
		positions:  NewPositionLedger(),
		lastPrices: make(map[string]float64),
		emitter:    emitter,
		now:        now,
		log:        log.With().Str("component", "execution_engine").Logger(),
	}
}

// event is a bus publication deferred until the engine lock is released
type event struct {
	kind events.EventType
	data any
}

func (e *Engine) publish(pending []event) {
	if e.emitter == nil {
		return
	}
	for _, ev := range pending {
		e.emitter.Emit(ev.kind, ev.data)
	}
}

func (e *Engine) timestamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return e.now()
	}
	return ts
}

// Place validates req and registers it as a PENDING order. Cash and
// positions are untouched until the order fills.
func (e *Engine) Place(req domain.OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	e.mu.Lock()
	order := e.orders.Register(req, e.timestamp(req.Timestamp))
	e.mu.Unlock()

	e.log.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side())).
		Str("type", string(order.Type)).
		Int64("quantity", order.AbsQuantity()).
		Float64("price", order.Price).
		Msg("Order placed")

	e.publish([]event{{events.EventOrder, orderEvent(events.OrderPlaced, order)}})
	return order.ID, nil
}

// OnTick matches every pending order on the tick's symbol, in registration
// order, against the tick price. Matching orders fill at the tick price.
// Warm-up ticks are ignored entirely.
func (e *Engine) OnTick(tick domain.Tick) {
	if tick.IsWarmup() {
		return
	}

	e.mu.Lock()
	e.lastPrices[tick.Symbol] = tick.Price
	var pending []event
	for _, order := range e.orders.Pending(tick.Symbol) {
		if !matches(order, tick.Price) {
			continue
		}
		pending = append(pending, e.executeLocked(order, tick.Price, tick.Timestamp)...)
	}
	e.mu.Unlock()

	e.publish(pending)
}

func matches(order domain.Order, price float64) bool {
	if order.Type == domain.OrderTypeMarket {
		return true
	}
	if order.Side() == domain.SideBuy {
		return price <= order.Price
	}
	return price >= order.Price
}

// Execute fills a pending order at price. It returns false, leaving all
// state unchanged, when the order is unknown or not pending, or when cash
// or position is insufficient.
func (e *Engine) Execute(orderID string, price float64, ts time.Time) bool {
	e.mu.Lock()
	order, ok := e.orders.Get(orderID)
	if !ok || order.Status != domain.OrderStatusPending || !domain.ValidPrice(price) {
		e.mu.Unlock()
		e.log.Warn().
			Str("order_id", orderID).
			Float64("price", price).
			Bool("known", ok).
			Msg("Order cannot be executed")
		return false
	}
	pending := e.executeLocked(order, price, e.timestamp(ts))
	filled := len(pending) > 0
	e.mu.Unlock()

	e.publish(pending)
	return filled
}

// ExecuteTrade records and immediately executes a market order for quantity
// shares (negative to sell) at price. On failure the transient order is
// cancelled and false is returned.
func (e *Engine) ExecuteTrade(symbol string, quantity int64, price float64, ts time.Time) bool {
	req := domain.OrderRequest{
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     price,
		Type:      domain.OrderTypeMarket,
		Timestamp: ts,
	}
	if err := req.Validate(); err != nil || !domain.ValidPrice(price) {
		e.log.Warn().Err(err).Str("symbol", symbol).Int64("quantity", quantity).Msg("Rejected trade")
		return false
	}

	e.mu.Lock()
	at := e.timestamp(ts)
	order := e.orders.Register(req, at)
	pending := e.executeLocked(order, price, at)
	filled := len(pending) > 0
	if !filled {
		// Register never returns a terminal order, so this cannot fail
		_ = e.orders.Cancel(order.ID, at)
	}
	e.mu.Unlock()

	e.publish(pending)
	return filled
}

// executeLocked applies one fill. It returns the events to publish, or nil
// when the fill was rejected. Callers hold e.mu.
func (e *Engine) executeLocked(order domain.Order, price float64, ts time.Time) []event {
	qty := order.AbsQuantity()
	trade := domain.Trade{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side(),
		Quantity:  qty,
		Timestamp: ts,
	}

	if trade.Side == domain.SideBuy {
		fill := price * (1 + e.cfg.Slippage)
		gross := float64(qty) * fill
		commission := gross * e.cfg.CommissionRate
		total := gross + commission
		if total > e.cash {
			e.log.Warn().
				Str("order_id", order.ID).
				Str("symbol", order.Symbol).
				Float64("required", total).
				Float64("cash", e.cash).
				Msg("Insufficient cash")
			return nil
		}
		e.cash -= total
		e.positions.Add(order.Symbol, qty, fill)
		trade.Price = fill
		trade.Commission = commission
		trade.Cost = total
	} else {
		if !e.positions.CanSell(order.Symbol, qty) {
			e.log.Warn().
				Str("order_id", order.ID).
				Str("symbol", order.Symbol).
				Int64("quantity", qty).
				Int64("held", e.positions.Quantity(order.Symbol)).
				Msg("Insufficient position")
			return nil
		}
		fill := price * (1 - e.cfg.Slippage)
		gross := float64(qty) * fill
		commission := gross * e.cfg.CommissionRate
		net := gross - commission
		buyCost := e.cfg.CostBasis.BuyCost(e.trades, order.Symbol, qty)

		pnl := net
		rate := 0.0
		if buyCost > 0 {
			pnl = net - buyCost
			rate = pnl / buyCost
		}
		if err := e.positions.Reduce(order.Symbol, qty); err != nil {
			e.log.Error().Err(err).Str("order_id", order.ID).Msg("Position reduce failed after check")
			return nil
		}
		e.cash += net
		trade.Price = fill
		trade.Commission = commission
		trade.GrossRevenue = gross
		trade.NetRevenue = net
		trade.BuyCost = buyCost
		trade.ProfitLoss = pnl
		trade.ProfitRate = rate
	}

	if err := e.orders.MarkFilled(order.ID, ts); err != nil {
		// Only pending orders reach here; a failure means the registry is corrupt
		panic(fmt.Sprintf("trading: fill of %s: %v", order.ID, err))
	}
	e.trades = append(e.trades, trade)

	e.log.Info().
		Str("order_id", order.ID).
		Str("symbol", trade.Symbol).
		Str("side", string(trade.Side)).
		Int64("quantity", trade.Quantity).
		Float64("price", trade.Price).
		Float64("commission", trade.Commission).
		Float64("cash", e.cash).
		Msg("Order filled")

	filled := order
	filled.Status = domain.OrderStatusFilled
	filled.UpdatedAt = ts
	pos, _ := e.positions.Get(order.Symbol)
	return []event{
		{events.EventOrder, orderEvent(events.OrderFilled, filled)},
		{events.EventTrade, &events.TradeEventData{
			OrderID:    trade.OrderID,
			Symbol:     trade.Symbol,
			Side:       string(trade.Side),
			Quantity:   trade.Quantity,
			Price:      trade.Price,
			Commission: trade.Commission,
			ProfitLoss: trade.ProfitLoss,
			Timestamp:  trade.Timestamp,
		}},
		{events.EventPosition, &events.PositionEventData{
			Symbol:   order.Symbol,
			Quantity: pos.Quantity,
			AvgPrice: pos.AvgPrice,
		}},
		{events.EventAccount, &events.AccountEventData{Cash: e.cash, Timestamp: ts}},
	}
}

// Cancel moves a pending order to CANCELLED. It returns false for unknown
// or already terminal orders, so repeated calls are harmless.
func (e *Engine) Cancel(orderID string) bool {
	e.mu.Lock()
	err := e.orders.Cancel(orderID, e.now())
	order, _ := e.orders.Get(orderID)
	e.mu.Unlock()

	if err != nil {
		e.log.Debug().Err(err).Str("order_id", orderID).Msg("Cancel ignored")
		return false
	}

	e.log.Info().Str("order_id", orderID).Str("symbol", order.Symbol).Msg("Order cancelled")
	e.publish([]event{{events.EventOrder, orderEvent(events.OrderCancelled, order)}})
	return true
}

func orderEvent(action string, o domain.Order) *events.OrderEventData {
	return &events.OrderEventData{
		Action:    action,
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Quantity:  o.Quantity,
		Price:     o.Price,
		OrderType: string(o.Type),
		Status:    string(o.Status),
		Timestamp: o.UpdatedAt,
	}
}

// Cash returns the current cash balance
func (e *Engine) Cash() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash
}

// InitialCapital returns the starting cash
func (e *Engine) InitialCapital() float64 {
	return e.cfg.InitialCapital
}

// Position returns the shares held for symbol
func (e *Engine) Position(symbol string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.Quantity(symbol)
}

// Positions returns every open position sorted by symbol
func (e *Engine) Positions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.All()
}

// Trades returns a copy of the trade ledger in execution order
func (e *Engine) Trades() []domain.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// Order returns a copy of one order
func (e *Engine) Order(orderID string) (domain.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.Get(orderID)
}

// Orders returns every order in registration order
func (e *Engine) Orders() []domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.All()
}

// PendingOrders returns orders awaiting a fill in registration order
func (e *Engine) PendingOrders() []domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders.Pending("")
}

// LastPrice returns the most recent live tick price seen for symbol
func (e *Engine) LastPrice(symbol string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.lastPrices[symbol]
	return p, ok
}

// PortfolioValue returns cash plus positions marked at prices. Symbols
// missing from prices are marked at the last tick, then at average entry.
func (e *Engine) PortfolioValue(prices map[string]float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolioValueLocked(prices)
}

func (e *Engine) portfolioValueLocked(prices map[string]float64) float64 {
	total := e.cash
	for _, pos := range e.positions.All() {
		price, ok := prices[pos.Symbol]
		if !ok {
			if price, ok = e.lastPrices[pos.Symbol]; !ok {
				price = pos.AvgPrice
			}
		}
		total += float64(pos.Quantity) * price
	}
	return total
}

// Summary returns the account overview marked at prices
func (e *Engine) Summary(prices map[string]float64) domain.PortfolioSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := e.portfolioValueLocked(prices)
	positions := make(map[string]int64)
	for _, pos := range e.positions.All() {
		positions[pos.Symbol] = pos.Quantity
	}
	var ret float64
	if e.cfg.InitialCapital > 0 {
		ret = (total - e.cfg.InitialCapital) / e.cfg.InitialCapital
	}
	return domain.PortfolioSummary{
		TotalValue:  total,
		Cash:        e.cash,
		Positions:   positions,
		TotalReturn: ret,
		TotalTrades: len(e.trades),
		OpenOrders:  e.orders.PendingCount(),
	}
}
