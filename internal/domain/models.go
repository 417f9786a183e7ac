// Package domain provides core domain models and types.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrInvalidTick is returned by NewTick for malformed quotes
	ErrInvalidTick = errors.New("invalid tick")
	// ErrInvalidOrder is returned when an OrderRequest fails validation
	ErrInvalidOrder = errors.New("invalid order request")
)

// TickKind distinguishes backfilled samples from live quotes
type TickKind string

const (
	// TickLive is a quote produced by the polling loop
	TickLive TickKind = "live"
	// TickWarmup is a historical sample pushed during subscribe; never matched against orders
	TickWarmup TickKind = "warmup"
)

// Tick is one price observation for a symbol. Ticks are passed by value and never mutated.
type Tick struct {
	Timestamp time.Time `json:"timestamp" msgpack:"ts"`
	Symbol    string    `json:"symbol" msgpack:"s"`
	Source    string    `json:"source" msgpack:"src"`
	Kind      TickKind  `json:"kind" msgpack:"k"`
	Price     float64   `json:"price" msgpack:"p"`
	Volume    int64     `json:"volume" msgpack:"v"` // 0 when the source does not report volume
}

// ValidPrice reports whether p is a finite positive price
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 1)
}

// NewTick validates and builds a tick. A zero timestamp is replaced with the current time.
func NewTick(symbol string, price float64, ts time.Time, volume int64, source string, kind TickKind) (Tick, error) {
	if strings.TrimSpace(symbol) == "" {
		return Tick{}, fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	}
	if !ValidPrice(price) {
		return Tick{}, fmt.Errorf("%w: price must be finite and positive, got %v for %s", ErrInvalidTick, price, symbol)
	}
	if volume < 0 {
		volume = 0
	}
	if kind == "" {
		kind = TickLive
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return Tick{
		Symbol:    symbol,
		Price:     price,
		Timestamp: ts,
		Volume:    volume,
		Source:    source,
		Kind:      kind,
	}, nil
}

// IsWarmup reports whether the tick came from a subscribe-time backfill
func (t Tick) IsWarmup() bool {
	return t.Kind == TickWarmup
}

// OrderType is market or limit
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// Side is buy or sell, derived from the sign of the quantity
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderRequest describes an order before it is registered.
// Quantity is signed: positive buys, negative sells.
type OrderRequest struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Type      OrderType `json:"order_type"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"` // Limit price, or optional reference price for market orders
}

// NewLimitOrder builds a limit order request
func NewLimitOrder(symbol string, quantity int64, price float64) OrderRequest {
	return OrderRequest{Symbol: symbol, Quantity: quantity, Price: price, Type: OrderTypeLimit}
}

// NewMarketOrder builds a market order request
func NewMarketOrder(symbol string, quantity int64) OrderRequest {
	return OrderRequest{Symbol: symbol, Quantity: quantity, Type: OrderTypeMarket}
}

// Side returns the trade direction of the request
func (r OrderRequest) Side() Side {
	if r.Quantity < 0 {
		return SideSell
	}
	return SideBuy
}

// Validate checks the request is well formed
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if r.Quantity == 0 {
		return fmt.Errorf("%w: quantity must be non-zero", ErrInvalidOrder)
	}
	switch r.Type {
	case OrderTypeLimit:
		if !ValidPrice(r.Price) {
			return fmt.Errorf("%w: limit price must be finite and positive, got %v", ErrInvalidOrder, r.Price)
		}
	case OrderTypeMarket:
		if r.Price < 0 {
			return fmt.Errorf("%w: reference price must not be negative, got %v", ErrInvalidOrder, r.Price)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, r.Type)
	}
	return nil
}

// Order is a registered order request with identity and status
type Order struct {
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	ID        string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Type      OrderType   `json:"order_type"`
	Status    OrderStatus `json:"status"`
	Quantity  int64       `json:"quantity"`
	Price     float64     `json:"price"`
}

// Side returns the trade direction of the order
func (o Order) Side() Side {
	if o.Quantity < 0 {
		return SideSell
	}
	return SideBuy
}

// AbsQuantity returns the unsigned share count
func (o Order) AbsQuantity() int64 {
	if o.Quantity < 0 {
		return -o.Quantity
	}
	return o.Quantity
}

// Position is a long-only holding
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	AvgPrice float64 `json:"avg_price"` // Informational; P&L uses the cost basis policy
}

// Trade is one executed fill. Buy fields and sell fields are mutually exclusive:
// buys set Cost, sells set GrossRevenue, NetRevenue, BuyCost, ProfitLoss and ProfitRate.
type Trade struct {
	Timestamp    time.Time `json:"timestamp"`
	OrderID      string    `json:"order_id"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"type"`
	Quantity     int64     `json:"quantity"` // Always positive
	Price        float64   `json:"price"`
	Commission   float64   `json:"commission"`
	Cost         float64   `json:"cost,omitempty"`
	GrossRevenue float64   `json:"gross_revenue,omitempty"`
	NetRevenue   float64   `json:"net_revenue,omitempty"`
	BuyCost      float64   `json:"buy_cost,omitempty"`
	ProfitLoss   float64   `json:"profit_loss,omitempty"`
	ProfitRate   float64   `json:"profit_rate,omitempty"`
}

// PortfolioSnapshot is one row of a backtest value series
type PortfolioSnapshot struct {
	Date          time.Time `json:"date"`
	Signal        int       `json:"signal"`
	Price         float64   `json:"price"`
	Cash          float64   `json:"cash"`
	PositionQty   int64     `json:"position"`
	PositionValue float64   `json:"position_value"`
	TotalValue    float64   `json:"total_value"`
	DailyPnL      float64   `json:"daily_pnl"`
}

// PortfolioSummary is the account overview of a paper engine
type PortfolioSummary struct {
	Positions   map[string]int64 `json:"positions"`
	TotalValue  float64          `json:"total_value"`
	Cash        float64          `json:"cash"`
	TotalReturn float64          `json:"total_return"`
	TotalTrades int              `json:"total_trades"`
	OpenOrders  int              `json:"open_orders"`
}
