package trading

import (
	"sync"
	"testing"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

func newTestEngine(capital, commission float64) *Engine {
	return NewEngine(Config{InitialCapital: capital, CommissionRate: commission}, nil, zerolog.Nop())
}

func liveTick(symbol string, price float64) domain.Tick {
	return domain.Tick{Symbol: symbol, Price: price, Timestamp: t0, Kind: domain.TickLive, Source: "test"}
}

func TestEngine_LimitBuyFillsAtTickPrice(t *testing.T) {
	engine := newTestEngine(10000, 0)

	id, err := engine.Place(domain.NewLimitOrder("AAPL", 10, 100))
	require.NoError(t, err)

	engine.OnTick(liveTick("AAPL", 99))

	order, ok := engine.Order(id)
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)

	trades := engine.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, 99.0, trades[0].Price)
	assert.Equal(t, int64(10), trades[0].Quantity)
	assert.InDelta(t, 10000-990, engine.Cash(), 1e-9)
	assert.Equal(t, int64(10), engine.Position("AAPL"))
}

func TestEngine_LimitMatching(t *testing.T) {
	testCases := []struct {
		name       string
		quantity   int64
		limit      float64
		tick       float64
		holdFirst  bool
		wantFilled bool
	}{
		{"buy below limit", 1, 100, 99, false, true},
		{"buy at limit", 1, 100, 100, false, true},
		{"buy above limit", 1, 100, 100.01, false, false},
		{"sell above limit", -1, 100, 101, true, true},
		{"sell at limit", -1, 100, 100, true, true},
		{"sell below limit", -1, 100, 99, true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestEngine(1000, 0)
			if tc.holdFirst {
				require.True(t, engine.ExecuteTrade("AAPL", 1, 50, t0))
			}

			id, err := engine.Place(domain.NewLimitOrder("AAPL", tc.quantity, tc.limit))
			require.NoError(t, err)
			engine.OnTick(liveTick("AAPL", tc.tick))

			order, _ := engine.Order(id)
			if tc.wantFilled {
				assert.Equal(t, domain.OrderStatusFilled, order.Status)
			} else {
				assert.Equal(t, domain.OrderStatusPending, order.Status)
			}
		})
	}
}

func TestEngine_WarmupTickNeverMatches(t *testing.T) {
	engine := newTestEngine(10000, 0)
	id, err := engine.Place(domain.NewLimitOrder("AAPL", 10, 100))
	require.NoError(t, err)

	warm := liveTick("AAPL", 50)
	warm.Kind = domain.TickWarmup
	engine.OnTick(warm)

	order, _ := engine.Order(id)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Empty(t, engine.Trades())
	assert.Equal(t, 10000.0, engine.Cash())
	_, seen := engine.LastPrice("AAPL")
	assert.False(t, seen, "warm-up ticks do not update the last price")
}

func TestEngine_OtherSymbolTickIgnored(t *testing.T) {
	engine := newTestEngine(10000, 0)
	id, _ := engine.Place(domain.NewLimitOrder("AAPL", 1, 100))

	engine.OnTick(liveTick("MSFT", 1))

	order, _ := engine.Order(id)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func TestEngine_AllMatchingOrdersFillInRegistrationOrder(t *testing.T) {
	engine := newTestEngine(1000, 0)

	first, _ := engine.Place(domain.NewLimitOrder("AAPL", 6, 100))
	second, _ := engine.Place(domain.NewLimitOrder("AAPL", 6, 100))
	third, _ := engine.Place(domain.NewLimitOrder("AAPL", 1, 100))

	engine.OnTick(liveTick("AAPL", 100))

	// First takes 600 of 1000; second needs 600 and is left pending; third fits.
	o1, _ := engine.Order(first)
	o2, _ := engine.Order(second)
	o3, _ := engine.Order(third)
	assert.Equal(t, domain.OrderStatusFilled, o1.Status)
	assert.Equal(t, domain.OrderStatusPending, o2.Status)
	assert.Equal(t, domain.OrderStatusFilled, o3.Status)
	assert.InDelta(t, 300, engine.Cash(), 1e-9)

	trades := engine.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, first, trades[0].OrderID)
	assert.Equal(t, third, trades[1].OrderID)
}

func TestEngine_MarketOrderFillsOnNextLiveTick(t *testing.T) {
	engine := newTestEngine(1000, 0)
	id, err := engine.Place(domain.NewMarketOrder("AAPL", 2))
	require.NoError(t, err)

	engine.OnTick(liveTick("AAPL", 120))

	order, _ := engine.Order(id)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)
	assert.InDelta(t, 760, engine.Cash(), 1e-9)
}

func TestEngine_BuyAccounting(t *testing.T) {
	engine := newTestEngine(100000, 0.001)

	require.True(t, engine.ExecuteTrade("AAPL", 9990, 10, t0))

	trades := engine.Trades()
	require.Len(t, trades, 1)
	buy := trades[0]
	assert.Equal(t, domain.SideBuy, buy.Side)
	assert.InDelta(t, 99.9, buy.Commission, 1e-9)
	assert.InDelta(t, 99999.9, buy.Cost, 1e-6)
	assert.InDelta(t, 0.1, engine.Cash(), 1e-6)
	assert.Equal(t, int64(9990), engine.Position("AAPL"))
}

func TestEngine_InsufficientCashLeavesStateUnchanged(t *testing.T) {
	engine := newTestEngine(1000, 0.001)

	assert.False(t, engine.ExecuteTrade("AAPL", 10, 100, t0), "1000 + 1 commission exceeds cash")

	assert.Equal(t, 1000.0, engine.Cash())
	assert.Equal(t, int64(0), engine.Position("AAPL"))
	assert.Empty(t, engine.Trades())

	orders := engine.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusCancelled, orders[0].Status, "transient order is cancelled")
}

func TestEngine_BuyCostMustNotExceedCash(t *testing.T) {
	testCases := []struct {
		name   string
		price  float64
		filled bool
		cash   float64
	}{
		{"spends exactly all cash", 100, true, 0},
		{"overshoot by a fraction of a cent", 100.0000000001, false, 1000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestEngine(1000, 0)

			assert.Equal(t, tc.filled, engine.ExecuteTrade("AAPL", 10, tc.price, t0))
			assert.Equal(t, tc.cash, engine.Cash())
		})
	}
}

func TestEngine_ClockStampsUntimedTrades(t *testing.T) {
	engine := NewEngine(Config{
		InitialCapital: 1000,
		Clock:          func() time.Time { return t0 },
	}, nil, zerolog.Nop())

	require.True(t, engine.ExecuteTrade("AAPL", 1, 10, time.Time{}))
	later := t0.Add(time.Hour)
	require.True(t, engine.ExecuteTrade("AAPL", -1, 11, later))

	trades := engine.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, t0, trades[0].Timestamp)
	assert.Equal(t, later, trades[1].Timestamp)
}

func TestEngine_SellAccountingAgainstLastBuy(t *testing.T) {
	engine := newTestEngine(100000, 0.001)
	require.True(t, engine.ExecuteTrade("AAPL", 9990, 10, t0))
	require.True(t, engine.ExecuteTrade("AAPL", -9990, 12, t0.Add(48*time.Hour)))

	trades := engine.Trades()
	require.Len(t, trades, 2)
	sell := trades[1]
	assert.Equal(t, domain.SideSell, sell.Side)
	assert.InDelta(t, 119880, sell.GrossRevenue, 1e-6)
	assert.InDelta(t, 119.88, sell.Commission, 1e-6)
	assert.InDelta(t, 119760.12, sell.NetRevenue, 1e-6)
	assert.InDelta(t, 99999.9, sell.BuyCost, 1e-6)
	assert.InDelta(t, 19760.22, sell.ProfitLoss, 1e-6)
	assert.InDelta(t, 19760.22/99999.9, sell.ProfitRate, 1e-9)
	assert.InDelta(t, 119760.22, engine.Cash(), 1e-6)
	assert.Equal(t, int64(0), engine.Position("AAPL"))
	assert.Empty(t, engine.Positions())
}

func TestEngine_SellWithoutPosition(t *testing.T) {
	engine := newTestEngine(1000, 0)

	assert.False(t, engine.ExecuteTrade("AAPL", -1, 10, t0))
	assert.Equal(t, 1000.0, engine.Cash())

	id, _ := engine.Place(domain.NewLimitOrder("AAPL", -5, 10))
	engine.OnTick(liveTick("AAPL", 11))
	order, _ := engine.Order(id)
	assert.Equal(t, domain.OrderStatusPending, order.Status, "unfillable sell stays pending")
}

func TestEngine_SellWithoutPriorBuyUsesNetAsPnL(t *testing.T) {
	engine := NewEngine(Config{InitialCapital: 0, CommissionRate: 0, CostBasis: zeroBasis{}}, nil, zerolog.Nop())
	engine.positions.Add("AAPL", 5, 1)

	require.True(t, engine.ExecuteTrade("AAPL", -5, 10, t0))

	sell := engine.Trades()[0]
	assert.Equal(t, 50.0, sell.ProfitLoss)
	assert.Equal(t, 0.0, sell.ProfitRate)
}

type zeroBasis struct{}

func (zeroBasis) BuyCost([]domain.Trade, string, int64) float64 { return 0 }

func TestEngine_Slippage(t *testing.T) {
	engine := NewEngine(Config{InitialCapital: 10000, CommissionRate: 0, Slippage: 0.01}, nil, zerolog.Nop())

	require.True(t, engine.ExecuteTrade("AAPL", 10, 100, t0))
	require.True(t, engine.ExecuteTrade("AAPL", -10, 100, t0))

	trades := engine.Trades()
	assert.InDelta(t, 101, trades[0].Price, 1e-9)
	assert.InDelta(t, 99, trades[1].Price, 1e-9)
	assert.InDelta(t, 10000-1010+990, engine.Cash(), 1e-9)
}

func TestEngine_CancelIsIdempotent(t *testing.T) {
	engine := newTestEngine(1000, 0)
	id, _ := engine.Place(domain.NewLimitOrder("AAPL", 1, 10))

	assert.True(t, engine.Cancel(id))
	assert.False(t, engine.Cancel(id))
	assert.False(t, engine.Cancel("missing"))

	engine.OnTick(liveTick("AAPL", 1))
	order, _ := engine.Order(id)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status, "cancelled orders never fill")
	assert.Equal(t, 1000.0, engine.Cash())
}

func TestEngine_CancelFilledOrderFails(t *testing.T) {
	engine := newTestEngine(1000, 0)
	id, _ := engine.Place(domain.NewLimitOrder("AAPL", 1, 10))
	engine.OnTick(liveTick("AAPL", 10))

	assert.False(t, engine.Cancel(id))
	order, _ := engine.Order(id)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)
}

func TestEngine_ExecuteRejectsNonPending(t *testing.T) {
	engine := newTestEngine(1000, 0)
	id, _ := engine.Place(domain.NewLimitOrder("AAPL", 1, 10))
	require.True(t, engine.Cancel(id))

	assert.False(t, engine.Execute(id, 10, t0))
	assert.False(t, engine.Execute("missing", 10, t0))
	assert.Equal(t, 1000.0, engine.Cash())
}

func TestEngine_PlaceRejectsInvalidRequest(t *testing.T) {
	engine := newTestEngine(1000, 0)

	_, err := engine.Place(domain.NewLimitOrder("AAPL", 0, 10))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Empty(t, engine.Orders())
}

func TestEngine_Summary(t *testing.T) {
	engine := newTestEngine(1000, 0)
	require.True(t, engine.ExecuteTrade("AAPL", 5, 100, t0))
	_, _ = engine.Place(domain.NewLimitOrder("AAPL", 1, 50))

	summary := engine.Summary(map[string]float64{"AAPL": 120})

	assert.InDelta(t, 500, summary.Cash, 1e-9)
	assert.InDelta(t, 1100, summary.TotalValue, 1e-9)
	assert.InDelta(t, 0.1, summary.TotalReturn, 1e-9)
	assert.Equal(t, map[string]int64{"AAPL": 5}, summary.Positions)
	assert.Equal(t, 1, summary.TotalTrades)
	assert.Equal(t, 1, summary.OpenOrders)

	// Without explicit prices positions are marked at the last tick
	engine.OnTick(liveTick("AAPL", 80))
	assert.InDelta(t, 900, engine.PortfolioValue(nil), 1e-9)
}

func TestEngine_PublishesEventsAfterFill(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	engine := NewEngine(Config{InitialCapital: 1000}, bus, zerolog.Nop())

	var seen []events.EventType
	var tradeData *events.TradeEventData
	for _, et := range []events.EventType{events.EventOrder, events.EventTrade, events.EventPosition, events.EventAccount} {
		et := et
		bus.On(et, func(data any) {
			seen = append(seen, et)
			if td, ok := data.(*events.TradeEventData); ok {
				tradeData = td
			}
			// Handlers may call back into the engine without deadlocking
			_ = engine.Cash()
		})
	}

	id, _ := engine.Place(domain.NewLimitOrder("AAPL", 2, 10))
	engine.OnTick(liveTick("AAPL", 9))

	assert.Equal(t, []events.EventType{
		events.EventOrder,
		events.EventOrder, events.EventTrade, events.EventPosition, events.EventAccount,
	}, seen)
	require.NotNil(t, tradeData)
	assert.Equal(t, id, tradeData.OrderID)
	assert.Equal(t, 9.0, tradeData.Price)
}

// Cash must equal initial capital minus buy costs plus sell proceeds at every
// observation, even with orders placed while ticks are being matched.
func TestEngine_ConcurrentPlacementKeepsCashExact(t *testing.T) {
	const capital = 1_000_000.0
	engine := newTestEngine(capital, 0.001)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		prices := []float64{99, 101, 98, 102, 100}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			engine.OnTick(liveTick("AAPL", prices[i%len(prices)]))
		}
	}()

	var placers sync.WaitGroup
	for g := 0; g < 8; g++ {
		placers.Add(1)
		go func(g int) {
			defer placers.Done()
			for i := 0; i < 50; i++ {
				qty := int64(1 + (g+i)%3)
				if i%2 == 1 {
					qty = -qty
				}
				_, err := engine.Place(domain.NewLimitOrder("AAPL", qty, 100))
				assert.NoError(t, err)
			}
		}(g)
	}
	placers.Wait()
	close(stop)
	wg.Wait()

	// Drain what remains with a final crossing tick on each side
	engine.OnTick(liveTick("AAPL", 100))

	expected := capital
	var held int64
	for _, tr := range engine.Trades() {
		if tr.Side == domain.SideBuy {
			expected -= tr.Cost
			held += tr.Quantity
		} else {
			expected += tr.NetRevenue
			held -= tr.Quantity
		}
		assert.GreaterOrEqual(t, held, int64(0))
	}
	assert.InDelta(t, expected, engine.Cash(), 1e-6)
	assert.Equal(t, held, engine.Position("AAPL"))

	for _, o := range engine.Orders() {
		assert.Contains(t, []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusFilled}, o.Status)
	}
	assert.Equal(t, 400, len(engine.Orders()))
}
