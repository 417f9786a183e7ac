package backtest

import (
	"math"
	"testing"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/stretchr/testify/assert"
)

func snapshotsOf(values ...float64) []domain.PortfolioSnapshot {
	out := make([]domain.PortfolioSnapshot, len(values))
	for i, v := range values {
		out[i] = domain.PortfolioSnapshot{TotalValue: v}
	}
	return out
}

func TestComputeMetrics(t *testing.T) {
	trades := []domain.Trade{
		{Side: domain.SideBuy},
		{Side: domain.SideSell, ProfitLoss: 10},
		{Side: domain.SideBuy},
		{Side: domain.SideSell, ProfitLoss: -5},
	}

	m := ComputeMetrics(trades, snapshotsOf(100, 120, 90, 110), 100)

	assert.InDelta(t, 110, m.FinalValue, 1e-9)
	assert.InDelta(t, 0.1, m.TotalReturn, 1e-9)
	assert.InDelta(t, 0.25, m.MaxDrawdown, 1e-9)
	assert.Equal(t, 4, m.TradeCount)
	assert.Equal(t, 2, m.RoundTrips)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.NotZero(t, m.SharpeRatio)
	assert.Greater(t, m.Volatility, 0.0)
}

func TestComputeMetrics_FlatSeries(t *testing.T) {
	m := ComputeMetrics(nil, snapshotsOf(100, 100, 100), 100)

	assert.Equal(t, 0.0, m.TotalReturn)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.SharpeRatio, "zero volatility gives no Sharpe")
	assert.Equal(t, 0.0, m.WinRate)
}

func TestComputeMetrics_Empty(t *testing.T) {
	m := ComputeMetrics(nil, nil, 1000)
	assert.Equal(t, 1000.0, m.FinalValue)
	assert.False(t, math.IsNaN(m.SharpeRatio))
}

func TestMaxDrawdown(t *testing.T) {
	testCases := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"monotonic up", []float64{1, 2, 3}, 0},
		{"single dip", []float64{10, 5, 10}, 0.5},
		{"deepest after new peak", []float64{10, 9, 20, 10, 15}, 0.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, maxDrawdown(tc.values), 1e-9)
		})
	}
}
