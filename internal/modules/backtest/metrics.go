package backtest

import (
	"math"

	"github.com/aristath/papertrader/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// tradingDaysPerYear annualises the per-row Sharpe ratio
const tradingDaysPerYear = 252

// Metrics summarises a backtest
type Metrics struct {
	FinalValue  float64 `json:"final_value"`
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"` // Fraction below the running peak, positive
	SharpeRatio float64 `json:"sharpe_ratio"` // Annualised, zero risk-free rate
	Volatility  float64 `json:"volatility"`   // Annualised standard deviation of row returns
	WinRate     float64 `json:"win_rate"`     // Profitable sells over all sells
	TradeCount  int     `json:"trade_count"`
	RoundTrips  int     `json:"round_trips"`
}

// ComputeMetrics derives performance figures from a replay
func ComputeMetrics(trades []domain.Trade, snapshots []domain.PortfolioSnapshot, initialCapital float64) Metrics {
	m := Metrics{TradeCount: len(trades), FinalValue: initialCapital}
	if len(snapshots) == 0 {
		return m
	}

	values := make([]float64, len(snapshots))
	for i, s := range snapshots {
		values[i] = s.TotalValue
	}
	m.FinalValue = values[len(values)-1]
	if initialCapital > 0 {
		m.TotalReturn = (m.FinalValue - initialCapital) / initialCapital
	}
	m.MaxDrawdown = maxDrawdown(values)

	if returns := rowReturns(values); len(returns) >= 2 {
		mean, std := stat.MeanStdDev(returns, nil)
		if std > 0 {
			m.SharpeRatio = mean / std * math.Sqrt(tradingDaysPerYear)
			m.Volatility = std * math.Sqrt(tradingDaysPerYear)
		}
	}

	wins := 0
	for _, t := range trades {
		if t.Side != domain.SideSell {
			continue
		}
		m.RoundTrips++
		if t.ProfitLoss > 0 {
			wins++
		}
	}
	if m.RoundTrips > 0 {
		m.WinRate = float64(wins) / float64(m.RoundTrips)
	}
	return m
}

func rowReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

func maxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
