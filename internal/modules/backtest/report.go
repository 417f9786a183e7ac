package backtest

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

// money renders v with two decimals without binary float artefacts
func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func percent(v float64) string {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

// WriteReport prints a human readable summary and trade list of result
func WriteReport(w io.Writer, result *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	m := result.Metrics

	fmt.Fprintf(tw, "Symbol:\t%s\n", result.Symbol)
	if result.Strategy != "" {
		fmt.Fprintf(tw, "Strategy:\t%s\n", result.Strategy)
	}
	fmt.Fprintf(tw, "Initial capital:\t%s\n", money(result.Config.InitialCapital))
	fmt.Fprintf(tw, "Final value:\t%s\n", money(m.FinalValue))
	fmt.Fprintf(tw, "Total return:\t%s\n", percent(m.TotalReturn))
	fmt.Fprintf(tw, "Max drawdown:\t%s\n", percent(m.MaxDrawdown))
	fmt.Fprintf(tw, "Sharpe ratio:\t%s\n", decimal.NewFromFloat(m.SharpeRatio).StringFixed(2))
	fmt.Fprintf(tw, "Trades:\t%d (%d round trips, %s won)\n", m.TradeCount, m.RoundTrips, percent(m.WinRate))

	if len(result.Trades) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Date\tSide\tQty\tPrice\tCommission\tP&L")
		for _, t := range result.Trades {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
				t.Timestamp.Format("2006-01-02"), t.Side, t.Quantity,
				money(t.Price), money(t.Commission), money(t.ProfitLoss))
		}
	}
	return tw.Flush()
}
