package trading

import "github.com/aristath/papertrader/internal/domain"

// CostBasisPolicy decides what a sell of quantity shares is measured against
// when computing realised P&L. It returns 0 when there is no basis.
type CostBasisPolicy interface {
	BuyCost(history []domain.Trade, symbol string, quantity int64) float64
}

// LastBuyCost charges a sell against the full total cost (commission included)
// of the most recent buy of the symbol, regardless of the quantity sold.
// This matches full-in/full-out trading where every sell closes the last buy.
type LastBuyCost struct{}

// BuyCost implements CostBasisPolicy
func (LastBuyCost) BuyCost(history []domain.Trade, symbol string, _ int64) float64 {
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		if t.Symbol == symbol && t.Side == domain.SideBuy {
			return t.Cost
		}
	}
	return 0
}

// AverageCost charges a sell against the average cost per share of the
// currently open lot, scaled to the quantity sold.
type AverageCost struct{}

// BuyCost implements CostBasisPolicy
func (AverageCost) BuyCost(history []domain.Trade, symbol string, quantity int64) float64 {
	var held int64
	var cost float64
	for _, t := range history {
		if t.Symbol != symbol {
			continue
		}
		switch t.Side {
		case domain.SideBuy:
			held += t.Quantity
			cost += t.Cost
		case domain.SideSell:
			if held <= 0 {
				continue
			}
			cost -= cost * float64(t.Quantity) / float64(held)
			held -= t.Quantity
			if held <= 0 {
				held, cost = 0, 0
			}
		}
	}
	if held <= 0 {
		return 0
	}
	return cost / float64(held) * float64(quantity)
}
