package trading

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aristath/papertrader/internal/domain"
)

// ErrInsufficientPosition is returned when a reduce would take a holding below zero
var ErrInsufficientPosition = errors.New("insufficient position")

// PositionLedger tracks long-only share counts per symbol. A symbol without
// an entry is flat. Not safe for concurrent use; the engine mutex guards it.
type PositionLedger struct {
	positions map[string]*domain.Position
}

// NewPositionLedger creates an empty ledger
func NewPositionLedger() *PositionLedger {
	return &PositionLedger{positions: make(map[string]*domain.Position)}
}

// Add increases the holding and folds price into the average entry price
func (l *PositionLedger) Add(symbol string, quantity int64, price float64) {
	if quantity <= 0 {
		return
	}
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		l.positions[symbol] = pos
	}
	total := pos.Quantity + quantity
	pos.AvgPrice = (pos.AvgPrice*float64(pos.Quantity) + price*float64(quantity)) / float64(total)
	pos.Quantity = total
}

// CanSell reports whether quantity shares of symbol are held
func (l *PositionLedger) CanSell(symbol string, quantity int64) bool {
	if quantity <= 0 {
		return false
	}
	return l.Quantity(symbol) >= quantity
}

// Reduce removes quantity shares. The holding never goes negative.
func (l *PositionLedger) Reduce(symbol string, quantity int64) error {
	if !l.CanSell(symbol, quantity) {
		return fmt.Errorf("%w: %s holds %d, asked to reduce by %d",
			ErrInsufficientPosition, symbol, l.Quantity(symbol), quantity)
	}
	pos := l.positions[symbol]
	pos.Quantity -= quantity
	if pos.Quantity == 0 {
		delete(l.positions, symbol)
	}
	return nil
}

// Quantity returns the shares held, zero when flat
func (l *PositionLedger) Quantity(symbol string) int64 {
	if pos, ok := l.positions[symbol]; ok {
		return pos.Quantity
	}
	return 0
}

// Get returns a copy of the position
func (l *PositionLedger) Get(symbol string) (domain.Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Position{Symbol: symbol}, false
	}
	return *pos, true
}

// All returns every open position sorted by symbol
func (l *PositionLedger) All() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
