// Package signals turns price history into buy/sell/hold intents.
package signals

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
)

// ErrInvalidWindow is returned for non-positive or inverted SMA windows
var ErrInvalidWindow = errors.New("invalid moving average window")

// Signal values match the backtest convention
const (
	Sell = -1
	Hold = 0
	Buy  = 1
)

// Source produces one signal per price
type Source interface {
	Name() string
	Generate(closes []float64) ([]int, error)
}

// SMACross emits Buy on the row where the fast SMA crosses above the slow
// SMA and Sell where it crosses below. Every other row holds, including the
// rows before the slow average is defined.
type SMACross struct {
	Fast int
	Slow int
}

var _ Source = SMACross{}

// NewSMACross validates the windows
func NewSMACross(fast, slow int) (SMACross, error) {
	if fast < 1 || slow < 2 || fast >= slow {
		return SMACross{}, fmt.Errorf("%w: fast=%d slow=%d", ErrInvalidWindow, fast, slow)
	}
	return SMACross{Fast: fast, Slow: slow}, nil
}

// Name returns a label like "sma_cross_5_20"
func (s SMACross) Name() string {
	return fmt.Sprintf("sma_cross_%d_%d", s.Fast, s.Slow)
}

// Generate returns len(closes) signals
func (s SMACross) Generate(closes []float64) ([]int, error) {
	if s.Fast < 1 || s.Slow < 2 || s.Fast >= s.Slow {
		return nil, fmt.Errorf("%w: fast=%d slow=%d", ErrInvalidWindow, s.Fast, s.Slow)
	}

	out := make([]int, len(closes))
	// First row where both averages exist and the previous row does too
	start := s.Slow
	if len(closes) <= start {
		return out, nil
	}

	fast := talib.Sma(closes, s.Fast)
	slow := talib.Sma(closes, s.Slow)

	for i := start; i < len(closes); i++ {
		prev := fast[i-1] - slow[i-1]
		curr := fast[i] - slow[i]
		switch {
		case prev <= 0 && curr > 0:
			out[i] = Buy
		case prev >= 0 && curr < 0:
			out[i] = Sell
		}
	}
	return out, nil
}
