// Package marketdata turns pull-based quote sources into pushed tick streams.
package marketdata

import (
	"context"
	"errors"
	"time"
)

// ErrQuoteUnavailable means the source had nothing usable for the symbol this pass.
// The gateway skips the symbol silently.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// Quote is one sample returned by a QuoteSource
type Quote struct {
	Timestamp time.Time
	Price     float64
	Volume    int64
}

// QuoteSource is a pull-based provider of latest quotes
type QuoteSource interface {
	// Name tags the ticks produced from this source
	Name() string
	// Ping verifies the source is reachable
	Ping(ctx context.Context) error
	// Latest returns the most recent quote for symbol
	Latest(ctx context.Context, symbol string) (Quote, error)
}

// Backfiller is implemented by sources that can supply today's intraday
// history, oldest first. The gateway uses it to warm up new subscriptions.
type Backfiller interface {
	Intraday(ctx context.Context, symbol string) ([]Quote, error)
}
