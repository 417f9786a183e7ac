package marketdata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/rs/zerolog"
)

var _ domain.DataGateway = (*PollingGateway)(nil)

// Options tunes a PollingGateway. Zero values take the defaults.
type Options struct {
	Interval      time.Duration // Wait between passes, default 1s
	StopTimeout   time.Duration // Bound on Stop's join, default 2s
	FetchTimeout  time.Duration // Per-request timeout, default 10s
	WarmupTimeout time.Duration // Per-symbol backfill timeout, default 30s
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 2 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.WarmupTimeout <= 0 {
		o.WarmupTimeout = 30 * time.Second
	}
	return o
}

type pushed struct {
	price  float64
	volume int64
}

// PollingGateway polls a QuoteSource for every subscribed symbol on its own
// goroutine and pushes changed quotes to the tick handler.
//
// A pass fetches each symbol in subscription order. Fetch errors are logged
// and the pass moves on to the next symbol. A quote whose (price, volume)
// equals the last one pushed for that symbol is dropped. Stop is observed
// between symbols and during the wait, never in the middle of a fetch.
//
// Warm-up ticks are pushed on the goroutine calling Subscribe, so the
// handler must be safe for concurrent use.
type PollingGateway struct {
	source QuoteSource
	opts   Options

	mu         sync.Mutex
	symbols    []string
	subscribed map[string]struct{}
	handler    domain.TickHandler
	cancel     context.CancelFunc
	done       chan struct{}
	// prevDone belongs to the last stopped loop, which may still be inside
	// a fetch when Stop gave up waiting
	prevDone chan struct{}

	lastMu sync.Mutex
	last   map[string]pushed

	log zerolog.Logger
}

// NewPollingGateway creates a gateway over source
func NewPollingGateway(source QuoteSource, opts Options, log zerolog.Logger) *PollingGateway {
	name := "none"
	if source != nil {
		name = source.Name()
	}
	return &PollingGateway{
		source:     source,
		opts:       opts.withDefaults(),
		subscribed: make(map[string]struct{}),
		last:       make(map[string]pushed),
		log:        log.With().Str("component", "data_gateway").Str("source", name).Logger(),
	}
}

// Connect pings the source. It reports failure as false and never errors.
func (g *PollingGateway) Connect(ctx context.Context) bool {
	if g.source == nil {
		g.log.Error().Msg("No quote source configured")
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.FetchTimeout)
	defer cancel()

	if err := g.source.Ping(ctx); err != nil {
		g.log.Warn().Err(err).Msg("Quote source unreachable")
		return false
	}
	g.log.Info().Msg("Connected to quote source")
	return true
}

// SetTickHandler installs the tick callback
func (g *PollingGateway) SetTickHandler(handler domain.TickHandler) {
	g.mu.Lock()
	g.handler = handler
	g.mu.Unlock()
}

// Subscribe adds symbols in first-seen order. Already subscribed symbols are
// ignored, so repeated calls never duplicate polling or warm-up.
func (g *PollingGateway) Subscribe(symbols []string) bool {
	if g.source == nil {
		return false
	}

	g.mu.Lock()
	var added []string
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := g.subscribed[s]; ok {
			continue
		}
		g.subscribed[s] = struct{}{}
		g.symbols = append(g.symbols, s)
		added = append(added, s)
	}
	g.mu.Unlock()

	if len(added) > 0 {
		g.log.Info().Strs("symbols", added).Msg("Subscribed")
	}

	if bf, ok := g.source.(Backfiller); ok {
		for _, s := range added {
			g.warmup(bf, s)
		}
	}
	return true
}

// Symbols returns the subscription list in order
func (g *PollingGateway) Symbols() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.symbols))
	copy(out, g.symbols)
	return out
}

func (g *PollingGateway) warmup(bf Backfiller, symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.WarmupTimeout)
	defer cancel()

	quotes, err := bf.Intraday(ctx, symbol)
	if err != nil {
		g.log.Warn().Err(err).Str("symbol", symbol).Msg("Warm-up failed")
		return
	}

	count := 0
	for _, q := range quotes {
		tick, err := domain.NewTick(symbol, q.Price, q.Timestamp, q.Volume, g.source.Name(), domain.TickWarmup)
		if err != nil {
			continue
		}
		g.lastMu.Lock()
		g.last[symbol] = pushed{price: tick.Price, volume: tick.Volume}
		g.lastMu.Unlock()
		g.deliver(tick)
		count++
	}
	g.log.Info().Str("symbol", symbol).Int("bars", count).Msg("Warm-up complete")
}

// Start launches the polling goroutine. Calling Start on a running gateway
// does nothing. A loop left over from a timed-out Stop finishes before the
// new one polls, so at most one fetch is ever in flight.
func (g *PollingGateway) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.run(ctx, g.done, g.prevDone)

	g.log.Info().Dur("interval", g.opts.Interval).Msg("Polling started")
}

// Stop signals the polling goroutine and waits up to StopTimeout for it to
// exit. Calling Stop on a stopped gateway does nothing.
func (g *PollingGateway) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.cancel, g.done = nil, nil
	if done != nil {
		g.prevDone = done
	}
	g.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
		g.log.Info().Msg("Polling stopped")
	case <-time.After(g.opts.StopTimeout):
		g.log.Warn().Dur("timeout", g.opts.StopTimeout).Msg("Polling loop did not stop in time")
	}
}

// Running reports whether the polling goroutine has been started and not stopped
func (g *PollingGateway) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancel != nil
}

func (g *PollingGateway) run(ctx context.Context, done, prev chan struct{}) {
	defer close(done)

	if prev != nil {
		<-prev
	}

	for {
		if ctx.Err() != nil {
			return
		}
		g.poll(ctx)

		timer := time.NewTimer(g.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// poll runs one pass over the subscription list
func (g *PollingGateway) poll(ctx context.Context) {
	for _, symbol := range g.Symbols() {
		if ctx.Err() != nil {
			return
		}
		g.pollSymbol(ctx, symbol)
	}
}

// pollSymbol fetches on its own timeout so Stop never interrupts a request.
// A result that arrives after loopCtx is cancelled is dropped.
func (g *PollingGateway) pollSymbol(loopCtx context.Context, symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.FetchTimeout)
	defer cancel()

	q, err := g.source.Latest(ctx, symbol)
	if loopCtx.Err() != nil {
		return
	}
	if err != nil {
		if errors.Is(err, ErrQuoteUnavailable) {
			g.log.Debug().Str("symbol", symbol).Msg("No quote this pass")
		} else {
			g.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote fetch failed")
		}
		return
	}

	tick, err := domain.NewTick(symbol, q.Price, q.Timestamp, q.Volume, g.source.Name(), domain.TickLive)
	if err != nil {
		g.log.Warn().Err(err).Str("symbol", symbol).Msg("Discarding malformed quote")
		return
	}

	key := pushed{price: tick.Price, volume: tick.Volume}
	g.lastMu.Lock()
	if prev, ok := g.last[symbol]; ok && prev == key {
		g.lastMu.Unlock()
		return
	}
	g.last[symbol] = key
	g.lastMu.Unlock()

	g.deliver(tick)
}

func (g *PollingGateway) deliver(tick domain.Tick) {
	g.mu.Lock()
	handler := g.handler
	g.mu.Unlock()

	if handler != nil {
		handler(tick)
	}
}
