package marketdata

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

var _ QuoteSource = (*SimulatedSource)(nil)

// DefaultBasePrices seeds the random walk when no prices are configured
var DefaultBasePrices = map[string]float64{"AAPL": 150}

const defaultSimPrice = 100.0

// SimulatedSource produces a random walk per symbol: each quote moves the
// previous price by a uniform step in [-1%, +1%), with volume in [100, 1000].
type SimulatedSource struct {
	mu     sync.Mutex
	base   map[string]float64
	prices map[string]float64
	rng    *rand.Rand
	now    func() time.Time
}

// NewSimulatedSource creates a random walk seeded with seed.
// Symbols missing from basePrices start at 100.
func NewSimulatedSource(basePrices map[string]float64, seed int64) *SimulatedSource {
	if len(basePrices) == 0 {
		basePrices = DefaultBasePrices
	}
	base := make(map[string]float64, len(basePrices))
	for k, v := range basePrices {
		base[k] = v
	}
	return &SimulatedSource{
		base:   base,
		prices: make(map[string]float64),
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
	}
}

// Name implements QuoteSource
func (s *SimulatedSource) Name() string { return "sim" }

// Ping implements QuoteSource; the simulator is always reachable
func (s *SimulatedSource) Ping(context.Context) error { return nil }

// Latest implements QuoteSource
func (s *SimulatedSource) Latest(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[symbol]
	if !ok {
		if price, ok = s.base[symbol]; !ok {
			price = defaultSimPrice
		}
	}
	price *= 1 + (s.rng.Float64()*0.02 - 0.01)
	s.prices[symbol] = price

	return Quote{
		Price:     price,
		Volume:    100 + s.rng.Int63n(901),
		Timestamp: s.now(),
	}, nil
}
