package marketdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/aristath/papertrader/internal/domain"
)

var _ QuoteSource = (*ReplaySource)(nil)

// ReplaySource plays back recorded ticks. Each Latest call for a symbol
// returns its next recorded sample; an exhausted symbol is unavailable.
type ReplaySource struct {
	mu     sync.Mutex
	queues map[string][]domain.Tick
}

// NewReplaySource queues ticks per symbol in recorded order. Warm-up ticks are skipped.
func NewReplaySource(ticks []domain.Tick) *ReplaySource {
	queues := make(map[string][]domain.Tick)
	for _, t := range ticks {
		if t.IsWarmup() {
			continue
		}
		queues[t.Symbol] = append(queues[t.Symbol], t)
	}
	return &ReplaySource{queues: queues}
}

// OpenReplaySource loads a recording written by Recorder
func OpenReplaySource(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tick recording: %w", err)
	}
	defer f.Close()

	ticks, err := ReadRecording(f)
	if err != nil {
		return nil, err
	}
	return NewReplaySource(ticks), nil
}

// Name implements QuoteSource
func (s *ReplaySource) Name() string { return "replay" }

// Ping fails when the recording holds nothing to replay
func (s *ReplaySource) Ping(context.Context) error {
	if s.Remaining() == 0 {
		return errors.New("replay recording is empty")
	}
	return nil
}

// Latest implements QuoteSource
func (s *ReplaySource) Latest(_ context.Context, symbol string) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[symbol]
	if len(queue) == 0 {
		return Quote{}, ErrQuoteUnavailable
	}
	next := queue[0]
	s.queues[symbol] = queue[1:]
	return Quote{Price: next.Price, Volume: next.Volume, Timestamp: next.Timestamp}, nil
}

// Remaining returns the number of ticks not yet replayed
func (s *ReplaySource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}
