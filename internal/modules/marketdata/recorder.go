package marketdata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Recorder appends live ticks to a msgpack stream, one encoded Tick per value
type Recorder struct {
	mu     sync.Mutex
	enc    *msgpack.Encoder
	closer io.Closer
	count  int
	log    zerolog.Logger
}

// NewRecorder writes to w. Close does not close w.
func NewRecorder(w io.Writer, log zerolog.Logger) *Recorder {
	return &Recorder{
		enc: msgpack.NewEncoder(w),
		log: log.With().Str("component", "tick_recorder").Logger(),
	}
}

// OpenRecorder appends to the file at path, creating it if needed
func OpenRecorder(path string, log zerolog.Logger) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open tick recording: %w", err)
	}
	r := NewRecorder(f, log)
	r.closer = f
	return r, nil
}

// Record encodes one tick
func (r *Recorder) Record(tick domain.Tick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(&tick); err != nil {
		return fmt.Errorf("failed to encode tick: %w", err)
	}
	r.count++
	return nil
}

// Handle is an events.Handler that records live ticks and ignores everything else
func (r *Recorder) Handle(data any) {
	tick, ok := data.(domain.Tick)
	if !ok || tick.IsWarmup() {
		return
	}
	if err := r.Record(tick); err != nil {
		r.log.Error().Err(err).Str("symbol", tick.Symbol).Msg("Failed to record tick")
	}
}

// Count returns the number of ticks recorded
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close closes the underlying file when the recorder owns it
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// ReadRecording decodes every tick in a recording stream
func ReadRecording(rd io.Reader) ([]domain.Tick, error) {
	dec := msgpack.NewDecoder(rd)
	var ticks []domain.Tick
	for {
		var tick domain.Tick
		if err := dec.Decode(&tick); err != nil {
			if errors.Is(err, io.EOF) {
				return ticks, nil
			}
			return ticks, fmt.Errorf("failed to decode tick %d: %w", len(ticks), err)
		}
		ticks = append(ticks, tick)
	}
}
