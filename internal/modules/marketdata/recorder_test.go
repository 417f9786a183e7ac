package marketdata

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RoundTripThroughBus(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf, zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())
	bus.On(events.EventTick, rec.Handle)

	ts := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	bus.Emit(events.EventTick, domain.Tick{Symbol: "AAPL", Price: 10, Volume: 5, Timestamp: ts, Source: "sim", Kind: domain.TickLive})
	bus.Emit(events.EventTick, domain.Tick{Symbol: "AAPL", Price: 9, Timestamp: ts, Kind: domain.TickWarmup})
	bus.Emit(events.EventTick, "not a tick")
	bus.Emit(events.EventTick, domain.Tick{Symbol: "MSFT", Price: 20, Volume: 7, Timestamp: ts.Add(time.Second), Source: "sim", Kind: domain.TickLive})

	assert.Equal(t, 2, rec.Count())

	ticks, err := ReadRecording(&buf)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, "AAPL", ticks[0].Symbol)
	assert.Equal(t, 10.0, ticks[0].Price)
	assert.Equal(t, int64(5), ticks[0].Volume)
	assert.True(t, ts.Equal(ticks[0].Timestamp))
	assert.Equal(t, domain.TickLive, ticks[0].Kind)
	assert.Equal(t, "MSFT", ticks[1].Symbol)
}

func TestReadRecording_CorruptTail(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf, zerolog.Nop())
	require.NoError(t, rec.Record(domain.Tick{Symbol: "AAPL", Price: 1, Kind: domain.TickLive}))
	buf.WriteByte(0xc1) // never used by msgpack

	ticks, err := ReadRecording(&buf)
	assert.Error(t, err)
	require.Len(t, ticks, 1, "ticks decoded before the corruption are returned")
	assert.Equal(t, "AAPL", ticks[0].Symbol)
}

func TestReplaySource_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.msgpack")
	rec, err := OpenRecorder(path, zerolog.Nop())
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	for i, p := range []float64{10, 11, 12} {
		require.NoError(t, rec.Record(domain.Tick{Symbol: "AAPL", Price: p, Volume: int64(i), Timestamp: ts, Kind: domain.TickLive}))
	}
	require.NoError(t, rec.Record(domain.Tick{Symbol: "AAPL", Price: 99, Timestamp: ts, Kind: domain.TickWarmup}))
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	src, err := OpenReplaySource(path)
	require.NoError(t, err)
	require.NoError(t, src.Ping(context.Background()))
	assert.Equal(t, 3, src.Remaining())

	for _, want := range []float64{10, 11, 12} {
		q, err := src.Latest(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, want, q.Price)
	}
	_, err = src.Latest(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
	assert.Error(t, src.Ping(context.Background()))
}

func TestReplaySource_DrivesGateway(t *testing.T) {
	src := NewReplaySource([]domain.Tick{
		{Symbol: "AAPL", Price: 10, Volume: 1, Kind: domain.TickLive},
		{Symbol: "AAPL", Price: 10, Volume: 1, Kind: domain.TickLive},
		{Symbol: "AAPL", Price: 11, Volume: 1, Kind: domain.TickLive},
	})
	gw := NewPollingGateway(src, fastOpts, zerolog.Nop())
	sink := &tickSink{}
	gw.SetTickHandler(sink.handle)
	gw.Subscribe([]string{"AAPL"})

	gw.Start()
	require.Eventually(t, func() bool { return src.Remaining() == 0 }, time.Second, 5*time.Millisecond)
	gw.Stop()

	live := sink.live("AAPL")
	require.Len(t, live, 2, "duplicate recorded sample is deduped")
	assert.Equal(t, "replay", live[0].Source)
}
