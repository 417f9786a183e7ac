package di

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/events"
	"github.com/aristath/papertrader/internal/gateways"
	"github.com/aristath/papertrader/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:        t.TempDir(),
		DataGateway:    "sim",
		TradeGateway:   "paper",
		PollInterval:   5 * time.Millisecond,
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
		CommissionRate: 0.001,
		ReportSchedule: "@every 1h",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	sched := scheduler.New(zerolog.Nop())

	container, jobs, err := Wire(cfg, sched, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.JournalDB)
	assert.NotNil(t, container.BacktestsDB)
	assert.NotNil(t, container.Engine)
	assert.NotNil(t, container.Journal)
	assert.NotNil(t, container.Results)
	assert.Nil(t, container.Recorder)
	assert.Equal(t, 2, sched.Entries())
	assert.NotNil(t, jobs.PortfolioReport)
	assert.NotNil(t, jobs.CheckWALCheckpoints)

	// engine + stream on ticks, journal + stream on trades
	assert.Equal(t, 2, container.Bus.HandlerCount(events.EventTick))
	assert.Equal(t, 2, container.Bus.HandlerCount(events.EventTrade))
}

func TestWire_TicksFillOrdersAndJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.RecordTicks = cfg.DataDir + "/ticks.msgpack"

	container, _, err := Wire(cfg, scheduler.New(zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()
	require.NotNil(t, container.Recorder)

	gw := container.DataGateway
	require.True(t, gw.Connect(context.Background()))
	require.True(t, gw.Subscribe(cfg.Symbols))

	id, err := container.TradeGateway.SendOrder(domain.NewLimitOrder("AAPL", 10, 1e6))
	require.NoError(t, err)

	gw.Start()
	defer gw.Stop()

	require.Eventually(t, func() bool {
		order, ok := container.Engine.Order(id)
		return ok && order.Status == domain.OrderStatusFilled
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		n, err := container.Journal.Count()
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(10), container.Engine.Position("AAPL"))
	assert.Greater(t, container.Recorder.Count(), 0)
}

func TestWire_UnknownGateway(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataGateway = "carrier-pigeon"

	_, _, err := Wire(cfg, scheduler.New(zerolog.Nop()), zerolog.Nop())
	assert.ErrorIs(t, err, gateways.ErrUnknownGateway)
}

func TestWire_BadReportSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReportSchedule = "whenever"

	_, _, err := Wire(cfg, scheduler.New(zerolog.Nop()), zerolog.Nop())
	assert.Error(t, err)
}
