package trading

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *TradeJournal {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "journal.db"),
		Profile: database.ProfileLedger,
		Name:    "journal",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return NewTradeJournal(db.Conn(), zerolog.Nop())
}

func TestTradeJournal_RecordValidates(t *testing.T) {
	journal := newTestJournal(t)
	valid := JournalEntry{OrderID: "o1", Symbol: "AAPL", Side: domain.SideBuy, Quantity: 10, Price: 100}

	testCases := []struct {
		name        string
		mutate      func(e *JournalEntry)
		shouldError bool
	}{
		{"valid entry", func(e *JournalEntry) {}, false},
		{"zero price", func(e *JournalEntry) { e.Price = 0 }, true},
		{"negative quantity", func(e *JournalEntry) { e.Quantity = -1 }, true},
		{"missing order id", func(e *JournalEntry) { e.OrderID = "" }, true},
		{"bad side", func(e *JournalEntry) { e.Side = "hold" }, true},
		{"blank symbol", func(e *JournalEntry) { e.Symbol = " " }, true},
	}

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entry := valid
			entry.OrderID = entry.OrderID + string(rune('a'+i))
			tc.mutate(&entry)
			err := journal.Record(entry)
			if tc.shouldError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTradeJournal_SkipsDuplicates(t *testing.T) {
	journal := newTestJournal(t)
	entry := JournalEntry{OrderID: "dup", Symbol: "aapl", Side: domain.SideSell, Quantity: 5, Price: 12, ProfitLoss: 3.5}

	require.NoError(t, journal.Record(entry))
	require.NoError(t, journal.Record(entry))

	n, err := journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := journal.GetByOrderID("dup")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, domain.SideSell, got.Side)
	assert.Equal(t, 3.5, got.ProfitLoss)

	missing, err := journal.GetByOrderID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTradeJournal_HistoryNewestFirst(t *testing.T) {
	journal := newTestJournal(t)
	base := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	for i, sym := range []string{"AAPL", "MSFT", "AAPL"} {
		require.NoError(t, journal.Record(JournalEntry{
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
			OrderID:    sym + string(rune('0'+i)),
			Symbol:     sym,
			Side:       domain.SideBuy,
			Quantity:   1,
			Price:      10,
		}))
	}

	all, err := journal.History("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "AAPL2", all[0].OrderID)
	assert.True(t, base.Add(2*time.Minute).Equal(all[0].ExecutedAt))

	aapl, err := journal.History("aapl", 1)
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	assert.Equal(t, "AAPL2", aapl[0].OrderID)
}

func TestTradeJournal_FollowsEngineFills(t *testing.T) {
	journal := newTestJournal(t)
	bus := events.NewBus(zerolog.Nop())
	bus.On(events.EventTrade, journal.Handle)

	engine := NewEngine(Config{InitialCapital: 10000}, bus, zerolog.Nop())
	require.True(t, engine.ExecuteTrade("AAPL", 10, 100, time.Now()))
	require.True(t, engine.ExecuteTrade("AAPL", -10, 110, time.Now()))

	entries, err := journal.History("AAPL", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	trades := engine.Trades()
	assert.Equal(t, trades[1].OrderID, entries[0].OrderID)
	assert.InDelta(t, 100, entries[0].ProfitLoss, 1e-9)

	// Non-trade payloads are ignored
	journal.Handle(&events.AccountEventData{Cash: 1})
	journal.Handle(nil)
	n, err := journal.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
