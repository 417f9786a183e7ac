package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionLedger_AddAndAverage(t *testing.T) {
	l := NewPositionLedger()
	l.Add("AAPL", 10, 100)
	l.Add("AAPL", 10, 110)
	l.Add("AAPL", 0, 1)

	pos, ok := l.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(20), pos.Quantity)
	assert.InDelta(t, 105, pos.AvgPrice, 1e-9)
}

func TestPositionLedger_CanSell(t *testing.T) {
	l := NewPositionLedger()
	l.Add("AAPL", 5, 10)

	testCases := []struct {
		name     string
		symbol   string
		quantity int64
		expected bool
	}{
		{"less than held", "AAPL", 3, true},
		{"exactly held", "AAPL", 5, true},
		{"more than held", "AAPL", 6, false},
		{"zero", "AAPL", 0, false},
		{"flat symbol", "MSFT", 1, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, l.CanSell(tc.symbol, tc.quantity))
		})
	}
}

func TestPositionLedger_ReduceNeverGoesNegative(t *testing.T) {
	l := NewPositionLedger()
	l.Add("AAPL", 5, 10)

	assert.ErrorIs(t, l.Reduce("AAPL", 6), ErrInsufficientPosition)
	assert.Equal(t, int64(5), l.Quantity("AAPL"))

	require.NoError(t, l.Reduce("AAPL", 5))
	assert.Equal(t, int64(0), l.Quantity("AAPL"))
	_, ok := l.Get("AAPL")
	assert.False(t, ok, "flat positions are removed")
}

func TestPositionLedger_AllSorted(t *testing.T) {
	l := NewPositionLedger()
	l.Add("MSFT", 1, 1)
	l.Add("AAPL", 1, 1)

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "AAPL", all[0].Symbol)
	assert.Equal(t, "MSFT", all[1].Symbol)
}
