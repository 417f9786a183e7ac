package trading

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/aristath/papertrader/internal/events"
	"github.com/rs/zerolog"
)

// JournalEntry is one persisted fill
type JournalEntry struct {
	ExecutedAt time.Time   `json:"executed_at"`
	CreatedAt  time.Time   `json:"created_at"`
	OrderID    string      `json:"order_id"`
	Symbol     string      `json:"symbol"`
	Side       domain.Side `json:"side"`
	ID         int64       `json:"id"`
	Quantity   int64       `json:"quantity"`
	Price      float64     `json:"price"`
	Commission float64     `json:"commission"`
	ProfitLoss float64     `json:"profit_loss"`
}

// Validate checks the fields the trades table constrains
func (e JournalEntry) Validate() error {
	if e.OrderID == "" {
		return errors.New("order_id is required")
	}
	if strings.TrimSpace(e.Symbol) == "" {
		return errors.New("symbol is required")
	}
	if e.Side != domain.SideBuy && e.Side != domain.SideSell {
		return fmt.Errorf("invalid side %q", e.Side)
	}
	if e.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if e.Price <= 0 {
		return errors.New("price must be positive")
	}
	return nil
}

// TradeJournal persists fills from the paper engine into the journal
// database so history survives restarts. The in-memory engine stays the
// source of truth for balances.
type TradeJournal struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

const journalColumns = `id, order_id, symbol, side, quantity, price, commission, profit_loss, executed_at, created_at`

// NewTradeJournal creates a journal over a migrated journal database
func NewTradeJournal(db *sql.DB, log zerolog.Logger) *TradeJournal {
	return &TradeJournal{
		db:  db,
		log: log.With().Str("repo", "trade_journal").Logger(),
		now: time.Now,
	}
}

// Record inserts entry. A second entry for the same order id is skipped.
func (j *TradeJournal) Record(entry JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	exists, err := j.Exists(entry.OrderID)
	if err != nil {
		return fmt.Errorf("failed to check for existing trade: %w", err)
	}
	if exists {
		j.log.Debug().Str("order_id", entry.OrderID).Msg("Trade already journaled, skipping duplicate")
		return nil
	}

	_, err = j.db.Exec(`
		INSERT INTO trades
		(order_id, symbol, side, quantity, price, commission, profit_loss, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OrderID,
		strings.ToUpper(strings.TrimSpace(entry.Symbol)),
		string(entry.Side),
		entry.Quantity,
		entry.Price,
		entry.Commission,
		entry.ProfitLoss,
		formatJournalTime(entry.ExecutedAt),
		formatJournalTime(j.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	j.log.Debug().
		Str("order_id", entry.OrderID).
		Str("symbol", entry.Symbol).
		Str("side", string(entry.Side)).
		Int64("quantity", entry.Quantity).
		Msg("Trade journaled")
	return nil
}

// Handle is an event bus handler for EventTrade payloads. Failures are
// logged; the fill itself has already happened.
func (j *TradeJournal) Handle(data any) {
	ev, ok := data.(*events.TradeEventData)
	if !ok || ev == nil {
		return
	}
	err := j.Record(JournalEntry{
		ExecutedAt: ev.Timestamp,
		OrderID:    ev.OrderID,
		Symbol:     ev.Symbol,
		Side:       domain.Side(ev.Side),
		Quantity:   ev.Quantity,
		Price:      ev.Price,
		Commission: ev.Commission,
		ProfitLoss: ev.ProfitLoss,
	})
	if err != nil {
		j.log.Error().Err(err).Str("order_id", ev.OrderID).Msg("Failed to journal trade")
	}
}

// Exists reports whether orderID has been journaled
func (j *TradeJournal) Exists(orderID string) (bool, error) {
	var one int
	err := j.db.QueryRow("SELECT 1 FROM trades WHERE order_id = ? LIMIT 1", orderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check trade existence: %w", err)
	}
	return true, nil
}

// GetByOrderID returns nil when the order has no journaled fill
func (j *TradeJournal) GetByOrderID(orderID string) (*JournalEntry, error) {
	row := j.db.QueryRow("SELECT "+journalColumns+" FROM trades WHERE order_id = ?", orderID)
	entry, err := scanJournalEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade by order_id: %w", err)
	}
	return &entry, nil
}

// History returns the most recent fills first. An empty symbol matches all.
func (j *TradeJournal) History(symbol string, limit int) ([]JournalEntry, error) {
	query := "SELECT " + journalColumns + " FROM trades"
	var args []interface{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, strings.ToUpper(symbol))
	}
	query += " ORDER BY executed_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade history: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of journaled fills
func (j *TradeJournal) Count() (int, error) {
	var n int
	if err := j.db.QueryRow("SELECT COUNT(*) FROM trades").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJournalEntry(s rowScanner) (JournalEntry, error) {
	var e JournalEntry
	var side, executedAt, createdAt string
	err := s.Scan(&e.ID, &e.OrderID, &e.Symbol, &side, &e.Quantity, &e.Price, &e.Commission,
		&e.ProfitLoss, &executedAt, &createdAt)
	if err != nil {
		return JournalEntry{}, err
	}
	e.Side = domain.Side(side)
	e.ExecutedAt, _ = time.Parse(journalTimeLayout, executedAt)
	e.CreatedAt, _ = time.Parse(journalTimeLayout, createdAt)
	return e, nil
}

// journalTimeLayout is fixed width so executed_at orders lexically
const journalTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatJournalTime(t time.Time) string {
	return t.UTC().Format(journalTimeLayout)
}
