package backtest

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/papertrader/internal/database"
	"github.com/aristath/papertrader/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRunNotFound is returned for unknown run ids
var ErrRunNotFound = errors.New("backtest run not found")

// RunSummary is one archived backtest without its rows
type RunSummary struct {
	CreatedAt      time.Time `json:"created_at"`
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Strategy       string    `json:"strategy"`
	InitialCapital float64   `json:"initial_capital"`
	CommissionRate float64   `json:"commission_rate"`
	Slippage       float64   `json:"slippage"`
	Metrics        Metrics   `json:"metrics"`
}

// ResultRepository archives finished backtests in the backtests database
type ResultRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewResultRepository creates a repository over a migrated backtests database
func NewResultRepository(db *sql.DB, log zerolog.Logger) *ResultRepository {
	return &ResultRepository{
		db:  db,
		log: log.With().Str("repo", "backtest_results").Logger(),
	}
}

// Save stores result with its trades and value rows in one transaction and
// returns the run id. An empty result.ID is assigned a new uuid.
func (r *ResultRepository) Save(result *Result) (string, error) {
	if result == nil {
		return "", errors.New("nil backtest result")
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		m := result.Metrics
		_, err := tx.Exec(`
			INSERT INTO backtest_runs
			(id, symbol, strategy, initial_capital, commission_rate, slippage,
			 final_value, total_return, max_drawdown, sharpe_ratio, win_rate, trade_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ID, result.Symbol, result.Strategy,
			result.Config.InitialCapital, result.Config.CommissionRate, result.Config.Slippage,
			m.FinalValue, m.TotalReturn, m.MaxDrawdown, m.SharpeRatio, m.WinRate, m.TradeCount,
			formatTime(result.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		tradeStmt, err := tx.Prepare(`
			INSERT INTO backtest_trades
			(run_id, seq, order_id, symbol, side, quantity, price, commission,
			 cost, gross_revenue, net_revenue, buy_cost, profit_loss, profit_rate, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare trade insert: %w", err)
		}
		defer tradeStmt.Close()

		for i, t := range result.Trades {
			if _, err := tradeStmt.Exec(result.ID, i, t.OrderID, t.Symbol, string(t.Side), t.Quantity, t.Price,
				t.Commission, t.Cost, t.GrossRevenue, t.NetRevenue, t.BuyCost, t.ProfitLoss, t.ProfitRate,
				formatTime(t.Timestamp)); err != nil {
				return fmt.Errorf("failed to insert trade %d: %w", i, err)
			}
		}

		valueStmt, err := tx.Prepare(`
			INSERT INTO backtest_values
			(run_id, seq, date, signal, price, cash, position, position_value, total_value, daily_pnl)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare value insert: %w", err)
		}
		defer valueStmt.Close()

		for i, s := range result.Snapshots {
			if _, err := valueStmt.Exec(result.ID, i, formatTime(s.Date), s.Signal, s.Price, s.Cash,
				s.PositionQty, s.PositionValue, s.TotalValue, s.DailyPnL); err != nil {
				return fmt.Errorf("failed to insert value row %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.log.Info().
		Str("run_id", result.ID).
		Str("symbol", result.Symbol).
		Int("trades", len(result.Trades)).
		Int("rows", len(result.Snapshots)).
		Msg("Backtest archived")
	return result.ID, nil
}

const runColumns = `id, symbol, strategy, initial_capital, commission_rate, slippage,
	final_value, total_return, max_drawdown, sharpe_ratio, win_rate, trade_count, created_at`

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (r *ResultRepository) ListRuns(limit int) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY created_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run summary
func (r *ResultRepository) GetRun(id string) (*RunSummary, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM backtest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (RunSummary, error) {
	var run RunSummary
	var createdAt string
	err := s.Scan(&run.ID, &run.Symbol, &run.Strategy, &run.InitialCapital, &run.CommissionRate, &run.Slippage,
		&run.Metrics.FinalValue, &run.Metrics.TotalReturn, &run.Metrics.MaxDrawdown, &run.Metrics.SharpeRatio,
		&run.Metrics.WinRate, &run.Metrics.TradeCount, &createdAt)
	if err != nil {
		return RunSummary{}, err
	}
	run.CreatedAt = parseTime(createdAt)
	return run, nil
}

// GetTrades returns the trades of a run in execution order
func (r *ResultRepository) GetTrades(runID string) ([]domain.Trade, error) {
	if _, err := r.GetRun(runID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT order_id, symbol, side, quantity, price, commission, cost, gross_revenue,
		       net_revenue, buy_cost, profit_loss, profit_rate, executed_at
		FROM backtest_trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := []domain.Trade{}
	for rows.Next() {
		var t domain.Trade
		var side, executedAt string
		if err := rows.Scan(&t.OrderID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Commission, &t.Cost,
			&t.GrossRevenue, &t.NetRevenue, &t.BuyCost, &t.ProfitLoss, &t.ProfitRate, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = domain.Side(side)
		t.Timestamp = parseTime(executedAt)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetSnapshots returns the value rows of a run in order
func (r *ResultRepository) GetSnapshots(runID string) ([]domain.PortfolioSnapshot, error) {
	if _, err := r.GetRun(runID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT date, signal, price, cash, position, position_value, total_value, daily_pnl
		FROM backtest_values WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	snapshots := []domain.PortfolioSnapshot{}
	for rows.Next() {
		var s domain.PortfolioSnapshot
		var date string
		if err := rows.Scan(&date, &s.Signal, &s.Price, &s.Cash, &s.PositionQty, &s.PositionValue,
			&s.TotalValue, &s.DailyPnL); err != nil {
			return nil, fmt.Errorf("failed to scan value row: %w", err)
		}
		s.Date = parseTime(date)
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// timeLayout has fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
