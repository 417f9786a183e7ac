package scheduler

import (
	"sync"

	"github.com/aristath/papertrader/internal/domain"
	"github.com/rs/zerolog"
)

// PortfolioSource is the read side of the paper engine the report needs
type PortfolioSource interface {
	Summary(prices map[string]float64) domain.PortfolioSummary
}

// PortfolioReportJob logs the account summary marked at the last ticks
type PortfolioReportJob struct {
	source PortfolioSource
	log    zerolog.Logger

	mu   sync.Mutex
	last domain.PortfolioSummary
}

// NewPortfolioReportJob creates a report job over source
func NewPortfolioReportJob(source PortfolioSource, log zerolog.Logger) *PortfolioReportJob {
	return &PortfolioReportJob{
		source: source,
		log:    log.With().Str("job", "portfolio_report").Logger(),
	}
}

// Name returns the job name
func (j *PortfolioReportJob) Name() string {
	return "portfolio_report"
}

// Run logs the current summary
func (j *PortfolioReportJob) Run() error {
	s := j.source.Summary(nil)
	j.mu.Lock()
	j.last = s
	j.mu.Unlock()

	j.log.Info().
		Float64("total_value", s.TotalValue).
		Float64("cash", s.Cash).
		Float64("total_return", s.TotalReturn).
		Int("trades", s.TotalTrades).
		Int("open_orders", s.OpenOrders).
		Interface("positions", s.Positions).
		Msg("Portfolio report")
	return nil
}

// Last returns the summary from the most recent run
func (j *PortfolioReportJob) Last() domain.PortfolioSummary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
