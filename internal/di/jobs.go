package di

import (
	"fmt"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/scheduler"
	"github.com/rs/zerolog"
)

// walCheckSchedule runs the WAL check every 10 minutes
const walCheckSchedule = "0 */10 * * * *"

// RegisterJobs creates the background jobs and adds them to sched
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		PortfolioReport:     scheduler.NewPortfolioReportJob(container.Engine, log),
		CheckWALCheckpoints: scheduler.NewCheckWALCheckpointsJob(log, container.JournalDB, container.BacktestsDB),
	}

	if err := sched.AddJob(cfg.ReportSchedule, jobs.PortfolioReport); err != nil {
		return nil, fmt.Errorf("failed to register portfolio report job: %w", err)
	}
	if err := sched.AddJob(walCheckSchedule, jobs.CheckWALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register WAL check job: %w", err)
	}
	return jobs, nil
}
