package di

import (
	"fmt"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/scheduler"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a configured container.
// Order of operations:
// 1. Initialize databases
// 2. Initialize services and bus subscribers
// 3. Register jobs
func Wire(cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	jobs, err := RegisterJobs(container, cfg, sched, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	return container, jobs, nil
}
