// Package scheduler runs periodic background jobs on a cron schedule.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrDuplicateJob is returned when a job name is registered twice
var ErrDuplicateJob = errors.New("job already registered")

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobStatus is the run history of one registered job
type JobStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastError    string        `json:"last_error,omitempty"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns"`
	NextRun      time.Time     `json:"next_run,omitempty"`
}

type jobState struct {
	job      Job
	schedule string
	entry    cron.EntryID

	runs         int
	failures     int
	lastErr      error
	lastRun      time.Time
	lastDuration time.Duration
}

// Scheduler owns the cron runner and the run history of its jobs. A job
// still running when its next slot comes up is skipped, and a panicking job
// is logged and counted as a failure instead of killing the process.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*jobState
}

// New creates a new scheduler. Schedules accept an optional seconds field.
func New(log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		log:  log,
		jobs: make(map[string]*jobState),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.Entries()).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers job with a cron schedule. Job names must be unique.
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	name := job.Name()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	state := &jobState{job: job, schedule: schedule}
	id, err := s.cron.AddFunc(schedule, func() { s.run(state) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, name, err)
	}
	state.entry = id
	s.jobs[name] = state

	s.log.Info().
		Str("schedule", schedule).
		Str("job", name).
		Msg("Job registered")
	return nil
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunNow executes a job immediately (outside schedule). A job registered
// under the same name has the run added to its history.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")

	s.mu.Lock()
	state, ok := s.jobs[job.Name()]
	s.mu.Unlock()
	if !ok {
		return runGuarded(job)
	}
	return s.run(state)
}

// Status returns the history of every registered job, sorted by name
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for name, st := range s.jobs {
		status := JobStatus{
			Name:         name,
			Schedule:     st.schedule,
			Runs:         st.runs,
			Failures:     st.failures,
			LastRun:      st.lastRun,
			LastDuration: st.lastDuration,
			NextRun:      s.cron.Entry(st.entry).Next,
		}
		if st.lastErr != nil {
			status.LastError = st.lastErr.Error()
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) run(state *jobState) error {
	name := state.job.Name()
	s.log.Debug().Str("job", name).Msg("Running job")

	start := time.Now()
	err := runGuarded(state.job)
	elapsed := time.Since(start)

	s.mu.Lock()
	state.runs++
	state.lastRun = start
	state.lastDuration = elapsed
	state.lastErr = err
	if err != nil {
		state.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", name).
			Dur("duration", elapsed).
			Msg("Job failed")
	} else {
		s.log.Debug().Str("job", name).Dur("duration", elapsed).Msg("Job completed")
	}
	return err
}

// runGuarded turns a job panic into an error
func runGuarded(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run()
}

// cronLogger routes cron's own messages through zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
