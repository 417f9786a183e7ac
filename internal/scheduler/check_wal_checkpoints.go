package scheduler

import (
	"fmt"

	"github.com/aristath/papertrader/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size above which a warning is logged
const walWarnFrames = 1000

// CheckWALCheckpointsJob runs a passive WAL checkpoint on each database and
// warns when the log keeps growing
type CheckWALCheckpointsJob struct {
	log       zerolog.Logger
	databases []*database.DB
}

// NewCheckWALCheckpointsJob creates the job. nil databases are skipped.
func NewCheckWALCheckpointsJob(log zerolog.Logger, databases ...*database.DB) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
		databases: databases,
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the checkpoint check. It fails only when every database fails.
func (j *CheckWALCheckpointsJob) Run() error {
	checked, failed := 0, 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, frames, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
		if err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to check WAL checkpoint")
			failed++
			continue
		}

		if frames > walWarnFrames {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Msg("WAL checkpoint status OK")
		}
		checked++
	}

	if checked == 0 && failed > 0 {
		return fmt.Errorf("WAL checkpoint failed on all %d databases", failed)
	}
	j.log.Debug().Int("checked", checked).Msg("WAL checkpoint check completed")
	return nil
}
