package reliability

import (
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stellar-aggregon/aggregon/internal/database"
	"github.com/stellar-aggregon/aggregon/internal/scheduler"
	"github.com/stellar-aggregon/aggregon/internal/scheduler/base"
)

const (
	diskSpaceCriticalGB = 0.5
	diskSpaceWarningGB  = 5.0
)

// DailyMaintenanceJob runs the state database's daily health routine:
// integrity check, WAL checkpoint, and disk-space monitoring. Run stops at
// the first critical failure so a corrupted database or exhausted disk
// halts further maintenance rather than masking the problem.
type DailyMaintenanceJob struct {
	base.JobBase
	log          zerolog.Logger
	db           *database.DB
	integrityJob *scheduler.CheckStateDatabaseJob
	walJob       *scheduler.CheckWALCheckpointJob
}

// NewDailyMaintenanceJob builds a DailyMaintenanceJob against db.
func NewDailyMaintenanceJob(db *database.DB, log zerolog.Logger) *DailyMaintenanceJob {
	integrityJob := scheduler.NewCheckStateDatabaseJob(db)
	integrityJob.SetLogger(log)
	walJob := scheduler.NewCheckWALCheckpointJob(db)
	walJob.SetLogger(log)

	return &DailyMaintenanceJob{
		log:          log.With().Str("job", "daily_maintenance").Logger(),
		db:           db,
		integrityJob: integrityJob,
		walJob:       walJob,
	}
}

// Name returns the job name for the scheduler.
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance routine.
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("starting daily maintenance")
	start := time.Now()

	if err := j.integrityJob.Run(); err != nil {
		return fmt.Errorf("CRITICAL: state database integrity check failed: %w", err)
	}

	if err := j.walJob.Run(); err != nil {
		j.log.Warn().Err(err).Msg("wal checkpoint failed, continuing")
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().Dur("duration_ms", time.Since(start)).Msg("daily maintenance completed")
	return nil
}

// checkDiskSpace halts maintenance (and, transitively, the process that
// schedules it) when the data directory's filesystem is critically full.
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	if j.db == nil {
		return nil
	}

	var stat syscall.Statfs_t
	dataDir := filepath.Dir(j.db.Path())
	if err := syscall.Statfs(dataDir, &stat); err != nil {
		return fmt.Errorf("stat filesystem: %w", err)
	}

	availableGB := float64(stat.Bavail) * float64(stat.Bsize) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("disk space check")

	if availableGB < diskSpaceCriticalGB {
		return fmt.Errorf("CRITICAL: only %.2f GB free on %s, halting maintenance", availableGB, dataDir)
	}
	if availableGB < diskSpaceWarningGB {
		j.log.Warn().Float64("available_gb", availableGB).Msg("disk space running low")
	}
	return nil
}
