// Package scheduler provides maintenance jobs driven by
// internal/reliability's daily maintenance cycle. Unlike the corpus's
// seven-database shape, this system keeps one state database, so each job
// operates on it directly rather than a map of named connections.
package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stellar-aggregon/aggregon/internal/database"
	"github.com/stellar-aggregon/aggregon/internal/scheduler/base"
)

// CheckStateDatabaseJob verifies the state database's integrity via
// SQLite's own integrity_check pragma.
type CheckStateDatabaseJob struct {
	base.JobBase
	log zerolog.Logger
	db  *database.DB
}

// NewCheckStateDatabaseJob builds a CheckStateDatabaseJob against db.
func NewCheckStateDatabaseJob(db *database.DB) *CheckStateDatabaseJob {
	return &CheckStateDatabaseJob{log: zerolog.Nop(), db: db}
}

// SetLogger sets the logger for the job.
func (j *CheckStateDatabaseJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name for the scheduler.
func (j *CheckStateDatabaseJob) Name() string {
	return "check_state_database"
}

// Run executes the integrity check job. A failed check is critical: the
// state database cannot auto-recover, so the job returns an error the
// caller should treat as fatal.
func (j *CheckStateDatabaseJob) Run() error {
	if j.db == nil {
		j.log.Warn().Msg("state database not initialized, skipping integrity check")
		return nil
	}

	if err := j.db.HealthCheck(context.Background()); err != nil {
		j.log.Error().Err(err).Msg("state database integrity check failed")
		return fmt.Errorf("state database is corrupted: %w", err)
	}

	j.log.Debug().Msg("state database integrity OK")
	return nil
}
