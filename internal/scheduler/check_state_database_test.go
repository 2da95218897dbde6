package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCheckStateDatabaseJob_Name(t *testing.T) {
	job := NewCheckStateDatabaseJob(nil)
	assert.Equal(t, "check_state_database", job.Name())
}

func TestCheckStateDatabaseJob_Run_NoDatabase(t *testing.T) {
	job := NewCheckStateDatabaseJob(nil)
	job.SetLogger(zerolog.Nop())
	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointJob(nil)
	assert.Equal(t, "check_wal_checkpoint", job.Name())
}

func TestCheckWALCheckpointJob_Run_NoDatabase(t *testing.T) {
	job := NewCheckWALCheckpointJob(nil)
	job.SetLogger(zerolog.Nop())
	assert.NoError(t, job.Run())
}
