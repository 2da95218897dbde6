package reliability

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDailyMaintenanceJobNoDatabase(t *testing.T) {
	job := NewDailyMaintenanceJob(nil, zerolog.Nop())
	assert.Equal(t, "daily_maintenance", job.Name())
	assert.NoError(t, job.Run())
}

func TestArchivePruneJobName(t *testing.T) {
	job := NewArchivePruneJob(nil, 30, 7, nil)
	assert.Equal(t, "archive_prune", job.Name())
}

func TestCronTimeSpecPadsSingleDigits(t *testing.T) {
	assert.Equal(t, "05 02 * * *", cronTimeSpec(2, 5))
	assert.Equal(t, "30 14 * * *", cronTimeSpec(14, 30))
}
