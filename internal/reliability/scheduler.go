package reliability

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// job is the minimal shape internal/scheduler/base.JobBase-embedding jobs
// satisfy.
type job interface {
	Name() string
	Run() error
}

// Scheduler drives the daily maintenance and archive/prune jobs on a cron
// schedule, in place of the corpus's queue.Manager (whose job types are
// specific to its own trading domain and do not generalize here).
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler builds a Scheduler; call Start to begin firing jobs.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "maintenance_scheduler").Logger(),
	}
}

// ScheduleDaily registers j to run once per day at the given hour:minute
// (24h, server-local time), matching the corpus's own 2 AM maintenance
// window.
func (s *Scheduler) ScheduleDaily(hour, minute int, j job) error {
	spec := cronTimeSpec(hour, minute)
	_, err := s.cron.AddFunc(spec, func() {
		if err := j.Run(); err != nil {
			s.log.Error().Err(err).Str("job", j.Name()).Msg("maintenance job failed")
		}
	})
	return err
}

// Start begins the cron scheduler in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop drains any in-flight job and stops the scheduler.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func cronTimeSpec(hour, minute int) string {
	return padInt(minute) + " " + padInt(hour) + " * * *"
}

func padInt(n int) string {
	if n < 0 {
		n = 0
	}
	if n > 59 {
		n = 59
	}
	digits := "0123456789"
	tens := n / 10
	ones := n % 10
	return string([]byte{digits[tens], digits[ones]})
}
