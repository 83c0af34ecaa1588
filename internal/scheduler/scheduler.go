// Package scheduler provides cron-based scheduling for ModalPipe
// maintenance jobs, primarily the daily sweep of expired frequency records.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/BTreeMap/ModalPipe/internal/store"
)

// DefaultSweepSpec runs the sweep daily at 03:00.
const DefaultSweepSpec = "0 3 * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleSweep runs one sweep immediately and then schedules it under
// DefaultSweepSpec. Sweep failures are logged, never fatal.
func (s *Scheduler) ScheduleSweep(st store.FrequencyStore) error {
	sweep := func() {
		if err := st.SweepExpired(store.DefaultSweepMaxAge); err != nil {
			slog.Warn("Scheduler: frequency sweep failed", "error", err)
		}
	}
	sweep()
	return s.AddJob(DefaultSweepSpec, sweep)
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
