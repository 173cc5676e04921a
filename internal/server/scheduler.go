package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler triggers cron sync runs on a schedule
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	runner   CronRunner
	logger   *logrus.Logger
	mu       sync.RWMutex
	running  bool
	entryID  cron.EntryID
	lastRun  *time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(schedule string, runner CronRunner, logger *logrus.Logger) *Scheduler {
	// Overlapping runs are skipped; each run is bounded by its own ceiling
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(logger)),
		cron.WithChain(cron.Recover(cron.VerbosePrintfLogger(logger)), cron.SkipIfStillRunning(cron.VerbosePrintfLogger(logger))),
	)

	return &Scheduler{
		cron:     c,
		schedule: schedule,
		runner:   runner,
		logger:   logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if s.entryID == 0 {
		entryID, err := s.cron.AddFunc(s.schedule, s.runSync)
		if err != nil {
			return fmt.Errorf("failed to add cron job: %w", err)
		}
		s.entryID = entryID
	}

	s.cron.Start()
	s.running = true

	s.logger.Infof("Scheduler started with schedule '%s' (entry ID: %d)", s.schedule, s.entryID)
	if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
		s.logger.Infof("Next cron sync scheduled for: %s", next.Format(time.RFC3339))
	}

	return nil
}

// Stop stops the scheduler and waits for a running sync to finish.
// The lock is released before waiting so status reads and the running job are not blocked.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Schedule returns the cron expression
func (s *Scheduler) Schedule() string {
	return s.schedule
}

// GetLastRun returns the start time of the last scheduled run
func (s *Scheduler) GetLastRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running || s.entryID == 0 {
		return nil
	}

	next := s.cron.Entry(s.entryID).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// runSync executes a cron sync (called by cron)
func (s *Scheduler) runSync() {
	s.logger.Info("Starting scheduled cron sync")

	startTime := time.Now()
	s.mu.Lock()
	s.lastRun = &startTime
	s.mu.Unlock()

	outcome := s.runner.Run(context.Background())
	duration := time.Since(startTime)

	switch {
	case !outcome.Succeeded():
		s.logger.Errorf("Scheduled cron sync failed with status %d in %v: %v", outcome.Status, duration, outcome.Err)
	case outcome.ExecutionErr != nil:
		s.logger.Warnf("Scheduled cron sync completed in %v; execution-log sync failed: %v", duration, outcome.ExecutionErr)
	default:
		s.logger.Infof("Scheduled cron sync completed successfully in %v", duration)
	}
}
