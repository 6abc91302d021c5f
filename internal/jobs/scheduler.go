// Package jobs runs the workshop's recurring background work, currently
// the nightly catalog sync from the legacy DMS. Scheduling is cron-based
// via robfig/cron.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler owns the cron runner and tracks registered jobs by name.
// A job that is still running when its next tick fires is skipped, and
// panics inside a job are recovered so one bad run cannot take the
// scheduler down.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a stopped scheduler. Register jobs, then Start.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins firing registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.logger.Info("job scheduler started")
	s.cron.Start()
}

// Stop stops scheduling new runs. The returned context is done once
// in-flight jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("job scheduler stopping")
	return s.cron.Stop()
}

// AddJob registers a named job. The expression uses the six-field cron
// format with a leading seconds field, e.g. "0 0 3 * * *" for 03:00
// daily; "@every 1h" style descriptors also work. Names must be unique.
func (s *Scheduler) AddJob(name string, cronExpr string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s is already registered", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		started := time.Now()
		s.logger.Info("job run started", zap.String("job", name))
		job()
		s.logger.Info("job run finished",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(started)))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.entries[name] = entryID
	s.logger.Info("job registered",
		zap.String("job", name),
		zap.String("schedule", cronExpr))
	return nil
}

// RemoveJob unregisters a job so it no longer fires.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s is not registered", name)
	}

	s.cron.Remove(entryID)
	delete(s.entries, name)
	s.logger.Info("job removed", zap.String("job", name))
	return nil
}
