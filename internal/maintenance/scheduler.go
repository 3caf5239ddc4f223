// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package maintenance schedules the event store's periodic housekeeping:
// integrity checks, ANALYZE, PRAGMA optimize, VACUUM, and event archival,
// each run at its own configured interval.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tkdvta/corevta/internal/logging"
)

// StoreMaintainer is the subset of *store.Store the scheduler drives.
type StoreMaintainer interface {
	RunIntegrityCheck(ctx context.Context) error
	RunAnalyze(ctx context.Context) error
	RunOptimize(ctx context.Context) error
	RunVacuum(ctx context.Context) error
	CreateBackup(ctx context.Context, name string) (string, error)
	ArchiveOldEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// Config mirrors config.MaintenanceConfig: zero-value durations/intervals
// disable that operation entirely.
type Config struct {
	VacuumInterval          time.Duration
	IntegrityCheckInterval  time.Duration
	AnalyzeInterval         time.Duration
	OptimizeInterval        time.Duration
	BackupBeforeMaintenance bool
	RetentionWindow         time.Duration
}

type operation struct {
	name     string
	interval time.Duration
	lastRun  time.Time
	run      func(ctx context.Context) error
}

// Scheduler evaluates which maintenance operations are due on a fixed
// polling cadence and runs them in sequence.
type Scheduler struct {
	store StoreMaintainer
	cfg   Config
	log   *logging.PSSLogger

	mu   sync.Mutex
	ops  []*operation

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Scheduler. Operations whose configured interval is zero are
// never scheduled.
func New(store StoreMaintainer, cfg Config) *Scheduler {
	s := &Scheduler{store: store, cfg: cfg, log: logging.NewPSSLogger("maintenance")}
	s.ops = []*operation{
		{name: "integrity_check", interval: cfg.IntegrityCheckInterval, run: s.runIntegrityCheck},
		{name: "analyze", interval: cfg.AnalyzeInterval, run: s.store.RunAnalyze},
		{name: "optimize", interval: cfg.OptimizeInterval, run: s.store.RunOptimize},
		{name: "vacuum", interval: cfg.VacuumInterval, run: s.runVacuum},
	}
	if cfg.RetentionWindow > 0 {
		s.ops = append(s.ops, &operation{name: "archive", interval: cfg.RetentionWindow, run: s.runArchive})
	}
	return s
}

func (s *Scheduler) runIntegrityCheck(ctx context.Context) error {
	return s.store.RunIntegrityCheck(ctx)
}

func (s *Scheduler) runVacuum(ctx context.Context) error {
	if s.cfg.BackupBeforeMaintenance {
		if _, err := s.store.CreateBackup(ctx, ""); err != nil {
			return err
		}
	}
	return s.store.RunVacuum(ctx)
}

func (s *Scheduler) runArchive(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.RetentionWindow)
	_, err := s.store.ArchiveOldEvents(ctx, cutoff)
	return err
}

const pollInterval = 30 * time.Second

// Start begins the polling loop on a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop halts the polling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue runs every operation whose interval has elapsed since its last
// run, in declaration order, continuing past individual failures so one
// broken operation does not starve the rest.
func (s *Scheduler) runDue(ctx context.Context) {
	now := time.Now()
	s.mu.Lock()
	due := make([]*operation, 0, len(s.ops))
	for _, op := range s.ops {
		if op.interval <= 0 {
			continue
		}
		if op.lastRun.IsZero() || now.Sub(op.lastRun) >= op.interval {
			due = append(due, op)
		}
	}
	s.mu.Unlock()

	for _, op := range due {
		err := op.run(ctx)
		s.mu.Lock()
		op.lastRun = time.Now()
		s.mu.Unlock()
		if err != nil {
			s.log.LogPersistFailure(ctx, fmt.Errorf("maintenance op %s: %w", op.name, err))
		}
	}
}

// RunNow forces every configured operation to run immediately, regardless
// of its interval, used by an operator-triggered maintenance request.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.mu.Lock()
	ops := make([]*operation, len(s.ops))
	copy(ops, s.ops)
	s.mu.Unlock()

	var firstErr error
	for _, op := range ops {
		if op.interval <= 0 {
			continue
		}
		if err := op.run(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		s.mu.Lock()
		op.lastRun = time.Now()
		s.mu.Unlock()
	}
	return firstErr
}
