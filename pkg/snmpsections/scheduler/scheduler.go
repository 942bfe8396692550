package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/scan"
)

// ─────────────────────────────────────────────────────────────────────────────
// JobSubmitter: interface for dependency injection
// ─────────────────────────────────────────────────────────────────────────────

// JobSubmitter is the subset of scan.WorkerPool consumed by the scheduler.
type JobSubmitter interface {
	Submit(scan.Job)
	TrySubmit(scan.Job) bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// entry tracks the next-fire time for a single device and its resolved job.
type entry struct {
	hostname string
	interval time.Duration
	nextRun  time.Time
	job      scan.Job
}

// Scheduler dispatches scan jobs into a JobSubmitter at each device's
// configured ScanInterval. All jobs fired in the same tick share a run id.
type Scheduler struct {
	pool   JobSubmitter
	logger *slog.Logger

	mu      sync.Mutex
	entries []entry

	done chan struct{}
}

// New creates a Scheduler. The scheduler does NOT start automatically; call
// Start to begin dispatching.
func New(cfg *config.LoadedConfig, pool JobSubmitter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	s := &Scheduler{
		pool:   pool,
		logger: logger,
		done:   make(chan struct{}),
	}
	s.entries = s.buildEntries(cfg)
	return s
}

// Start runs the scheduling loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.Lock()
		if len(s.entries) == 0 {
			s.mu.Unlock()
			// Nothing to schedule: wait for cancellation or a Reload.
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
				continue
			}
		}

		sort.Slice(s.entries, func(i, j int) bool {
			return s.entries[i].nextRun.Before(s.entries[j].nextRun)
		})
		next := s.entries[0].nextRun
		s.mu.Unlock()

		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		now := time.Now()
		runID := uuid.NewString()
		s.mu.Lock()
		for i := range s.entries {
			if s.entries[i].nextRun.After(now) {
				break
			}
			s.fireEntry(&s.entries[i], runID)
			s.entries[i].nextRun = now.Add(s.entries[i].interval)
		}
		s.mu.Unlock()
	}
}

// Stop waits for the scheduling loop to exit. The caller must cancel the
// context passed to Start before calling Stop.
func (s *Scheduler) Stop() {
	<-s.done
}

// Reload atomically replaces the running config. New devices are scanned
// immediately; removed devices stop; changed intervals take effect on the
// next cycle.
func (s *Scheduler) Reload(cfg *config.LoadedConfig) {
	newEntries := s.buildEntries(cfg)
	s.mu.Lock()
	s.entries = newEntries
	s.mu.Unlock()
	s.logger.Info("scheduler: config reloaded", "devices", len(newEntries))
}

// Entries returns the number of active entries.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) buildEntries(cfg *config.LoadedConfig) []entry {
	jobs := ResolveJobs(cfg, s.logger)

	now := time.Now()
	entries := make([]entry, 0, len(jobs))
	for _, job := range jobs {
		interval := job.DeviceConfig.ScanIntervalDuration()
		if interval <= 0 {
			interval = time.Hour
		}
		entries = append(entries, entry{
			hostname: job.Hostname,
			interval: interval,
			nextRun:  now, // scan immediately on start / reload
			job:      job,
		})
	}
	return entries
}

// fireEntry dispatches the entry's job using TrySubmit (non-blocking).
func (s *Scheduler) fireEntry(e *entry, runID string) {
	job := e.job
	job.RunID = runID
	if !s.pool.TrySubmit(job) {
		s.logger.Warn("scheduler: job queue full, dropping scan",
			"hostname", e.hostname,
			"run_id", runID,
		)
		return
	}
	s.logger.Debug("scheduler: fired scan",
		"hostname", e.hostname,
		"sections", len(job.Sections),
		"run_id", runID,
	)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
