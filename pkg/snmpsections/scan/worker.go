package scan

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vpbank/snmp_sections/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// WorkerPool: fan-out dispatcher for scan Jobs
// ─────────────────────────────────────────────────────────────────────────────

// WorkerPool fans scan jobs out to N worker goroutines and collects results
// into a shared output channel.
type WorkerPool struct {
	numWorkers int
	runner     Runner
	output     chan<- models.ScanResult
	logger     *slog.Logger

	jobs chan Job
	wg   sync.WaitGroup
}

// NewWorkerPool creates a pool of numWorkers goroutines that execute scan jobs
// using the supplied Runner and send results to output.
func NewWorkerPool(numWorkers int, runner Runner, output chan<- models.ScanResult, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 16
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		runner:     runner,
		output:     output,
		logger:     logger,
		jobs:       make(chan Job, numWorkers*2),
	}
}

// Start launches the worker goroutines. They run until ctx is cancelled or
// Stop is called.
func (w *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(ctx)
	}
}

// Submit enqueues a scan job. It blocks if the internal job channel is full.
func (w *WorkerPool) Submit(job Job) {
	w.jobs <- job
}

// TrySubmit enqueues a scan job without blocking. Returns false if the channel
// is full, allowing the caller to drop or defer the job.
func (w *WorkerPool) TrySubmit(job Job) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the job channel and waits for all workers to drain.
func (w *WorkerPool) Stop() {
	close(w.jobs)
	w.wg.Wait()
}

// worker is the per-goroutine loop.
func (w *WorkerPool) worker(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			result, err := w.runner.Run(ctx, job)
			if err != nil {
				// The failed result is still emitted so that consumers see
				// which device could not be scanned.
				w.logger.Warn("scan failed",
					"device", job.Hostname,
					"error", err.Error(),
				)
			}
			select {
			case w.output <- result:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
