// Package app wires the section scanner pipeline stages together and manages
// their lifecycle.
//
// Daemon path:
//
//	Scheduler → WorkerPool → [resultCh] → Formatter → [formattedCh] → Transport
//
// One-shot path (RunOnce): every configured device is scanned once with
// bounded parallelism and the results go through the same formatter and
// transport.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	jsonformat "github.com/vpbank/snmp_sections/format/json"
	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/oidcache"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/scan"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/scheduler"
	filetransport "github.com/vpbank/snmp_sections/transport/file"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for the scanner application.
// Zero-value fields fall back to documented defaults.
type Config struct {
	// ConfigPaths are the directories for YAML configuration files.
	// Use config.PathsFromEnv() to populate from environment variables.
	ConfigPaths config.Paths

	// Resolver translates symbolic OIDs in the detection catalog. nil
	// requires numeric OIDs.
	Resolver config.OIDResolver

	// CollectorID identifies this scanner instance in output records.
	// Defaults to the hostname.
	CollectorID string

	// ScanWorkers is the number of devices scanned concurrently.
	// Default: 16.
	ScanWorkers int

	// BufferSize is the capacity of each inter-stage channel.
	// Default: 1000.
	BufferSize int

	// OIDStore persists OID caches between scans. nil disables persistence.
	OIDStore oidcache.Store

	// NewBackend builds the backend for each scan. nil uses live SNMP.
	NewBackend scan.BackendFactory

	// PrettyPrint enables indented JSON output.
	PrettyPrint bool

	// Transport receives every formatted record. nil writes to os.Stdout.
	// The app closes it on Stop.
	Transport filetransport.Transport
}

func (c *Config) withDefaults() {
	if c.CollectorID == "" {
		name, _ := os.Hostname()
		if name == "" {
			name = "sectionscan"
		}
		c.CollectorID = name
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = 16
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates the scanner pipeline. Create one with New, then either
// Start/Stop it as a daemon or call RunOnce.
type App struct {
	cfg    Config
	logger *slog.Logger

	runner    *scan.SNMPRunner
	formatter *jsonformat.JSONFormatter
	transport filetransport.Transport

	// Daemon components (populated in Start).
	workerPool *scan.WorkerPool
	sched      *scheduler.Scheduler

	resultCh    chan models.ScanResult
	formattedCh chan []byte

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()

	transport := cfg.Transport
	if transport == nil {
		t, err := filetransport.New(filetransport.Config{}, logger)
		if err != nil {
			return nil, fmt.Errorf("app: transport: %w", err)
		}
		transport = t
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		runner:    scan.NewSNMPRunner(cfg.OIDStore, cfg.NewBackend, cfg.CollectorID, logger),
		formatter: jsonformat.New(jsonformat.Config{PrettyPrint: cfg.PrettyPrint}, logger),
		transport: transport,
	}, nil
}

func (a *App) loadConfig() (*config.LoadedConfig, error) {
	loaded, err := config.Load(a.cfg.ConfigPaths, a.cfg.Resolver, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("app: configuration loaded",
		"devices", len(loaded.Devices),
		"sections", len(loaded.Sections),
		"section_groups", len(loaded.SectionGroups),
	)
	return loaded, nil
}

// Start loads configuration and launches the scheduler, the worker pool and
// the output stages. The caller must eventually call Stop.
func (a *App) Start(ctx context.Context) error {
	loaded, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}

	a.resultCh = make(chan models.ScanResult, a.cfg.BufferSize)
	a.formattedCh = make(chan []byte, a.cfg.BufferSize)

	a.workerPool = scan.NewWorkerPool(a.cfg.ScanWorkers, a.runner, a.resultCh, a.logger)
	a.sched = scheduler.New(loaded, a.workerPool, a.logger)

	pipeCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// Sinks first, sources last.
	a.startTransportStage()
	a.startFormatStage()
	a.workerPool.Start(pipeCtx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sched.Start(pipeCtx)
	}()

	a.logger.Info("app: pipeline running",
		"devices", a.sched.Entries(),
		"scan_workers", a.cfg.ScanWorkers,
		"buffer_size", a.cfg.BufferSize,
	)
	return nil
}

// Stop performs a graceful shutdown.
//
// Shutdown order:
//  1. Cancel the pipeline context and wait for the scheduler to return.
//  2. Drain the worker pool (in-flight scans complete or abort on ctx).
//  3. Close resultCh; the formatter drains and closes formattedCh; the
//     transport stage drains and exits.
//  4. Close the transport.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.workerPool != nil {
		a.workerPool.Stop()
	}
	if a.resultCh != nil {
		close(a.resultCh)
	}
	a.wg.Wait()

	if err := a.transport.Close(); err != nil {
		a.logger.Error("app: transport close error", "error", err.Error())
	}
	a.logger.Info("app: shutdown complete")
}

// Reload re-reads the configuration and hands it to the scheduler. New
// devices are scanned immediately.
func (a *App) Reload() error {
	if a.sched == nil {
		return errors.New("app: reload before start")
	}
	loaded, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("app: reload config: %w", err)
	}
	a.sched.Reload(loaded)
	return nil
}

// RunOnce scans every configured device once, at most ScanWorkers at a time,
// and sends each result through the formatter and transport. All results
// share one run id and are returned sorted by hostname. A failed scan is
// reported in its result; the returned error covers configuration loading
// and delivery only. The transport stays open.
func (a *App) RunOnce(ctx context.Context) ([]models.ScanResult, error) {
	loaded, err := a.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("app: load config: %w", err)
	}
	jobs := scheduler.ResolveJobs(loaded, a.logger)
	runID := uuid.NewString()

	results := make([]models.ScanResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.ScanWorkers)
	for i := range jobs {
		i := i
		job := jobs[i]
		job.RunID = runID
		g.Go(func() error {
			res, err := a.runner.Run(gctx, job)
			if err != nil {
				a.logger.Warn("app: scan failed", "hostname", job.Hostname, "error", err.Error())
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Host.Hostname < results[j].Host.Hostname })

	var sendErrs []error
	for i := range results {
		if err := a.deliver(&results[i]); err != nil {
			sendErrs = append(sendErrs, err)
		}
	}
	a.logger.Info("app: one-shot scan complete", "run_id", runID, "devices", len(results))
	return results, errors.Join(sendErrs...)
}

func (a *App) deliver(res *models.ScanResult) error {
	data, err := a.formatter.Format(res)
	if err != nil {
		return err
	}
	return a.transport.Send(data)
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline stage goroutines
// ─────────────────────────────────────────────────────────────────────────────

// startFormatStage reads results from resultCh, formats them and forwards
// the bytes to formattedCh, which it closes once resultCh is closed.
func (a *App) startFormatStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.formattedCh)

		for res := range a.resultCh {
			data, err := a.formatter.Format(&res)
			if err != nil {
				a.logger.Warn("app: format error",
					"hostname", res.Host.Hostname,
					"error", err.Error(),
				)
				continue
			}
			a.formattedCh <- data
		}
	}()
}

// startTransportStage writes formatted records until formattedCh closes.
func (a *App) startTransportStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		for data := range a.formattedCh {
			if err := a.transport.Send(data); err != nil {
				a.logger.Error("app: transport send error",
					"error", err.Error(),
					"bytes", len(data),
				)
			}
		}
	}()
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
