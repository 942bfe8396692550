package scan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/backend"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/oidcache"
)

// ─────────────────────────────────────────────────────────────────────────────
// Job: unit of work
// ─────────────────────────────────────────────────────────────────────────────

// Job describes one scan of one device.
type Job struct {
	// RunID groups the results of one scheduling cycle. A fresh id is
	// generated when empty.
	RunID string

	// Hostname is the key into LoadedConfig.Devices that identifies the target.
	Hostname string

	// Host carries the identity fields reported in ScanResult.
	Host models.Host

	// DeviceConfig is the resolved configuration for the device.
	DeviceConfig config.DeviceConfig

	// Sections is the detection catalog scanned on the device.
	Sections []models.ScanSection
}

// Runner executes a single scan job.
type Runner interface {
	Run(ctx context.Context, job Job) (models.ScanResult, error)
}

// BackendFactory builds the backend for one job.
type BackendFactory func(cfg config.DeviceConfig) (backend.Backend, error)

// ─────────────────────────────────────────────────────────────────────────────
// SNMPRunner: production implementation
// ─────────────────────────────────────────────────────────────────────────────

// SNMPRunner scans each job with its own OID cache and backend so that no
// state is shared between hosts.
type SNMPRunner struct {
	store       oidcache.Store
	newBackend  BackendFactory
	collectorID string
	logger      *slog.Logger
}

// NewSNMPRunner creates a runner. store may be nil to disable OID cache
// persistence; newBackend defaults to a live gosnmp backend.
func NewSNMPRunner(store oidcache.Store, newBackend BackendFactory, collectorID string, logger *slog.Logger) *SNMPRunner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if newBackend == nil {
		newBackend = func(cfg config.DeviceConfig) (backend.Backend, error) {
			return backend.NewSNMPBackend(cfg, backend.Options{}, logger), nil
		}
	}
	return &SNMPRunner{
		store:       store,
		newBackend:  newBackend,
		collectorID: collectorID,
		logger:      logger,
	}
}

// Run implements Runner. The returned result is always populated; on
// failure Status is "error" and err is non-nil.
func (r *SNMPRunner) Run(ctx context.Context, job Job) (models.ScanResult, error) {
	if job.RunID == "" {
		job.RunID = uuid.NewString()
	}
	started := time.Now()
	result := models.ScanResult{
		RunID:       job.RunID,
		Timestamp:   started,
		Host:        job.Host,
		Sections:    []string{},
		Status:      models.ScanStatusSuccess,
		CollectorID: r.collectorID,
	}

	found, err := r.scan(ctx, job)
	result.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		result.Status = models.ScanStatusError
		result.Error = err.Error()
		return result, fmt.Errorf("scan %s: %w", job.Hostname, err)
	}
	for _, name := range found.Sorted() {
		result.Sections = append(result.Sections, string(name))
	}

	r.logger.Debug("scan completed",
		"device", job.Hostname,
		"sections", len(result.Sections),
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

func (r *SNMPRunner) scan(ctx context.Context, job Job) (models.SectionSet, error) {
	onError, err := ParseOnError(job.DeviceConfig.OnError)
	if err != nil {
		return nil, err
	}
	be, err := r.newBackend(job.DeviceConfig)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}
	if c, ok := be.(io.Closer); ok {
		defer c.Close()
	}

	logger := r.logger.With("run_id", job.RunID)
	scanner := NewScanner(oidcache.New(r.store, logger), logger)
	return scanner.GatherAvailableRawSectionNames(ctx, job.Sections, onError, job.DeviceConfig.BinaryHost, be)
}
