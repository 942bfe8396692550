// Package scan decides which SNMP sections apply to a device.
//
// Every catalog entry pairs a section name with a detection specification.
// The scanner evaluates each specification against lazily fetched OID values
// and reports the names whose specification holds. Fetches go through the
// per-scan OID cache so each (context, OID) is queried at most once.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/backend"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/oidcache"
	"github.com/vpbank/snmp_sections/snmp/detect"
)

// Well-known OIDs probed before any section.
const (
	OIDSysDescr  = backend.OIDSysDescr
	OIDSysObject = backend.OIDSysObject
)

// ─────────────────────────────────────────────────────────────────────────────
// Errors and policy
// ─────────────────────────────────────────────────────────────────────────────

// ConfigError is a misconfiguration that surfaces regardless of OnError.
type ConfigError = models.ConfigError

// ErrSNMP is wrapped by the error returned when the device does not answer
// for its system description or system object.
var ErrSNMP = errors.New("scan: SNMP error")

// ErrUnknownOnError is returned for an unrecognised policy string.
var ErrUnknownOnError = errors.New("scan: unknown on_error policy")

// OnError selects what happens when evaluating a section fails.
type OnError string

const (
	// OnErrorRaise aborts the scan and returns the error.
	OnErrorRaise OnError = "raise"

	// OnErrorWarn logs the failure and skips the section.
	OnErrorWarn OnError = "warn"

	// OnErrorIgnore skips the section silently.
	OnErrorIgnore OnError = "ignore"
)

// ParseOnError validates s as an OnError policy.
func ParseOnError(s string) (OnError, error) {
	switch p := OnError(s); p {
	case OnErrorRaise, OnErrorWarn, OnErrorIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOnError, s)
	}
}

// mustSurface reports errors that bypass the OnError policy.
func mustSurface(err error) bool {
	return models.IsConfigError(err) || errors.Is(err, ErrSNMP)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanner
// ─────────────────────────────────────────────────────────────────────────────

// Scanner runs scans against one OID cache. A Scanner must not be shared by
// scans of different hosts that run concurrently.
type Scanner struct {
	cache  *oidcache.Cache
	logger *slog.Logger
}

// NewScanner returns a Scanner that memoises fetches in cache.
func NewScanner(cache *oidcache.Cache, logger *slog.Logger) *Scanner {
	if cache == nil {
		cache = oidcache.New(nil, logger)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Scanner{cache: cache, logger: logger}
}

// GatherAvailableRawSectionNames returns the names of the sections whose
// detection specification holds on the device behind be.
//
// Failures are handled according to onError both per section and for the
// scan as a whole: under warn and ignore a failed scan yields an empty set
// and a nil error. Configuration errors and an unanswered system description
// are always returned.
func (s *Scanner) GatherAvailableRawSectionNames(
	ctx context.Context,
	sections []models.ScanSection,
	onError OnError,
	binaryHost bool,
	be backend.Backend,
) (models.SectionSet, error) {
	if _, err := ParseOnError(string(onError)); err != nil {
		return nil, err
	}
	host := be.Config().Hostname
	start := time.Now()

	found, err := s.scan(ctx, sections, onError, binaryHost, be)
	scanDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		scansTotal.WithLabelValues("success").Inc()
		sectionsFound.Add(float64(len(found)))
		return found, nil
	}

	scansTotal.WithLabelValues("error").Inc()
	if onError == OnErrorRaise || mustSurface(err) {
		return nil, err
	}
	if onError == OnErrorWarn {
		s.logger.Error("scan: SNMP scan failed", "host", host, "error", err.Error())
	}
	return models.NewSectionSet(), nil
}

func (s *Scanner) scan(
	ctx context.Context,
	sections []models.ScanSection,
	onError OnError,
	binaryHost bool,
	be backend.Backend,
) (models.SectionSet, error) {
	cfg := be.Config()
	if err := s.cache.Initialize(ctx, cfg.Hostname, cfg.UseOIDCache); err != nil {
		s.logger.Warn("scan: stored OID values unavailable", "host", cfg.Hostname, "error", err.Error())
	}
	s.logger.Debug("scan: SNMP scan", "host", cfg.Hostname, "sections", len(sections))

	if err := s.primeDescription(ctx, binaryHost, be); err != nil {
		return nil, err
	}

	found, err := s.findSections(ctx, sections, onError, be)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("scan: SNMP scan found", "host", cfg.Hostname, "sections", found.String())

	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn("scan: persist OID cache failed", "host", cfg.Hostname, "error", err.Error())
	}
	return found, nil
}

// primeDescription makes sure sysDescr and sysObjectID are in the cache. For
// binary hosts both are seeded with empty strings since many specifications
// probe them. Otherwise both are fetched live, even when stored values were
// loaded: an answer is the proof that the device is reachable.
func (s *Scanner) primeDescription(ctx context.Context, binaryHost bool, be backend.Backend) error {
	if binaryHost {
		s.logger.Debug("scan: skipping system description OIDs",
			"host", be.Config().Hostname, "sys_descr", OIDSysDescr, "sys_object", OIDSysObject)
		s.cache.Set(backend.SystemKey(OIDSysDescr), oidcache.Entry{Value: "", Found: true})
		s.cache.Set(backend.SystemKey(OIDSysObject), oidcache.Entry{Value: "", Found: true})
		return nil
	}

	for _, probe := range []struct{ oid, name string }{
		{OIDSysDescr, "system description"},
		{OIDSysObject, "system object"},
	} {
		s.cache.Delete(backend.SystemKey(probe.oid))
		_, found, err := backend.GetSingleOID(ctx, s.cache, be, probe.oid, "", s.logger)
		if err != nil {
			return fmt.Errorf("scan: fetch %s: %w", probe.name, err)
		}
		if !found {
			return &ConfigError{
				Message: fmt.Sprintf("cannot fetch %s OID %s, check the SNMP configuration "+
					"(credentials, SNMP version, firewall rules)", probe.name, probe.oid),
				Cause: ErrSNMP,
			}
		}
	}
	return nil
}

func (s *Scanner) findSections(
	ctx context.Context,
	sections []models.ScanSection,
	onError OnError,
	be backend.Backend,
) (models.SectionSet, error) {
	found := models.NewSectionSet()
	for _, sec := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		get := func(oid string) (string, bool, error) {
			return backend.GetSingleOID(ctx, s.cache, be, oid, sec.Name, s.logger)
		}
		ok, err := detect.Evaluate(sec.Detect, get)
		if err == nil {
			if ok {
				found.Add(sec.Name)
			}
			continue
		}

		sectionErrors.WithLabelValues(string(sec.Name)).Inc()
		if mustSurface(err) {
			return nil, err
		}
		switch onError {
		case OnErrorRaise:
			return nil, fmt.Errorf("scan: section %s: %w", sec.Name, err)
		case OnErrorWarn:
			s.logger.Warn("scan: exception in SNMP scan function",
				"host", be.Config().Hostname, "section", sec.Name, "error", err.Error())
		}
	}
	return found, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
