// Package json serialises scan output records.
//
// Two record kinds leave the scanner: a models.ScanResult per scanned device,
// and a parsed-section report per host when raw section data is resolved
// offline. Both are written as one JSON document per message.
package json

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/section"
)

// ─────────────────────────────────────────────────────────────────────────────
// Formatter interface
// ─────────────────────────────────────────────────────────────────────────────

// Formatter serialises a models.ScanResult into a byte slice.
type Formatter interface {
	Format(result *models.ScanResult) ([]byte, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config controls JSONFormatter behaviour.
type Config struct {
	// PrettyPrint emits indented, human-readable JSON when true.
	PrettyPrint bool

	// Indent is the indent string used when PrettyPrint=true.
	// Defaults to two spaces.
	Indent string
}

// ─────────────────────────────────────────────────────────────────────────────
// JSONFormatter
// ─────────────────────────────────────────────────────────────────────────────

// JSONFormatter implements Formatter with encoding/json. It is safe for
// concurrent use.
type JSONFormatter struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a JSONFormatter.
func New(cfg Config, logger *slog.Logger) *JSONFormatter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.PrettyPrint && cfg.Indent == "" {
		cfg.Indent = "  "
	}
	return &JSONFormatter{cfg: cfg, logger: logger}
}

// Format serialises result:
//
//	{
//	  "run_id": "9b1d…",
//	  "timestamp": "2026-02-26T10:30:00.123Z",
//	  "host": { "hostname": …, "ip_address": …, "snmp_version": … },
//	  "sections": ["hr_mem", "if64"],
//	  "status": "success",
//	  "duration_ms": 245,
//	  "collector_id": "scanner-01"
//	}
func (f *JSONFormatter) Format(result *models.ScanResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("format/json: result must not be nil")
	}
	data, err := f.marshal(result)
	if err != nil {
		f.logger.Error("format/json: marshal failed",
			"hostname", result.Host.Hostname,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("format/json: marshal: %w", err)
	}

	f.logger.Debug("format/json: formatted scan result",
		"hostname", result.Host.Hostname,
		"sections", len(result.Sections),
		"bytes", len(data),
	)
	return data, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Parsed-section reports
// ─────────────────────────────────────────────────────────────────────────────

// ParsedSectionsReport lists what one host's raw data resolves to.
type ParsedSectionsReport struct {
	Host     string                   `json:"host"`
	Source   models.SourceType        `json:"source"`
	Sections map[string]ParsedSection `json:"sections"`

	// Kwargs holds the check arguments for the requested parsed sections,
	// when any were requested.
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// ParsedSection is one resolved parsed section.
type ParsedSection struct {
	RawSection string `json:"raw_section"`
	Data       any    `json:"data"`
}

// NewParsedSectionsReport builds a report from the resolver output of hk.
func NewParsedSectionsReport(hk models.HostKey, results []*section.ParsingResult, kwargs map[string]any) ParsedSectionsReport {
	r := ParsedSectionsReport{
		Host:     hk.Hostname,
		Source:   hk.SourceType,
		Sections: make(map[string]ParsedSection, len(results)),
		Kwargs:   kwargs,
	}
	for _, res := range results {
		r.Sections[string(res.ParsedSection)] = ParsedSection{
			RawSection: string(res.Section),
			Data:       res.Data,
		}
	}
	return r
}

// FormatReport serialises a parsed-section report.
func (f *JSONFormatter) FormatReport(report *ParsedSectionsReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("format/json: report must not be nil")
	}
	data, err := f.marshal(report)
	if err != nil {
		return nil, fmt.Errorf("format/json: marshal report %s: %w", report.Host, err)
	}
	return data, nil
}

func (f *JSONFormatter) marshal(v any) ([]byte, error) {
	if f.cfg.PrettyPrint {
		return json.MarshalIndent(v, "", f.cfg.Indent)
	}
	return json.Marshal(v)
}

// noopWriter discards all log output when no logger is provided.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
