package section

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/vpbank/snmp_sections/models"
)

// ParsingResult is the parsed value of one raw section.
type ParsingResult struct {
	Section       models.SectionName
	ParsedSection models.ParsedSectionName
	Data          any
}

// Parser gives a resolver access to one host's raw sections.
type Parser interface {
	// Available reports whether the host has non-empty rows for name.
	Available(name models.SectionName) bool

	// Parse runs p over the rows of p.Name. It returns nil when the section
	// is unavailable or parses to nothing.
	Parse(p SectionPlugin) (*ParsingResult, error)
}

// SectionsParser parses the raw sections of one host, at most once each.
// It is not safe for concurrent use.
type SectionsParser struct {
	sections models.HostSections
	logger   *slog.Logger

	results map[models.SectionName]*ParsingResult
}

// NewSectionsParser wraps the raw data of one host.
func NewSectionsParser(hs models.HostSections, logger *slog.Logger) *SectionsParser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &SectionsParser{
		sections: hs,
		logger:   logger,
		results:  make(map[models.SectionName]*ParsingResult),
	}
}

// Available implements Parser.
func (p *SectionsParser) Available(name models.SectionName) bool {
	return len(p.sections.Sections[name]) > 0
}

// Parse implements Parser. A parse error is returned and not memoised.
func (p *SectionsParser) Parse(plugin SectionPlugin) (*ParsingResult, error) {
	if res, done := p.results[plugin.Name]; done {
		return res, nil
	}
	if !p.Available(plugin.Name) {
		return nil, nil
	}

	data, err := plugin.ParseFunction(p.sections.Sections[plugin.Name])
	if err != nil {
		return nil, fmt.Errorf("section: parse %s: %w", plugin.Name, err)
	}

	var res *ParsingResult
	if !isNil(data) {
		res = &ParsingResult{Section: plugin.Name, ParsedSection: plugin.ParsedSectionName, Data: data}
	}
	p.results[plugin.Name] = res
	p.logger.Debug("section: parsed", "section", plugin.Name, "empty", res == nil)
	return res, nil
}

// CacheInfo returns the cache metadata of name if it was served from a
// persisted cache.
func (p *SectionsParser) CacheInfo(name models.SectionName) (models.CacheInfo, bool) {
	ci, ok := p.sections.CacheInfo[name]
	return ci, ok
}

// isNil reports whether v is nil or a nil value of a nillable kind, so that a
// parse function returning e.g. map[string]any(nil) counts as empty.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
