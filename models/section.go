// Package models defines the core data structures shared across all layers of
// the section scanner. Every other package depends on this package and nothing
// here depends on any other internal package.
package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Names
// ─────────────────────────────────────────────────────────────────────────────

var validName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validateName(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s must not be empty", kind)
	}
	if !validName.MatchString(s) {
		return fmt.Errorf("invalid %s %q: only letters, digits and underscores are allowed", kind, s)
	}
	return nil
}

// SectionName names a raw data section as produced by a source: an agent
// output block or an SNMP table group. Ordering is lexicographic.
type SectionName string

// NewSectionName validates s and returns it as a SectionName.
func NewSectionName(s string) (SectionName, error) {
	if err := validateName("section name", s); err != nil {
		return "", err
	}
	return SectionName(s), nil
}

// MustSectionName is NewSectionName for static names; it panics on invalid input.
func MustSectionName(s string) SectionName {
	n, err := NewSectionName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n SectionName) String() string { return string(n) }

// ParsedSectionName names the logical output of parsing. Several
// SectionNames may parse to the same ParsedSectionName.
type ParsedSectionName string

// NewParsedSectionName validates s and returns it as a ParsedSectionName.
func NewParsedSectionName(s string) (ParsedSectionName, error) {
	if err := validateName("parsed section name", s); err != nil {
		return "", err
	}
	return ParsedSectionName(s), nil
}

// MustParsedSectionName panics on invalid input.
func MustParsedSectionName(s string) ParsedSectionName {
	n, err := NewParsedSectionName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n ParsedSectionName) String() string { return string(n) }

// ─────────────────────────────────────────────────────────────────────────────
// SectionSet
// ─────────────────────────────────────────────────────────────────────────────

// SectionSet is an unordered set of section names.
type SectionSet map[SectionName]struct{}

// NewSectionSet builds a set from names.
func NewSectionSet(names ...SectionName) SectionSet {
	s := make(SectionSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts name into the set.
func (s SectionSet) Add(name SectionName) { s[name] = struct{}{} }

// Has reports whether name is in the set.
func (s SectionSet) Has(name SectionName) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexicographic order.
func (s SectionSet) Sorted() []SectionName {
	out := make([]SectionName, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the members sorted and space-joined, "-" when empty.
func (s SectionSet) String() string {
	if len(s) == 0 {
		return "-"
	}
	names := s.Sorted()
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, " ")
}

// ─────────────────────────────────────────────────────────────────────────────
// Host identity
// ─────────────────────────────────────────────────────────────────────────────

// SourceType distinguishes the host itself from its management board.
type SourceType string

const (
	SourceHost       SourceType = "HOST"
	SourceManagement SourceType = "MANAGEMENT"
)

// HostKey identifies one monitored target/source pair.
type HostKey struct {
	Hostname   string
	IPAddress  string
	SourceType SourceType
}

func (k HostKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Hostname, k.IPAddress, k.SourceType)
}

// ─────────────────────────────────────────────────────────────────────────────
// Raw section data
// ─────────────────────────────────────────────────────────────────────────────

// StringTable is the raw content of one section: rows of string fields.
type StringTable [][]string

// CacheInfo describes a section that was served from a persisted cache rather
// than freshly fetched.
type CacheInfo struct {
	CachedAt time.Time
	Interval time.Duration
}

// HostSections is the raw payload fetched for one host.
type HostSections struct {
	Sections map[SectionName]StringTable

	// CacheInfo is set only for sections that came from a cache.
	CacheInfo map[SectionName]CacheInfo
}

// NewHostSections returns an empty HostSections ready for use.
func NewHostSections() HostSections {
	return HostSections{
		Sections:  make(map[SectionName]StringTable),
		CacheInfo: make(map[SectionName]CacheInfo),
	}
}
