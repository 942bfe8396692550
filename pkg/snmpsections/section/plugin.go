// Package section turns raw per-host section data into the parsed values
// check logic consumes.
//
// Several raw sections may parse into the same logical parsed section. For
// each host a ParsedSectionsResolver picks exactly one producer per parsed
// name, honouring supersession, and memoises the parsed value for the cycle.
// A ParsedSectionsBroker holds the resolvers of every host in a cycle and
// answers lookups, including aggregated lookups across cluster nodes.
package section

import (
	"fmt"
	"sync"

	"github.com/vpbank/snmp_sections/models"
)

// ParseFunction converts the raw rows of a section into its parsed value. A
// nil value, typed or not, means the rows carry nothing meaningful.
type ParseFunction func(table models.StringTable) (any, error)

// SectionPlugin describes how one raw section is parsed.
type SectionPlugin struct {
	Name              models.SectionName
	ParsedSectionName models.ParsedSectionName
	ParseFunction     ParseFunction

	// Supersedes lists raw sections suppressed whenever this one is available.
	Supersedes models.SectionSet
}

// TrivialPlugin returns a plugin that exposes the raw rows of name unchanged
// under the identically named parsed section.
func TrivialPlugin(name models.SectionName) SectionPlugin {
	return SectionPlugin{
		Name:              name,
		ParsedSectionName: models.ParsedSectionName(name),
		ParseFunction:     parseIdentity,
		Supersedes:        models.NewSectionSet(),
	}
}

func parseIdentity(table models.StringTable) (any, error) {
	return table, nil
}

func (p SectionPlugin) validate() error {
	if _, err := models.NewSectionName(string(p.Name)); err != nil {
		return err
	}
	if _, err := models.NewParsedSectionName(string(p.ParsedSectionName)); err != nil {
		return err
	}
	if p.ParseFunction == nil {
		return fmt.Errorf("section %s: parse function is nil", p.Name)
	}
	if p.Supersedes.Has(p.Name) {
		return fmt.Errorf("section %s: supersedes itself", p.Name)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

// Registry holds the declared section plugins in registration order. It is
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins []SectionPlugin
	byName  map[models.SectionName]int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[models.SectionName]int)}
}

// Register appends p. Names must be unique.
func (r *Registry) Register(p SectionPlugin) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("section: register: %w", err)
	}
	if p.Supersedes == nil {
		p.Supersedes = models.NewSectionSet()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[p.Name]; dup {
		return fmt.Errorf("section: register: duplicate section %s", p.Name)
	}
	r.byName[p.Name] = len(r.plugins)
	r.plugins = append(r.plugins, p)
	return nil
}

// MustRegister is Register for static plugin tables; it panics on error.
func (r *Registry) MustRegister(plugins ...SectionPlugin) {
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// Get returns the plugin registered for name.
func (r *Registry) Get(name models.SectionName) (SectionPlugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return SectionPlugin{}, false
	}
	return r.plugins[i], true
}

// PluginsFor returns the plugin list for a host: every registered plugin in
// registration order, followed by trivial plugins for raw sections of hs that
// have no declared plugin, sorted by name.
func (r *Registry) PluginsFor(hs models.HostSections) []SectionPlugin {
	r.mu.RLock()
	out := make([]SectionPlugin, len(r.plugins), len(r.plugins)+len(hs.Sections))
	copy(out, r.plugins)
	missing := models.NewSectionSet()
	for name := range hs.Sections {
		if _, ok := r.byName[name]; !ok {
			missing.Add(name)
		}
	}
	r.mu.RUnlock()

	for _, name := range missing.Sorted() {
		out = append(out, TrivialPlugin(name))
	}
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}
