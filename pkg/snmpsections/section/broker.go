package section

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vpbank/snmp_sections/models"
)

// HostParser is a Parser that also knows which sections came from a cache.
type HostParser interface {
	Parser
	CacheInfo(name models.SectionName) (models.CacheInfo, bool)
}

// HostEntry pairs the resolver and raw data of one host.
type HostEntry struct {
	Resolver *ParsedSectionsResolver
	Parser   HostParser
}

// ParsedSectionsBroker answers parsed section lookups for every host of one
// monitoring cycle.
type ParsedSectionsBroker struct {
	hosts map[models.HostKey]HostEntry
}

// NewParsedSectionsBroker returns a broker over hosts.
func NewParsedSectionsBroker(hosts map[models.HostKey]HostEntry) *ParsedSectionsBroker {
	if hosts == nil {
		hosts = make(map[models.HostKey]HostEntry)
	}
	return &ParsedSectionsBroker{hosts: hosts}
}

// BuildBroker creates one resolver and parser per host, taking each host's
// plugin list from reg.
func BuildBroker(reg *Registry, data map[models.HostKey]models.HostSections, logger *slog.Logger) *ParsedSectionsBroker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	hosts := make(map[models.HostKey]HostEntry, len(data))
	for hk, hs := range data {
		hosts[hk] = HostEntry{
			Resolver: NewParsedSectionsResolver(reg.PluginsFor(hs)),
			Parser:   NewSectionsParser(hs, logger.With("host", hk.Hostname)),
		}
	}
	return NewParsedSectionsBroker(hosts)
}

// Has reports whether hk is part of this cycle.
func (b *ParsedSectionsBroker) Has(hk models.HostKey) bool {
	_, ok := b.hosts[hk]
	return ok
}

// HostKeys returns the known hosts ordered by their string form.
func (b *ParsedSectionsBroker) HostKeys() []models.HostKey {
	out := make([]models.HostKey, 0, len(b.hosts))
	for hk := range b.hosts {
		out = append(out, hk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// GetParsedSection returns the parsed value of name for hk. It is nil when
// the host is unknown or nothing supplies the section.
func (b *ParsedSectionsBroker) GetParsedSection(hk models.HostKey, name models.ParsedSectionName) (any, error) {
	entry, ok := b.hosts[hk]
	if !ok {
		return nil, nil
	}
	res, err := entry.Resolver.Resolve(entry.Parser, name)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", hk.Hostname, err)
	}
	if res == nil {
		return nil, nil
	}
	return res.Data, nil
}

// GetCacheInfo aggregates the cache metadata of the sections supplying names
// on every host: the oldest timestamp and the longest interval. ok is false
// when none of them came from a cache.
func (b *ParsedSectionsBroker) GetCacheInfo(names []models.ParsedSectionName) (info models.CacheInfo, ok bool, err error) {
	for _, hk := range b.HostKeys() {
		entry := b.hosts[hk]
		for _, name := range names {
			res, err := entry.Resolver.Resolve(entry.Parser, name)
			if err != nil {
				return models.CacheInfo{}, false, fmt.Errorf("host %s: %w", hk.Hostname, err)
			}
			if res == nil {
				continue
			}
			ci, cached := entry.Parser.CacheInfo(res.Section)
			if !cached {
				continue
			}
			if !ok || ci.CachedAt.Before(info.CachedAt) {
				info.CachedAt = ci.CachedAt
			}
			if ci.Interval > info.Interval {
				info.Interval = ci.Interval
			}
			ok = true
		}
	}
	return info, ok, nil
}

// AllParsingResults returns every parsed section hk can supply, ordered by
// parsed section name. An unknown host yields nil.
func (b *ParsedSectionsBroker) AllParsingResults(hk models.HostKey) ([]*ParsingResult, error) {
	entry, ok := b.hosts[hk]
	if !ok {
		return nil, nil
	}
	res, err := entry.Resolver.ResolveAll(entry.Parser)
	if err != nil {
		return nil, fmt.Errorf("host %s: %w", hk.Hostname, err)
	}
	return res, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Check function arguments
// ─────────────────────────────────────────────────────────────────────────────

// KwargKeys returns the argument names a check function receives for names:
// "section" for a single name, "section_<name>" for each of several.
func KwargKeys(names []models.ParsedSectionName) []string {
	if len(names) == 1 {
		return []string{"section"}
	}
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = "section_" + string(n)
	}
	return keys
}

// GetSectionKwargs returns the section arguments for a check on one host.
// Missing sections map to nil, but when none of names is available the
// mapping is empty, as it is for a host unknown to the broker.
func GetSectionKwargs(b *ParsedSectionsBroker, hk models.HostKey, names []models.ParsedSectionName) (map[string]any, error) {
	kwargs := make(map[string]any, len(names))
	if !b.Has(hk) {
		return kwargs, nil
	}

	anyFound := false
	for i, key := range KwargKeys(names) {
		v, err := b.GetParsedSection(hk, names[i])
		if err != nil {
			return nil, err
		}
		if v != nil {
			anyFound = true
		}
		kwargs[key] = v
	}
	if !anyFound {
		return map[string]any{}, nil
	}
	return kwargs, nil
}

// GetSectionClusterKwargs returns the section arguments for a check on a
// cluster: for each argument a mapping from node hostname to that node's
// value. Nodes for which GetSectionKwargs is empty are left out, and when
// every value is nil the whole mapping is empty.
func GetSectionClusterKwargs(b *ParsedSectionsBroker, nodes []models.HostKey, names []models.ParsedSectionName) (map[string]map[string]any, error) {
	kwargs := make(map[string]map[string]any)
	for _, node := range nodes {
		nodeKwargs, err := GetSectionKwargs(b, node, names)
		if err != nil {
			return nil, err
		}
		for key, v := range nodeKwargs {
			if kwargs[key] == nil {
				kwargs[key] = make(map[string]any)
			}
			kwargs[key][node.Hostname] = v
		}
	}

	for _, perNode := range kwargs {
		for _, v := range perNode {
			if v != nil {
				return kwargs, nil
			}
		}
	}
	return map[string]map[string]any{}, nil
}
