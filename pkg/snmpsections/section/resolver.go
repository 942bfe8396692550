package section

import (
	"sort"

	"github.com/vpbank/snmp_sections/models"
)

// ParsedSectionsResolver decides, for one host, which raw section supplies
// each parsed section. Results are memoised for the lifetime of the
// resolver, which is one monitoring cycle. It is not safe for concurrent use.
type ParsedSectionsResolver struct {
	producers   map[models.ParsedSectionName][]SectionPlugin
	superseders map[models.SectionName][]SectionPlugin
	names       []models.ParsedSectionName

	resolved map[models.ParsedSectionName]*ParsingResult
}

// NewParsedSectionsResolver indexes plugins, the host's ordered plugin list.
// The order decides between producers that are equally eligible.
func NewParsedSectionsResolver(plugins []SectionPlugin) *ParsedSectionsResolver {
	r := &ParsedSectionsResolver{
		producers:   make(map[models.ParsedSectionName][]SectionPlugin),
		superseders: make(map[models.SectionName][]SectionPlugin),
		resolved:    make(map[models.ParsedSectionName]*ParsingResult),
	}
	for _, p := range plugins {
		if _, seen := r.producers[p.ParsedSectionName]; !seen {
			r.names = append(r.names, p.ParsedSectionName)
		}
		r.producers[p.ParsedSectionName] = append(r.producers[p.ParsedSectionName], p)
		for superseded := range p.Supersedes {
			r.superseders[superseded] = append(r.superseders[superseded], p)
		}
	}
	sort.Slice(r.names, func(i, j int) bool { return r.names[i] < r.names[j] })
	return r
}

// Resolve returns the parsing result for name, or nil when no available,
// non-superseded producer yields a value.
//
// A producer is skipped when its raw section has no rows or when any plugin
// superseding it has rows. The remaining producers are parsed in plugin
// order until one yields a non-nil value. The outcome, nil included, is
// memoised; a parse error is returned and nothing is memoised.
func (r *ParsedSectionsResolver) Resolve(parser Parser, name models.ParsedSectionName) (*ParsingResult, error) {
	if res, done := r.resolved[name]; done {
		return res, nil
	}

	var result *ParsingResult
	for _, producer := range r.producers[name] {
		if !parser.Available(producer.Name) || r.superseded(parser, producer) {
			continue
		}
		res, err := parser.Parse(producer)
		if err != nil {
			return nil, err
		}
		if res != nil {
			result = res
			break
		}
	}

	r.resolved[name] = result
	return result, nil
}

func (r *ParsedSectionsResolver) superseded(parser Parser, producer SectionPlugin) bool {
	for _, s := range r.superseders[producer.Name] {
		if parser.Available(s.Name) {
			return true
		}
	}
	return false
}

// ResolveAll resolves every parsed section the plugin list can produce and
// returns the non-nil results ordered by parsed section name.
func (r *ParsedSectionsResolver) ResolveAll(parser Parser) ([]*ParsingResult, error) {
	var out []*ParsingResult
	for _, name := range r.names {
		res, err := r.Resolve(parser, name)
		if err != nil {
			return nil, err
		}
		if res != nil {
			out = append(out, res)
		}
	}
	return out, nil
}

// ParsedSectionNames returns every parsed section name some plugin produces,
// sorted.
func (r *ParsedSectionsResolver) ParsedSectionNames() []models.ParsedSectionName {
	out := make([]models.ParsedSectionName, len(r.names))
	copy(out, r.names)
	return out
}
