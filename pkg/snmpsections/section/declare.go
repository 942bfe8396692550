package section

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vpbank/snmp_sections/models"
)

// declaredPlugin is the YAML form of a plugin whose parse is the identity:
//
//	df_v2:
//	  parsed_section_name: df
//	  supersedes: [df]
type declaredPlugin struct {
	ParsedSectionName string   `yaml:"parsed_section_name"`
	Supersedes        []string `yaml:"supersedes"`
}

// LoadDeclaredPlugins reads plugin declarations from path and registers them
// in name order. Each declared plugin exposes its raw rows under its parsed
// section name, so renaming and supersession can be configured without code.
func LoadDeclaredPlugins(reg *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("section: read plugins: %w", err)
	}
	var raw map[string]declaredPlugin
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("section: decode plugins %s: %w", path, err)
	}

	names := make([]string, 0, len(raw))
	for n := range raw {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		d := raw[n]
		p := TrivialPlugin(models.SectionName(n))
		if d.ParsedSectionName != "" {
			p.ParsedSectionName = models.ParsedSectionName(d.ParsedSectionName)
		}
		for _, s := range d.Supersedes {
			p.Supersedes.Add(models.SectionName(s))
		}
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}
