// Package config provides YAML configuration loading for the section scanner.
//
// It reads four directory trees (driven by environment variables) and produces
// a LoadedConfig value that is used by the rest of the application.
//
//	INPUT_SNMP_DEVICE_DEFINITIONS_DIRECTORY_PATH        → Devices map
//	INPUT_SNMP_DEFAULTS_DIRECTORY_PATH                  → DeviceDefaults
//	INPUT_SNMP_SECTION_GROUP_DEFINITIONS_DIRECTORY_PATH → SectionGroups map
//	INPUT_SNMP_SECTION_DEFINITIONS_DIRECTORY_PATH       → Sections catalog
package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/snmp/detect"
)

// ─────────────────────────────────────────────────────────────────────────────
// Paths
// ─────────────────────────────────────────────────────────────────────────────

// Paths holds the directory locations for every configuration tree.
type Paths struct {
	Devices       string // INPUT_SNMP_DEVICE_DEFINITIONS_DIRECTORY_PATH
	Defaults      string // INPUT_SNMP_DEFAULTS_DIRECTORY_PATH
	SectionGroups string // INPUT_SNMP_SECTION_GROUP_DEFINITIONS_DIRECTORY_PATH
	Sections      string // INPUT_SNMP_SECTION_DEFINITIONS_DIRECTORY_PATH
}

// PathsFromEnv reads each path from its environment variable, falling back to
// the documented default when the variable is unset or empty.
func PathsFromEnv() Paths {
	return Paths{
		Devices:       envOr("INPUT_SNMP_DEVICE_DEFINITIONS_DIRECTORY_PATH", "/etc/snmp_sections/snmp/devices"),
		Defaults:      envOr("INPUT_SNMP_DEFAULTS_DIRECTORY_PATH", "/etc/snmp_sections/snmp/defaults"),
		SectionGroups: envOr("INPUT_SNMP_SECTION_GROUP_DEFINITIONS_DIRECTORY_PATH", "/etc/snmp_sections/snmp/section_groups"),
		Sections:      envOr("INPUT_SNMP_SECTION_DEFINITIONS_DIRECTORY_PATH", "/etc/snmp_sections/snmp/sections"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// OIDResolver translates a symbolic OID such as "SNMPv2-MIB::sysDescr.0"
// into dotted numeric form.
type OIDResolver interface {
	Resolve(name string) (string, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// LoadedConfig
// ─────────────────────────────────────────────────────────────────────────────

// LoadedConfig is the fully parsed representation of all configuration trees.
type LoadedConfig struct {
	// Devices maps hostname → resolved DeviceConfig (defaults merged in).
	Devices map[string]DeviceConfig

	// DeviceDefault is the merged global device default.
	DeviceDefault DeviceDefaults

	// SectionGroups maps group name → SectionGroup.
	SectionGroups map[string]SectionGroup

	// Sections maps section name → detection specification.
	Sections map[models.SectionName]models.DetectSpec
}

// Catalog returns every configured section sorted by name.
func (c *LoadedConfig) Catalog() []models.ScanSection {
	out := make([]models.ScanSection, 0, len(c.Sections))
	for name, spec := range c.Sections {
		out = append(out, models.ScanSection{Name: name, Detect: spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SectionsFor returns the catalog sections scanned on dev, sorted by name.
// A device without section groups scans the whole catalog. Unknown group or
// section names are logged and skipped.
func (c *LoadedConfig) SectionsFor(dev DeviceConfig, logger *slog.Logger) []models.ScanSection {
	if len(dev.SectionGroups) == 0 {
		return c.Catalog()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	wanted := models.NewSectionSet()
	for _, g := range dev.SectionGroups {
		group, ok := c.SectionGroups[g]
		if !ok {
			logger.Warn("config: unknown section group", "device", dev.Hostname, "group", g)
			continue
		}
		for _, s := range group.Sections {
			name := models.SectionName(s)
			if _, ok := c.Sections[name]; !ok {
				logger.Warn("config: unknown section", "device", dev.Hostname, "group", g, "section", s)
				continue
			}
			wanted.Add(name)
		}
	}

	out := make([]models.ScanSection, 0, len(wanted))
	for _, name := range wanted.Sorted() {
		out = append(out, models.ScanSection{Name: name, Detect: c.Sections[name]})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads all configuration directories specified by paths and returns a
// fully resolved LoadedConfig. Errors from individual files are accumulated and
// returned together so that operators see all problems at once.
//
// resolver translates symbolic OIDs in section definitions; when nil every
// OID must already be numeric.
//
// If a directory does not exist, that section is skipped silently (the
// corresponding map will be empty). This allows partial deployments.
func Load(paths Paths, resolver OIDResolver, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	var errs []string

	// 1. Device defaults
	defaults, err := loadDeviceDefaults(paths.Defaults, logger)
	if err != nil {
		errs = append(errs, err.Error())
	}

	// 2. Devices
	devices, devErrs := loadDevices(paths.Devices, defaults, logger)
	errs = append(errs, devErrs...)

	// 3. Section groups
	groups, err := loadSectionGroups(paths.SectionGroups, logger)
	if err != nil {
		errs = append(errs, err.Error())
	}

	// 4. Section catalog
	sections, secErrs := loadSections(paths.Sections, resolver, logger)
	errs = append(errs, secErrs...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %d error(s):\n  %s", len(errs), strings.Join(errs, "\n  "))
	}

	return &LoadedConfig{
		Devices:       devices,
		DeviceDefault: defaults,
		SectionGroups: groups,
		Sections:      sections,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Device defaults
// ─────────────────────────────────────────────────────────────────────────────

type rawDefaults struct {
	Default rawDeviceEntry `yaml:"default"`
}

func loadDeviceDefaults(dir string, logger *slog.Logger) (DeviceDefaults, error) {
	var zero DeviceDefaults
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, nil
		}
		return zero, fmt.Errorf("list defaults dir %q: %w", dir, err)
	}

	var merged DeviceDefaults
	for _, path := range files {
		var raw rawDefaults
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed defaults file", "file", path, "error", err.Error())
			continue
		}
		merged = mergeDefaults(merged, raw.Default)
		logger.Debug("config: loaded device defaults", "file", path)
	}
	return merged, nil
}

// mergeDefaults fills zero fields in dst with values from src.
func mergeDefaults(dst DeviceDefaults, src rawDeviceEntry) DeviceDefaults {
	if dst.Port == 0 && src.Port != 0 {
		dst.Port = src.Port
	}
	if dst.Timeout == 0 && src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if dst.Retries == 0 && src.Retries != 0 {
		dst.Retries = src.Retries
	}
	if dst.Version == "" && src.Version != "" {
		dst.Version = src.Version
	}
	if len(dst.Communities) == 0 && len(src.Communities) > 0 {
		dst.Communities = src.Communities
	}
	if len(dst.SectionGroups) == 0 && len(src.SectionGroups) > 0 {
		dst.SectionGroups = src.SectionGroups
	}
	if dst.ScanInterval == 0 && src.ScanInterval != 0 {
		dst.ScanInterval = src.ScanInterval
	}
	if dst.OnError == "" && src.OnError != "" {
		dst.OnError = src.OnError
	}
	if dst.MaxRequestsPerSecond == 0 && src.MaxRequestsPerSecond != 0 {
		dst.MaxRequestsPerSecond = src.MaxRequestsPerSecond
	}
	if dst.UseOIDCache == nil && src.UseOIDCache != nil {
		dst.UseOIDCache = src.UseOIDCache
	}
	return dst
}

// ─────────────────────────────────────────────────────────────────────────────
// Devices
// ─────────────────────────────────────────────────────────────────────────────

func loadDevices(dir string, defaults DeviceDefaults, logger *slog.Logger) (map[string]DeviceConfig, []string) {
	result := make(map[string]DeviceConfig)
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, []string{fmt.Sprintf("list devices dir %q: %v", dir, err)}
	}

	var errs []string
	for _, path := range files {
		var raw map[string]rawDeviceEntry
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed device file", "file", path, "error", err.Error())
			continue
		}
		for hostname, entry := range raw {
			dev := resolveDevice(hostname, entry, defaults)
			if err := dev.Validate(); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			result[hostname] = dev
		}
		logger.Debug("config: loaded device file", "file", path, "count", len(raw))
	}
	sort.Strings(errs)
	return result, errs
}

// resolveDevice merges a raw device entry with defaults, producing a
// fully-resolved DeviceConfig.
func resolveDevice(hostname string, e rawDeviceEntry, d DeviceDefaults) DeviceConfig {
	port := firstNonZero(e.Port, d.Port, 161)
	timeout := firstNonZero(e.Timeout, d.Timeout, 3000)
	retries := firstNonZero(e.Retries, d.Retries, 2)
	interval := firstNonZero(e.ScanInterval, d.ScanInterval, 3600)

	version := firstNonEmpty(e.Version, d.Version, "2c")
	onError := firstNonEmpty(e.OnError, d.OnError, "raise")

	communities := e.Communities
	if len(communities) == 0 {
		communities = d.Communities
	}

	groups := e.SectionGroups
	if len(groups) == 0 {
		groups = d.SectionGroups
	}

	rps := e.MaxRequestsPerSecond
	if rps == 0 {
		rps = d.MaxRequestsPerSecond
	}

	useCache := false
	switch {
	case e.UseOIDCache != nil:
		useCache = *e.UseOIDCache
	case d.UseOIDCache != nil:
		useCache = *d.UseOIDCache
	}

	return DeviceConfig{
		Hostname:             hostname,
		IP:                   e.IP,
		Port:                 port,
		Timeout:              timeout,
		Retries:              retries,
		ExponentialTimeout:   e.ExponentialTimeout,
		Version:              version,
		Communities:          communities,
		V3Credentials:        e.V3Credentials,
		SectionGroups:        groups,
		ScanInterval:         interval,
		BinaryHost:           e.BinaryHost,
		OnError:              onError,
		Contexts:             e.Contexts,
		MaxRequestsPerSecond: rps,
		UseOIDCache:          useCache,
	}
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// Section groups
// ─────────────────────────────────────────────────────────────────────────────

type rawSectionGroupFile map[string]struct {
	Sections []string `yaml:"sections"`
}

func loadSectionGroups(dir string, logger *slog.Logger) (map[string]SectionGroup, error) {
	result := make(map[string]SectionGroup)
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("list section_groups dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw rawSectionGroupFile
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed section_group file", "file", path, "error", err.Error())
			continue
		}
		for name, g := range raw {
			result[name] = SectionGroup{Sections: g.Sections}
		}
		logger.Debug("config: loaded section_groups file", "file", path, "count", len(raw))
	}
	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Section catalog
// ─────────────────────────────────────────────────────────────────────────────

// rawSectionFile is the top-level map: section name → definition.
//
//	hr_mem:
//	  detect:
//	    - - oid: .1.3.6.1.2.1.1.1.0
//	        match: contains
//	        value: linux
//	      - oid: SNMPv2-MIB::sysObjectID.0
//	        match: exists
type rawSectionFile map[string]rawSectionBody

type rawSectionBody struct {
	Detect [][]rawPredicate `yaml:"detect"`
}

type rawPredicate struct {
	OID    string `yaml:"oid"`
	Match  string `yaml:"match"`
	Value  string `yaml:"value"`
	Negate bool   `yaml:"negate"`
}

func loadSections(dir string, resolver OIDResolver, logger *slog.Logger) (map[models.SectionName]models.DetectSpec, []string) {
	result := make(map[models.SectionName]models.DetectSpec)
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, []string{fmt.Sprintf("list sections dir %q: %v", dir, err)}
	}

	var errs []string
	for _, path := range files {
		var raw rawSectionFile
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed section file", "file", path, "error", err.Error())
			continue
		}
		for key, body := range raw {
			name, err := models.NewSectionName(key)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			spec, err := convertDetect(body.Detect, resolver)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: section %q: %v", path, key, err))
				continue
			}
			result[name] = spec
		}
		logger.Debug("config: loaded sections file", "file", path, "count", len(raw))
	}
	sort.Strings(errs)
	return result, errs
}

// convertDetect turns the YAML predicate groups into a DetectSpec. Every
// predicate of a group becomes one atom of the same conjunction.
func convertDetect(groups [][]rawPredicate, resolver OIDResolver) (models.DetectSpec, error) {
	spec := make(models.DetectSpec, 0, len(groups))
	for gi, group := range groups {
		if len(group) == 0 {
			return nil, fmt.Errorf("detect group %d is empty", gi)
		}
		atoms := make([]models.DetectAtom, 0, len(group))
		for _, p := range group {
			oid, err := resolveOID(p.OID, resolver)
			if err != nil {
				return nil, err
			}
			atom, err := predicateAtom(oid, p)
			if err != nil {
				return nil, err
			}
			atoms = append(atoms, atom)
		}
		spec = append(spec, atoms)
	}
	if err := detect.Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func predicateAtom(oid string, p rawPredicate) (models.DetectAtom, error) {
	var s models.DetectSpec
	switch strings.ToLower(p.Match) {
	case "regex", "":
		s = detect.Matches(oid, p.Value)
	case "equals":
		s = detect.Equals(oid, p.Value)
	case "startswith":
		s = detect.StartsWith(oid, p.Value)
	case "endswith":
		s = detect.EndsWith(oid, p.Value)
	case "contains":
		s = detect.Contains(oid, p.Value)
	case "exists":
		s = detect.Exists(oid)
	default:
		return models.DetectAtom{}, models.NewConfigError("unknown match kind %q for OID %s", p.Match, oid)
	}
	atom := s[0][0]
	atom.Negate = p.Negate
	return atom, nil
}

// resolveOID returns oid in dotted numeric form with a leading dot.
func resolveOID(oid string, resolver OIDResolver) (string, error) {
	if oid == "" {
		return "", models.NewConfigError("empty OID")
	}
	if strings.Contains(oid, "::") {
		if resolver == nil {
			return "", models.NewConfigError("symbolic OID %q needs a MIB resolver", oid)
		}
		numeric, err := resolver.Resolve(oid)
		if err != nil {
			return "", &models.ConfigError{Message: fmt.Sprintf("resolve %q", oid), Cause: err}
		}
		oid = numeric
	}
	if !strings.HasPrefix(oid, ".") {
		oid = "." + oid
	}
	return oid, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// yamlFiles returns all *.yml / *.yaml files under dir, sorted by path.
func yamlFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// decodeFile opens path and unmarshals the YAML content into out.
func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false) // extra keys are fine
	return dec.Decode(out)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
