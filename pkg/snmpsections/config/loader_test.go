package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
)

func tmpDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func emptyPaths(t *testing.T) config.Paths {
	return config.Paths{
		Devices:       t.TempDir(),
		Defaults:      t.TempDir(),
		SectionGroups: t.TempDir(),
		Sections:      t.TempDir(),
	}
}

// ── PathsFromEnv ─────────────────────────────────────────────────────────────

func TestPathsFromEnv_Defaults(t *testing.T) {
	for _, v := range []string{
		"INPUT_SNMP_DEVICE_DEFINITIONS_DIRECTORY_PATH",
		"INPUT_SNMP_DEFAULTS_DIRECTORY_PATH",
		"INPUT_SNMP_SECTION_GROUP_DEFINITIONS_DIRECTORY_PATH",
		"INPUT_SNMP_SECTION_DEFINITIONS_DIRECTORY_PATH",
	} {
		t.Setenv(v, "")
	}
	p := config.PathsFromEnv()
	assert.Equal(t, "/etc/snmp_sections/snmp/devices", p.Devices)
	assert.Equal(t, "/etc/snmp_sections/snmp/section_groups", p.SectionGroups)
	assert.Equal(t, "/etc/snmp_sections/snmp/sections", p.Sections)
}

func TestPathsFromEnv_Override(t *testing.T) {
	t.Setenv("INPUT_SNMP_SECTION_DEFINITIONS_DIRECTORY_PATH", "/custom/sections")
	assert.Equal(t, "/custom/sections", config.PathsFromEnv().Sections)
}

// ── Device loading ────────────────────────────────────────────────────────────

var deviceYAML = `
router01.example.com:
  ip: 192.0.2.1
  port: 1161
  timeout: 3000
  retries: 2
  version: 2c
  communities:
    - public
  section_groups:
    - cisco
  on_error: warn
  contexts:
    cisco_vlan:
      - ""
      - vlan-10
  max_requests_per_second: 25
  use_oid_cache: true

switch01.example.com:
  ip: 192.0.2.2
  version: 3
  v3_credentials:
    - username: scanner
      authentication_protocol: sha
      authentication_passphrase: efauthpassword
      privacy_protocol: des
      privacy_passphrase: efprivpassword
`

func TestLoad_Devices(t *testing.T) {
	paths := emptyPaths(t)
	paths.Devices = tmpDir(t, map[string]string{"devices.yml": deviceYAML})
	cfg, err := config.Load(paths, nil, nil)
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 2)

	r := cfg.Devices["router01.example.com"]
	assert.Equal(t, "router01.example.com", r.Hostname)
	assert.Equal(t, 1161, r.Port)
	assert.Equal(t, "warn", r.OnError)
	assert.True(t, r.UseOIDCache)
	assert.Equal(t, 25.0, r.MaxRequestsPerSecond)
	assert.Equal(t, []string{"", "vlan-10"}, r.SectionContexts("cisco_vlan"))
	assert.Equal(t, []string{""}, r.SectionContexts("other"))

	sw := cfg.Devices["switch01.example.com"]
	assert.Equal(t, "3", sw.Version)
	require.Len(t, sw.V3Credentials, 1)
	assert.Equal(t, "scanner", sw.V3Credentials[0].Username)
	assert.Equal(t, "raise", sw.OnError, "on_error default")
	assert.Equal(t, 3600, sw.ScanInterval, "scan_interval default")
	assert.False(t, sw.UseOIDCache, "stored OID values are opt-in")
}

// ── Device defaults ───────────────────────────────────────────────────────────

var defaultsYAML = `
default:
  timeout: 5000
  retries: 3
  version: 2c
  communities:
    - public
  section_groups:
    - generic
  scan_interval: 600
  on_error: ignore
  use_oid_cache: true
`

var minimalDeviceYAML = `
router02.example.com:
  ip: 10.0.0.1
  communities:
    - private
`

func TestLoad_DefaultsApplied(t *testing.T) {
	paths := emptyPaths(t)
	paths.Devices = tmpDir(t, map[string]string{"devices.yml": minimalDeviceYAML})
	paths.Defaults = tmpDir(t, map[string]string{"default.yml": defaultsYAML})

	cfg, err := config.Load(paths, nil, nil)
	require.NoError(t, err)

	d := cfg.Devices["router02.example.com"]
	assert.Equal(t, 161, d.Port, "hard-coded port")
	assert.Equal(t, 5000, d.Timeout)
	assert.Equal(t, 3, d.Retries)
	assert.Equal(t, 600, d.ScanInterval)
	assert.Equal(t, "ignore", d.OnError)
	assert.True(t, d.UseOIDCache, "use_oid_cache should come from defaults")
	assert.Equal(t, []string{"private"}, d.Communities, "device value must win")
	assert.Equal(t, []string{"generic"}, d.SectionGroups)
}

func TestLoad_InvalidDevice(t *testing.T) {
	paths := emptyPaths(t)
	paths.Devices = tmpDir(t, map[string]string{"devices.yml": `
bad.example.com:
  ip: 10.0.0.9
  version: 4
  communities: [public]
  on_error: explode
`})
	_, err := config.Load(paths, nil, nil)
	require.Error(t, err)
	for _, want := range []string{"bad.example.com", "Version", "OnError"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_BinaryHostNeedsNoIP(t *testing.T) {
	paths := emptyPaths(t)
	paths.Devices = tmpDir(t, map[string]string{"devices.yml": `
legacy:
  binary_host: true
  communities: [public]
`})
	cfg, err := config.Load(paths, nil, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Devices["legacy"].BinaryHost)
}

func TestLoad_MalformedFileSkipped(t *testing.T) {
	paths := emptyPaths(t)
	paths.Devices = tmpDir(t, map[string]string{
		"bad.yml":  "router: [unclosed",
		"good.yml": minimalDeviceYAML,
	})
	cfg, err := config.Load(paths, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, cfg.Devices, "router02.example.com")
}

func TestLoad_MissingDirs(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	cfg, err := config.Load(config.Paths{
		Devices: missing, Defaults: missing, SectionGroups: missing, Sections: missing,
	}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Devices)
	assert.Empty(t, cfg.Sections)
}

// ── Sections ──────────────────────────────────────────────────────────────────

var sectionsYAML = `
hr_mem:
  detect:
    - - oid: .1.3.6.1.2.1.1.1.0
        match: contains
        value: linux
      - oid: 1.3.6.1.2.1.25.1.1.0
        match: exists
cisco_cpu:
  detect:
    - - oid: .1.3.6.1.2.1.1.1.0
        match: startswith
        value: Cisco
    - - oid: SNMPv2-MIB::sysObjectID.0
        match: regex
        value: '\.1\.3\.6\.1\.4\.1\.9\..*'
        negate: true
`

var groupsYAML = `
linux:
  sections: [hr_mem, missing_section]
cisco:
  sections: [cisco_cpu]
`

type fakeResolver map[string]string

func (f fakeResolver) Resolve(name string) (string, error) {
	if oid, ok := f[name]; ok {
		return oid, nil
	}
	return "", errors.New("unknown object")
}

func TestLoad_Sections(t *testing.T) {
	paths := emptyPaths(t)
	paths.Sections = tmpDir(t, map[string]string{"sections.yml": sectionsYAML})
	paths.SectionGroups = tmpDir(t, map[string]string{"groups.yml": groupsYAML})

	cfg, err := config.Load(paths, fakeResolver{"SNMPv2-MIB::sysObjectID.0": "1.3.6.1.2.1.1.2.0"}, nil)
	require.NoError(t, err)
	require.Len(t, cfg.Sections, 2)

	hr := cfg.Sections["hr_mem"]
	require.Len(t, hr, 1)
	require.Len(t, hr[0], 2)
	assert.Equal(t, ".1.3.6.1.2.1.25.1.1.0", hr[0][1].OID, "OID normalised")
	assert.Equal(t, ".*linux.*", hr[0][0].Pattern)

	cisco := cfg.Sections["cisco_cpu"]
	require.Len(t, cisco, 2)
	assert.Equal(t, ".1.3.6.1.2.1.1.2.0", cisco[1][0].OID)
	assert.True(t, cisco[1][0].Negate)

	catalog := cfg.Catalog()
	require.Len(t, catalog, 2)
	assert.Equal(t, models.SectionName("cisco_cpu"), catalog[0].Name)

	dev := config.DeviceConfig{Hostname: "h", SectionGroups: []string{"linux", "nope"}}
	got := cfg.SectionsFor(dev, nil)
	require.Len(t, got, 1)
	assert.Equal(t, models.SectionName("hr_mem"), got[0].Name)

	assert.Len(t, cfg.SectionsFor(config.DeviceConfig{Hostname: "h"}, nil), 2,
		"no groups should scan the whole catalog")
}

func TestLoad_SectionErrors(t *testing.T) {
	cases := map[string]string{
		"bad name": `
"bad-name":
  detect:
    - - oid: .1.2
        match: exists
`,
		"bad kind": `
s1:
  detect:
    - - oid: .1.2
        match: fuzzy
`,
		"bad regex": `
s1:
  detect:
    - - oid: .1.2
        match: regex
        value: "(["
`,
		"unresolved symbol": `
s1:
  detect:
    - - oid: IF-MIB::ifDescr
        match: exists
`,
		"empty group": `
s1:
  detect:
    - []
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			paths := emptyPaths(t)
			paths.Sections = tmpDir(t, map[string]string{"s.yml": doc})
			_, err := config.Load(paths, nil, nil)
			assert.Error(t, err)
		})
	}
}
