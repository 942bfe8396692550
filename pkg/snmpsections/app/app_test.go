package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/backend"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
	filetransport "github.com/vpbank/snmp_sections/transport/file"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helper: minimal YAML config tree with one reachable and one silent device
// ─────────────────────────────────────────────────────────────────────────────

func writeTestConfig(t *testing.T) config.Paths {
	t.Helper()
	base := t.TempDir()

	for _, d := range []string{"devices", "defaults", "section_groups", "sections"} {
		require.NoError(t, os.MkdirAll(filepath.Join(base, d), 0o755))
	}

	writeYAML(t, filepath.Join(base, "defaults", "default.yml"), `
default:
  version: "2c"
  communities: ["public"]
  scan_interval: 1
  on_error: warn
`)

	writeYAML(t, filepath.Join(base, "devices", "devices.yml"), `
gw01:
  ip: 10.0.0.1
dead01:
  ip: 10.0.0.2
`)

	writeYAML(t, filepath.Join(base, "sections", "catalog.yml"), `
hr_mem:
  detect:
    - - {oid: .1.3.6.1.2.1.1.1.0, match: contains, value: linux}
snmp_info:
  detect:
    - - {oid: .1.3.6.1.2.1.1.2.0, match: exists}
cisco_cpu:
  detect:
    - - {oid: .1.3.6.1.2.1.1.1.0, match: contains, value: cisco}
`)

	return config.Paths{
		Devices:       filepath.Join(base, "devices"),
		Defaults:      filepath.Join(base, "defaults"),
		SectionGroups: filepath.Join(base, "section_groups"),
		Sections:      filepath.Join(base, "sections"),
	}
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// storedBackends answers for gw01 only; every other device has no data.
func storedBackends(cfg config.DeviceConfig) (backend.Backend, error) {
	values := map[string]string{}
	if cfg.Hostname == "gw01" {
		values = map[string]string{
			".1.3.6.1.2.1.1.1.0": "Linux gw01 5.10.0-21-amd64",
			".1.3.6.1.2.1.1.2.0": ".1.3.6.1.4.1.8072.3.2.10",
		}
	}
	return backend.NewStoredBackend(cfg, values), nil
}

func newTestApp(t *testing.T, out *safeBuffer) *App {
	t.Helper()
	tr, err := filetransport.New(filetransport.Config{Writer: out}, nil)
	require.NoError(t, err)
	a, err := New(Config{
		ConfigPaths: writeTestConfig(t),
		CollectorID: "test-scanner",
		ScanWorkers: 2,
		BufferSize:  10,
		NewBackend:  storedBackends,
		Transport:   tr,
	}, nil)
	require.NoError(t, err)
	return a
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_defaults(t *testing.T) {
	a, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, a.cfg.ScanWorkers)
	assert.Equal(t, 1000, a.cfg.BufferSize)
	assert.NotEmpty(t, a.cfg.CollectorID, "CollectorID should default to hostname")
	assert.NotNil(t, a.transport, "transport should default to stdout")
}

func TestRunOnce(t *testing.T) {
	var out safeBuffer
	a := newTestApp(t, &out)

	results, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	dead, gw := results[0], results[1]
	require.Equal(t, "dead01", dead.Host.Hostname, "results sorted by hostname")
	require.Equal(t, "gw01", gw.Host.Hostname, "results sorted by hostname")

	assert.Equal(t, models.ScanStatusSuccess, gw.Status, gw.Error)
	assert.Equal(t, []string{"hr_mem", "snmp_info"}, gw.Sections)
	assert.Equal(t, models.ScanStatusError, dead.Status, "dead01 has no system description")
	assert.NotEmpty(t, dead.Error)
	assert.NotEmpty(t, gw.RunID)
	assert.Equal(t, gw.RunID, dead.RunID, "results of one run share a run id")
	assert.Equal(t, "test-scanner", gw.CollectorID)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2, out.String())
	var first models.ScanResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first), "raw: %s", lines[0])
	assert.Equal(t, "dead01", first.Host.Hostname)
}

func TestRunOnce_BadConfig(t *testing.T) {
	var out safeBuffer
	a := newTestApp(t, &out)
	writeYAML(t, filepath.Join(a.cfg.ConfigPaths.Devices, "bad.yml"), `
broken:
  ip: 10.0.0.3
  version: "4"
`)
	_, err := a.RunOnce(context.Background())
	assert.Error(t, err, "invalid SNMP version")
}

func TestStartStop_emptyConfig(t *testing.T) {
	a, err := New(Config{ScanWorkers: 1, BufferSize: 10, Transport: nopTransport{}}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	cancel()
	a.Stop()
}

func TestStartStop_resultsFlowToTransport(t *testing.T) {
	var out safeBuffer
	a := newTestApp(t, &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))

	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") >= 2
	}, 2*time.Second, 20*time.Millisecond)
	cancel()
	a.Stop()

	output := out.String()
	assert.Contains(t, output, `"hostname":"gw01"`)
	assert.Contains(t, output, `"hostname":"dead01"`)
}

func TestReload(t *testing.T) {
	var out safeBuffer
	a := newTestApp(t, &out)

	assert.Error(t, a.Reload(), "Reload before Start should fail")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer a.Stop()

	assert.NoError(t, a.Reload())
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

// safeBuffer is a concurrency-safe bytes.Buffer for use as a transport writer.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type nopTransport struct{}

func (nopTransport) Send([]byte) error { return nil }
func (nopTransport) Close() error      { return nil }
