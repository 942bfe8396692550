package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/scan"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/scheduler"
	"github.com/vpbank/snmp_sections/snmp/detect"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mock JobSubmitter
// ─────────────────────────────────────────────────────────────────────────────

type mockSubmitter struct {
	mu       sync.Mutex
	jobs     []scan.Job
	capacity int // 0 = unlimited
}

func newMockSubmitter(capacity int) *mockSubmitter {
	return &mockSubmitter{capacity: capacity}
}

func (m *mockSubmitter) Submit(job scan.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

func (m *mockSubmitter) TrySubmit(job scan.Job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity > 0 && len(m.jobs) >= m.capacity {
		return false
	}
	m.jobs = append(m.jobs, job)
	return true
}

func (m *mockSubmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *mockSubmitter) getJobs() []scan.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]scan.Job, len(m.jobs))
	copy(cp, m.jobs)
	return cp
}

// ─────────────────────────────────────────────────────────────────────────────
// Test config builders
// ─────────────────────────────────────────────────────────────────────────────

func device(ip string, interval int, groups ...string) config.DeviceConfig {
	return config.DeviceConfig{
		IP:            ip,
		Port:          161,
		ScanInterval:  interval,
		Timeout:       500,
		Version:       "2c",
		Communities:   []string{"public"},
		SectionGroups: groups,
		OnError:       "raise",
	}
}

func basicConfig() *config.LoadedConfig {
	sw := device("10.0.0.1", 1, "group_net")
	sw.Hostname = "switch1"
	return &config.LoadedConfig{
		Devices: map[string]config.DeviceConfig{"switch1": sw},
		SectionGroups: map[string]config.SectionGroup{
			"group_net": {Sections: []string{"if64", "snmp_info"}},
		},
		Sections: map[models.SectionName]models.DetectSpec{
			"if64":      detect.Exists(".1.3.6.1.2.1.31.1.1.1.6.*"),
			"snmp_info": detect.Exists(".1.3.6.1.2.1.1.1.0"),
			"hr_mem":    detect.Contains(".1.3.6.1.2.1.1.1.0", "linux"),
		},
	}
}

func multiDeviceConfig() *config.LoadedConfig {
	cfg := basicConfig()
	r := device("10.0.0.2", 2, "group_net")
	r.Hostname = "router1"
	cfg.Devices["router1"] = r
	return cfg
}

// ─────────────────────────────────────────────────────────────────────────────
// ResolveJobs tests
// ─────────────────────────────────────────────────────────────────────────────

func sectionNames(j scan.Job) []models.SectionName {
	out := make([]models.SectionName, len(j.Sections))
	for i, sec := range j.Sections {
		out[i] = sec.Name
	}
	return out
}

func TestResolveJobs(t *testing.T) {
	jobs := scheduler.ResolveJobs(basicConfig(), nil)
	require.Len(t, jobs, 1)

	j := jobs[0]
	assert.Equal(t, "switch1", j.Hostname)
	assert.Equal(t, "10.0.0.1", j.Host.IPAddress)
	assert.Equal(t, "2c", j.Host.SNMPVersion)
	assert.Equal(t, []models.SectionName{"if64", "snmp_info"}, sectionNames(j))
}

func TestResolveJobs_MultipleDevices(t *testing.T) {
	jobs := scheduler.ResolveJobs(multiDeviceConfig(), nil)
	require.Len(t, jobs, 2)

	// Output is sorted by hostname.
	assert.Equal(t, "router1", jobs[0].Hostname)
	assert.Equal(t, "switch1", jobs[1].Hostname)
}

func TestResolveJobs_Dedup(t *testing.T) {
	cfg := basicConfig()
	cfg.SectionGroups["group_more"] = config.SectionGroup{Sections: []string{"snmp_info", "hr_mem"}}
	sw := cfg.Devices["switch1"]
	sw.SectionGroups = []string{"group_net", "group_more"}
	cfg.Devices["switch1"] = sw

	jobs := scheduler.ResolveJobs(cfg, nil)
	require.Len(t, jobs, 1)
	assert.Len(t, jobs[0].Sections, 3, "duplicate section should be deduped")
}

func TestResolveJobs_NoGroupsScansCatalog(t *testing.T) {
	cfg := basicConfig()
	sw := cfg.Devices["switch1"]
	sw.SectionGroups = nil
	cfg.Devices["switch1"] = sw

	jobs := scheduler.ResolveJobs(cfg, nil)
	require.Len(t, jobs, 1)
	assert.Len(t, jobs[0].Sections, 3, "no groups means the full catalog")
}

func TestResolveJobs_MissingGroup(t *testing.T) {
	cfg := basicConfig()
	sw := cfg.Devices["switch1"]
	sw.SectionGroups = []string{"nonexistent_group"}
	cfg.Devices["switch1"] = sw

	assert.Empty(t, scheduler.ResolveJobs(cfg, nil))
}

func TestResolveJobs_NilConfig(t *testing.T) {
	assert.Nil(t, scheduler.ResolveJobs(nil, nil))
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler lifecycle tests
// ─────────────────────────────────────────────────────────────────────────────

func TestSchedulerFiresOnInterval(t *testing.T) {
	sub := newMockSubmitter(0)
	s := scheduler.New(basicConfig(), sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	time.Sleep(2500 * time.Millisecond)
	cancel()
	s.Stop()

	// ScanInterval=1s over 2.5s: one immediate firing plus at least one more.
	assert.GreaterOrEqual(t, sub.count(), 2)
}

func TestSchedulerRunIDPerTick(t *testing.T) {
	sub := newMockSubmitter(0)
	s := scheduler.New(multiDeviceConfig(), sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)
	time.Sleep(200 * time.Millisecond)
	cancel()
	s.Stop()

	jobs := sub.getJobs()
	require.Len(t, jobs, 2, "initial dispatches")
	assert.NotEmpty(t, jobs[0].RunID)
	assert.Equal(t, jobs[0].RunID, jobs[1].RunID, "jobs fired together share a run id")
}

func TestSchedulerMultipleIntervals(t *testing.T) {
	// switch1: ScanInterval=1s, router1: ScanInterval=2s
	sub := newMockSubmitter(0)
	s := scheduler.New(multiDeviceConfig(), sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	time.Sleep(2500 * time.Millisecond)
	cancel()
	s.Stop()

	switchCount, routerCount := 0, 0
	for _, j := range sub.getJobs() {
		switch j.Hostname {
		case "switch1":
			switchCount++
		case "router1":
			routerCount++
		}
	}

	assert.GreaterOrEqual(t, switchCount, 2)
	assert.GreaterOrEqual(t, routerCount, 1)
	assert.Greater(t, switchCount, routerCount, "switch1 should fire more often")
}

func TestSchedulerStop(t *testing.T) {
	sub := newMockSubmitter(0)
	s := scheduler.New(basicConfig(), sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "scheduler did not stop within 2s after context cancel")
	}
}

func TestSchedulerNoop(t *testing.T) {
	cfg := &config.LoadedConfig{Devices: map[string]config.DeviceConfig{}}
	sub := newMockSubmitter(0)
	s := scheduler.New(cfg, sub, nil)
	assert.Equal(t, 0, s.Entries())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	s.Stop()

	assert.Equal(t, 0, sub.count())
}

func TestSchedulerReload(t *testing.T) {
	sub := newMockSubmitter(0)
	s := scheduler.New(basicConfig(), sub, nil)
	require.Equal(t, 1, s.Entries())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	time.Sleep(200 * time.Millisecond)
	initialCount := sub.count()
	require.GreaterOrEqual(t, initialCount, 1, "dispatch before reload")

	s.Reload(multiDeviceConfig())
	assert.Equal(t, 2, s.Entries())

	time.Sleep(1500 * time.Millisecond)
	cancel()
	s.Stop()

	assert.Greater(t, sub.count(), initialCount, "more dispatches after reload")

	hosts := map[string]bool{}
	for _, j := range sub.getJobs() {
		hosts[j.Hostname] = true
	}
	assert.True(t, hosts["switch1"])
	assert.True(t, hosts["router1"])
}

func TestSchedulerReload_RemoveDevice(t *testing.T) {
	sub := newMockSubmitter(0)
	s := scheduler.New(multiDeviceConfig(), sub, nil)
	require.Equal(t, 2, s.Entries())

	s.Reload(basicConfig())
	assert.Equal(t, 1, s.Entries())
}

func TestTrySubmitBackpressure(t *testing.T) {
	sub := newMockSubmitter(1)
	s := scheduler.New(basicConfig(), sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	time.Sleep(1500 * time.Millisecond)
	cancel()
	s.Stop()

	assert.Equal(t, 1, sub.count(), "capacity=1")
}

func TestSchedulerConcurrentReload(t *testing.T) {
	sub := newMockSubmitter(0)
	s := scheduler.New(basicConfig(), sub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	var wg sync.WaitGroup
	var panicCount atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicCount.Add(1)
				}
			}()
			s.Reload(multiDeviceConfig())
		}()
	}
	wg.Wait()

	cancel()
	s.Stop()

	assert.Zero(t, panicCount.Load(), "concurrent Reload panicked")
}
