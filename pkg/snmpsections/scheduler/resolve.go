// Package scheduler coordinates interval-based section scan dispatch.
// It resolves every configured device into a scan.Job carrying the device's
// detection catalog, maintains a per-device timer, and fires jobs into the
// scan WorkerPool at each device's scan interval.
package scheduler

import (
	"log/slog"
	"sort"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/scan"
)

// ResolveJobs returns one scan.Job per device, sorted by hostname. Devices
// whose section groups select nothing from the catalog are skipped.
func ResolveJobs(cfg *config.LoadedConfig, logger *slog.Logger) []scan.Job {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	hostnames := make([]string, 0, len(cfg.Devices))
	for h := range cfg.Devices {
		hostnames = append(hostnames, h)
	}
	sort.Strings(hostnames)

	var jobs []scan.Job
	for _, hostname := range hostnames {
		devCfg := cfg.Devices[hostname]
		sections := cfg.SectionsFor(devCfg, logger)
		if len(sections) == 0 {
			logger.Warn("scheduler: no sections to scan", "hostname", hostname)
			continue
		}
		jobs = append(jobs, scan.Job{
			Hostname: hostname,
			Host: models.Host{
				Hostname:    hostname,
				IPAddress:   devCfg.IP,
				SNMPVersion: devCfg.Version,
				BinaryHost:  devCfg.BinaryHost,
			},
			DeviceConfig: devCfg,
			Sections:     sections,
		})
	}
	return jobs
}
