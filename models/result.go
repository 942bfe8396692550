package models

import "time"

// Scan status values reported in ScanResult.Status.
const (
	ScanStatusSuccess = "success"
	ScanStatusError   = "error"
)

// Host carries identifying information about a scanned device.
type Host struct {
	Hostname    string `json:"hostname"`
	IPAddress   string `json:"ip_address"`
	SNMPVersion string `json:"snmp_version"` // "1", "2c", or "3"
	BinaryHost  bool   `json:"binary_host,omitempty"`
}

// ScanResult is the record emitted for every completed scan of one device.
type ScanResult struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Host       Host      `json:"host"`
	Sections   []string  `json:"sections"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`

	// CollectorID identifies the scanning instance.
	CollectorID string `json:"collector_id"`
}
