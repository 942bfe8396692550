package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snmp_sections_scans_total",
			Help: "Total number of device scans by outcome",
		},
		[]string{"status"},
	)

	sectionsFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snmp_sections_sections_found_total",
			Help: "Total number of sections detected across all successful scans",
		},
	)

	sectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snmp_sections_section_errors_total",
			Help: "Total number of detection specification failures by section",
		},
		[]string{"section"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snmp_sections_scan_duration_seconds",
			Help:    "Wall time of one device scan",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)
