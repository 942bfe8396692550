package oidcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snmp_sections_oid_cache_hits_total",
			Help: "Total number of OID lookups answered from the scan cache",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snmp_sections_oid_cache_misses_total",
			Help: "Total number of OID lookups that required a device query",
		},
	)
)
