// Package backend fetches single OID values from a device for the section
// scanner. Two implementations exist: SNMPBackend talks to a live agent and
// StoredBackend answers from a recorded walk file.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vpbank/snmp_sections/models"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
	"github.com/vpbank/snmp_sections/pkg/snmpsections/oidcache"
)

// ErrFetch marks a transport-level failure (timeout, refused, auth). The
// scanner treats such OIDs as having no value.
var ErrFetch = errors.New("backend: fetch failed")

// System OIDs are device-wide. They are always fetched and cached in the
// default context, whatever contexts the asking section is scoped to.
const (
	OIDSysDescr  = ".1.3.6.1.2.1.1.1.0"
	OIDSysObject = ".1.3.6.1.2.1.1.2.0"
)

// SystemKey returns the cache key of a system OID.
func SystemKey(oid string) oidcache.Key {
	return oidcache.Key{OID: oid}
}

func isSystemOID(oid string) bool {
	return oid == OIDSysDescr || oid == OIDSysObject
}

// Backend retrieves one OID value from a device.
type Backend interface {
	// Config returns the configuration of the device this backend serves.
	Config() config.DeviceConfig

	// Get fetches oid in the given SNMP context ("" is the default context).
	// An oid ending in ".*" requests the first OID below the prefix.
	// found is false when the device has no value.
	Get(ctx context.Context, oid, snmpContext string) (value string, found bool, err error)
}

// GetSingleOID returns the value of oid for section, consulting cache first.
//
// The OID is tried in every SNMP context configured for the section until one
// yields a value. System OIDs ignore the section contexts. Transport failures
// count as "no value" but are not cached, so the next lookup asks the device
// again. Values and genuine absences are recorded in the cache. An OID
// without a leading dot is a configuration error.
func GetSingleOID(
	ctx context.Context,
	cache *oidcache.Cache,
	be Backend,
	oid string,
	section models.SectionName,
	logger *slog.Logger,
) (string, bool, error) {
	if !strings.HasPrefix(oid, ".") {
		return "", false, models.NewConfigError("OID definition %q does not begin with a '.'", oid)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	contexts := be.Config().SectionContexts(string(section))
	if isSystemOID(oid) {
		contexts = []string{""}
	}
	key := oidcache.Key{Context: strings.Join(contexts, ","), OID: oid}
	if e, ok := cache.Get(key); ok {
		return e.Value, e.Found, nil
	}

	var (
		value  string
		found  bool
		failed bool
	)
	for _, snmpContext := range contexts {
		v, ok, err := be.Get(ctx, oid, snmpContext)
		if err != nil {
			if !errors.Is(err, ErrFetch) {
				return "", false, fmt.Errorf("get %s: %w", oid, err)
			}
			logger.Debug("backend: fetch failed, treating as absent",
				"oid", oid, "context", snmpContext, "error", err.Error())
			failed = true
			continue
		}
		if ok {
			value, found = v, true
			break
		}
	}

	logger.Debug("backend: single OID", "oid", oid, "found", found, "value", value)
	if failed && !found {
		return "", false, nil
	}
	cache.Set(key, oidcache.Entry{Value: value, Found: found})
	return value, found, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
