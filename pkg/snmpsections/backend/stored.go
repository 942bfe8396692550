package backend

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
)

// StoredBackend answers from a recorded walk instead of a live agent. The
// walk file is a YAML mapping of numeric OID to rendered value:
//
//	.1.3.6.1.2.1.1.1.0: Linux gateway 5.10.0
//	.1.3.6.1.2.1.1.2.0: .1.3.6.1.4.1.8072.3.2.10
//
// SNMP contexts are ignored.
type StoredBackend struct {
	cfg    config.DeviceConfig
	values map[string]string
	sorted []string
}

// NewStoredBackend wraps values, keyed by OID with or without a leading dot.
func NewStoredBackend(cfg config.DeviceConfig, values map[string]string) *StoredBackend {
	b := &StoredBackend{cfg: cfg, values: make(map[string]string, len(values))}
	for oid, v := range values {
		b.values[normaliseOID(oid)] = v
	}
	b.sorted = make([]string, 0, len(b.values))
	for oid := range b.values {
		b.sorted = append(b.sorted, oid)
	}
	sort.Slice(b.sorted, func(i, j int) bool { return compareOID(b.sorted[i], b.sorted[j]) < 0 })
	return b
}

// LoadStoredBackend reads a walk file from path.
func LoadStoredBackend(cfg config.DeviceConfig, path string) (*StoredBackend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backend: read walk %s: %w", path, err)
	}
	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("backend: decode walk %s: %w", path, err)
	}
	return NewStoredBackend(cfg, values), nil
}

// Config implements Backend.
func (b *StoredBackend) Config() config.DeviceConfig { return b.cfg }

// Get implements Backend.
func (b *StoredBackend) Get(ctx context.Context, oid, _ string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	prefix, next := strings.CutSuffix(oid, ".*")
	if !next {
		v, ok := b.values[normaliseOID(oid)]
		return v, ok, nil
	}

	prefix = normaliseOID(prefix)
	i := sort.Search(len(b.sorted), func(i int) bool { return compareOID(b.sorted[i], prefix) > 0 })
	if i == len(b.sorted) || !strings.HasPrefix(b.sorted[i], prefix+".") {
		return "", false, nil
	}
	return b.values[b.sorted[i]], true, nil
}

// compareOID orders dotted OIDs arc by arc numerically.
func compareOID(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "."), ".")
	bs := strings.Split(strings.TrimPrefix(b, "."), ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		x, errX := strconv.ParseUint(as[i], 10, 64)
		y, errY := strconv.ParseUint(bs[i], 10, 64)
		if errX != nil || errY != nil {
			if c := strings.Compare(as[i], bs[i]); c != 0 {
				return c
			}
			continue
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return len(as) - len(bs)
}
