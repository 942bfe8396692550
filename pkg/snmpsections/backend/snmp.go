package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/time/rate"

	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
	"github.com/vpbank/snmp_sections/snmp/decoder"
)

// Options configures an SNMPBackend.
type Options struct {
	// Dial creates the session on first use. Defaults to NewSession.
	Dial func(config.DeviceConfig) (Client, error)
}

// SNMPBackend fetches values from a live SNMP agent. The session is dialled
// lazily and requests are throttled to DeviceConfig.MaxRequestsPerSecond.
// It is safe for concurrent use; requests are serialised.
type SNMPBackend struct {
	cfg     config.DeviceConfig
	dial    func(config.DeviceConfig) (Client, error)
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.Mutex
	client Client
}

// NewSNMPBackend returns a backend for cfg. No packets are sent until the
// first Get.
func NewSNMPBackend(cfg config.DeviceConfig, opts Options, logger *slog.Logger) *SNMPBackend {
	if opts.Dial == nil {
		opts.Dial = NewSession
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	limit := rate.Inf
	if cfg.MaxRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.MaxRequestsPerSecond)
	}
	return &SNMPBackend{
		cfg:     cfg,
		dial:    opts.Dial,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("device", cfg.Hostname),
	}
}

// Config implements Backend.
func (b *SNMPBackend) Config() config.DeviceConfig { return b.cfg }

// Get implements Backend.
func (b *SNMPBackend) Get(ctx context.Context, oid, snmpContext string) (string, bool, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		c, err := b.dial(b.cfg)
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		b.client = c
	}
	b.client.Bind(ctx, snmpContext)

	if prefix, ok := strings.CutSuffix(oid, ".*"); ok {
		return b.getNext(prefix)
	}

	pkt, err := b.client.Get([]string{oid})
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", ErrFetch, oid, err)
	}
	if pkt.Error != gosnmp.NoError {
		// v1 agents answer a missing OID with noSuchName.
		b.logger.Debug("snmp: error status", "oid", oid, "status", pkt.Error)
		return "", false, nil
	}
	if len(pkt.Variables) == 0 {
		return "", false, nil
	}
	return decoder.RenderValue(pkt.Variables[0])
}

func (b *SNMPBackend) getNext(prefix string) (string, bool, error) {
	pkt, err := b.client.GetNext([]string{prefix})
	if err != nil {
		return "", false, fmt.Errorf("%w: getnext %s: %v", ErrFetch, prefix, err)
	}
	if pkt.Error != gosnmp.NoError || len(pkt.Variables) == 0 {
		return "", false, nil
	}
	pdu := pkt.Variables[0]
	if !strings.HasPrefix(normaliseOID(pdu.Name), normaliseOID(prefix)+".") {
		return "", false, nil
	}
	return decoder.RenderValue(pdu)
}

// Close releases the session if one was dialled.
func (b *SNMPBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func normaliseOID(oid string) string {
	return "." + strings.TrimPrefix(oid, ".")
}
