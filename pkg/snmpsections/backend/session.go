package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/snmp_sections/pkg/snmpsections/config"
)

// ─────────────────────────────────────────────────────────────────────────────
// Client: the subset of gosnmp used by SNMPBackend
// ─────────────────────────────────────────────────────────────────────────────

// Client is a connected SNMP session.
type Client interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	GetNext(oids []string) (*gosnmp.SnmpPacket, error)

	// Bind sets the request context and the SNMP context name used by the
	// following requests.
	Bind(ctx context.Context, snmpContext string)
	Close() error
}

type goSNMPClient struct {
	*gosnmp.GoSNMP
}

func (c goSNMPClient) Bind(ctx context.Context, snmpContext string) {
	c.Context = ctx
	c.ContextName = snmpContext
}

func (c goSNMPClient) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Session factory: DeviceConfig to Client
// ─────────────────────────────────────────────────────────────────────────────

// NewSession creates and connects a gosnmp session for the given device
// configuration. The caller is responsible for calling Close when the session
// is no longer needed.
func NewSession(cfg config.DeviceConfig) (Client, error) {
	g := &gosnmp.GoSNMP{
		Target:             cfg.IP,
		Port:               uint16(cfg.Port),
		Timeout:            cfg.TimeoutDuration(),
		Retries:            cfg.Retries,
		ExponentialTimeout: cfg.ExponentialTimeout,
		MaxOids:            gosnmp.MaxOids,
	}

	switch cfg.Version {
	case "1":
		g.Version = gosnmp.Version1
		if len(cfg.Communities) > 0 {
			g.Community = cfg.Communities[0]
		}
	case "2c":
		g.Version = gosnmp.Version2c
		if len(cfg.Communities) > 0 {
			g.Community = cfg.Communities[0]
		}
	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		if len(cfg.V3Credentials) > 0 {
			cred := cfg.V3Credentials[0]
			g.MsgFlags = snmpv3MsgFlags(cred)
			g.SecurityParameters = &gosnmp.UsmSecurityParameters{
				UserName:                 cred.Username,
				AuthenticationProtocol:   mapAuthProto(cred.AuthenticationProtocol),
				AuthenticationPassphrase: cred.AuthenticationPassphrase,
				PrivacyProtocol:          mapPrivProto(cred.PrivacyProtocol),
				PrivacyPassphrase:        cred.PrivacyPassphrase,
			}
		}
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", cfg.Version)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s:%d: %w", cfg.IP, cfg.Port, err)
	}
	return goSNMPClient{g}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPv3 helpers
// ─────────────────────────────────────────────────────────────────────────────

func snmpv3MsgFlags(cred config.V3Credentials) gosnmp.SnmpV3MsgFlags {
	hasAuth := cred.AuthenticationProtocol != "" &&
		!strings.EqualFold(cred.AuthenticationProtocol, "noauth")
	hasPriv := cred.PrivacyProtocol != "" &&
		!strings.EqualFold(cred.PrivacyProtocol, "nopriv")

	switch {
	case hasAuth && hasPriv:
		return gosnmp.AuthPriv
	case hasAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	case "aes192c":
		return gosnmp.AES192C
	case "aes256c":
		return gosnmp.AES256C
	default:
		return gosnmp.NoPriv
	}
}
