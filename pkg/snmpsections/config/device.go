package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DeviceConfig is the fully-resolved configuration for a single scanned device.
// Optional fields that are zero-valued in the YAML are filled with hard-coded
// fallbacks during resolution.
type DeviceConfig struct {
	// Hostname is the key the device was declared under.
	Hostname string `validate:"required"`

	// IP is the management address of the device.
	IP string `validate:"required_unless=BinaryHost true"`

	// Port is the UDP port for SNMP requests (default 161).
	Port int `validate:"min=1,max=65535"`

	// Timeout is the per-request timeout in milliseconds (default 3000).
	Timeout int `validate:"min=1"`

	// Retries is the number of retry attempts on timeout (default 2).
	Retries int `validate:"min=0"`

	// ExponentialTimeout enables exponential backoff between retries.
	ExponentialTimeout bool

	// Version is the SNMP version: "1", "2c", or "3".
	Version string `validate:"oneof=1 2c 3"`

	// Communities is the list of community strings to try (v1/v2c only).
	Communities []string `validate:"required_unless=Version 3"`

	// V3Credentials is the list of SNMPv3 credential sets to try (v3 only).
	V3Credentials []V3Credentials `validate:"required_if=Version 3,dive"`

	// SectionGroups lists the section group names scanned on this device.
	// Empty means every catalog section.
	SectionGroups []string

	// ScanInterval is the time between scans in seconds (default 3600).
	ScanInterval int `validate:"min=1"`

	// BinaryHost marks a device without usable SNMP identification. Its
	// sysDescr and sysObjectID are taken as empty strings.
	BinaryHost bool

	// OnError is the scan failure policy: raise, warn or ignore (default raise).
	OnError string `validate:"oneof=raise warn ignore"`

	// Contexts maps a section name to the SNMP contexts its detection OIDs
	// are fetched in. Sections not listed use the default context.
	Contexts map[string][]string

	// MaxRequestsPerSecond throttles SNMP requests to the device. 0 disables
	// throttling.
	MaxRequestsPerSecond float64 `validate:"min=0"`

	// UseOIDCache seeds each scan from the values persisted by the last
	// successful scan of this device (default false). The system OIDs are
	// always fetched live.
	UseOIDCache bool
}

// TimeoutDuration returns Timeout as a time.Duration.
func (d DeviceConfig) TimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Millisecond
}

// ScanIntervalDuration returns ScanInterval as a time.Duration.
func (d DeviceConfig) ScanIntervalDuration() time.Duration {
	return time.Duration(d.ScanInterval) * time.Second
}

// SectionContexts returns the SNMP contexts configured for section, or a
// single default context when none are.
func (d DeviceConfig) SectionContexts(section string) []string {
	if ctxs := d.Contexts[section]; len(ctxs) > 0 {
		return ctxs
	}
	return []string{""}
}

// V3Credentials holds a single set of SNMPv3 security parameters.
type V3Credentials struct {
	// Username is the SNMPv3 security name.
	Username string `yaml:"username" validate:"required"`

	// AuthenticationProtocol is one of: noauth, md5, sha, sha224, sha256, sha384, sha512.
	AuthenticationProtocol string `yaml:"authentication_protocol" validate:"omitempty,oneof=noauth md5 sha sha224 sha256 sha384 sha512"`

	// AuthenticationPassphrase is the passphrase for the chosen auth protocol.
	AuthenticationPassphrase string `yaml:"authentication_passphrase"`

	// PrivacyProtocol is one of: nopriv, des, aes, aes192, aes256, aes192c, aes256c.
	PrivacyProtocol string `yaml:"privacy_protocol" validate:"omitempty,oneof=nopriv des aes aes192 aes256 aes192c aes256c"`

	// PrivacyPassphrase is the passphrase for the chosen privacy protocol.
	PrivacyPassphrase string `yaml:"privacy_passphrase"`
}

// DeviceDefaults holds the values merged into every device that leaves the
// corresponding field unset.
type DeviceDefaults struct {
	Port                 int
	Timeout              int
	Retries              int
	Version              string
	Communities          []string
	SectionGroups        []string
	ScanInterval         int
	OnError              string
	MaxRequestsPerSecond float64
	UseOIDCache          *bool
}

// SectionGroup lists the catalog section names scanned together.
type SectionGroup struct {
	Sections []string
}

// rawDeviceEntry is the intermediate YAML-decoded form of a single device.
// It maps 1-to-1 with the device YAML schema. Hard-coded fallbacks are applied
// for zero-valued fields during resolution.
type rawDeviceEntry struct {
	IP                   string              `yaml:"ip"`
	Port                 int                 `yaml:"port"`
	Timeout              int                 `yaml:"timeout"`
	Retries              int                 `yaml:"retries"`
	ExponentialTimeout   bool                `yaml:"exponential_timeout"`
	Version              string              `yaml:"version"`
	Communities          []string            `yaml:"communities"`
	V3Credentials        []V3Credentials     `yaml:"v3_credentials"`
	SectionGroups        []string            `yaml:"section_groups"`
	ScanInterval         int                 `yaml:"scan_interval"`
	BinaryHost           bool                `yaml:"binary_host"`
	OnError              string              `yaml:"on_error"`
	Contexts             map[string][]string `yaml:"contexts"`
	MaxRequestsPerSecond float64             `yaml:"max_requests_per_second"`
	UseOIDCache          *bool               `yaml:"use_oid_cache"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

var validate = validator.New()

// Validate checks d against its struct tags and reports every failing field.
func (d DeviceConfig) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("device %q: %s", d.Hostname, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s is required", e.Namespace())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Namespace(), e.Param())
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s", e.Namespace(), e.Tag(), e.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", e.Namespace(), e.Tag())
	}
}
