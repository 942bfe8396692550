// Package decoder renders raw gosnmp PDU values into the string form that
// detection specifications compare against.
package decoder

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// SNMP PDU Type → String
// ─────────────────────────────────────────────────────────────────────────────

// PDUTypeString returns the human-readable name for a gosnmp Asn1BER type tag.
func PDUTypeString(t gosnmp.Asn1BER) string {
	switch t {
	case gosnmp.Integer:
		return "Integer"
	case gosnmp.BitString:
		return "BitString"
	case gosnmp.OctetString:
		return "OctetString"
	case gosnmp.Null:
		return "Null"
	case gosnmp.ObjectIdentifier:
		return "ObjectIdentifier"
	case gosnmp.ObjectDescription:
		return "ObjectDescription"
	case gosnmp.IPAddress:
		return "IpAddress"
	case gosnmp.Counter32:
		return "Counter32"
	case gosnmp.Gauge32:
		return "Gauge32"
	case gosnmp.TimeTicks:
		return "TimeTicks"
	case gosnmp.Opaque:
		return "Opaque"
	case gosnmp.Counter64:
		return "Counter64"
	case gosnmp.Uinteger32:
		return "Unsigned32"
	case gosnmp.OpaqueFloat:
		return "OpaqueFloat"
	case gosnmp.OpaqueDouble:
		return "OpaqueDouble"
	case gosnmp.NoSuchObject:
		return "NoSuchObject"
	case gosnmp.NoSuchInstance:
		return "NoSuchInstance"
	case gosnmp.EndOfMibView:
		return "EndOfMibView"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}

// IsAbsent returns true when the PDU type signals that the agent has no value
// for the requested OID. Such varbinds are "no value", not errors.
func IsAbsent(t gosnmp.Asn1BER) bool {
	return t == gosnmp.NoSuchObject || t == gosnmp.NoSuchInstance || t == gosnmp.EndOfMibView || t == gosnmp.Null
}

// ─────────────────────────────────────────────────────────────────────────────
// Value rendering
// ─────────────────────────────────────────────────────────────────────────────

// RenderValue converts a PDU into its string value. found is false when the
// agent reported no value. Numbers render in decimal, object identifiers with
// a leading dot, IP addresses dotted, octet strings verbatim minus trailing
// NUL bytes.
func RenderValue(pdu gosnmp.SnmpPDU) (value string, found bool, err error) {
	if IsAbsent(pdu.Type) {
		return "", false, nil
	}

	switch pdu.Type {
	case gosnmp.Integer:
		v, err := toInt64(pdu.Value)
		if err != nil {
			return "", false, err
		}
		return strconv.FormatInt(v, 10), true, nil

	case gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks,
		gosnmp.Counter64, gosnmp.Uinteger32:
		v, err := toUint64(pdu.Value)
		if err != nil {
			return "", false, err
		}
		return strconv.FormatUint(v, 10), true, nil

	case gosnmp.OctetString, gosnmp.ObjectDescription, gosnmp.BitString:
		return toDisplayString(pdu.Value), true, nil

	case gosnmp.ObjectIdentifier:
		return toOIDString(pdu.Value), true, nil

	case gosnmp.IPAddress:
		return toIPString(pdu.Value), true, nil

	case gosnmp.OpaqueFloat:
		if f, ok := pdu.Value.(float32); ok {
			return strconv.FormatFloat(float64(f), 'g', -1, 32), true, nil
		}
		return fmt.Sprintf("%v", pdu.Value), true, nil

	case gosnmp.OpaqueDouble:
		if f, ok := pdu.Value.(float64); ok {
			return strconv.FormatFloat(f, 'g', -1, 64), true, nil
		}
		return fmt.Sprintf("%v", pdu.Value), true, nil

	default:
		if b, ok := pdu.Value.([]byte); ok {
			return string(b), true, nil
		}
		return fmt.Sprintf("%v", pdu.Value), true, nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Low-level conversion helpers
// ─────────────────────────────────────────────────────────────────────────────

// toInt64 converts the raw gosnmp value to int64.
// gosnmp returns integers as int / int32 / int64 depending on the PDU.
func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

// toUint64 converts the raw gosnmp value to uint64.
func toUint64(v interface{}) (uint64, error) {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d cannot be converted to uint64", x)
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("negative value %d cannot be converted to uint64", x)
		}
		return uint64(x), nil
	case uint:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to uint64", v)
	}
}

// toDisplayString strips the trailing NUL bytes some agents append.
func toDisplayString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimRight(x, "\x00")
	case []byte:
		return strings.TrimRight(string(x), "\x00")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// toOIDString returns the dotted-decimal OID with exactly one leading dot, the
// form sysObjectID comparisons are written in.
func toOIDString(v interface{}) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		s = fmt.Sprintf("%v", v)
	}
	return "." + strings.TrimPrefix(s, ".")
}

// toIPString converts an IpAddress value (4-byte slice or string) to dotted-
// decimal notation.
func toIPString(v interface{}) string {
	switch x := v.(type) {
	case string:
		if ip := net.ParseIP(x); ip != nil {
			return x
		}
		if b := []byte(x); len(b) == 4 {
			return net.IP(b).String()
		}
		return x
	case []byte:
		if len(x) == 4 || len(x) == 16 {
			return net.IP(x).String()
		}
		return hex.EncodeToString(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}
