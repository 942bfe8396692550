// Package detect evaluates SNMP detection specifications: boolean expressions
// over OID predicates that decide whether a section applies to a device.
//
// OID values are fetched lazily through a ValueGetter, so a spec only costs
// the requests needed to decide it:
//
//	ok, err := detect.Evaluate(spec, func(oid string) (string, bool, error) {
//	    return backend.GetSingleOID(ctx, cache, be, oid, section, logger)
//	})
package detect

import (
	"regexp"
	"sync"

	"github.com/vpbank/snmp_sections/models"
)

// ValueGetter fetches the value of one OID. found=false means the device has
// no value for it, which is not an error. A non-nil error is a hard failure
// and aborts evaluation.
type ValueGetter func(oid string) (value string, found bool, err error)

// Evaluate reports whether spec holds. Groups are tried in order and the
// first satisfied group wins; within a group evaluation stops at the first
// atom that does not hold. Errors from get propagate unchanged.
func Evaluate(spec models.DetectSpec, get ValueGetter) (bool, error) {
	for _, group := range spec {
		ok, err := evaluateGroup(group, get)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evaluateGroup(group []models.DetectAtom, get ValueGetter) (bool, error) {
	for _, atom := range group {
		ok, err := EvaluateAtom(atom, get)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// EvaluateAtom evaluates a single predicate.
func EvaluateAtom(atom models.DetectAtom, get ValueGetter) (bool, error) {
	value, found, err := get(atom.OID)
	if err != nil {
		return false, err
	}
	if !found {
		return atom.Negate, nil
	}
	matched, err := match(atom, value)
	if err != nil {
		return false, err
	}
	return matched != atom.Negate, nil
}

func match(atom models.DetectAtom, value string) (bool, error) {
	switch atom.Kind {
	case models.MatchEquals:
		return value == atom.Pattern, nil
	case models.MatchRegex, "":
		re, err := compile(atom.Pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	default:
		return false, models.NewConfigError("detect: unknown match kind %q for OID %s", atom.Kind, atom.OID)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Pattern cache
// ─────────────────────────────────────────────────────────────────────────────

// patterns maps the raw pattern to its compiled full-match form. The same
// handful of patterns is evaluated against every scanned device.
var patterns sync.Map

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`(?is)^(?:` + pattern + `)$`)
	if err != nil {
		return nil, &models.ConfigError{
			Message: "detect: invalid pattern " + pattern,
			Cause:   err,
		}
	}
	patterns.Store(pattern, re)
	return re, nil
}

// Validate checks that every atom of spec has a known match kind and a
// compilable pattern, without fetching anything.
func Validate(spec models.DetectSpec) error {
	for _, group := range spec {
		for _, atom := range group {
			switch atom.Kind {
			case models.MatchEquals:
			case models.MatchRegex, "":
				if _, err := compile(atom.Pattern); err != nil {
					return err
				}
			default:
				return models.NewConfigError("detect: unknown match kind %q for OID %s", atom.Kind, atom.OID)
			}
		}
	}
	return nil
}
