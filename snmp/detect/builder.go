package detect

import (
	"regexp"

	"github.com/vpbank/snmp_sections/models"
)

func single(atom models.DetectAtom) models.DetectSpec {
	return models.DetectSpec{{atom}}
}

func regexAtom(oid, pattern string, negate bool) models.DetectSpec {
	return single(models.DetectAtom{OID: oid, Kind: models.MatchRegex, Pattern: pattern, Negate: negate})
}

// StartsWith holds when the value of oid starts with value (case-insensitive).
func StartsWith(oid, value string) models.DetectSpec {
	return regexAtom(oid, regexp.QuoteMeta(value)+".*", false)
}

// NotStartsWith is the negation of StartsWith.
func NotStartsWith(oid, value string) models.DetectSpec {
	return regexAtom(oid, regexp.QuoteMeta(value)+".*", true)
}

// EndsWith holds when the value of oid ends with value (case-insensitive).
func EndsWith(oid, value string) models.DetectSpec {
	return regexAtom(oid, ".*"+regexp.QuoteMeta(value), false)
}

// NotEndsWith is the negation of EndsWith.
func NotEndsWith(oid, value string) models.DetectSpec {
	return regexAtom(oid, ".*"+regexp.QuoteMeta(value), true)
}

// Contains holds when the value of oid contains value (case-insensitive).
func Contains(oid, value string) models.DetectSpec {
	return regexAtom(oid, ".*"+regexp.QuoteMeta(value)+".*", false)
}

// NotContains is the negation of Contains.
func NotContains(oid, value string) models.DetectSpec {
	return regexAtom(oid, ".*"+regexp.QuoteMeta(value)+".*", true)
}

// Matches holds when the whole value of oid matches the regular expression.
func Matches(oid, pattern string) models.DetectSpec {
	return regexAtom(oid, pattern, false)
}

// NotMatches is the negation of Matches.
func NotMatches(oid, pattern string) models.DetectSpec {
	return regexAtom(oid, pattern, true)
}

// Equals holds when the value of oid is exactly value.
func Equals(oid, value string) models.DetectSpec {
	return single(models.DetectAtom{OID: oid, Kind: models.MatchEquals, Pattern: value})
}

// NotEquals is the negation of Equals.
func NotEquals(oid, value string) models.DetectSpec {
	return single(models.DetectAtom{OID: oid, Kind: models.MatchEquals, Pattern: value, Negate: true})
}

// Exists holds when the device returns any value for oid.
func Exists(oid string) models.DetectSpec {
	return regexAtom(oid, ".*", false)
}

// NotExists holds when the device returns no value for oid.
func NotExists(oid string) models.DetectSpec {
	return regexAtom(oid, ".*", true)
}

// AnyOf holds when at least one of specs holds.
func AnyOf(specs ...models.DetectSpec) models.DetectSpec {
	var out models.DetectSpec
	for _, s := range specs {
		out = append(out, s...)
	}
	return out
}

// AllOf holds when every one of specs holds. The result is kept in
// disjunctive form by expanding the product of the groups.
func AllOf(specs ...models.DetectSpec) models.DetectSpec {
	out := models.DetectSpec{{}}
	for _, s := range specs {
		var next models.DetectSpec
		for _, prefix := range out {
			for _, group := range s {
				combined := make([]models.DetectAtom, 0, len(prefix)+len(group))
				combined = append(combined, prefix...)
				combined = append(combined, group...)
				next = append(next, combined)
			}
		}
		out = next
	}
	return out
}
