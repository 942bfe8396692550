package models

// MatchKind selects how a DetectAtom compares the fetched OID value.
type MatchKind string

const (
	// MatchRegex is a case-insensitive full match; "." also matches newlines.
	MatchRegex MatchKind = "regex"

	// MatchEquals is an exact, case-sensitive string comparison.
	MatchEquals MatchKind = "equals"
)

// DetectAtom is one predicate of a detection specification. It holds when
// Negate XOR (the value of OID matches Pattern). An absent value never
// matches, so a negated atom over an absent value holds.
type DetectAtom struct {
	OID     string    `yaml:"oid" json:"oid"`
	Kind    MatchKind `yaml:"kind" json:"kind"`
	Pattern string    `yaml:"pattern" json:"pattern"`
	Negate  bool      `yaml:"negate,omitempty" json:"negate,omitempty"`
}

// DetectSpec is a disjunction of conjunctions: the spec is satisfied when
// every atom of at least one group holds. An empty spec never matches.
type DetectSpec [][]DetectAtom

// ScanSection pairs a section name with the spec that detects it.
type ScanSection struct {
	Name   SectionName
	Detect DetectSpec
}

// OIDs returns every OID referenced by the spec, in evaluation order,
// without duplicates.
func (s DetectSpec) OIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range s {
		for _, atom := range group {
			if seen[atom.OID] {
				continue
			}
			seen[atom.OID] = true
			out = append(out, atom.OID)
		}
	}
	return out
}
