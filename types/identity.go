package types

import "strings"

// Identity is a resource identifier as seen in a source record.
// The same resource may appear as a full ARN, a short suffix, or a
// provider shorthand; Canonical is the single form used as a map key.
type Identity struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
}

// NewIdentity derives the canonical form from a raw identifier.
func NewIdentity(raw string) Identity {
	return Identity{Raw: raw, Canonical: CanonicalID(raw)}
}

// CanonicalID returns the deduplication key for an identifier: the last
// path segment of a compound identifier, or the identifier itself when
// it contains no path separator. Comparison is case-sensitive.
func CanonicalID(raw string) string {
	if !strings.Contains(raw, "/") {
		return raw
	}
	parts := strings.Split(raw, "/")
	return parts[len(parts)-1]
}

// SameResource reports whether two identifiers refer to the same resource.
func SameResource(a, b string) bool {
	return CanonicalID(a) == CanonicalID(b)
}
