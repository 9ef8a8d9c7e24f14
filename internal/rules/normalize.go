package rules

import "strings"

// NormalizeDrugName lowercases a drug name and strips everything that is not
// a letter or digit, so "Amoxicilina + Clavulanato 500mg" and
// "amoxicilina-clavulanato" compare equal.
func NormalizeDrugName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// namesOverlap reports whether either normalized name contains the other.
// Empty names never overlap.
func namesOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// inSet reports whether the normalized name is in a normalized name set.
func inSet(normalized string, set []string) bool {
	for _, s := range set {
		if s == normalized {
			return true
		}
	}
	return false
}
