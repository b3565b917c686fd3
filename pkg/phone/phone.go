// Package phone canonicalizes North American phone numbers and derives the
// privacy-preserving identifiers used for registry lookups.
//
// Canonicalization never fails: do-not-call checks must degrade gracefully on
// malformed input rather than block the pipeline. An unparseable number simply
// produces a fingerprint that matches nothing.
package phone

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CountryCode is the NANP country code prefixed to 10-digit numbers.
const CountryCode = "1"

// Canonicalize reduces a raw phone number to a bare 11-digit NANP string.
// 10 digits gain the country code, 11 digits starting with it pass through,
// anything else gets a best-effort prefix. Never returns an error.
func Canonicalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return CountryCode + digits
	case len(digits) == 11 && strings.HasPrefix(digits, CountryCode):
		return digits
	default:
		return CountryCode + digits
	}
}

// Fingerprint returns the hex SHA-256 of a canonical number. The hash is the
// primary lookup key for registry rows; callers must not log the raw number
// alongside it.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// AreaCode extracts the three-digit area code from a canonical 11-digit
// number. Returns "" when the number is not canonical.
func AreaCode(canonical string) string {
	if len(canonical) != 11 || !strings.HasPrefix(canonical, CountryCode) {
		return ""
	}
	return canonical[1:4]
}
