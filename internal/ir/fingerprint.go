package ir

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// Fingerprint hashes source text after NFC normalization, so texts that
// differ only in Unicode composition share a fingerprint.
func Fingerprint(text string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(norm.NFC.String(text))
	return h.Sum64()
}

// FormatFingerprint renders a fingerprint as 16 lowercase hex digits.
func FormatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// ConceptHash returns the fingerprint of a concept's canonical encoding.
func ConceptHash(c ConceptSpec) (string, error) {
	data, err := MarshalCanonical(c)
	if err != nil {
		return "", fmt.Errorf("concept %s: %w", c.Name, err)
	}
	return FormatFingerprint(xxhash.Sum64(data)), nil
}
