package store

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeAddress trims and NFC-normalizes an address so that visually
// identical Cyrillic strings (composed vs decomposed accents, stray
// whitespace) map to one history entry and one geocode cache key.
func normalizeAddress(addr string) string {
	return norm.NFC.String(strings.TrimSpace(addr))
}
