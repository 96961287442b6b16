package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a stable identity for a script's content. Whitespace
// runs collapse to a single space before hashing so trivial reformatting does
// not defeat duplicate detection. Empty input returns the empty string.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut. Values of max below 1 return the empty string.
func Truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
