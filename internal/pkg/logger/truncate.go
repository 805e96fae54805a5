package logger

import "strings"

// DefaultTruncate is the raw-value limit used until SetTruncate is called.
const DefaultTruncate = 200

// Truncate shortens s to at most max runes, marking the cut with "...".
// "{'brandCode': 'B1', 'finalPrice': '3.50'}" with max 12 → "{'brandCo..."
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// isRawKey reports whether a field carries source payload that may be arbitrarily long.
func isRawKey(key string) bool {
	key = strings.ToLower(key)
	return key == "raw" || strings.HasSuffix(key, "_raw") || strings.HasPrefix(key, "raw_")
}
