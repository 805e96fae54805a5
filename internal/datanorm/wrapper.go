package datanorm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ignite/receipt-normalizer/internal/pkg/literal"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

// TimestampLayout is the canonical rendering of every normalized timestamp (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// Wrapper markers. Extended JSON uses the $-prefixed form; some exports drop the $.
var (
	oidMarkers  = []string{"$oid", "oid"}
	dateMarkers = []string{"$date", "date"}
)

var errNotWrapper = errors.New("not a wrapper")

// unwrap extracts the payload of a single-key wrapper tagged with one of markers.
// v may be the decoded map or its text rendering in JSON or Python-literal quoting.
// It returns errNotWrapper when v carries no marker, and a parse error when v
// carries a marker but cannot be read as a wrapper.
func unwrap(v any, markers []string) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		return wrapperPayload(t, markers)
	case Record:
		return wrapperPayload(t, markers)
	case string:
		s := strings.TrimSpace(t)
		if !strings.HasPrefix(s, "{") || !hasMarker(s, markers) {
			return nil, errNotWrapper
		}
		parsed, err := parseStructured(s)
		if err != nil {
			return nil, err
		}
		m, ok := parsed.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("wrapper text decoded to %T", parsed)
		}
		return wrapperPayload(m, markers)
	default:
		return nil, errNotWrapper
	}
}

func wrapperPayload(m map[string]any, markers []string) (any, error) {
	for _, k := range markers {
		p, ok := m[k]
		if !ok {
			continue
		}
		if len(m) != 1 {
			return nil, fmt.Errorf("%s wrapper has %d keys", k, len(m))
		}
		return p, nil
	}
	return nil, errNotWrapper
}

// hasMarker reports whether s mentions one of markers as a quoted key.
func hasMarker(s string, markers []string) bool {
	for _, k := range markers {
		if strings.Contains(s, `"`+k+`"`) || strings.Contains(s, "'"+k+"'") {
			return true
		}
	}
	return false
}

// parseStructured reads s as strict JSON first and as a Python literal second.
func parseStructured(s string) (any, error) {
	if out, err := decodeJSON(s); err == nil {
		return out, nil
	}
	return literal.Parse(s)
}

// NormalizeID flattens an embedded object identifier. Non-wrapper values pass through
// in their string form, missing values stay nil and malformed wrapper text is returned
// unchanged. Applying it to its own output is a no-op.
func NormalizeID(v any) *string {
	if IsMissing(v) {
		return nil
	}
	payload, err := unwrap(v, oidMarkers)
	switch {
	case errors.Is(err, errNotWrapper):
		return stringPtr(v)
	case err != nil:
		raw, _ := stringValue(v)
		logger.Warn("datanorm: unreadable identifier wrapper", "error", err.Error(), "raw", raw)
		return stringPtr(v)
	}
	id := stringPtr(payload)
	if id != nil && !primitive.IsValidObjectID(*id) {
		logger.Debug("datanorm: identifier is not an object id", "id", *id)
	}
	return id
}

// NormalizeTimestamp renders an embedded date wrapper as a UTC timestamp in
// TimestampLayout. Missing values and unusable wrappers yield nil; plain strings
// pass through unchanged.
func NormalizeTimestamp(v any) *string {
	if IsMissing(v) {
		return nil
	}
	payload, err := unwrap(v, dateMarkers)
	switch {
	case errors.Is(err, errNotWrapper):
		return stringPtr(v)
	case err != nil:
		raw, _ := stringValue(v)
		logger.Warn("datanorm: unreadable date wrapper", "error", err.Error(), "raw", raw)
		return nil
	}
	ms, err := epochMillis(payload)
	if err != nil {
		raw, _ := stringValue(v)
		logger.Warn("datanorm: bad date payload", "error", err.Error(), "raw", raw)
		return nil
	}
	t := primitive.DateTime(ms).Time().UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		logger.Warn("datanorm: date out of range", "millis", ms)
		return nil
	}
	s := t.Format(TimestampLayout)
	return &s
}

// epochMillis reads an integer millisecond payload. Canonical extended JSON may
// nest it as {"$numberLong": "..."}.
func epochMillis(p any) (int64, error) {
	switch t := p.(type) {
	case json.Number:
		return t.Int64()
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		if t != float64(int64(t)) {
			return 0, fmt.Errorf("non-integer millis %v", t)
		}
		return int64(t), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	case map[string]any:
		if n, ok := t["$numberLong"]; ok && len(t) == 1 {
			return epochMillis(n)
		}
		return 0, fmt.Errorf("unexpected date payload object")
	default:
		return 0, fmt.Errorf("unexpected date payload %T", p)
	}
}

// CanonicalizeTimestamp reformats a plain timestamp string into TimestampLayout when
// it matches one of the layouts seen in exports. ok is false when s is not recognized.
func CanonicalizeTimestamp(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range plainLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(TimestampLayout), true
		}
	}
	return "", false
}

var plainLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05.000",
	"2006-01-02",
}

// isCanonical reports whether s is already in TimestampLayout.
func isCanonical(s string) bool {
	if len(s) != len(TimestampLayout) {
		return false
	}
	_, err := time.Parse(TimestampLayout, s)
	return err == nil
}
