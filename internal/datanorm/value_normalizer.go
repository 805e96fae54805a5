package datanorm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// missingStrings are the source spellings of "no value" besides the empty string.
var missingStrings = map[string]bool{
	"nan":  true,
	"null": true,
	"none": true,
}

// IsMissing reports whether v is one of the source representations of "no value":
// nil, a NaN number, the empty string, or a NaN/NULL/None placeholder left by a
// dataframe export.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	case json.Number:
		return missingStrings[strings.ToLower(string(t))]
	case string:
		s := strings.TrimSpace(t)
		return s == "" || missingStrings[strings.ToLower(s)]
	default:
		return false
	}
}

// Collapse returns a copy of r in which every missing representation is nil.
func Collapse(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		if IsMissing(v) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}

// stringValue renders v as text. ok is false for missing values.
func stringValue(v any) (string, bool) {
	if IsMissing(v) {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(data), true
	default:
		return fmt.Sprint(t), true
	}
}

func stringPtr(v any) *string {
	s, ok := stringValue(v)
	if !ok {
		return nil
	}
	return &s
}

// int64Value coerces v to an integer, truncating finite fractional numbers toward
// zero. Strings must hold an integer or an integral decimal ("2", "2.0").
func int64Value(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return truncFloat(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t.String())
		}
		return truncFloat(f)
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return truncFloat(f)
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

func truncFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("integer out of range: %v", f)
	}
	return int64(f), nil
}

func float64Value(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return 0, fmt.Errorf("not a number: NaN")
		}
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// boolValue accepts JSON booleans, true/false spellings and numeric flags.
func boolValue(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, fmt.Errorf("not a boolean: %q", t.String())
		}
		return f != 0, nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", t)
	default:
		return false, fmt.Errorf("not a boolean: %T", v)
	}
}

// firstPresent returns the first non-missing value among keys.
func firstPresent(r map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && !IsMissing(v) {
			return v, true
		}
	}
	return nil, false
}
