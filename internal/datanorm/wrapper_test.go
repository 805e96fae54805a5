package datanorm

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

func strp(s string) *string { return &s }

func eqPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func show(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestNormalizeID(t *testing.T) {
	const hex = "5ff1e194b6a9d73a3a9f1052"
	tests := []struct {
		name string
		in   any
		want *string
	}{
		{"flat string", hex, strp(hex)},
		{"decoded wrapper", map[string]any{"$oid": hex}, strp(hex)},
		{"json rendering", `{"$oid": "` + hex + `"}`, strp(hex)},
		{"python rendering", `{'$oid': '` + hex + `'}`, strp(hex)},
		{"marker without dollar", map[string]any{"oid": "abc123"}, strp("abc123")},
		{"nil", nil, nil},
		{"empty", "", nil},
		{"NaN float", math.NaN(), nil},
		{"malformed wrapper returned unchanged", `{'$oid': '5ff1`, strp(`{'$oid': '5ff1`)},
		{"number", json.Number("42"), strp("42")},
		{"brace-prefixed plain id", "{update-7}", strp("{update-7}")},
		{"json rendering without dollar", `{"oid": "abc123"}`, strp("abc123")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeID(tt.in)
			if !eqPtr(got, tt.want) {
				t.Errorf("NormalizeID(%v) = %s, want %s", tt.in, show(got), show(tt.want))
			}
		})
	}
}

func TestNormalizeIDIsIdempotent(t *testing.T) {
	inputs := []any{
		"5ff1e194b6a9d73a3a9f1052",
		`{'$oid': '5ff1e194b6a9d73a3a9f1052'}`,
		map[string]any{"$oid": "abc"},
		`{'$oid': 'broken`,
	}
	for _, in := range inputs {
		once := NormalizeID(in)
		if once == nil {
			t.Fatalf("NormalizeID(%v) = nil", in)
		}
		twice := NormalizeID(*once)
		if !eqPtr(once, twice) {
			t.Errorf("NormalizeID not idempotent for %v: %s then %s", in, show(once), show(twice))
		}
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *string
	}{
		{"decoded wrapper", map[string]any{"$date": json.Number("1700000000000")}, strp("2023-11-14 22:13:20")},
		{"marker without dollar", map[string]any{"date": json.Number("1700000000000")}, strp("2023-11-14 22:13:20")},
		{"json rendering", `{"$date": 1609687531000}`, strp("2021-01-03 15:25:31")},
		{"python rendering", `{'$date': 1609687531000}`, strp("2021-01-03 15:25:31")},
		{"numberLong payload", map[string]any{"$date": map[string]any{"$numberLong": "1614000000000"}}, strp("2021-02-22 13:20:00")},
		{"non-integer payload", `{"$date": 1.5}`, nil},
		{"string payload", `{"$date": "yesterday"}`, nil},
		{"overflowing payload", `{"$date": 99999999999999999999}`, nil},
		{"year out of range", `{"$date": 300000000000000000}`, nil},
		{"malformed wrapper", `{'$date': 16096`, nil},
		{"nil", nil, nil},
		{"empty", "", nil},
		{"NULL placeholder", "NULL", nil},
		{"plain string passes through", "2021-01-03T15:25:31Z", strp("2021-01-03T15:25:31Z")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTimestamp(tt.in)
			if !eqPtr(got, tt.want) {
				t.Errorf("NormalizeTimestamp(%v) = %s, want %s", tt.in, show(got), show(tt.want))
			}
		})
	}
}

func TestCanonicalizeTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2021-01-03T15:25:31Z", "2021-01-03 15:25:31", true},
		{"2021-01-03T15:25:31.123Z", "2021-01-03 15:25:31", true},
		{"2021-01-03", "2021-01-03 00:00:00", true},
		{"2021-01-03 15:25:31", "2021-01-03 15:25:31", true},
		{"last tuesday", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalizeTimestamp(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CanonicalizeTimestamp(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHasMarkerMatchesQuotedKeys(t *testing.T) {
	assert.True(t, hasMarker(`{"$oid": "x"}`, oidMarkers))
	assert.True(t, hasMarker(`{'oid': 'x'}`, oidMarkers))
	assert.True(t, hasMarker(`{'$date': 1}`, dateMarkers))
	assert.False(t, hasMarker(`{void-42}`, oidMarkers))
	assert.False(t, hasMarker(`{candidate: 1}`, dateMarkers))
	assert.False(t, hasMarker(`{"updated": 1}`, dateMarkers))
}

func TestPlainBraceValuesAreNotParsed(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	assert.Equal(t, "{void-date-42}", *NormalizeID("{void-date-42}"))
	assert.Equal(t, "{update 2021}", *NormalizeTimestamp("{update 2021}"))
	assert.NotContains(t, buf.String(), "unreadable")
}
