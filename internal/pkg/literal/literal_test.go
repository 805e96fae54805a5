package literal

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScalars(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"single quoted", `'abc'`, "abc"},
		{"double quoted", `"abc"`, "abc"},
		{"embedded other quote", `"O'Brien"`, "O'Brien"},
		{"escaped quote", `'O\'Brien'`, "O'Brien"},
		{"unicode escape", `'caf\u00e9'`, "café"},
		{"hex escape", `'\x41'`, "A"},
		{"integer", `42`, json.Number("42")},
		{"negative float", `-3.50`, json.Number("-3.50")},
		{"exponent", `1.7e12`, json.Number("1.7e12")},
		{"underscores", `1_000`, json.Number("1000")},
		{"true", `True`, true},
		{"false", `False`, false},
		{"none", `None`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseObjectIDWrapper(t *testing.T) {
	got, err := Parse(`{'$oid': '5ff1e194b6a9d73a3a9f1052'}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"$oid": "5ff1e194b6a9d73a3a9f1052"}, got)
}

func TestParseNestedItemList(t *testing.T) {
	in := `[{'barcode': '4011', 'description': "Kid's Cereal", 'finalPrice': '26.00',
	         'needsFetchReview': False, 'quantityPurchased': 5, 'pointsPayerId': None},
	        {'brandCode': 'B1',},]`

	got, err := Parse(in)
	require.NoError(t, err)

	items, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Equal(t, "4011", first["barcode"])
	assert.Equal(t, "Kid's Cereal", first["description"])
	assert.Equal(t, false, first["needsFetchReview"])
	assert.Equal(t, json.Number("5"), first["quantityPurchased"])
	assert.Contains(t, first, "pointsPayerId")
	assert.Nil(t, first["pointsPayerId"])

	assert.Equal(t, map[string]any{"brandCode": "B1"}, items[1])
}

func TestParseTupleAndNonStringKeys(t *testing.T) {
	got, err := Parse(`{1: (1, 2), True: 'x'}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"1":    []any{json.Number("1"), json.Number("2")},
		"True": "x",
	}, got)
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		``,
		`{'$oid': `,
		`{'a' 1}`,
		`['a' 'b']`,
		`'unterminated`,
		`true`,
		`null`,
		`[1, 2] extra`,
		`-`,
		`{'a': 1`,
	} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))
		})
	}
}

func TestParseDepthLimit(t *testing.T) {
	_, err := Parse(strings.Repeat("[", 1_000_000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))
	assert.Contains(t, err.Error(), "max depth")

	_, err = Parse(strings.Repeat("{'a': ", MaxDepth+1) + "1" + strings.Repeat("}", MaxDepth+1))
	assert.True(t, errors.Is(err, ErrSyntax))

	v, err := Parse(strings.Repeat("(", MaxDepth) + strings.Repeat(")", MaxDepth))
	require.NoError(t, err)
	assert.IsType(t, []any{}, v)
}
