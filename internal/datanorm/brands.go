package datanorm

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

var testMarker = cases.Fold().String("test")

// CleanBrands flattens identifiers and the cpg reference, drops test brands,
// maps topBrand onto true/false/nil, backfills brandCode from barcode (or Unknown
// when both are missing) and keeps the first row per identifier.
func (n *Normalizer) CleanBrands(raw []Record) []Brand {
	fold := cases.Fold()
	seen := make(map[nullKey]bool, len(raw))
	out := make([]Brand, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		b := n.cleanBrand(Collapse(r))
		if b.Name != nil && strings.Contains(fold.String(*b.Name), testMarker) {
			dropped++
			continue
		}
		k := keyOf(b.ID)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
	}
	logger.Info("datanorm: brands cleaned", "in", len(raw), "out", len(out), "test_brands", dropped)
	return out
}

func (n *Normalizer) cleanBrand(r Record) Brand {
	b := Brand{
		ID:           NormalizeID(r[FieldID]),
		Barcode:      stringPtr(r[FieldBarcode]),
		BrandCode:    stringPtr(r[FieldBrandCode]),
		Category:     stringPtr(r[FieldCategory]),
		CategoryCode: stringPtr(r[FieldCategoryCode]),
		CPGID:        cpgID(r[FieldCPG]),
		TopBrand:     topBrand(r[FieldTopBrand]),
		Name:         stringPtr(r[FieldName]),
	}
	if b.BrandCode == nil {
		code := Unknown
		if b.Barcode != nil {
			code = *b.Barcode
		}
		b.BrandCode = &code
	}
	return b
}

// cpgID extracts $id.$oid from the nested cpg reference, decoded or rendered.
func cpgID(v any) string {
	if IsMissing(v) {
		return Unknown
	}
	var m map[string]any
	switch t := v.(type) {
	case map[string]any:
		m = t
	case string:
		parsed, err := parseStructured(t)
		if err != nil {
			logger.Warn("datanorm: unreadable cpg", "field", FieldCPG, "error", err.Error(), "raw", t)
			return Unknown
		}
		m, _ = parsed.(map[string]any)
	}
	if m == nil {
		raw, _ := stringValue(v)
		logger.Warn("datanorm: cpg is not an object", "field", FieldCPG, "raw", raw)
		return Unknown
	}
	ref, ok := m["$id"].(map[string]any)
	if !ok {
		return Unknown
	}
	id, ok := stringValue(ref["$oid"])
	if !ok {
		return Unknown
	}
	return id
}

// topBrand accepts booleans and their true/false spellings in any case.
func topBrand(v any) *bool {
	var s string
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		s = strings.ToLower(strings.TrimSpace(t))
	default:
		return nil
	}
	switch s {
	case "true":
		b := true
		return &b
	case "false":
		b := false
		return &b
	}
	logger.Debug("datanorm: topBrand not a boolean", "field", FieldTopBrand, "raw", s)
	return nil
}
