package datanorm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/receipt-normalizer/internal/pkg/literal"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

// Extraction failures that abort the stage.
var (
	ErrQuantity = errors.New("datanorm: quantity is not an integer")
	ErrPrice    = errors.New("datanorm: price is not a number")
)

// brandLookup resolves brand names by barcode first and brandCode second.
type brandLookup struct {
	byBarcode map[string]string
	byCode    map[string]string
}

// newBrandLookup indexes brand names. Later rows overwrite earlier ones and
// brands without a name are not indexed.
func newBrandLookup(brands []Brand) brandLookup {
	l := brandLookup{
		byBarcode: make(map[string]string, len(brands)),
		byCode:    make(map[string]string, len(brands)),
	}
	for _, b := range brands {
		if b.Name == nil {
			continue
		}
		if b.Barcode != nil {
			l.byBarcode[*b.Barcode] = *b.Name
		}
		if b.BrandCode != nil {
			l.byCode[*b.BrandCode] = *b.Name
		}
	}
	return l
}

func (l brandLookup) name(barcode, brandCode string) string {
	if name, ok := l.byBarcode[barcode]; ok {
		return name
	}
	if brandCode != "" {
		if name, ok := l.byCode[brandCode]; ok {
			return name
		}
	}
	return barcode
}

// ExtractItems flattens every receipt's embedded item list into ReceiptItem rows,
// in receipt order then list order. A quantity or price that cannot be coerced
// fails the whole extraction with ErrQuantity or ErrPrice.
func (n *Normalizer) ExtractItems(receipts []Receipt, brands []Brand) ([]ReceiptItem, error) {
	lookup := newBrandLookup(brands)
	var items []ReceiptItem
	for _, rc := range receipts {
		list := ParseItemList(rc.ItemList)
		for idx, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				logger.Warn("datanorm: item entry is not an object",
					"receipt_id", deref(rc.ID), "index", idx, "raw", fmt.Sprint(entry))
				continue
			}
			item, err := n.buildItem(rc.ID, idx, m, lookup)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	logger.Info("datanorm: receipt items extracted", "receipts", len(receipts), "items", len(items))
	return items, nil
}

func (n *Normalizer) buildItem(receiptID *string, idx int, m map[string]any, lookup brandLookup) (ReceiptItem, error) {
	item := ReceiptItem{
		ID:          n.itemID(receiptID, idx),
		ReceiptID:   receiptID,
		BrandCode:   Unknown,
		Barcode:     Unknown,
		Description: Unknown,
		Quantity:    1,
	}

	brandCode, _ := stringValue(m[FieldBrandCode])
	if brandCode != "" {
		item.BrandCode = brandCode
	}
	if v, ok := firstPresent(m, itemFallbacks["barcode"]...); ok {
		item.Barcode, _ = stringValue(v)
	}
	if v, ok := firstPresent(m, itemFallbacks["description"]...); ok {
		item.Description, _ = stringValue(v)
	}
	item.BrandName = lookup.name(item.Barcode, brandCode)

	if v, ok := firstPresent(m, FieldQuantityPurchased); ok {
		q, err := int64Value(v)
		if err != nil {
			return ReceiptItem{}, fmt.Errorf("%w: receipt %s item %d: %v", ErrQuantity, deref(receiptID), idx, err)
		}
		item.Quantity = q
	}
	if v, ok := firstPresent(m, itemFallbacks["price"]...); ok {
		p, err := float64Value(v)
		if err != nil {
			return ReceiptItem{}, fmt.Errorf("%w: receipt %s item %d: %v", ErrPrice, deref(receiptID), idx, err)
		}
		item.Price = p
	}
	item.IsBonus = flag(m, FieldIsBonus, receiptID, idx)
	item.NeedsFetchReview = flag(m, FieldNeedsFetchReview, receiptID, idx)
	return item, nil
}

func flag(m map[string]any, field string, receiptID *string, idx int) bool {
	v, ok := firstPresent(m, field)
	if !ok {
		return false
	}
	b, err := boolValue(v)
	if err != nil {
		raw, _ := stringValue(v)
		logger.Warn("datanorm: bad item flag", "field", field, "receipt_id", deref(receiptID), "index", idx, "raw", raw)
		return false
	}
	return b
}

// ParseItemList reads an embedded item list. Decoded lists are used as-is; text
// goes through strict JSON, then a Python-literal parse, then a quote and keyword
// repair followed by JSON. Anything unreadable yields an empty list.
func ParseItemList(v any) []any {
	if IsMissing(v) {
		return nil
	}
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	case string:
		parsed, err := parseItemText(t)
		if err != nil {
			logger.Warn("datanorm: item list unreadable", "field", FieldItemList, "error", err.Error(), "raw", t)
			return nil
		}
		list, ok := parsed.([]any)
		if !ok {
			logger.Warn("datanorm: item list is not a list", "field", FieldItemList, "raw", t)
			return nil
		}
		return list
	default:
		logger.Warn("datanorm: item list has unexpected type", "field", FieldItemList, "type", fmt.Sprintf("%T", v))
		return nil
	}
}

var itemRepairer = strings.NewReplacer(
	"'", `"`,
	"None", "null",
	"True", "true",
	"False", "false",
)

func parseItemText(s string) (any, error) {
	if out, err := decodeJSON(s); err == nil {
		return out, nil
	}
	if out, err := literal.Parse(s); err == nil {
		return out, nil
	}
	logger.Debug("datanorm: repairing item list text", "raw", s)
	return decodeJSON(itemRepairer.Replace(s))
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return out, nil
}

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}
