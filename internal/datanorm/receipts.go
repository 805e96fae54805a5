package datanorm

import (
	"sort"

	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

// CleanReceipts normalizes identifiers, timestamps and numeric columns, then
// deduplicates in two stable stages:
//
//  1. order by dateScanned descending (nil last), keep the first row per identifier;
//  2. order by (identifier, dateScanned) ascending (nil last), keep the first row
//     per (identifier, rewardsReceiptStatus).
//
// dateScanned compares as a string, which orders canonical timestamps chronologically.
func (n *Normalizer) CleanReceipts(raw []Record) []Receipt {
	rows := make([]Receipt, 0, len(raw))
	for _, r := range raw {
		rows = append(rows, n.cleanReceipt(Collapse(r)))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return compareDescNullsLast(rows[i].DateScanned, rows[j].DateScanned) < 0
	})
	rows = dedupe(rows, func(r Receipt) any { return keyOf(r.ID) })

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if c := compareNullsLast(a.ID, b.ID); c != 0 {
			return c < 0
		}
		return compareNullsLast(a.DateScanned, b.DateScanned) < 0
	})
	rows = dedupe(rows, func(r Receipt) any {
		return [2]nullKey{keyOf(r.ID), keyOf(r.RewardsReceiptStatus)}
	})

	logger.Info("datanorm: receipts cleaned", "in", len(raw), "out", len(rows))
	return rows
}

func (n *Normalizer) cleanReceipt(r Record) Receipt {
	rc := Receipt{
		ID:                      NormalizeID(r[FieldID]),
		UserID:                  NormalizeID(r[FieldUserID]),
		BonusPointsEarnedReason: stringPtr(r[FieldBonusPointsEarnedReason]),
		RewardsReceiptStatus:    stringPtr(r[FieldRewardsReceiptStatus]),
		ItemList:                r[FieldItemList],
	}
	ts := make(map[string]*string, len(receiptTimestampFields))
	for _, f := range receiptTimestampFields {
		ts[f] = n.timestamp(f, r[f])
	}
	rc.CreateDate = ts[FieldCreateDate]
	rc.DateScanned = ts[FieldDateScanned]
	rc.FinishedDate = ts[FieldFinishedDate]
	rc.ModifyDate = ts[FieldModifyDate]
	rc.PointsAwardedDate = ts[FieldPointsAwardedDate]
	rc.PurchaseDate = ts[FieldPurchaseDate]

	rc.TotalSpent = optionalFloat(r, FieldTotalSpent)
	rc.PointsEarned = optionalFloat(r, FieldPointsEarned)
	rc.BonusPointsEarned = optionalInt(r, FieldBonusPointsEarned)
	rc.PurchasedItemCount = optionalInt(r, FieldPurchasedItemCount)
	return rc
}

func optionalFloat(r Record, field string) *float64 {
	v := r[field]
	if v == nil {
		return nil
	}
	f, err := float64Value(v)
	if err != nil {
		raw, _ := stringValue(v)
		logger.Warn("datanorm: non-numeric value dropped", "field", field, "error", err.Error(), "raw", raw)
		return nil
	}
	return &f
}

func optionalInt(r Record, field string) *int64 {
	v := r[field]
	if v == nil {
		return nil
	}
	i, err := int64Value(v)
	if err != nil {
		raw, _ := stringValue(v)
		logger.Warn("datanorm: non-integer value dropped", "field", field, "error", err.Error(), "raw", raw)
		return nil
	}
	return &i
}

// compareNullsLast orders strings ascending with nil after every value.
func compareNullsLast(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

// compareDescNullsLast orders strings descending with nil after every value.
func compareDescNullsLast(a, b *string) int {
	if a == nil || b == nil {
		return compareNullsLast(a, b)
	}
	return -compareNullsLast(a, b)
}

// dedupe keeps the first row for each key, preserving order.
func dedupe[T any](rows []T, key func(T) any) []T {
	seen := make(map[any]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
