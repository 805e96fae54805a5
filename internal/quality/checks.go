// Package quality runs the fixed battery of referential and value-integrity
// counts over the cleaned tables, either in memory or against the loaded store.
package quality

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/receipt-normalizer/internal/datanorm"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

// Result is the outcome of one check. Error is set only when that check failed to run.
type Result struct {
	Table string `json:"table"`
	Issue string `json:"issue"`
	Count int64  `json:"count"`
	Error string `json:"error,omitempty"`
}

// Check is one entry of the battery.
type Check struct {
	Table string
	Issue string
	// Query counts offending rows in the store. Null foreign keys are not offenders.
	Query string
	count func(t *datanorm.Tables) int64
}

// Checks is the battery, in reporting order.
var Checks = []Check{
	{
		Table: "Users",
		Issue: "Missing mandatory fields (_id, createdDate, or role)",
		Query: `SELECT COUNT(*) FROM users WHERE _id IS NULL OR createdDate IS NULL OR role IS NULL`,
		count: func(t *datanorm.Tables) int64 {
			var n int64
			for _, u := range t.Users {
				if u.ID == nil || u.CreatedDate == nil || u.Role == nil {
					n++
				}
			}
			return n
		},
	},
	{
		Table: "Receipts",
		Issue: "User not found (userId missing in Users)",
		Query: `SELECT COUNT(*) FROM receipts r
			WHERE r.userId IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM users u WHERE u._id = r.userId)`,
		count: func(t *datanorm.Tables) int64 {
			ids := make(map[string]bool, len(t.Users))
			for _, u := range t.Users {
				if u.ID != nil {
					ids[*u.ID] = true
				}
			}
			var n int64
			for _, r := range t.Receipts {
				if r.UserID != nil && !ids[*r.UserID] {
					n++
				}
			}
			return n
		},
	},
	{
		Table: "Receipts",
		Issue: "Negative totalSpent",
		Query: `SELECT COUNT(*) FROM receipts WHERE totalSpent < 0`,
		count: func(t *datanorm.Tables) int64 {
			var n int64
			for _, r := range t.Receipts {
				if r.TotalSpent != nil && *r.TotalSpent < 0 {
					n++
				}
			}
			return n
		},
	},
	{
		Table: "ReceiptItems",
		Issue: "Missing receipt (receiptId not in Receipts)",
		Query: `SELECT COUNT(*) FROM receiptItems ri
			WHERE ri.receiptId IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM receipts r WHERE r._id = ri.receiptId)`,
		count: func(t *datanorm.Tables) int64 {
			ids := make(map[string]bool, len(t.Receipts))
			for _, r := range t.Receipts {
				if r.ID != nil {
					ids[*r.ID] = true
				}
			}
			var n int64
			for _, it := range t.Items {
				if it.ReceiptID != nil && !ids[*it.ReceiptID] {
					n++
				}
			}
			return n
		},
	},
	{
		Table: "ReceiptItems",
		Issue: "Missing brand (brandCode not in Brands)",
		Query: `SELECT COUNT(*) FROM receiptItems ri
			WHERE ri.brandCode IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM brands b WHERE b.brandCode = ri.brandCode)`,
		count: func(t *datanorm.Tables) int64 {
			codes := make(map[string]bool, len(t.Brands))
			for _, b := range t.Brands {
				if b.BrandCode != nil {
					codes[*b.BrandCode] = true
				}
			}
			var n int64
			for _, it := range t.Items {
				if !codes[it.BrandCode] {
					n++
				}
			}
			return n
		},
	},
	{
		Table: "ReceiptItems",
		Issue: "Invalid quantity (<= 0)",
		Query: `SELECT COUNT(*) FROM receiptItems WHERE quantity <= 0`,
		count: func(t *datanorm.Tables) int64 {
			var n int64
			for _, it := range t.Items {
				if it.Quantity <= 0 {
					n++
				}
			}
			return n
		},
	},
	{
		Table: "ReceiptItems",
		Issue: "Negative price (< 0)",
		Query: `SELECT COUNT(*) FROM receiptItems WHERE price < 0`,
		count: func(t *datanorm.Tables) int64 {
			var n int64
			for _, it := range t.Items {
				if it.Price < 0 {
					n++
				}
			}
			return n
		},
	},
}

// Run evaluates the battery over in-memory tables.
func Run(t *datanorm.Tables) []Result {
	out := make([]Result, 0, len(Checks))
	for _, c := range Checks {
		out = append(out, Result{Table: c.Table, Issue: c.Issue, Count: c.count(t)})
	}
	return out
}

// Querier is the subset of *sql.DB and *sql.Tx the SQL evaluator needs.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunSQL evaluates the battery against the store. A failing check records its
// error and the remaining checks still run.
func RunSQL(ctx context.Context, db Querier) []Result {
	out := make([]Result, 0, len(Checks))
	for _, c := range Checks {
		res := Result{Table: c.Table, Issue: c.Issue}
		if err := db.QueryRowContext(ctx, c.Query).Scan(&res.Count); err != nil {
			res.Error = fmt.Sprintf("count %s: %v", c.Table, err)
			logger.Error("quality: check failed", "table", c.Table, "issue", c.Issue, "error", err.Error())
		}
		out = append(out, res)
	}
	return out
}

// Failed reports whether any result carries an error.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Error != "" {
			return true
		}
	}
	return false
}

// Total sums the counts of checks that ran.
func Total(results []Result) int64 {
	var n int64
	for _, r := range results {
		n += r.Count
	}
	return n
}
