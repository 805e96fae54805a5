// Package reports answers the fixed analytical questions over the loaded tables.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
	"github.com/ignite/receipt-normalizer/internal/store"
)

// ErrUnknownReport is returned for a key outside the catalog.
var ErrUnknownReport = errors.New("reports: unknown report")

// Report is one answered question.
type Report struct {
	Key     string     `json:"key"`
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Error   string     `json:"error,omitempty"`
}

// Question is a catalog entry. Exactly one of sql and run is set.
type Question struct {
	Key   string
	Title string
	sql   func(d store.Dialect) string
	run   func(ctx context.Context, db *sql.DB) (Report, error)
}

const recentScan = "(SELECT MAX(dateScanned) FROM receipts)"

const brandJoins = `
	JOIN receipts r ON ri.receiptId = r._id
	JOIN brands b ON ri.brandCode = b.brandCode`

// Catalog lists the questions in presentation order.
var Catalog = []Question{
	{
		Key:   "top-brands-recent-month",
		Title: "Top 5 brands by receipts scanned in the most recent month",
		sql: func(d store.Dialect) string {
			return `SELECT b.name AS brand_name, COUNT(ri._id) AS scan_count
	FROM receiptItems ri` + brandJoins + `
	WHERE r.rewardsReceiptStatus = 'FINISHED'
	AND r.dateScanned >= ` + d.MonthsBefore(recentScan, 1) + `
	GROUP BY b.name
	ORDER BY scan_count DESC
	LIMIT 5`
		},
	},
	{
		Key:   "top-brands-month-over-month",
		Title: "Top 5 brands by receipts scanned, recent month vs previous month",
		sql: func(d store.Dialect) string {
			period := `CASE WHEN r.dateScanned >= ` + d.MonthsBefore(recentScan, 1) +
				` THEN 'Recent Month' ELSE 'Previous Month' END`
			return `WITH periods AS (
	SELECT b.name AS brand_name, COUNT(ri._id) AS scan_count, ` + period + ` AS scan_period
	FROM receiptItems ri` + brandJoins + `
	WHERE r.rewardsReceiptStatus = 'FINISHED'
	AND r.dateScanned >= ` + d.MonthsBefore(recentScan, 2) + `
	GROUP BY b.name, ` + period + `
)
SELECT brand_name, scan_count, scan_period, brand_rank FROM (
	SELECT brand_name, scan_count, scan_period,
		RANK() OVER (PARTITION BY scan_period ORDER BY scan_count DESC) AS brand_rank
	FROM periods
) ranked
WHERE brand_rank <= 5
ORDER BY scan_period DESC, brand_rank ASC`
		},
	},
	{
		Key:   "average-spend-by-status",
		Title: "Average spend for FINISHED vs REJECTED receipts",
		run: func(ctx context.Context, db *sql.DB) (Report, error) {
			return compareStatuses(ctx, db, "COALESCE(AVG(totalSpent), 0)", "avg_spent",
				"FINISHED has higher average spend", "REJECTED has higher average spend")
		},
	},
	{
		Key:   "items-purchased-by-status",
		Title: "Total items purchased for FINISHED vs REJECTED receipts",
		run: func(ctx context.Context, db *sql.DB) (Report, error) {
			return compareStatuses(ctx, db, "COALESCE(SUM(purchasedItemCount), 0)", "total_items",
				"FINISHED has more items purchased", "REJECTED has more items purchased")
		},
	},
	{
		Key:   "top-spend-new-users",
		Title: "Brands with the highest spend among users created in the past 6 months",
		sql: func(d store.Dialect) string {
			return newUserBrands(d, "SUM(r.totalSpent)", "total_spent")
		},
	},
	{
		Key:   "top-transactions-new-users",
		Title: "Brands with the most transactions among users created in the past 6 months",
		sql: func(d store.Dialect) string {
			return newUserBrands(d, "COUNT(r._id)", "transaction_count")
		},
	},
}

func newUserBrands(d store.Dialect, agg, alias string) string {
	newest := "(SELECT MAX(" + d.Day("createdDate") + ") FROM users)"
	return `SELECT b.name AS brand_name, ` + agg + ` AS ` + alias + `
	FROM receipts r
	JOIN users u ON r.userId = u._id
	JOIN receiptItems ri ON r._id = ri.receiptId
	JOIN brands b ON ri.brandCode = b.brandCode
	WHERE r.rewardsReceiptStatus = 'FINISHED'
	AND ` + d.Day("u.createdDate") + ` >= ` + d.MonthsBefore(newest, 6) + `
	GROUP BY b.name
	ORDER BY ` + alias + ` DESC
	LIMIT 5`
}

// SQL returns the statement behind key for d, or "" for questions computed in Go.
func SQL(key string, d store.Dialect) string {
	for _, q := range Catalog {
		if q.Key == key && q.sql != nil {
			return q.sql(d)
		}
	}
	return ""
}

// Run answers every question. A failing question records its error and the rest still run.
func Run(ctx context.Context, db *sql.DB, d store.Dialect) []Report {
	out := make([]Report, 0, len(Catalog))
	for _, q := range Catalog {
		r, err := q.answer(ctx, db, d)
		if err != nil {
			logger.Error("reports: query failed", "report", q.Key, "error", err.Error())
			r = Report{Key: q.Key, Title: q.Title, Error: err.Error()}
		}
		out = append(out, r)
	}
	return out
}

// RunOne answers the question registered under key.
func RunOne(ctx context.Context, db *sql.DB, d store.Dialect, key string) (Report, error) {
	for _, q := range Catalog {
		if q.Key == key {
			return q.answer(ctx, db, d)
		}
	}
	return Report{}, fmt.Errorf("%w: %s", ErrUnknownReport, key)
}

func (q Question) answer(ctx context.Context, db *sql.DB, d store.Dialect) (Report, error) {
	if q.run != nil {
		r, err := q.run(ctx, db)
		r.Key, r.Title = q.Key, q.Title
		return r, err
	}
	r, err := queryTable(ctx, db, q.sql(d))
	r.Key, r.Title = q.Key, q.Title
	return r, err
}

// queryTable runs query and renders every cell as text; NULL becomes "".
func queryTable(ctx context.Context, db *sql.DB, query string) (Report, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Report{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Report{}, fmt.Errorf("columns: %w", err)
	}
	r := Report{Columns: cols, Rows: [][]string{}}
	for rows.Next() {
		cells := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return Report{}, fmt.Errorf("scan: %w", err)
		}
		row := make([]string, len(cols))
		for i, c := range cells {
			row[i] = c.String
		}
		r.Rows = append(r.Rows, row)
	}
	return r, rows.Err()
}

// compareStatuses aggregates FINISHED and REJECTED receipts and adds a verdict row.
func compareStatuses(ctx context.Context, db *sql.DB, agg, alias, finishedWins, rejectedWins string) (Report, error) {
	query := `SELECT rewardsReceiptStatus, ` + agg + `
	FROM receipts
	WHERE rewardsReceiptStatus IN ('FINISHED', 'REJECTED')
	GROUP BY rewardsReceiptStatus`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Report{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	values := map[string]float64{}
	for rows.Next() {
		var status string
		var v sql.NullFloat64
		if err := rows.Scan(&status, &v); err != nil {
			return Report{}, fmt.Errorf("scan: %w", err)
		}
		values[status] = v.Float64
	}
	if err := rows.Err(); err != nil {
		return Report{}, err
	}

	verdict := rejectedWins
	if values["FINISHED"] > values["REJECTED"] {
		verdict = finishedWins
	}
	return Report{
		Columns: []string{"status_type", alias},
		Rows: [][]string{
			{"FINISHED", formatNumber(values["FINISHED"])},
			{"REJECTED", formatNumber(values["REJECTED"])},
			{"RESULT", verdict},
		},
	}, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
