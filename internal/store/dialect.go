package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/receipt-normalizer/internal/datanorm"
)

// Kind is a logical column type mapped onto each engine's own type names.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindInt
	KindFloat
	KindTimestamp
)

// Dialect captures everything that differs between the supported engines.
type Dialect struct {
	Name       string
	DriverName string
	types      map[Kind]string
	// positional reports whether placeholders are numbered ($1, $2, ...).
	positional bool
	// monthsBefore renders "expr minus n months".
	monthsBefore func(expr string, n int) string
	// day truncates a timestamp expression to its date.
	day func(expr string) string
	// timeAsText binds timestamps as canonical strings instead of time.Time.
	timeAsText bool
	// maxParams is the bind-parameter limit per statement; 0 means none.
	maxParams int
}

var (
	Postgres = Dialect{
		Name:       "postgres",
		DriverName: "postgres",
		types: map[Kind]string{
			KindText: "TEXT", KindBool: "BOOLEAN", KindInt: "BIGINT",
			KindFloat: "DOUBLE PRECISION", KindTimestamp: "TIMESTAMP",
		},
		positional: true,
		maxParams:  65535,
		monthsBefore: func(expr string, n int) string {
			return fmt.Sprintf("(%s - INTERVAL '%d month')", expr, n)
		},
		day: func(expr string) string { return "CAST(" + expr + " AS DATE)" },
	}

	SQLite = Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		types: map[Kind]string{
			KindText: "TEXT", KindBool: "BOOLEAN", KindInt: "INTEGER",
			KindFloat: "REAL", KindTimestamp: "TIMESTAMP",
		},
		monthsBefore: func(expr string, n int) string {
			return fmt.Sprintf("date(%s, '-%d month')", expr, n)
		},
		day:        func(expr string) string { return "date(" + expr + ")" },
		timeAsText: true,
		maxParams:  32766,
	}

	MySQL = Dialect{
		Name:       "mysql",
		DriverName: "mysql",
		types: map[Kind]string{
			KindText: "TEXT", KindBool: "BOOLEAN", KindInt: "BIGINT",
			KindFloat: "DOUBLE", KindTimestamp: "DATETIME",
		},
		monthsBefore: func(expr string, n int) string {
			return fmt.Sprintf("DATE_SUB(%s, INTERVAL %d MONTH)", expr, n)
		},
		day:       func(expr string) string { return "DATE(" + expr + ")" },
		maxParams: 65535,
	}

	Snowflake = Dialect{
		Name:       "snowflake",
		DriverName: "snowflake",
		types: map[Kind]string{
			KindText: "VARCHAR", KindBool: "BOOLEAN", KindInt: "NUMBER(38,0)",
			KindFloat: "FLOAT", KindTimestamp: "TIMESTAMP_NTZ",
		},
		monthsBefore: func(expr string, n int) string {
			return fmt.Sprintf("DATEADD(month, -%d, %s)", n, expr)
		},
		day: func(expr string) string { return "TO_DATE(" + expr + ")" },
	}
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "snowflake":
		return Snowflake, nil
	}
	return Dialect{}, fmt.Errorf("store: unsupported driver %q", name)
}

// Type returns the column type for k.
func (d Dialect) Type(k Kind) string { return d.types[k] }

// Placeholder returns the n-th (1-based) bind marker.
func (d Dialect) Placeholder(n int) string {
	if d.positional {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// MonthsBefore renders expr shifted back by n months.
func (d Dialect) MonthsBefore(expr string, n int) string { return d.monthsBefore(expr, n) }

// Day renders expr truncated to its calendar date.
func (d Dialect) Day(expr string) string { return d.day(expr) }

// BatchRows caps a multi-row INSERT of width columns at the engine's
// bind-parameter limit. The result is at least 1.
func (d Dialect) BatchRows(width, want int) int {
	if d.maxParams == 0 || width == 0 {
		return want
	}
	if limit := d.maxParams / width; want > limit {
		return max(limit, 1)
	}
	return want
}

// BindTime converts a canonical timestamp into the value bound for a timestamp column.
func (d Dialect) BindTime(t time.Time) any {
	if d.timeAsText {
		return t.UTC().Format(datanorm.TimestampLayout)
	}
	return t.UTC()
}
