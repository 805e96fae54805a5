package quality

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/receipt-normalizer/internal/datanorm"
)

func strp(s string) *string { return &s }

func cleanTables() *datanorm.Tables {
	spent := 12.5
	return &datanorm.Tables{
		Users: []datanorm.User{
			{ID: strp("u1"), CreatedDate: strp("2021-01-03 15:25:31"), Role: strp("consumer")},
		},
		Brands: []datanorm.Brand{
			{ID: strp("b1"), BrandCode: strp("B1"), Name: strp("Acme"), CPGID: "c1"},
		},
		Receipts: []datanorm.Receipt{
			{ID: strp("r1"), UserID: strp("u1"), TotalSpent: &spent},
		},
		Items: []datanorm.ReceiptItem{
			{ID: "i1", ReceiptID: strp("r1"), BrandCode: "B1", Quantity: 1, Price: 2.5},
		},
	}
}

func TestRunCleanTablesHaveNoIssues(t *testing.T) {
	results := Run(cleanTables())
	require.Len(t, results, 7)
	assert.Equal(t, int64(0), Total(results))
	assert.False(t, Failed(results))
}

func TestRunDanglingUserRaisesOnlyUserCheck(t *testing.T) {
	tables := cleanTables()
	tables.Receipts[0].UserID = strp("ghost")

	results := Run(tables)
	for i, r := range results {
		if i == 1 {
			assert.Equal(t, int64(1), r.Count, r.Issue)
			continue
		}
		assert.Equal(t, int64(0), r.Count, r.Issue)
	}
}

func TestRunCountsEveryDefect(t *testing.T) {
	negative := -1.0
	tables := cleanTables()
	tables.Users = append(tables.Users, datanorm.User{ID: strp("u2"), Role: strp("consumer")})
	tables.Receipts = append(tables.Receipts,
		datanorm.Receipt{ID: strp("r2"), UserID: nil, TotalSpent: &negative})
	tables.Items = append(tables.Items,
		datanorm.ReceiptItem{ID: "i2", ReceiptID: strp("r404"), BrandCode: datanorm.Unknown, Quantity: 0, Price: -3},
		datanorm.ReceiptItem{ID: "i3", ReceiptID: nil, BrandCode: "B1", Quantity: 2, Price: 1},
	)

	got := Run(tables)
	want := []int64{1, 0, 1, 1, 1, 1, 1}
	for i, r := range got {
		assert.Equal(t, want[i], r.Count, r.Issue)
	}
}

func TestRunSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for i, c := range Checks {
		q := mock.ExpectQuery(regexp.QuoteMeta(c.Query))
		if i == 2 {
			q.WillReturnError(errors.New("no such column: totalSpent"))
			continue
		}
		q.WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(i))
	}

	results := RunSQL(context.Background(), db)
	require.Len(t, results, 7)
	assert.True(t, Failed(results))

	assert.Contains(t, results[2].Error, "no such column")
	assert.Equal(t, int64(0), results[2].Count)
	for i, r := range results {
		if i == 2 {
			continue
		}
		assert.Empty(t, r.Error)
		assert.Equal(t, int64(i), r.Count)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
