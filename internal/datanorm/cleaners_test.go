package datanorm

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanUsers(t *testing.T) {
	n := NewNormalizer(Config{})
	raw := []Record{
		{"_id": map[string]any{"$oid": "u1"}, "role": "consumer", "active": true,
			"createdDate": map[string]any{"$date": json.Number("1609687531000")}, "state": "WI"},
		{"_id": `{'$oid': 'u1'}`, "role": "consumer", "state": "IL"},
		{"_id": "u2", "role": "fetch-staff", "createdDate": "NaN"},
		{"_id": "u3", "role": "consumer", "lastLogin": "", "signUpSource": math.NaN(), "state": "NULL"},
		{"_id": "u4", "active": "yes-ish", "role": "consumer"},
	}

	users := n.CleanUsers(raw)
	require.Len(t, users, 3)

	assert.Equal(t, "u1", *users[0].ID)
	assert.Equal(t, "WI", *users[0].State, "first copy of a duplicate wins")
	assert.Equal(t, "2021-01-03 15:25:31", *users[0].CreatedDate)
	require.NotNil(t, users[0].Active)
	assert.True(t, *users[0].Active)

	assert.Equal(t, "u3", *users[1].ID)
	assert.Nil(t, users[1].LastLogin)
	assert.Nil(t, users[1].SignUpSource)
	assert.Nil(t, users[1].State)

	assert.Equal(t, "u4", *users[2].ID)
	assert.Nil(t, users[2].Active)

	for _, u := range users {
		assert.Equal(t, "consumer", *u.Role)
	}
}

func TestCleanUsersDuplicateBeforeRoleFilter(t *testing.T) {
	n := NewNormalizer(Config{})
	raw := []Record{
		{"_id": "u1", "role": "fetch-staff"},
		{"_id": "u1", "role": "consumer"},
	}
	assert.Empty(t, n.CleanUsers(raw))
}

func TestCleanBrands(t *testing.T) {
	n := NewNormalizer(Config{})
	raw := []Record{
		{
			"_id":      map[string]any{"$oid": "b1"},
			"barcode":  json.Number("511111019862"),
			"name":     "Acme",
			"topBrand": "True",
			"cpg":      map[string]any{"$id": map[string]any{"$oid": "c1"}, "$ref": "Cogs"},
		},
		{"_id": "b2", "barcode": "511111019863", "brandCode": "ACME2", "name": "Test Brand @1612366101024", "topBrand": false},
		{"_id": "b3", "barcode": "511111019864", "name": "TEST", "brandCode": "X"},
		{"_id": "b4", "barcode": "511111519999", "brandCode": "SUNNY", "name": "Sunny", "topBrand": "maybe",
			"cpg": `{'$id': {'$oid': 'c2'}, '$ref': 'Cpgs'}`},
		{"_id": "b4", "brandCode": "DUP", "name": "Sunny again"},
		{"_id": "b5", "name": "Nameless", "cpg": "not a dict", "topBrand": json.Number("1")},
		{"_id": "b6", "brandCode": "", "barcode": nil, "cpg": `{'$id': 'flat'}`},
	}

	brands := n.CleanBrands(raw)
	require.Len(t, brands, 4)

	acme := brands[0]
	assert.Equal(t, "b1", *acme.ID)
	assert.Equal(t, "c1", acme.CPGID)
	assert.Equal(t, "511111019862", *acme.BrandCode, "brandCode backfilled from barcode")
	require.NotNil(t, acme.TopBrand)
	assert.True(t, *acme.TopBrand)

	sunny := brands[1]
	assert.Equal(t, "b4", *sunny.ID)
	assert.Equal(t, "SUNNY", *sunny.BrandCode, "first copy of a duplicate wins")
	assert.Equal(t, "c2", sunny.CPGID)
	assert.Nil(t, sunny.TopBrand)

	nameless := brands[2]
	assert.Equal(t, Unknown, nameless.CPGID)
	assert.Nil(t, nameless.TopBrand)
	require.NotNil(t, nameless.BrandCode)
	assert.Equal(t, Unknown, *nameless.BrandCode, "no brandCode or barcode to backfill from")

	assert.Equal(t, Unknown, brands[3].CPGID)
	assert.Nil(t, brands[3].Name)

	ids := map[string]bool{}
	for _, b := range brands {
		assert.False(t, ids[*b.ID], "duplicate id %s", *b.ID)
		ids[*b.ID] = true
		assert.NotEmpty(t, b.CPGID)
		assert.NotNil(t, b.BrandCode, "brand %s", *b.ID)
	}
}

func TestCleanBrandsAlwaysSetsBrandCode(t *testing.T) {
	n := NewNormalizer(Config{})
	brands := n.CleanBrands([]Record{
		{"_id": "b1", "name": "Nameless"},
		{"_id": "b2", "barcode": json.Number("511111019862")},
		{"_id": "b3", "brandCode": "NULL", "barcode": ""},
		{"_id": "b4", "brandCode": "KEEP", "barcode": "123"},
	})
	require.Len(t, brands, 4)

	want := []string{Unknown, "511111019862", Unknown, "KEEP"}
	for i, b := range brands {
		require.NotNil(t, b.BrandCode, "brand %s", *b.ID)
		assert.Equal(t, want[i], *b.BrandCode, "brand %s", *b.ID)
	}
}

func TestCleanReceiptsTwoStageDedupe(t *testing.T) {
	n := NewNormalizer(Config{})
	raw := []Record{
		{"_id": "r1", "dateScanned": map[string]any{"$date": json.Number("1609632000000")}, "rewardsReceiptStatus": "SUBMITTED", "totalSpent": "10.5"},
		{"_id": "r1", "dateScanned": map[string]any{"$date": json.Number("1609687531000")}, "rewardsReceiptStatus": "FINISHED", "totalSpent": json.Number("11")},
		{"_id": "r2", "rewardsReceiptStatus": "FINISHED"},
		{"_id": "r2", "dateScanned": `{'$date': 1612000000000}`, "rewardsReceiptStatus": "REJECTED"},
		{"_id": "r0", "dateScanned": `{"$date": 1614000000000}`, "rewardsReceiptStatus": "FINISHED", "pointsEarned": "750.0", "purchasedItemCount": json.Number("3")},
	}

	receipts := n.CleanReceipts(raw)
	require.Len(t, receipts, 3)

	// Ordered by identifier after the second stage.
	assert.Equal(t, "r0", *receipts[0].ID)
	assert.Equal(t, "r1", *receipts[1].ID)
	assert.Equal(t, "r2", *receipts[2].ID)

	assert.Equal(t, "FINISHED", *receipts[1].RewardsReceiptStatus, "most recent scan wins per identifier")
	assert.Equal(t, "2021-01-03 15:25:31", *receipts[1].DateScanned)
	assert.Equal(t, 11.0, *receipts[1].TotalSpent)

	assert.Equal(t, "REJECTED", *receipts[2].RewardsReceiptStatus, "rows with a scan time beat rows without")

	assert.Equal(t, 750.0, *receipts[0].PointsEarned)
	assert.Equal(t, int64(3), *receipts[0].PurchasedItemCount)
}

func TestCleanReceiptsNumericAndTimestamps(t *testing.T) {
	n := NewNormalizer(Config{CanonicalizePlainTimestamps: true})
	raw := []Record{{
		"_id":                     `{"$oid": "r9"}`,
		"userId":                  "u1",
		"createDate":              "2021-01-03T15:25:31Z",
		"modifyDate":              `{"$date": "soon"}`,
		"purchaseDate":            "",
		"totalSpent":              "a lot",
		"bonusPointsEarned":       json.Number("500"),
		"bonusPointsEarnedReason": "NULL",
		"rewardsReceiptItemList":  []any{map[string]any{"barcode": "1"}},
	}}

	receipts := n.CleanReceipts(raw)
	require.Len(t, receipts, 1)
	r := receipts[0]
	assert.Equal(t, "r9", *r.ID)
	assert.Equal(t, "u1", *r.UserID)
	assert.Equal(t, "2021-01-03 15:25:31", *r.CreateDate)
	assert.Nil(t, r.ModifyDate)
	assert.Nil(t, r.PurchaseDate)
	assert.Nil(t, r.TotalSpent)
	assert.Equal(t, int64(500), *r.BonusPointsEarned)
	assert.Nil(t, r.BonusPointsEarnedReason)
	assert.NotNil(t, r.ItemList)
}

func TestCleanReceiptsUniqueIdentifiers(t *testing.T) {
	n := NewNormalizer(Config{})
	var raw []Record
	for i := 0; i < 20; i++ {
		status := "FINISHED"
		if i%3 == 0 {
			status = "REJECTED"
		}
		raw = append(raw, Record{
			"_id":                  []string{"a", "b", "c", "d"}[i%4],
			"dateScanned":          map[string]any{"$date": json.Number("16096875310" + string(rune('0'+i%10)) + "0")},
			"rewardsReceiptStatus": status,
		})
	}
	seen := map[string]bool{}
	for _, r := range n.CleanReceipts(raw) {
		require.NotNil(t, r.ID)
		assert.False(t, seen[*r.ID], "identifier %s survived twice", *r.ID)
		seen[*r.ID] = true
	}
	assert.Len(t, seen, 4)
}
