package store

import (
	"strings"
	"time"

	"github.com/ignite/receipt-normalizer/internal/datanorm"
	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

// Column is one declared column of a table.
type Column struct {
	Name string
	Kind Kind
}

// Table is a declared table with its rows in column order.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

var (
	userColumns = []Column{
		{"_id", KindText}, {"active", KindBool}, {"createdDate", KindTimestamp},
		{"lastLogin", KindTimestamp}, {"role", KindText}, {"signUpSource", KindText},
		{"state", KindText},
	}
	brandColumns = []Column{
		{"_id", KindText}, {"barcode", KindText}, {"brandCode", KindText},
		{"category", KindText}, {"categoryCode", KindText}, {"cpg_id", KindText},
		{"topBrand", KindBool}, {"name", KindText},
	}
	receiptColumns = []Column{
		{"_id", KindText}, {"userId", KindText},
		{"createDate", KindTimestamp}, {"dateScanned", KindTimestamp},
		{"finishedDate", KindTimestamp}, {"modifyDate", KindTimestamp},
		{"pointsAwardedDate", KindTimestamp}, {"purchaseDate", KindTimestamp},
		{"bonusPointsEarned", KindInt}, {"bonusPointsEarnedReason", KindText},
		{"pointsEarned", KindFloat}, {"purchasedItemCount", KindInt},
		{"rewardsReceiptStatus", KindText}, {"totalSpent", KindFloat},
	}
	itemColumns = []Column{
		{"_id", KindText}, {"receiptId", KindText}, {"brandCode", KindText},
		{"barcode", KindText}, {"brandName", KindText}, {"description", KindText},
		{"quantity", KindInt}, {"price", KindFloat}, {"isBonus", KindBool},
		{"needsFetchReview", KindBool},
	}
)

// Tables lays the cleaned dataset out as declared tables, binding values for d.
func Tables(t *datanorm.Tables, d Dialect) []Table {
	users := Table{Name: datanorm.TableUsers, Columns: userColumns}
	for _, u := range t.Users {
		users.Rows = append(users.Rows, []any{
			str(u.ID), boolean(u.Active), ts(d, u.CreatedDate), ts(d, u.LastLogin),
			str(u.Role), str(u.SignUpSource), str(u.State),
		})
	}

	brands := Table{Name: datanorm.TableBrands, Columns: brandColumns}
	for _, b := range t.Brands {
		brands.Rows = append(brands.Rows, []any{
			str(b.ID), str(b.Barcode), str(b.BrandCode), str(b.Category),
			str(b.CategoryCode), b.CPGID, boolean(b.TopBrand), str(b.Name),
		})
	}

	receipts := Table{Name: datanorm.TableReceipts, Columns: receiptColumns}
	for _, r := range t.Receipts {
		receipts.Rows = append(receipts.Rows, []any{
			str(r.ID), str(r.UserID),
			ts(d, r.CreateDate), ts(d, r.DateScanned), ts(d, r.FinishedDate),
			ts(d, r.ModifyDate), ts(d, r.PointsAwardedDate), ts(d, r.PurchaseDate),
			integer(r.BonusPointsEarned), str(r.BonusPointsEarnedReason),
			float(r.PointsEarned), integer(r.PurchasedItemCount),
			str(r.RewardsReceiptStatus), float(r.TotalSpent),
		})
	}

	items := Table{Name: datanorm.TableReceiptItems, Columns: itemColumns}
	for _, it := range t.Items {
		items.Rows = append(items.Rows, []any{
			it.ID, str(it.ReceiptID), it.BrandCode, it.Barcode, it.BrandName,
			it.Description, it.Quantity, it.Price, it.IsBonus, it.NeedsFetchReview,
		})
	}

	return []Table{users, brands, receipts, items}
}

// CreateSQL renders the CREATE TABLE statement for t.
func (t Table) CreateSQL(d Dialect) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.Name + " " + d.Type(c.Kind)
	}
	return "CREATE TABLE " + t.Name + " (" + strings.Join(cols, ", ") + ")"
}

// InsertSQL renders a multi-row INSERT for rows rows of t.
func (t Table) InsertSQL(d Dialect, rows int) string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	var b strings.Builder
	b.WriteString("INSERT INTO " + t.Name + " (" + strings.Join(names, ", ") + ") VALUES ")
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range t.Columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String()
}

func str(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolean(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func integer(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func float(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// ts binds a normalized timestamp. Values that are not timestamps cannot be
// stored in a timestamp column and are written as NULL.
func ts(d Dialect, p *string) any {
	if p == nil {
		return nil
	}
	t, err := time.Parse(datanorm.TimestampLayout, *p)
	if err != nil {
		c, ok := datanorm.CanonicalizeTimestamp(*p)
		if !ok {
			logger.Warn("store: timestamp not storable, writing NULL", "raw", *p)
			return nil
		}
		t, _ = time.Parse(datanorm.TimestampLayout, c)
	}
	return d.BindTime(t)
}
