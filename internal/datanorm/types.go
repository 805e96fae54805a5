package datanorm

// Record is one raw source row: field name to loosely-typed value, as decoded
// from line-delimited JSON with UseNumber.
type Record map[string]any

// Unknown is the sentinel written where a reference or label could not be resolved.
const Unknown = "UNKNOWN"

// User is a cleaned users row.
type User struct {
	ID           *string `json:"_id"`
	Active       *bool   `json:"active"`
	CreatedDate  *string `json:"createdDate"`
	LastLogin    *string `json:"lastLogin"`
	Role         *string `json:"role"`
	SignUpSource *string `json:"signUpSource"`
	State        *string `json:"state"`
}

// Brand is a cleaned brands row. CPGID is never empty: unparsable references become Unknown.
type Brand struct {
	ID           *string `json:"_id"`
	Barcode      *string `json:"barcode"`
	BrandCode    *string `json:"brandCode"`
	Category     *string `json:"category"`
	CategoryCode *string `json:"categoryCode"`
	CPGID        string  `json:"cpg_id"`
	TopBrand     *bool   `json:"topBrand"`
	Name         *string `json:"name"`
}

// Receipt is a cleaned receipts row. ItemList keeps the raw embedded item list
// for the extractor and is not persisted.
type Receipt struct {
	ID                      *string  `json:"_id"`
	UserID                  *string  `json:"userId"`
	CreateDate              *string  `json:"createDate"`
	DateScanned             *string  `json:"dateScanned"`
	FinishedDate            *string  `json:"finishedDate"`
	ModifyDate              *string  `json:"modifyDate"`
	PointsAwardedDate       *string  `json:"pointsAwardedDate"`
	PurchaseDate            *string  `json:"purchaseDate"`
	BonusPointsEarned       *int64   `json:"bonusPointsEarned"`
	BonusPointsEarnedReason *string  `json:"bonusPointsEarnedReason"`
	PointsEarned            *float64 `json:"pointsEarned"`
	PurchasedItemCount      *int64   `json:"purchasedItemCount"`
	RewardsReceiptStatus    *string  `json:"rewardsReceiptStatus"`
	TotalSpent              *float64 `json:"totalSpent"`
	ItemList                any      `json:"-"`
}

// ReceiptItem is one entry of a receipt's embedded item list, flattened.
type ReceiptItem struct {
	ID               string  `json:"_id"`
	ReceiptID        *string `json:"receiptId"`
	BrandCode        string  `json:"brandCode"`
	Barcode          string  `json:"barcode"`
	BrandName        string  `json:"brandName"`
	Description      string  `json:"description"`
	Quantity         int64   `json:"quantity"`
	Price            float64 `json:"price"`
	IsBonus          bool    `json:"isBonus"`
	NeedsFetchReview bool    `json:"needsFetchReview"`
}

// Tables is the full cleaned dataset produced by one run.
type Tables struct {
	Users    []User        `json:"users"`
	Brands   []Brand       `json:"brands"`
	Receipts []Receipt     `json:"receipts"`
	Items    []ReceiptItem `json:"receiptItems"`
}

// Table names as written to the store.
const (
	TableUsers        = "users"
	TableBrands       = "brands"
	TableReceipts     = "receipts"
	TableReceiptItems = "receiptItems"
)
