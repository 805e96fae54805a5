package datanorm

// Field is a source field name as it appears in the raw exports.
type Field = string

// Shared and user fields.
const (
	FieldID           Field = "_id"
	FieldActive       Field = "active"
	FieldCreatedDate  Field = "createdDate"
	FieldLastLogin    Field = "lastLogin"
	FieldRole         Field = "role"
	FieldSignUpSource Field = "signUpSource"
	FieldState        Field = "state"
)

// Brand fields.
const (
	FieldBarcode      Field = "barcode"
	FieldBrandCode    Field = "brandCode"
	FieldCategory     Field = "category"
	FieldCategoryCode Field = "categoryCode"
	FieldCPG          Field = "cpg"
	FieldTopBrand     Field = "topBrand"
	FieldName         Field = "name"
)

// Receipt fields.
const (
	FieldUserID                  Field = "userId"
	FieldCreateDate              Field = "createDate"
	FieldDateScanned             Field = "dateScanned"
	FieldFinishedDate            Field = "finishedDate"
	FieldModifyDate              Field = "modifyDate"
	FieldPointsAwardedDate       Field = "pointsAwardedDate"
	FieldPurchaseDate            Field = "purchaseDate"
	FieldBonusPointsEarned       Field = "bonusPointsEarned"
	FieldBonusPointsEarnedReason Field = "bonusPointsEarnedReason"
	FieldPointsEarned            Field = "pointsEarned"
	FieldPurchasedItemCount      Field = "purchasedItemCount"
	FieldRewardsReceiptStatus    Field = "rewardsReceiptStatus"
	FieldTotalSpent              Field = "totalSpent"
	FieldItemList                Field = "rewardsReceiptItemList"
)

// Embedded item fields.
const (
	FieldUserFlaggedBarcode     Field = "userFlaggedBarcode"
	FieldDescription            Field = "description"
	FieldUserFlaggedDescription Field = "userFlaggedDescription"
	FieldQuantityPurchased      Field = "quantityPurchased"
	FieldFinalPrice             Field = "finalPrice"
	FieldUserFlaggedPrice       Field = "userFlaggedPrice"
	FieldIsBonus                Field = "isBonus"
	FieldNeedsFetchReview       Field = "needsFetchReview"
)

// receiptTimestampFields are normalized with NormalizeTimestamp, in column order.
var receiptTimestampFields = []Field{
	FieldCreateDate,
	FieldDateScanned,
	FieldFinishedDate,
	FieldModifyDate,
	FieldPointsAwardedDate,
	FieldPurchaseDate,
}

// itemFallbacks lists, per derived item column, the source fields tried in order.
// A field counts as present only when it holds a non-missing value.
var itemFallbacks = map[string][]Field{
	"barcode":     {FieldBarcode, FieldUserFlaggedBarcode},
	"description": {FieldDescription, FieldUserFlaggedDescription},
	"price":       {FieldFinalPrice, FieldUserFlaggedPrice},
}
