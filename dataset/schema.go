package dataset

import "github.com/go-gota/gota/series"

// Column names of the packaged shipping dataset.
const (
	ColumnID                = "ID"
	ColumnWarehouseBlock    = "Warehouse_block"
	ColumnModeOfShipment    = "Mode_of_Shipment"
	ColumnCustomerCareCalls = "Customer_care_calls"
	ColumnCustomerRating    = "Customer_rating"
	ColumnCost              = "Cost_of_the_Product"
	ColumnPriorPurchases    = "Prior_purchases"
	ColumnImportance        = "Product_importance"
	ColumnGender            = "Gender"
	ColumnDiscount          = "Discount_offered"
	ColumnWeight            = "Weight_in_gms"

	// TargetColumn holds 1 for shipments that reached on time and 0 for late ones.
	TargetColumn = "Reached.on.Time_Y.N"
)

// RequiredColumns lists every column the dashboard reads. A file missing any of
// them is rejected at load time.
var RequiredColumns = []string{
	ColumnID,
	ColumnWarehouseBlock,
	ColumnModeOfShipment,
	ColumnCustomerCareCalls,
	ColumnCustomerRating,
	ColumnCost,
	ColumnPriorPurchases,
	ColumnImportance,
	ColumnGender,
	ColumnDiscount,
	ColumnWeight,
	TargetColumn,
}

// columnTypes pins the parsed type of the known columns so that category codes
// such as warehouse block "A" are never sniffed as something else. Features are
// read as floats: an int column would turn a fractional cell into NaN.
var columnTypes = map[string]series.Type{
	ColumnID:                series.Int,
	ColumnWarehouseBlock:    series.String,
	ColumnModeOfShipment:    series.String,
	ColumnCustomerCareCalls: series.Float,
	ColumnCustomerRating:    series.Float,
	ColumnCost:              series.Float,
	ColumnPriorPurchases:    series.Float,
	ColumnImportance:        series.String,
	ColumnGender:            series.String,
	ColumnDiscount:          series.Float,
	ColumnWeight:            series.Float,
	TargetColumn:            series.Int,
}
