package model

import (
	"github.com/shopspring/decimal"
)

// InventorySummary aggregates dashboard figures over all inventory rows
type InventorySummary struct {
	TotalProducts int             `json:"total_products"`
	TotalUnits    int64           `json:"total_units"`
	StockValue    decimal.Decimal `json:"stock_value"`
	Critical      int             `json:"critical"`
	LowStock      int             `json:"low_stock"`
	InStock       int             `json:"in_stock"`
	Expired       int             `json:"expired"`
}
