// Package stock derives display state from raw inventory quantities.
package stock

// Status is the derived stock state of an inventory row. It is never stored.
type Status string

const (
	StatusCritical Status = "critical"
	StatusLow      Status = "low-stock"
	StatusInStock  Status = "in-stock"
)

// GetStatus classifies a quantity against its thresholds. The critical check
// runs first, so a reorder point below the minimum never hides a critical row.
func GetStatus(qty, minQty, reorderPoint int) Status {
	switch {
	case qty <= minQty:
		return StatusCritical
	case qty <= reorderPoint:
		return StatusLow
	default:
		return StatusInStock
	}
}

// EffectiveReorderPoint returns the configured reorder point, or twice the
// minimum quantity when none is set.
func EffectiveReorderPoint(minQty int, reorderPoint *int) int {
	if reorderPoint != nil {
		return *reorderPoint
	}
	return 2 * minQty
}
