package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GoodsReceipt (GRN) records goods physically received from a supplier
type GoodsReceipt struct {
	ID          uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReceiptCode string             `gorm:"type:varchar(100);uniqueIndex;not null" json:"receipt_code"`
	Supplier    string             `gorm:"type:varchar(255)" json:"supplier"`
	Note        string             `gorm:"type:text" json:"note"`
	ReceivedAt  time.Time          `gorm:"not null" json:"received_at"`
	ReceivedBy  *uuid.UUID         `gorm:"type:uuid;index" json:"received_by"`
	Lines       []GoodsReceiptLine `gorm:"foreignKey:ReceiptID" json:"lines"`
	CreatedAt   time.Time          `json:"created_at"`
}

// GoodsReceiptLine is one received product within a GoodsReceipt
type GoodsReceiptLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReceiptID uuid.UUID       `gorm:"type:uuid;not null;index" json:"receipt_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Quantity  int             `gorm:"type:int;not null" json:"quantity"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_cost"`
	LotNumber string          `gorm:"type:varchar(100)" json:"lot_number,omitempty"`
}
