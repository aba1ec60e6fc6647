package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a stocked lab item (reagent, consumable, equipment part)
type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU           string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name          string          `gorm:"type:varchar(255);not null;index" json:"name"`
	Category      string          `gorm:"type:varchar(100)" json:"category"`
	ExpiryDate    *time.Time      `json:"expiry_date"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"unit_price"`
	StockQuantity int             `gorm:"type:int;default:0;not null" json:"stock_quantity"` // Mirror of Inventory.StockQuantity
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Inventory holds the stock level and thresholds of a single product
type Inventory struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID     uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"product_id"`
	Product       *Product   `gorm:"foreignKey:ProductID" json:"-"`
	StockQuantity int        `gorm:"type:int;default:0;not null" json:"stock_quantity"`
	MinQuantity   int        `gorm:"type:int;default:0;not null" json:"min_quantity"`
	ReorderPoint  *int       `gorm:"type:int" json:"reorder_point"` // nil means 2 x MinQuantity
	LastCountedAt *time.Time `json:"last_counted_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Ledger source types
const (
	SourceAdjustment = "ADJUSTMENT"
	SourceStocktake  = "STOCKTAKE"
	SourceReceipt    = "RECEIPT"
)

// ErrLedgerImmutable is returned when something tries to change a written ledger entry.
var ErrLedgerImmutable = errors.New("stock ledger entries are immutable")

// StockLedgerEntry records one stock movement. Rows are only ever inserted.
type StockLedgerEntry struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"productId"`
	QtyChange  int        `gorm:"type:int;not null" json:"qtyChange"`
	StockAfter int        `gorm:"type:int;not null" json:"stockAfter"`
	SourceType string     `gorm:"type:varchar(20);not null;index" json:"sourceType"`
	SourceID   string     `gorm:"type:varchar(64)" json:"sourceId"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	Memo       string     `gorm:"type:text" json:"memo,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"createdAt"`
}

func (StockLedgerEntry) TableName() string {
	return "stock_ledger"
}

func (e *StockLedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

func (e *StockLedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

// InventoryRow is the joined product + inventory read model
type InventoryRow struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	ExpiryDate    *time.Time      `json:"expiryDate"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	StockQuantity int             `json:"stockQuantity"`
	MinQuantity   int             `json:"minQuantity"`
	ReorderPoint  *int            `json:"reorderPoint"`
	LastCountedAt *time.Time      `json:"lastCounted"`
}
