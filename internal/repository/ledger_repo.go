package repository

import (
	"context"

	"labinventory/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRepository only appends; entries are never updated or deleted.
type LedgerRepository interface {
	Append(ctx context.Context, entry *model.StockLedgerEntry) error
	ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockLedgerEntry, int64, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Append(ctx context.Context, entry *model.StockLedgerEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *ledgerRepository) ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockLedgerEntry, int64, error) {
	var entries []model.StockLedgerEntry
	var total int64

	db := GetDB(ctx, r.db).Model(&model.StockLedgerEntry{}).Where("product_id = ?", productID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("id desc").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
