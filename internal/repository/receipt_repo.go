package repository

import (
	"context"

	"labinventory/internal/model"

	"gorm.io/gorm"
)

type ReceiptRepository interface {
	Create(ctx context.Context, receipt *model.GoodsReceipt) error
	FindByCode(ctx context.Context, code string) (*model.GoodsReceipt, error)
	List(ctx context.Context, page, limit int) ([]model.GoodsReceipt, int64, error)
}

type receiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

// Create inserts the receipt header together with its lines.
func (r *receiptRepository) Create(ctx context.Context, receipt *model.GoodsReceipt) error {
	return GetDB(ctx, r.db).Create(receipt).Error
}

func (r *receiptRepository) FindByCode(ctx context.Context, code string) (*model.GoodsReceipt, error) {
	var receipt model.GoodsReceipt
	if err := GetDB(ctx, r.db).Preload("Lines").Where("receipt_code = ?", code).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *receiptRepository) List(ctx context.Context, page, limit int) ([]model.GoodsReceipt, int64, error) {
	var receipts []model.GoodsReceipt
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.GoodsReceipt{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Lines").Order("received_at desc").Offset(offset).Limit(limit).Find(&receipts).Error; err != nil {
		return nil, 0, err
	}

	return receipts, total, nil
}
