package repository

import (
	"context"
	"time"

	"labinventory/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	Create(ctx context.Context, inv *model.Inventory) error
	FindByProductID(ctx context.Context, productID uuid.UUID) (*model.Inventory, error)
	FindByProductIDForUpdate(ctx context.Context, productID uuid.UUID) (*model.Inventory, error)
	SetStock(ctx context.Context, id uuid.UUID, qty int, countedAt *time.Time) error
	UpdateThresholds(ctx context.Context, id uuid.UUID, minQty int, reorderPoint *int) error
	List(ctx context.Context, page, limit int, search string) ([]model.InventoryRow, int64, error)
	ListAll(ctx context.Context) ([]model.InventoryRow, error)
	GetRow(ctx context.Context, productID uuid.UUID) (*model.InventoryRow, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

const inventoryRowColumns = "inventories.id, inventories.product_id, products.sku, products.name, products.category, " +
	"products.expiry_date, products.unit_price, inventories.stock_quantity, inventories.min_quantity, " +
	"inventories.reorder_point, inventories.last_counted_at"

func (r *inventoryRepository) Create(ctx context.Context, inv *model.Inventory) error {
	return GetDB(ctx, r.db).Create(inv).Error
}

func (r *inventoryRepository) FindByProductID(ctx context.Context, productID uuid.UUID) (*model.Inventory, error) {
	var inv model.Inventory
	if err := GetDB(ctx, r.db).Where("product_id = ?", productID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindByProductIDForUpdate locks the inventory row until the surrounding
// transaction ends. Every stock mutation must read through here.
func (r *inventoryRepository) FindByProductIDForUpdate(ctx context.Context, productID uuid.UUID) (*model.Inventory, error) {
	var inv model.Inventory
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepository) SetStock(ctx context.Context, id uuid.UUID, qty int, countedAt *time.Time) error {
	updates := map[string]interface{}{"stock_quantity": qty}
	if countedAt != nil {
		updates["last_counted_at"] = *countedAt
	}
	res := GetDB(ctx, r.db).Model(&model.Inventory{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepository) UpdateThresholds(ctx context.Context, id uuid.UUID, minQty int, reorderPoint *int) error {
	res := GetDB(ctx, r.db).Model(&model.Inventory{}).Where("id = ?", id).
		Updates(map[string]interface{}{"min_quantity": minQty, "reorder_point": reorderPoint})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepository) joined(ctx context.Context) *gorm.DB {
	return GetDB(ctx, r.db).Table("inventories").
		Joins("JOIN products ON products.id = inventories.product_id AND products.deleted_at IS NULL")
}

func (r *inventoryRepository) List(ctx context.Context, page, limit int, search string) ([]model.InventoryRow, int64, error) {
	var rows []model.InventoryRow
	var total int64

	db := r.joined(ctx)
	if search != "" {
		db = db.Where("products.name ILIKE ? OR products.sku ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Select(inventoryRowColumns).Order("products.name asc").
		Offset(offset).Limit(limit).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *inventoryRepository) ListAll(ctx context.Context) ([]model.InventoryRow, error) {
	var rows []model.InventoryRow
	if err := r.joined(ctx).Select(inventoryRowColumns).Order("products.name asc").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *inventoryRepository) GetRow(ctx context.Context, productID uuid.UUID) (*model.InventoryRow, error) {
	var rows []model.InventoryRow
	if err := r.joined(ctx).Select(inventoryRowColumns).
		Where("inventories.product_id = ?", productID).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}
