package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"labinventory/internal/model"
	"labinventory/internal/repository"
	"labinventory/pkg/stock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DTOs
type AdjustStockRequest struct {
	ProductID string   `json:"productId"`
	Delta     *float64 `json:"delta"`
	Reason    string   `json:"reason"`
}

type StocktakeRequest struct {
	ProductID     string     `json:"productId"`
	StockQuantity *float64   `json:"stockQuantity"`
	LastCounted   *time.Time `json:"lastCounted"`
}

type UpdateThresholdsRequest struct {
	MinQuantity  *int `json:"minQuantity"`
	ReorderPoint *int `json:"reorderPoint"`
}

// InventoryItem is one row of the inventory view with its derived status
type InventoryItem struct {
	model.InventoryRow
	EffectiveReorderPoint int          `json:"effectiveReorderPoint"`
	Status                stock.Status `json:"status"`
}

// LedgerPage is a page of stock movements for one product
type LedgerPage struct {
	ProductID uuid.UUID                `json:"productId"`
	Entries   []model.StockLedgerEntry `json:"entries"`
	Total     int64                    `json:"total"`
}

type InventoryService interface {
	ListInventory(ctx context.Context, page, limit int, search string) ([]InventoryItem, int64, error)
	GetInventory(ctx context.Context, productID string) (*InventoryItem, error)
	AdjustStock(ctx context.Context, actorID string, req AdjustStockRequest) (*InventoryItem, error)
	Stocktake(ctx context.Context, actorID string, req StocktakeRequest) (*InventoryItem, error)
	UpdateThresholds(ctx context.Context, actorID, productID string, req UpdateThresholdsRequest) (*InventoryItem, error)
	GetLedger(ctx context.Context, productID string, page, limit int) (*LedgerPage, error)
	Summary(ctx context.Context) (*model.InventorySummary, error)
}

type inventoryService struct {
	inventoryRepo repository.InventoryRepository
	ledgerRepo    repository.LedgerRepository
	auditRepo     repository.AuditRepository
	txManager     repository.TransactionManager
	ledger        *StockLedger
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewInventoryService(
	inventoryRepo repository.InventoryRepository,
	ledgerRepo repository.LedgerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	ledger *StockLedger,
	log logrus.FieldLogger,
) InventoryService {
	return &inventoryService{
		inventoryRepo: inventoryRepo,
		ledgerRepo:    ledgerRepo,
		auditRepo:     auditRepo,
		txManager:     txManager,
		ledger:        ledger,
		log:           log,
		now:           time.Now,
	}
}

func toItem(row model.InventoryRow) InventoryItem {
	reorder := stock.EffectiveReorderPoint(row.MinQuantity, row.ReorderPoint)
	return InventoryItem{
		InventoryRow:          row,
		EffectiveReorderPoint: reorder,
		Status:                stock.GetStatus(row.StockQuantity, row.MinQuantity, reorder),
	}
}

func (s *inventoryService) ListInventory(ctx context.Context, page, limit int, search string) ([]InventoryItem, int64, error) {
	rows, total, err := s.inventoryRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}

	items := make([]InventoryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, toItem(r))
	}
	return items, total, nil
}

func (s *inventoryService) GetInventory(ctx context.Context, productID string) (*InventoryItem, error) {
	pid, err := parseProductID(productID)
	if err != nil {
		return nil, err
	}
	return s.getItem(ctx, pid)
}

func (s *inventoryService) getItem(ctx context.Context, pid uuid.UUID) (*InventoryItem, error) {
	row, err := s.inventoryRepo.GetRow(ctx, pid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("no inventory record for product %s", pid)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	item := toItem(*row)
	return &item, nil
}

func wholeNumber(name string, v *float64) (int, error) {
	if v == nil {
		return 0, invalidInput("%s is required", name)
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalidInput("%s must be a finite number", name)
	}
	if f != math.Trunc(f) {
		return 0, invalidInput("%s must be a whole number", name)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, invalidInput("%s is out of range", name)
	}
	return int(f), nil
}

// AdjustStock adds a signed delta to a product's stock. The actor is optional.
func (s *inventoryService) AdjustStock(ctx context.Context, actorID string, req AdjustStockRequest) (*InventoryItem, error) {
	pid, err := parseProductID(req.ProductID)
	if err != nil {
		return nil, err
	}
	delta, err := wholeNumber("delta", req.Delta)
	if err != nil {
		return nil, err
	}

	mutation := StockMutation{
		ProductID:  pid,
		SourceType: model.SourceAdjustment,
		ActorID:    parseActor(actorID),
		Memo:       req.Reason,
		Delta:      delta,
	}
	return s.mutate(ctx, mutation)
}

// Stocktake records a physical count. Unlike adjustments it needs an actor.
func (s *inventoryService) Stocktake(ctx context.Context, actorID string, req StocktakeRequest) (*InventoryItem, error) {
	pid, err := parseProductID(req.ProductID)
	if err != nil {
		return nil, err
	}
	qty, err := wholeNumber("stockQuantity", req.StockQuantity)
	if err != nil {
		return nil, err
	}
	if qty < 0 {
		return nil, invalidInput("stockQuantity must not be negative")
	}

	actor := parseActor(actorID)
	if actor == nil {
		return nil, fmt.Errorf("%w: a stocktake must be attributed to a user", ErrUnauthorized)
	}

	counted := s.now()
	if req.LastCounted != nil {
		counted = *req.LastCounted
	}

	mutation := StockMutation{
		ProductID:  pid,
		SourceType: model.SourceStocktake,
		SourceID:   uuid.NewString(),
		ActorID:    actor,
		Memo:       "stocktake",
		SetTo:      &qty,
		CountedAt:  &counted,
	}
	return s.mutate(ctx, mutation)
}

func (s *inventoryService) mutate(ctx context.Context, m StockMutation) (*InventoryItem, error) {
	started := s.now()

	var entry *model.StockLedgerEntry
	var row *model.InventoryRow
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		entry, err = s.ledger.Apply(txCtx, m)
		if err != nil {
			return err
		}
		row, err = s.inventoryRepo.GetRow(txCtx, m.ProductID)
		if err != nil {
			return fmt.Errorf("failed to reload inventory row: %w", err)
		}
		return nil
	})

	err = s.ledger.finish(m.SourceType, started, err, logrus.Fields{"product_id": m.ProductID.String()})
	if err != nil {
		return nil, err
	}

	s.ledger.Publish(ctx, entry)
	item := toItem(*row)
	return &item, nil
}

// UpdateThresholds changes the min quantity and reorder point. Stock is untouched.
func (s *inventoryService) UpdateThresholds(ctx context.Context, actorID, productID string, req UpdateThresholdsRequest) (*InventoryItem, error) {
	pid, err := parseProductID(productID)
	if err != nil {
		return nil, err
	}
	if req.MinQuantity == nil {
		return nil, invalidInput("minQuantity is required")
	}
	if *req.MinQuantity < 0 {
		return nil, invalidInput("minQuantity must not be negative")
	}
	if req.ReorderPoint != nil && *req.ReorderPoint < 0 {
		return nil, invalidInput("reorderPoint must not be negative")
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.inventoryRepo.FindByProductIDForUpdate(txCtx, pid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("no inventory record for product %s", pid)
			}
			return err
		}
		if err := s.inventoryRepo.UpdateThresholds(txCtx, inv.ID, *req.MinQuantity, req.ReorderPoint); err != nil {
			return fmt.Errorf("failed to update thresholds: %w", err)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:   parseActor(actorID),
			Action:   model.ActionUpdateThresholds,
			EntityID: pid.String(),
			Details:  string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		s.log.WithError(err).WithField("product_id", pid.String()).Error("threshold update rolled back")
		return nil, fmt.Errorf("%w: please try again", ErrTransaction)
	}

	return s.getItem(ctx, pid)
}

func (s *inventoryService) GetLedger(ctx context.Context, productID string, page, limit int) (*LedgerPage, error) {
	pid, err := parseProductID(productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.inventoryRepo.FindByProductID(ctx, pid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("no inventory record for product %s", pid)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	entries, total, err := s.ledgerRepo.ListByProduct(ctx, pid, page, limit)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if entries == nil {
		entries = []model.StockLedgerEntry{}
	}
	return &LedgerPage{ProductID: pid, Entries: entries, Total: total}, nil
}

// Summary computes dashboard counts and the total stock value
func (s *inventoryService) Summary(ctx context.Context) (*model.InventorySummary, error) {
	rows, err := s.inventoryRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	now := s.now()
	sum := &model.InventorySummary{StockValue: decimal.Zero}
	for _, r := range rows {
		item := toItem(r)
		sum.TotalProducts++
		sum.TotalUnits += int64(r.StockQuantity)
		sum.StockValue = sum.StockValue.Add(r.UnitPrice.Mul(decimal.NewFromInt(int64(r.StockQuantity))))

		switch item.Status {
		case stock.StatusCritical:
			sum.Critical++
		case stock.StatusLow:
			sum.LowStock++
		default:
			sum.InStock++
		}
		if r.ExpiryDate != nil && r.ExpiryDate.Before(now) {
			sum.Expired++
		}
	}
	return sum, nil
}
