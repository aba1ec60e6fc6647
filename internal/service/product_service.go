package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"labinventory/internal/model"
	"labinventory/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CreateProductRequest struct {
	SKU          string          `json:"sku" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Category     string          `json:"category"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	MinQuantity  int             `json:"min_quantity"`
	ReorderPoint *int            `json:"reorder_point"`
	InitialStock int             `json:"initial_stock"`
}

type ProductResponse struct {
	Product   model.Product  `json:"product"`
	Inventory *InventoryItem `json:"inventory"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, actorID string, req CreateProductRequest) (*ProductResponse, error)
	ListProducts(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error)
}

type productService struct {
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	auditRepo     repository.AuditRepository
	txManager     repository.TransactionManager
	ledger        *StockLedger
	log           logrus.FieldLogger
}

func NewProductService(
	productRepo repository.ProductRepository,
	inventoryRepo repository.InventoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	ledger *StockLedger,
	log logrus.FieldLogger,
) ProductService {
	return &productService{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		auditRepo:     auditRepo,
		txManager:     txManager,
		ledger:        ledger,
		log:           log,
	}
}

// CreateProduct inserts the product and its inventory row in one transaction.
// A positive InitialStock is booked as an ADJUSTMENT so the ledger explains it.
func (s *productService) CreateProduct(ctx context.Context, actorID string, req CreateProductRequest) (*ProductResponse, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" || req.Name == "" {
		return nil, invalidInput("sku and name are required")
	}
	if req.UnitPrice.IsNegative() {
		return nil, invalidInput("unit_price must not be negative")
	}
	if req.MinQuantity < 0 || req.InitialStock < 0 {
		return nil, invalidInput("min_quantity and initial_stock must not be negative")
	}
	if req.ReorderPoint != nil && *req.ReorderPoint < 0 {
		return nil, invalidInput("reorder_point must not be negative")
	}

	actor := parseActor(actorID)
	product := &model.Product{
		SKU:        req.SKU,
		Name:       req.Name,
		Category:   req.Category,
		ExpiryDate: req.ExpiryDate,
		UnitPrice:  req.UnitPrice,
	}

	var entry *model.StockLedgerEntry
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.productRepo.FindBySKU(txCtx, req.SKU); err == nil {
			return conflict("sku %q already exists", req.SKU)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.productRepo.Create(txCtx, product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}

		inv := &model.Inventory{
			ProductID:    product.ID,
			MinQuantity:  req.MinQuantity,
			ReorderPoint: req.ReorderPoint,
		}
		if err := s.inventoryRepo.Create(txCtx, inv); err != nil {
			return fmt.Errorf("failed to create inventory: %w", err)
		}

		if req.InitialStock > 0 {
			var err error
			entry, err = s.ledger.Apply(txCtx, StockMutation{
				ProductID:  product.ID,
				SourceType: model.SourceAdjustment,
				SourceID:   product.ID.String(),
				ActorID:    actor,
				Memo:       "initial stock",
				Delta:      req.InitialStock,
			})
			if err != nil {
				return err
			}
			product.StockQuantity = entry.StockAfter
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionCreateProduct,
			EntityID:   product.ID.String(),
			EntityName: product.Name,
			Details:    string(details),
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
		s.log.WithError(err).WithField("sku", req.SKU).Error("product creation rolled back")
		return nil, fmt.Errorf("%w: please try again", ErrTransaction)
	}

	if entry != nil {
		s.ledger.Publish(ctx, entry)
	}

	res := &ProductResponse{Product: *product}
	if row, err := s.inventoryRepo.GetRow(ctx, product.ID); err == nil {
		item := toItem(*row)
		res.Inventory = &item
	}
	return res, nil
}

func (s *productService) ListProducts(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	products, total, err := s.productRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, total, nil
}
