package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"labinventory/internal/events"
	"labinventory/internal/metrics"
	"labinventory/internal/model"
	"labinventory/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxStock is the largest quantity the stock columns hold.
const MaxStock = math.MaxInt32

// StockMutation describes one change to a product's stock. Either Delta is
// applied, or the stock is set to SetTo and the delta derived from it.
type StockMutation struct {
	ProductID  uuid.UUID
	SourceType string
	SourceID   string
	ActorID    *uuid.UUID
	Memo       string
	Delta      int
	SetTo      *int
	CountedAt  *time.Time
}

// StockLedger is the only writer of stock quantities. It keeps
// Inventory.StockQuantity and Product.StockQuantity equal and appends exactly
// one ledger entry per mutation.
type StockLedger struct {
	inventoryRepo repository.InventoryRepository
	productRepo   repository.ProductRepository
	ledgerRepo    repository.LedgerRepository
	publisher     events.Publisher
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewStockLedger(
	inventoryRepo repository.InventoryRepository,
	productRepo repository.ProductRepository,
	ledgerRepo repository.LedgerRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *StockLedger {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &StockLedger{
		inventoryRepo: inventoryRepo,
		productRepo:   productRepo,
		ledgerRepo:    ledgerRepo,
		publisher:     publisher,
		metrics:       m,
		log:           log,
		now:           time.Now,
	}
}

// Apply must be called with a transaction context from RunInTx. It locks the
// product's inventory row, so concurrent mutations of one product serialize.
func (l *StockLedger) Apply(txCtx context.Context, m StockMutation) (*model.StockLedgerEntry, error) {
	inv, err := l.inventoryRepo.FindByProductIDForUpdate(txCtx, m.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("no inventory record for product %s", m.ProductID)
		}
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}

	delta := m.Delta
	if m.SetTo != nil {
		delta = *m.SetTo - inv.StockQuantity
	}
	newQty := inv.StockQuantity + delta
	if newQty < 0 {
		return nil, invalidInput("stock of product %s cannot go below zero (current %d, change %d)", m.ProductID, inv.StockQuantity, delta)
	}
	if newQty > MaxStock {
		return nil, invalidInput("stock of product %s cannot exceed %d (current %d, change %d)", m.ProductID, MaxStock, inv.StockQuantity, delta)
	}

	if err := l.inventoryRepo.SetStock(txCtx, inv.ID, newQty, m.CountedAt); err != nil {
		return nil, fmt.Errorf("failed to update inventory: %w", err)
	}
	if err := l.productRepo.UpdateStock(txCtx, inv.ProductID, newQty); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("product %s not found", m.ProductID)
		}
		return nil, fmt.Errorf("failed to update product stock: %w", err)
	}

	entry := &model.StockLedgerEntry{
		ProductID:  inv.ProductID,
		QtyChange:  delta,
		StockAfter: newQty,
		SourceType: m.SourceType,
		SourceID:   m.SourceID,
		UserID:     m.ActorID,
		Memo:       m.Memo,
	}
	if err := l.ledgerRepo.Append(txCtx, entry); err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return entry, nil
}

// Publish announces committed entries. Call it only after the transaction
// has committed.
func (l *StockLedger) Publish(ctx context.Context, entries ...*model.StockLedgerEntry) {
	for _, e := range entries {
		event := events.StockEvent{
			Event: events.EventInventoryUpdated,
			Data: events.StockData{
				ProductID:     e.ProductID.String(),
				StockQuantity: e.StockAfter,
				QtyChange:     e.QtyChange,
				SourceType:    e.SourceType,
				SourceID:      e.SourceID,
				LedgerEntryID: e.ID,
				OccurredAt:    e.CreatedAt,
			},
		}
		if err := l.publisher.Publish(ctx, event); err != nil {
			l.log.WithError(err).WithField("product_id", event.Data.ProductID).Warn("stock event not delivered")
		}
	}
}

// finish records the outcome of a mutation transaction and converts storage
// failures into ErrTransaction.
func (l *StockLedger) finish(sourceType string, started time.Time, err error, fields logrus.Fields) error {
	elapsed := l.now().Sub(started)
	switch {
	case err == nil:
		l.metrics.RecordStockMutation(sourceType, "ok", elapsed)
		return nil
	case isDomainError(err):
		l.metrics.RecordStockMutation(sourceType, "rejected", elapsed)
		return err
	default:
		l.metrics.RecordStockMutation(sourceType, "error", elapsed)
		l.log.WithError(err).WithFields(fields).WithField("source_type", sourceType).Error("stock transaction rolled back")
		return fmt.Errorf("%w: please try again", ErrTransaction)
	}
}
