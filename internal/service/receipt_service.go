package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"labinventory/internal/model"
	"labinventory/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ReceiptLineRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	LotNumber string          `json:"lot_number"`
}

type CreateReceiptRequest struct {
	ReceiptCode string               `json:"receipt_code" binding:"required"`
	Supplier    string               `json:"supplier"`
	Note        string               `json:"note"`
	ReceivedAt  *time.Time           `json:"received_at"`
	Lines       []ReceiptLineRequest `json:"lines" binding:"required,dive"`
}

type ReceiptService interface {
	CreateReceipt(ctx context.Context, actorID string, req CreateReceiptRequest) (*model.GoodsReceipt, error)
	ListReceipts(ctx context.Context, page, limit int) ([]model.GoodsReceipt, int64, error)
}

type receiptService struct {
	receiptRepo repository.ReceiptRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	ledger      *StockLedger
	now         func() time.Time
}

func NewReceiptService(
	receiptRepo repository.ReceiptRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	ledger *StockLedger,
) ReceiptService {
	return &receiptService{
		receiptRepo: receiptRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		ledger:      ledger,
		now:         time.Now,
	}
}

// CreateReceipt records a goods receipt and books every line as a RECEIPT
// movement. Either the whole receipt posts or nothing does.
func (s *receiptService) CreateReceipt(ctx context.Context, actorID string, req CreateReceiptRequest) (*model.GoodsReceipt, error) {
	actor := parseActor(actorID)
	if actor == nil {
		return nil, fmt.Errorf("%w: a goods receipt must be attributed to a user", ErrUnauthorized)
	}
	code := strings.TrimSpace(req.ReceiptCode)
	if code == "" {
		return nil, invalidInput("receipt_code is required")
	}
	if len(req.Lines) == 0 {
		return nil, invalidInput("a goods receipt needs at least one line")
	}

	lines := make([]model.GoodsReceiptLine, 0, len(req.Lines))
	for i, l := range req.Lines {
		pid, err := parseProductID(l.ProductID)
		if err != nil {
			return nil, err
		}
		if l.Quantity <= 0 {
			return nil, invalidInput("line %d: quantity must be positive", i+1)
		}
		if l.Quantity > MaxStock {
			return nil, invalidInput("line %d: quantity must not exceed %d", i+1, MaxStock)
		}
		if l.UnitCost.IsNegative() {
			return nil, invalidInput("line %d: unit_cost must not be negative", i+1)
		}
		lines = append(lines, model.GoodsReceiptLine{
			ProductID: pid,
			Quantity:  l.Quantity,
			UnitCost:  l.UnitCost,
			LotNumber: l.LotNumber,
		})
	}
	// Lock rows in a fixed order so two receipts touching the same products cannot deadlock.
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})

	receivedAt := s.now()
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}
	receipt := &model.GoodsReceipt{
		ID:          uuid.New(),
		ReceiptCode: code,
		Supplier:    req.Supplier,
		Note:        req.Note,
		ReceivedAt:  receivedAt,
		ReceivedBy:  actor,
		Lines:       lines,
	}

	started := s.now()
	var entries []*model.StockLedgerEntry
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.receiptRepo.FindByCode(txCtx, code); err == nil {
			return conflict("receipt %q already exists", code)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := s.receiptRepo.Create(txCtx, receipt); err != nil {
			return fmt.Errorf("failed to create receipt: %w", err)
		}

		for _, line := range receipt.Lines {
			entry, err := s.ledger.Apply(txCtx, StockMutation{
				ProductID:  line.ProductID,
				SourceType: model.SourceReceipt,
				SourceID:   receipt.ID.String(),
				ActorID:    actor,
				Memo:       "received " + code,
				Delta:      line.Quantity,
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		details, _ := json.Marshal(req)
		audit := &model.AuditLog{
			UserID:     actor,
			Action:     model.ActionCreateGoodsReceipt,
			EntityID:   receipt.ID.String(),
			EntityName: code,
			Details:    string(details),
		}
		if err := s.auditRepo.Log(txCtx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})

	err = s.ledger.finish(model.SourceReceipt, started, err, logrus.Fields{"receipt_code": code})
	if err != nil {
		return nil, err
	}

	s.ledger.Publish(ctx, entries...)
	return receipt, nil
}

func (s *receiptService) ListReceipts(ctx context.Context, page, limit int) ([]model.GoodsReceipt, int64, error) {
	receipts, total, err := s.receiptRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	if receipts == nil {
		receipts = []model.GoodsReceipt{}
	}
	return receipts, total, nil
}
