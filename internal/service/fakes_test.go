package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"labinventory/internal/events"
	"labinventory/internal/metrics"
	"labinventory/internal/model"
	"labinventory/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// memStore is an in-memory database. Transactions run one at a time, which
// is what per-row locks give a workload touching a single product, and are
// rolled back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products     map[uuid.UUID]model.Product
	inventories  map[uuid.UUID]model.Inventory
	ledger       []model.StockLedgerEntry
	nextLedgerID uint
	audits       []model.AuditLog
	receipts     map[string]model.GoodsReceipt
	users        map[string]model.User

	failLedger bool
	failUsers  error
	locks      []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		products:    map[uuid.UUID]model.Product{},
		inventories: map[uuid.UUID]model.Inventory{},
		receipts:    map[string]model.GoodsReceipt{},
		users:       map[string]model.User{},
	}
}

type memSnapshot struct {
	products     map[uuid.UUID]model.Product
	inventories  map[uuid.UUID]model.Inventory
	ledger       []model.StockLedgerEntry
	nextLedgerID uint
	audits       []model.AuditLog
	receipts     map[string]model.GoodsReceipt
	users        map[string]model.User
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		products:     copyMap(s.products),
		inventories:  copyMap(s.inventories),
		ledger:       append([]model.StockLedgerEntry(nil), s.ledger...),
		nextLedgerID: s.nextLedgerID,
		audits:       append([]model.AuditLog(nil), s.audits...),
		receipts:     copyMap(s.receipts),
		users:        copyMap(s.users),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.inventories = snap.inventories
	s.ledger = snap.ledger
	s.nextLedgerID = snap.nextLedgerID
	s.audits = snap.audits
	s.receipts = snap.receipts
	s.users = snap.users
}

// seed adds a product with its inventory row and returns the product id
func (s *memStore) seed(name string, stock, min int, price string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.products[id] = model.Product{
		ID:            id,
		SKU:           "SKU-" + strings.ToUpper(name),
		Name:          name,
		UnitPrice:     mustDecimal(price),
		StockQuantity: stock,
	}
	s.inventories[id] = model.Inventory{
		ID:            uuid.New(),
		ProductID:     id,
		StockQuantity: stock,
		MinQuantity:   min,
	}
	return id
}

func (s *memStore) stock(productID uuid.UUID) (inventory int, product int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventories[productID].StockQuantity, s.products[productID].StockQuantity
}

func (s *memStore) entries(productID uuid.UUID) []model.StockLedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StockLedgerEntry
	for _, e := range s.ledger {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

// memTx is the TransactionManager over memStore
type memTx struct{ s *memStore }

func (t memTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	snap := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

type memInventoryRepo struct{ s *memStore }

func (r memInventoryRepo) Create(_ context.Context, inv *model.Inventory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	r.s.inventories[inv.ProductID] = *inv
	return nil
}

func (r memInventoryRepo) FindByProductID(_ context.Context, productID uuid.UUID) (*model.Inventory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.inventories[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &inv, nil
}

func (r memInventoryRepo) FindByProductIDForUpdate(ctx context.Context, productID uuid.UUID) (*model.Inventory, error) {
	r.s.mu.Lock()
	r.s.locks = append(r.s.locks, productID)
	r.s.mu.Unlock()
	return r.FindByProductID(ctx, productID)
}

func (r memInventoryRepo) byID(id uuid.UUID) (uuid.UUID, model.Inventory, bool) {
	for pid, inv := range r.s.inventories {
		if inv.ID == id {
			return pid, inv, true
		}
	}
	return uuid.Nil, model.Inventory{}, false
}

func (r memInventoryRepo) SetStock(_ context.Context, id uuid.UUID, qty int, countedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pid, inv, ok := r.byID(id)
	if !ok {
		return gorm.ErrRecordNotFound
	}
	inv.StockQuantity = qty
	if countedAt != nil {
		inv.LastCountedAt = countedAt
	}
	r.s.inventories[pid] = inv
	return nil
}

func (r memInventoryRepo) UpdateThresholds(_ context.Context, id uuid.UUID, minQty int, reorderPoint *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pid, inv, ok := r.byID(id)
	if !ok {
		return gorm.ErrRecordNotFound
	}
	inv.MinQuantity = minQty
	inv.ReorderPoint = reorderPoint
	r.s.inventories[pid] = inv
	return nil
}

func (r memInventoryRepo) rows() []model.InventoryRow {
	rows := make([]model.InventoryRow, 0, len(r.s.inventories))
	for pid, inv := range r.s.inventories {
		p := r.s.products[pid]
		rows = append(rows, model.InventoryRow{
			ID:            inv.ID,
			ProductID:     pid,
			SKU:           p.SKU,
			Name:          p.Name,
			Category:      p.Category,
			ExpiryDate:    p.ExpiryDate,
			UnitPrice:     p.UnitPrice,
			StockQuantity: inv.StockQuantity,
			MinQuantity:   inv.MinQuantity,
			ReorderPoint:  inv.ReorderPoint,
			LastCountedAt: inv.LastCountedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

func (r memInventoryRepo) List(_ context.Context, page, limit int, search string) ([]model.InventoryRow, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []model.InventoryRow
	for _, row := range r.rows() {
		if search == "" || strings.Contains(strings.ToLower(row.Name), strings.ToLower(search)) {
			matched = append(matched, row)
		}
	}
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []model.InventoryRow{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r memInventoryRepo) ListAll(_ context.Context) ([]model.InventoryRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.rows(), nil
}

func (r memInventoryRepo) GetRow(_ context.Context, productID uuid.UUID) (*model.InventoryRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.rows() {
		if row.ProductID == productID {
			return &row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type memProductRepo struct{ s *memStore }

func (r memProductRepo) Create(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r memProductRepo) FindBySKU(_ context.Context, sku string) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memProductRepo) List(_ context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Product
	for _, p := range r.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r memProductRepo) UpdateStock(_ context.Context, id uuid.UUID, stock int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.StockQuantity = stock
	r.s.products[id] = p
	return nil
}

var errLedgerDown = errors.New("ledger table unavailable")

type memLedgerRepo struct{ s *memStore }

func (r memLedgerRepo) Append(_ context.Context, e *model.StockLedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failLedger {
		return errLedgerDown
	}
	r.s.nextLedgerID++
	e.ID = r.s.nextLedgerID
	e.CreatedAt = time.Now()
	r.s.ledger = append(r.s.ledger, *e)
	return nil
}

func (r memLedgerRepo) ListByProduct(_ context.Context, productID uuid.UUID, page, limit int) ([]model.StockLedgerEntry, int64, error) {
	all := r.s.entries(productID)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

func (r memAuditRepo) List(_ context.Context, page, limit int, action string) ([]model.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.AuditLog
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		if action == "" || r.s.audits[i].Action == action {
			out = append(out, r.s.audits[i])
		}
	}
	return out, int64(len(out)), nil
}

type memReceiptRepo struct{ s *memStore }

func (r memReceiptRepo) Create(_ context.Context, receipt *model.GoodsReceipt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.receipts[receipt.ReceiptCode] = *receipt
	return nil
}

func (r memReceiptRepo) FindByCode(_ context.Context, code string) (*model.GoodsReceipt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rc, ok := r.s.receipts[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &rc, nil
}

func (r memReceiptRepo) List(_ context.Context, page, limit int) ([]model.GoodsReceipt, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.GoodsReceipt
	for _, rc := range r.s.receipts {
		out = append(out, rc)
	}
	return out, int64(len(out)), nil
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID.String()] = *u
	return nil
}

func (r memUserRepo) find(match func(model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failUsers != nil {
		return nil, r.s.failUsers
	}
	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID.String() == id })
}

func (r memUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r memUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r memUserRepo) List(_ context.Context, page, limit int) ([]model.User, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.User
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, int64(len(out)), nil
}

func (r memUserRepo) Update(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.UpdatedAt = time.Now()
	r.s.users[u.ID.String()] = *u
	return nil
}

var (
	_ repository.InventoryRepository = memInventoryRepo{}
	_ repository.ProductRepository   = memProductRepo{}
	_ repository.LedgerRepository    = memLedgerRepo{}
	_ repository.AuditRepository     = memAuditRepo{}
	_ repository.ReceiptRepository   = memReceiptRepo{}
	_ repository.UserRepository      = memUserRepo{}
	_ repository.TransactionManager  = memTx{}
)

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.StockEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.StockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) published() []events.StockEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.StockEvent(nil), p.events...)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fixture wires every service over one memStore
type fixture struct {
	store     *memStore
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	ledger    *StockLedger
	inventory InventoryService
	products  ProductService
	receipts  ReceiptService
}

func newFixture() *fixture {
	s := newMemStore()
	pub := &recordingPublisher{}
	m := metrics.New()
	log := quietLogger()

	inv := memInventoryRepo{s}
	prod := memProductRepo{s}
	led := memLedgerRepo{s}
	audit := memAuditRepo{s}
	tx := memTx{s}

	ledger := NewStockLedger(inv, prod, led, pub, m, log)
	return &fixture{
		store:     s,
		publisher: pub,
		metrics:   m,
		ledger:    ledger,
		inventory: NewInventoryService(inv, led, audit, tx, ledger, log),
		products:  NewProductService(prod, inv, audit, tx, ledger, log),
		receipts:  NewReceiptService(memReceiptRepo{s}, audit, tx, ledger),
	}
}
