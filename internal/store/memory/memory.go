package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"autoparts/backend/internal/domain"
	"autoparts/backend/internal/store"
	"autoparts/backend/internal/xid"
)

// Store keeps every record in process memory behind a single RWMutex.
// Collections are kept in insertion order; reads return copies.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	products      []domain.Product
	productIndex  map[string]int
	suppliers     []domain.Supplier
	supplierIndex map[string]int
	sales         []domain.Sale
	saleIndex     map[string]int
	drafts        map[string]domain.SaleDraft
	auditLogs     []domain.AuditLog
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock is New with an injectable clock for sale and audit timestamps.
func NewWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:           now,
		products:      make([]domain.Product, 0, 64),
		productIndex:  make(map[string]int),
		suppliers:     make([]domain.Supplier, 0, 16),
		supplierIndex: make(map[string]int),
		sales:         make([]domain.Sale, 0, 128),
		saleIndex:     make(map[string]int),
		drafts:        make(map[string]domain.SaleDraft),
		auditLogs:     make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded returns a store with a small demo catalogue for local runs.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()

	suppliers := []domain.Supplier{
		{Name: "Nusantara Parts Supply", ContactPerson: "Dewi", Phone: "+62 21 555 0101", PaymentTerms: "Net 30"},
		{Name: "Bengkel Jaya Distribusi", ContactPerson: "Agus", Email: "sales@bengkeljaya.example", PaymentTerms: "COD"},
	}
	supplierIDs := make([]string, 0, len(suppliers))
	for _, sup := range suppliers {
		created, _ := s.CreateSupplier(ctx, sup)
		supplierIDs = append(supplierIDs, created.ID)
	}

	products := []domain.Product{
		{PartNumber: "BP-100", Name: "Brake Pad Front", CompatibleVehicles: "Avanza 2015-2021, Xenia", Location: "A1", Quantity: 40, MinimumStock: 10, PurchasePrice: dec("85000"), WholesalePrice: dec("110000"), RetailPrice: dec("125000"), SupplierID: supplierIDs[0]},
		{PartNumber: "OF-220", Name: "Oil Filter", CompatibleVehicles: "Innova, Fortuner", Location: "B2", Quantity: 60, MinimumStock: 20, PurchasePrice: dec("28000"), WholesalePrice: dec("36000"), RetailPrice: dec("42000"), SupplierID: supplierIDs[0]},
		{PartNumber: "SP-IK20", Name: "Spark Plug Iridium", CompatibleVehicles: "Jazz, Brio, City", Location: "C1", Quantity: 8, MinimumStock: 12, PurchasePrice: dec("65000"), WholesalePrice: dec("80000"), RetailPrice: dec("95000"), SupplierID: supplierIDs[1]},
		{PartNumber: "WB-18", Name: "Wiper Blade 18in", Location: "D4", Quantity: 25, MinimumStock: 5, PurchasePrice: dec("30000"), WholesalePrice: dec("40000"), RetailPrice: dec("50000")},
		{PartNumber: "AF-330", Name: "Air Filter", CompatibleVehicles: "Avanza, Rush", Location: "B3", Quantity: 15, MinimumStock: 15, PurchasePrice: dec("45000"), WholesalePrice: dec("58000"), RetailPrice: dec("69000"), SupplierID: supplierIDs[1]},
	}
	for _, p := range products {
		_, _ = s.CreateProduct(ctx, p)
	}
	return s
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *Store) ListProducts(_ context.Context, includeInactive bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !includeInactive && !p.IsActive {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// SearchProducts matches the term case-insensitively against name, part
// number and barcode of active products.
func (s *Store) SearchProducts(_ context.Context, term string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(term))
	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if !p.IsActive {
			continue
		}
		if needle == "" || productMatches(p, needle) {
			products = append(products, p)
		}
	}
	return products, nil
}

func productMatches(p domain.Product, needle string) bool {
	for _, field := range []string{p.Name, p.PartNumber, p.Barcode} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Quantity < 0 || product.MinimumStock < 0 {
		return nil, store.NewValidationError("quantity", "must not be negative")
	}

	now := s.now().UTC()
	product.ID = xid.New("prd")
	product.IsActive = true
	product.CreatedAt = now
	product.UpdatedAt = now

	s.productIndex[product.ID] = len(s.products)
	s.products = append(s.products, product)
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.productIndex[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	product := s.products[idx]
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.productIndex[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	current := s.products[idx]
	if !current.IsActive {
		return nil, store.ErrInactive
	}
	if product.Quantity < 0 || product.MinimumStock < 0 {
		return nil, store.NewValidationError("quantity", "must not be negative")
	}

	product.IsActive = true
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = s.now().UTC()
	s.products[idx] = product
	updated := product
	return &updated, nil
}

// DeactivateProduct soft-deletes the product. Repeating it is a no-op.
func (s *Store) DeactivateProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.productIndex[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if s.products[idx].IsActive {
		s.products[idx].IsActive = false
		s.products[idx].UpdatedAt = s.now().UTC()
	}
	product := s.products[idx]
	return &product, nil
}

func (s *Store) ListSuppliers(_ context.Context, includeInactive bool) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		if !includeInactive && !sup.IsActive {
			continue
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	supplier.ID = xid.New("sup")
	supplier.IsActive = true
	supplier.CreatedAt = now
	supplier.UpdatedAt = now

	s.supplierIndex[supplier.ID] = len(s.suppliers)
	s.suppliers = append(s.suppliers, supplier)
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.supplierIndex[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	supplier := s.suppliers[idx]
	return &supplier, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.supplierIndex[supplier.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	current := s.suppliers[idx]
	if !current.IsActive {
		return nil, store.ErrInactive
	}

	supplier.IsActive = true
	supplier.CreatedAt = current.CreatedAt
	supplier.UpdatedAt = s.now().UTC()
	s.suppliers[idx] = supplier
	updated := supplier
	return &updated, nil
}

func (s *Store) DeactivateSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.supplierIndex[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if s.suppliers[idx].IsActive {
		s.suppliers[idx].IsActive = false
		s.suppliers[idx].UpdatedAt = s.now().UTC()
	}
	supplier := s.suppliers[idx]
	return &supplier, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.NewValidationError("items", "at least one line item is required")
	}

	// Lines for the same product are checked against stock together.
	required := make(map[string]int, len(sale.Items))
	order := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.NewValidationError("items.quantity", "must be at least 1")
		}
		idx, exists := s.productIndex[item.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if !s.products[idx].IsActive {
			return nil, store.ErrInactive
		}
		if _, seen := required[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		required[item.ProductID] += item.Quantity
	}
	for _, productID := range order {
		if s.products[s.productIndex[productID]].Quantity < required[productID] {
			return nil, store.ErrInsufficientStock
		}
	}

	now := s.now().UTC()
	for _, productID := range order {
		idx := s.productIndex[productID]
		s.products[idx].Quantity -= required[productID]
		s.products[idx].UpdatedAt = now
	}

	sale.ID = xid.New("sale")
	if sale.SaleDate.IsZero() {
		sale.SaleDate = now
	}
	sale.Items = cloneSaleItems(sale.Items)
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("line")
		}
	}

	s.saleIndex[sale.ID] = len(s.sales)
	s.sales = append(s.sales, sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.saleIndex[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	sale := cloneSale(s.sales[idx])
	return &sale, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}
	return sales, nil
}

func (s *Store) CreateDraft(_ context.Context, draft domain.SaleDraft) (*domain.SaleDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	draft.ID = xid.New("draft")
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.Lines = slices.Clone(draft.Lines)
	if draft.Lines == nil {
		draft.Lines = []domain.DraftLine{}
	}

	s.drafts[draft.ID] = draft
	created := cloneDraft(draft)
	return &created, nil
}

func (s *Store) GetDraft(_ context.Context, id string) (*domain.SaleDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	draft, exists := s.drafts[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := cloneDraft(draft)
	return &copied, nil
}

func (s *Store) SaveDraft(_ context.Context, draft domain.SaleDraft) (*domain.SaleDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.drafts[draft.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	draft.CreatedAt = current.CreatedAt
	draft.UpdatedAt = s.now().UTC()
	draft = cloneDraft(draft)
	s.drafts[draft.ID] = draft
	saved := cloneDraft(draft)
	return &saved, nil
}

func (s *Store) DeleteDraft(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.drafts[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.drafts, id)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

// ListAuditLogs returns the newest entries first.
func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, min(len(s.auditLogs), max(limit, 0)))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, s.auditLogs[i])
	}
	return result, nil
}

func cloneSaleItems(src []domain.SaleItem) []domain.SaleItem {
	if src == nil {
		return []domain.SaleItem{}
	}
	return slices.Clone(src)
}

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	dst.Items = cloneSaleItems(src.Items)
	return dst
}

func cloneDraft(src domain.SaleDraft) domain.SaleDraft {
	dst := src
	dst.Lines = slices.Clone(src.Lines)
	if dst.Lines == nil {
		dst.Lines = []domain.DraftLine{}
	}
	return dst
}
