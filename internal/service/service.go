package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autoparts/backend/internal/domain"
	"autoparts/backend/internal/invoice"
	"autoparts/backend/internal/metrics"
	"autoparts/backend/internal/store"
	"autoparts/backend/internal/xid"
)

// MissingSupplierName is shown wherever a product's supplier cannot be resolved.
const MissingSupplierName = "-"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	invoices *invoice.Numberer
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Service)

// WithClock overrides the clock used for calendar-day metrics.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the store timezone used to decide what "today" means.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func New(repo store.Repository, invoices *invoice.Numberer, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:     repo,
		invoices: invoices,
		validate: newValidator(),
		log:      logger.Named("service"),
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.invoices == nil {
		s.invoices = invoice.NewNumberer(&invoice.LocalSequence{}, "INV", s.loc, invoice.WithClock(s.now))
	}
	return s
}

// ListProducts returns active products; a non-blank term narrows them by search.
func (s *Service) ListProducts(ctx context.Context, term string) ([]domain.ProductDetail, error) {
	var (
		products []domain.Product
		err      error
	)
	if strings.TrimSpace(term) == "" {
		products, err = s.repo.ListProducts(ctx, false)
	} else {
		products, err = s.repo.SearchProducts(ctx, term)
	}
	if err != nil {
		return nil, err
	}

	suppliers, err := s.supplierNames(ctx)
	if err != nil {
		return nil, err
	}
	details := make([]domain.ProductDetail, 0, len(products))
	for _, p := range products {
		details = append(details, withSupplier(p, suppliers))
	}
	return details, nil
}

func (s *Service) SearchProducts(ctx context.Context, term string) ([]domain.Product, error) {
	return s.repo.SearchProducts(ctx, term)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.ProductDetail, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ProductDetail{}, err
	}
	detail := domain.ProductDetail{Product: *product, SupplierName: MissingSupplierName}
	if supplier, found := s.ResolveSupplier(ctx, *product); found {
		detail.SupplierName = supplier.Name
		detail.SupplierFound = true
	}
	return detail, nil
}

// ResolveSupplier follows the product's weak supplier reference. found is
// false when the product has no supplier or the id no longer resolves.
func (s *Service) ResolveSupplier(ctx context.Context, product domain.Product) (domain.Supplier, bool) {
	if product.SupplierID == "" {
		return domain.Supplier{}, false
	}
	supplier, err := s.repo.GetSupplier(ctx, product.SupplierID)
	if err != nil {
		return domain.Supplier{}, false
	}
	return *supplier, true
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.PartNumber = strings.ToUpper(strings.TrimSpace(req.PartNumber))
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Name = strings.TrimSpace(req.Name)
	req.CompatibleVehicles = strings.TrimSpace(req.CompatibleVehicles)
	req.Location = strings.TrimSpace(req.Location)
	req.SupplierID = strings.TrimSpace(req.SupplierID)
	req.Notes = strings.TrimSpace(req.Notes)

	if err := s.validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	if err := s.requireActiveSupplier(ctx, req.SupplierID); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		PartNumber:         req.PartNumber,
		Barcode:            req.Barcode,
		Name:               req.Name,
		CompatibleVehicles: req.CompatibleVehicles,
		Location:           req.Location,
		Quantity:           req.Quantity,
		MinimumStock:       req.MinimumStock,
		PurchasePrice:      req.PurchasePrice,
		WholesalePrice:     req.WholesalePrice,
		RetailPrice:        req.RetailPrice,
		SupplierID:         req.SupplierID,
		Notes:              req.Notes,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("part=%s,qty=%d,retail=%s", created.PartNumber, created.Quantity, created.RetailPrice.StringFixed(2)))
	return *created, nil
}

// UpdateProduct merges the non-nil fields of req into the stored product.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	if req.PartNumber != nil {
		upper := strings.ToUpper(strings.TrimSpace(*req.PartNumber))
		req.PartNumber = &upper
	}
	trimPtr(req.Barcode, req.Name, req.CompatibleVehicles, req.Location, req.SupplierID, req.Notes)
	if err := s.validateStruct(req); err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	assignString(&updated.PartNumber, req.PartNumber)
	assignString(&updated.Barcode, req.Barcode)
	assignString(&updated.Name, req.Name)
	assignString(&updated.CompatibleVehicles, req.CompatibleVehicles)
	assignString(&updated.Location, req.Location)
	assignString(&updated.Notes, req.Notes)
	if req.Quantity != nil {
		updated.Quantity = *req.Quantity
	}
	if req.MinimumStock != nil {
		updated.MinimumStock = *req.MinimumStock
	}
	assignDecimal(&updated.PurchasePrice, req.PurchasePrice)
	assignDecimal(&updated.WholesalePrice, req.WholesalePrice)
	assignDecimal(&updated.RetailPrice, req.RetailPrice)
	if req.SupplierID != nil && *req.SupplierID != existing.SupplierID {
		if err := s.requireActiveSupplier(ctx, *req.SupplierID); err != nil {
			return domain.Product{}, err
		}
		updated.SupplierID = *req.SupplierID
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("part=%s,qty=%d,retail=%s", saved.PartNumber, saved.Quantity, saved.RetailPrice.StringFixed(2)))
	return *saved, nil
}

// DeleteProduct soft-deletes the product; its sales history is untouched.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.repo.DeactivateProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", product.ID, "part="+product.PartNumber)
	return nil
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	return metrics.LowStock(products), nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx, false)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	supplier, err := s.repo.GetSupplier(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Supplier{}, err
	}
	return *supplier, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ContactPerson = strings.TrimSpace(req.ContactPerson)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	req.Address = strings.TrimSpace(req.Address)
	req.PaymentTerms = strings.TrimSpace(req.PaymentTerms)
	req.Notes = strings.TrimSpace(req.Notes)

	if err := s.validateStruct(req); err != nil {
		return domain.Supplier{}, err
	}

	saved, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
		PaymentTerms:  req.PaymentTerms,
		Notes:         req.Notes,
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_create", "supplier", saved.ID, "name="+saved.Name)
	return *saved, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierUpdateRequest) (domain.Supplier, error) {
	existing, err := s.repo.GetSupplier(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Supplier{}, err
	}

	trimPtr(req.Name, req.ContactPerson, req.Phone, req.Email, req.Address, req.PaymentTerms, req.Notes)
	if err := s.validateStruct(req); err != nil {
		return domain.Supplier{}, err
	}

	updated := *existing
	assignString(&updated.Name, req.Name)
	assignString(&updated.ContactPerson, req.ContactPerson)
	assignString(&updated.Phone, req.Phone)
	assignString(&updated.Email, req.Email)
	assignString(&updated.Address, req.Address)
	assignString(&updated.PaymentTerms, req.PaymentTerms)
	assignString(&updated.Notes, req.Notes)

	saved, err := s.repo.UpdateSupplier(ctx, updated)
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_update", "supplier", saved.ID, "name="+saved.Name)
	return *saved, nil
}

// DeleteSupplier soft-deletes the supplier. Products keep their reference.
func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	supplier, err := s.repo.DeactivateSupplier(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	s.logAudit(ctx, "supplier_delete", "supplier", supplier.ID, "name="+supplier.Name)
	return nil
}

// CreateSale prices every line from the catalogue (unless the line carries
// its own unit price), recomputes all totals, assigns the invoice number and
// records the sale together with the stock decrement.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.PaymentMethod = normalizePaymentMethod(req.PaymentMethod)
	for i := range req.Items {
		req.Items[i].ProductID = strings.TrimSpace(req.Items[i].ProductID)
	}
	if err := s.validateStruct(req); err != nil {
		return domain.Sale{}, err
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	for i, input := range req.Items {
		product, err := s.repo.GetProduct(ctx, input.ProductID)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("product %s: %w", input.ProductID, err)
		}
		if !product.IsActive {
			return domain.Sale{}, fmt.Errorf("product %s: %w", input.ProductID, store.ErrInactive)
		}

		unitPrice := product.RetailPrice
		if input.UnitPrice != nil {
			unitPrice = *input.UnitPrice
		}
		total := domain.LineTotal(input.Quantity, unitPrice, input.Discount)
		if total.IsNegative() {
			return domain.Sale{}, store.NewValidationError(fmt.Sprintf("items[%d].discount", i), "exceeds the line amount")
		}
		items = append(items, domain.SaleItem{
			ID:          xid.New("line"),
			ProductID:   product.ID,
			ProductName: product.Name,
			PartNumber:  product.PartNumber,
			Quantity:    input.Quantity,
			UnitPrice:   unitPrice,
			Discount:    input.Discount,
			TotalPrice:  total,
		})
	}

	subtotal, final := domain.SaleTotals(items, req.Discount, req.Tax)
	if final.IsNegative() {
		return domain.Sale{}, store.NewValidationError("discount", "exceeds the sale amount")
	}

	saleDate := s.now().UTC()
	invoiceNumber, err := s.invoices.NextAt(ctx, saleDate)
	if err != nil {
		return domain.Sale{}, err
	}

	created, err := s.repo.CreateSale(ctx, domain.Sale{
		InvoiceNumber: invoiceNumber,
		SaleDate:      saleDate,
		CustomerName:  req.CustomerName,
		Items:         items,
		TotalAmount:   subtotal,
		Discount:      req.Discount,
		Tax:           req.Tax,
		FinalAmount:   final,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.log.Info("sale recorded",
		zap.String("sale_id", created.ID),
		zap.String("invoice", created.InvoiceNumber),
		zap.Int("lines", len(created.Items)),
		zap.String("final_amount", created.FinalAmount.StringFixed(2)),
	)
	s.logAudit(ctx, "sale_create", "sale", created.ID, fmt.Sprintf("invoice=%s,lines=%d,final=%s,payment=%s", created.InvoiceNumber, len(created.Items), created.FinalAmount.StringFixed(2), created.PaymentMethod))
	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales returns every sale, newest first.
func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(sales)
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return b.SaleDate.Compare(a.SaleDate)
	})
	return sales, nil
}

func (s *Service) SalesByDateRange(ctx context.Context, start time.Time, end time.Time) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.SalesByDateRange(sales, start, end), nil
}

func (s *Service) TodaySales(ctx context.Context) (decimal.Decimal, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return metrics.TodaySales(sales, s.localNow()), nil
}

func (s *Service) MonthlySales(ctx context.Context) (decimal.Decimal, error) {
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return metrics.MonthlySales(sales, s.localNow()), nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return metrics.Dashboard(products, sales, s.localNow()), nil
}

// SalesReport summarises sales between from and to, given as dates or
// datetimes in the store timezone. Blank bounds mean today.
func (s *Service) SalesReport(ctx context.Context, from string, to string) (domain.SalesReport, error) {
	start, end, err := metrics.ParseRangeBounds(from, to, s.loc, s.localNow())
	if err != nil {
		return domain.SalesReport{}, &store.ValidationError{Detail: err.Error(), Fields: map[string]string{"range": err.Error()}}
	}

	sales, err := s.SalesByDateRange(ctx, start, end)
	if err != nil {
		return domain.SalesReport{}, err
	}
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return a.SaleDate.Compare(b.SaleDate)
	})
	return domain.SalesReport{
		From:    start,
		To:      end,
		Summary: metrics.Summarize(sales),
		Sales:   sales,
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) requireActiveSupplier(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	supplier, err := s.repo.GetSupplier(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.NewValidationError("supplier_id", "unknown supplier")
	}
	if err != nil {
		return err
	}
	if !supplier.IsActive {
		return store.NewValidationError("supplier_id", "supplier is inactive")
	}
	return nil
}

func (s *Service) supplierNames(ctx context.Context) (map[string]string, error) {
	suppliers, err := s.repo.ListSuppliers(ctx, true)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(suppliers))
	for _, sup := range suppliers {
		names[sup.ID] = sup.Name
	}
	return names, nil
}

func withSupplier(p domain.Product, names map[string]string) domain.ProductDetail {
	detail := domain.ProductDetail{Product: p, SupplierName: MissingSupplierName}
	if name, ok := names[p.SupplierID]; ok && p.SupplierID != "" {
		detail.SupplierName = name
		detail.SupplierFound = true
	}
	return detail
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

func normalizePaymentMethod(method domain.PaymentMethod) domain.PaymentMethod {
	trimmed := strings.TrimSpace(string(method))
	for _, known := range []domain.PaymentMethod{domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer} {
		if strings.EqualFold(trimmed, string(known)) {
			return known
		}
	}
	return domain.PaymentMethod(trimmed)
}

func trimPtr(values ...*string) {
	for _, v := range values {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}
}

func assignString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func assignDecimal(dst *decimal.Decimal, src *decimal.Decimal) {
	if src != nil {
		*dst = *src
	}
}
