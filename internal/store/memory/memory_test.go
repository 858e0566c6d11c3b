package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts/backend/internal/domain"
	"autoparts/backend/internal/store"
)

func newProduct(partNumber string, name string, qty int) domain.Product {
	return domain.Product{
		PartNumber:    partNumber,
		Name:          name,
		Quantity:      qty,
		MinimumStock:  2,
		PurchasePrice: decimal.NewFromInt(5),
		RetailPrice:   decimal.NewFromInt(10),
	}
}

func TestCreateProductAssignsIdentityAndActivates(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.CreateProduct(ctx, newProduct("BP-100", "Brake Pad", 5))
	require.NoError(t, err)
	b, err := s.CreateProduct(ctx, newProduct("BP-100", "Brake Pad", 5))
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.IsActive)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestGetProductReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, newProduct("OF-1", "Oil Filter", 3))
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := s.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oil Filter", again.Name)

	_, err = s.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeactivateProductIsIdempotentAndHidesFromListings(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, newProduct("WB-18", "Wiper Blade", 4))
	require.NoError(t, err)

	first, err := s.DeactivateProduct(ctx, created.ID)
	require.NoError(t, err)
	second, err := s.DeactivateProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, first.IsActive)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	active, err := s.ListProducts(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := s.ListProducts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got, err := s.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = s.UpdateProduct(ctx, *got)
	assert.ErrorIs(t, err, store.ErrInactive)

	_, err = s.DeactivateProduct(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchProductsIsCaseInsensitiveAndKeepsInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	pad, _ := s.CreateProduct(ctx, newProduct("BP-100", "Brake Pad", 5))
	disc, _ := s.CreateProduct(ctx, newProduct("BD-200", "Brake Disc", 5))
	gone, _ := s.CreateProduct(ctx, newProduct("BH-300", "Brake Hose", 5))
	_, _ = s.CreateProduct(ctx, newProduct("OF-1", "Oil Filter", 5))
	_, err := s.DeactivateProduct(ctx, gone.ID)
	require.NoError(t, err)

	found, err := s.SearchProducts(ctx, "bRaKe")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, pad.ID, found[0].ID)
	assert.Equal(t, disc.ID, found[1].ID)

	byPart, err := s.SearchProducts(ctx, "bd-2")
	require.NoError(t, err)
	require.Len(t, byPart, 1)
	assert.Equal(t, disc.ID, byPart[0].ID)

	all, err := s.SearchProducts(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCreateSaleDecrementsStockAtomically(t *testing.T) {
	s := New()
	ctx := context.Background()

	pad, _ := s.CreateProduct(ctx, newProduct("BP-100", "Brake Pad", 5))
	filter, _ := s.CreateProduct(ctx, newProduct("OF-1", "Oil Filter", 1))

	_, err := s.CreateSale(ctx, domain.Sale{
		Items: []domain.SaleItem{
			{ProductID: pad.ID, Quantity: 2},
			{ProductID: filter.ID, Quantity: 2},
		},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	after, _ := s.GetProduct(ctx, pad.ID)
	assert.Equal(t, 5, after.Quantity, "failed sale must not touch stock")
	sales, _ := s.ListSales(ctx)
	assert.Empty(t, sales)

	sale, err := s.CreateSale(ctx, domain.Sale{
		InvoiceNumber: "INV-1",
		Items: []domain.SaleItem{
			{ProductID: pad.ID, Quantity: 2},
			{ProductID: filter.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sale.ID)
	assert.False(t, sale.SaleDate.IsZero())
	for _, item := range sale.Items {
		assert.NotEmpty(t, item.ID)
	}

	after, _ = s.GetProduct(ctx, pad.ID)
	assert.Equal(t, 3, after.Quantity)
	after, _ = s.GetProduct(ctx, filter.ID)
	assert.Equal(t, 0, after.Quantity)
}

func TestCreateSaleAggregatesRepeatedProductLines(t *testing.T) {
	s := New()
	ctx := context.Background()
	pad, _ := s.CreateProduct(ctx, newProduct("BP-100", "Brake Pad", 3))

	_, err := s.CreateSale(ctx, domain.Sale{
		Items: []domain.SaleItem{
			{ProductID: pad.ID, Quantity: 2},
			{ProductID: pad.ID, Quantity: 2},
		},
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestCreateSaleRejectsUnknownAndInactiveProducts(t *testing.T) {
	s := New()
	ctx := context.Background()
	pad, _ := s.CreateProduct(ctx, newProduct("BP-100", "Brake Pad", 3))

	_, err := s.CreateSale(ctx, domain.Sale{Items: []domain.SaleItem{{ProductID: "missing", Quantity: 1}}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, _ = s.DeactivateProduct(ctx, pad.ID)
	_, err = s.CreateSale(ctx, domain.Sale{Items: []domain.SaleItem{{ProductID: pad.ID, Quantity: 1}}})
	assert.ErrorIs(t, err, store.ErrInactive)

	_, err = s.CreateSale(ctx, domain.Sale{})
	var verr *store.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreateSaleUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return fixed })
	ctx := context.Background()
	pad, _ := s.CreateProduct(ctx, newProduct("BP-100", "Brake Pad", 3))

	sale, err := s.CreateSale(ctx, domain.Sale{Items: []domain.SaleItem{{ProductID: pad.ID, Quantity: 1}}})
	require.NoError(t, err)
	assert.True(t, fixed.Equal(sale.SaleDate))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	s := New()
	ctx := context.Background()
	pad, _ := s.CreateProduct(ctx, newProduct("BP-100", "Brake Pad", 10))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateSale(ctx, domain.Sale{Items: []domain.SaleItem{{ProductID: pad.ID, Quantity: 1}}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	after, _ := s.GetProduct(ctx, pad.ID)
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0, after.Quantity)
}

func TestSupplierLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateSupplier(ctx, domain.Supplier{Name: "Nusantara Parts"})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	created.Phone = "+62 21 555"
	updated, err := s.UpdateSupplier(ctx, *created)
	require.NoError(t, err)
	assert.Equal(t, "+62 21 555", updated.Phone)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	_, err = s.DeactivateSupplier(ctx, created.ID)
	require.NoError(t, err)
	active, _ := s.ListSuppliers(ctx, false)
	assert.Empty(t, active)

	_, err = s.UpdateSupplier(ctx, domain.Supplier{ID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDraftLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	draft, err := s.CreateDraft(ctx, domain.SaleDraft{PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)
	assert.NotNil(t, draft.Lines)

	draft.Lines = append(draft.Lines, domain.DraftLine{ID: "l1", ProductID: "p1", Quantity: 1})
	saved, err := s.SaveDraft(ctx, *draft)
	require.NoError(t, err)
	assert.Len(t, saved.Lines, 1)

	require.NoError(t, s.DeleteDraft(ctx, draft.ID))
	_, err = s.GetDraft(ctx, draft.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDraft(ctx, draft.ID), store.ErrNotFound)
}

func TestListAuditLogsNewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, action := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{Action: action}))
	}

	logs, err := s.ListAuditLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "third", logs[0].Action)
	assert.Equal(t, "second", logs[1].Action)
}

func TestNewSeededHasLowStockPart(t *testing.T) {
	s := NewSeeded()
	products, err := s.ListProducts(context.Background(), false)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	low := 0
	for _, p := range products {
		if p.IsLowStock() {
			low++
		}
	}
	assert.Positive(t, low)
}
