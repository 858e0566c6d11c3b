package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autoparts/backend/internal/domain"
	"autoparts/backend/internal/draft"
	"autoparts/backend/internal/invoice"
	"autoparts/backend/internal/store"
	"autoparts/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	numberer := invoice.NewNumberer(&invoice.LocalSequence{}, "INV", time.UTC)
	return New(repo, numberer, zap.NewNop(), WithLocation(time.UTC)), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin"})
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func mustProduct(t *testing.T, svc *Service, req domain.ProductCreateRequest) domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(adminCtx(), req)
	require.NoError(t, err)
	return p
}

func TestBrakePadBelowMinimumAppearsInLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	pad := mustProduct(t, svc, domain.ProductCreateRequest{
		Name:         "Brake Pad",
		PartNumber:   "BP-100",
		Quantity:     5,
		MinimumStock: 10,
		RetailPrice:  d("29.99"),
	})
	mustProduct(t, svc, domain.ProductCreateRequest{
		Name:         "Oil Filter",
		PartNumber:   "OF-1",
		Quantity:     50,
		MinimumStock: 10,
		RetailPrice:  d("9.50"),
	})

	low, err := svc.LowStockProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, pad.ID, low[0].ID)
}

func TestCreateProductNormalisesAndValidates(t *testing.T) {
	svc, _ := newTestService(t)

	p := mustProduct(t, svc, domain.ProductCreateRequest{
		Name:        "  Spark Plug ",
		PartNumber:  " sp-ik20 ",
		RetailPrice: d("95000"),
	})
	assert.Equal(t, "SP-IK20", p.PartNumber)
	assert.Equal(t, "Spark Plug", p.Name)
	assert.True(t, p.IsActive)

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:        " ",
		PartNumber:  "X-1",
		Quantity:    -1,
		RetailPrice: d("-0.01"),
	})
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "quantity")
	assert.Contains(t, verr.Fields, "retail_price")
}

func TestCreateProductRequiresActiveSupplier(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-1", SupplierID: "sup_missing"})
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "supplier_id")

	sup, err := svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Name: "Nusantara Parts"})
	require.NoError(t, err)
	p, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-1", SupplierID: sup.ID})
	require.NoError(t, err)

	detail, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nusantara Parts", detail.SupplierName)
	assert.True(t, detail.SupplierFound)

	require.NoError(t, svc.DeleteSupplier(ctx, sup.ID))
	_, err = svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-2", SupplierID: sup.ID})
	require.ErrorAs(t, err, &verr)

	// Existing references survive supplier deactivation.
	detail, err = svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, sup.ID, detail.SupplierID)
}

func TestProductWithUnresolvableSupplierRendersPlaceholder(t *testing.T) {
	svc, repo := newTestService(t)
	created, err := repo.CreateProduct(context.Background(), domain.Product{Name: "Hose", PartNumber: "H-1", SupplierID: "sup_gone"})
	require.NoError(t, err)

	detail, err := svc.GetProduct(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, MissingSupplierName, detail.SupplierName)
	assert.False(t, detail.SupplierFound)

	list, err := svc.ListProducts(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, MissingSupplierName, list[0].SupplierName)
}

func TestUpdateProductMergesPartialFields(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-1", Quantity: 3, RetailPrice: d("10")})

	qty := 8
	price := d("12.50")
	updated, err := svc.UpdateProduct(adminCtx(), p.ID, domain.ProductUpdateRequest{Quantity: &qty, RetailPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "Pad", updated.Name)
	assert.Equal(t, 8, updated.Quantity)
	assert.Equal(t, "12.5", updated.RetailPrice.String())

	empty := "  "
	_, err = svc.UpdateProduct(adminCtx(), p.ID, domain.ProductUpdateRequest{Name: &empty})
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.UpdateProduct(adminCtx(), "prd_missing", domain.ProductUpdateRequest{Quantity: &qty})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchIsCaseInsensitiveAndExcludesDeletedProducts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	live := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Brake Pad", PartNumber: "BP-100"})
	gone := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Brake Pad Old", PartNumber: "BP-100"})
	mustProduct(t, svc, domain.ProductCreateRequest{Name: "Oil Filter", PartNumber: "OF-1"})
	require.NoError(t, svc.DeleteProduct(ctx, gone.ID))

	found, err := svc.SearchProducts(ctx, "bp-100")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, live.ID, found[0].ID)

	listed, err := svc.ListProducts(ctx, "")
	require.NoError(t, err)
	for _, p := range listed {
		assert.NotEqual(t, gone.ID, p.ID)
	}

	// Deleted products stay addressable by id.
	detail, err := svc.GetProduct(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, detail.IsActive)
}

func TestCreateSaleComputesTotalsAndDecrementsStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminCtx()
	a := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Part A", PartNumber: "A-1", Quantity: 10, RetailPrice: d("10")})
	b := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Part B", PartNumber: "B-1", Quantity: 10, RetailPrice: d("15")})

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		CustomerName: "Budi",
		Items: []domain.SaleItemInput{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 1, Discount: d("5")},
		},
		Discount:      d("2"),
		Tax:           d("1"),
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	assert.Equal(t, "30", sale.TotalAmount.String())
	assert.Equal(t, "29", sale.FinalAmount.String())
	assert.Equal(t, domain.PaymentCash, sale.PaymentMethod)
	assert.True(t, strings.HasPrefix(sale.InvoiceNumber, "INV-"))
	require.Len(t, sale.Items, 2)
	assert.Equal(t, "Part A", sale.Items[0].ProductName)
	assert.Equal(t, "20", sale.Items[0].TotalPrice.String())
	assert.Equal(t, "10", sale.Items[1].TotalPrice.String())

	after, err := repo.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, after.Quantity)

	today, err := svc.TodaySales(ctx)
	require.NoError(t, err)
	assert.Equal(t, "29", today.String())
}

func TestSaleSnapshotSurvivesProductDeletion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	p := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Wiper", PartNumber: "WB-18", Quantity: 3, RetailPrice: d("50")})

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 1}},
		PaymentMethod: domain.PaymentCard,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, p.ID))

	got, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.Items[0].ProductID)
	assert.Equal(t, "Wiper", got.Items[0].ProductName)
	assert.Equal(t, "WB-18", got.Items[0].PartNumber)
}

func TestCreateSaleRejections(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	p := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-1", Quantity: 1, RetailPrice: d("10")})

	var verr *store.ValidationError

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{PaymentMethod: domain.PaymentCash})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 1}},
		PaymentMethod: "Cheque",
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "payment_method")

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 0}},
		PaymentMethod: domain.PaymentCash,
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].quantity")

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 1, Discount: d("11")}},
		PaymentMethod: domain.PaymentCash,
	})
	require.ErrorAs(t, err, &verr)

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 1}},
		Discount:      d("10.01"),
		PaymentMethod: domain.PaymentCash,
	})
	require.ErrorAs(t, err, &verr)

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 2}},
		PaymentMethod: domain.PaymentCash,
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemInput{{ProductID: "prd_missing", Quantity: 1}},
		PaymentMethod: domain.PaymentCash,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	sales, err := svc.ListSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestSaleTotalsPropertyOverRandomItems(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	rng := rand.New(rand.NewPCG(42, 1))

	products := make([]domain.Product, 0, 8)
	for i := 0; i < 8; i++ {
		products = append(products, mustProduct(t, svc, domain.ProductCreateRequest{
			Name:        "Part " + strconv.Itoa(i),
			PartNumber:  "P-" + strconv.Itoa(i),
			Quantity:    100000,
			RetailPrice: decimal.New(int64(100+rng.IntN(100000)), -2),
		}))
	}

	for round := 0; round < 100; round++ {
		var items []domain.SaleItemInput
		for i := 0; i < 1+rng.IntN(5); i++ {
			p := products[rng.IntN(len(products))]
			items = append(items, domain.SaleItemInput{
				ProductID: p.ID,
				Quantity:  1 + rng.IntN(5),
				Discount:  decimal.New(int64(rng.IntN(100)), -2),
			})
		}
		sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
			Items:         items,
			Discount:      decimal.New(int64(rng.IntN(100)), -2),
			Tax:           decimal.New(int64(rng.IntN(1000)), -2),
			PaymentMethod: domain.PaymentTransfer,
		})
		require.NoError(t, err, "round %d", round)

		sum := decimal.Zero
		for _, item := range sale.Items {
			require.True(t, item.TotalPrice.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.Discount)))
			sum = sum.Add(item.TotalPrice)
		}
		require.True(t, sale.TotalAmount.Equal(sum), "round %d subtotal", round)
		require.True(t, sale.FinalAmount.Equal(sale.TotalAmount.Sub(sale.Discount).Add(sale.Tax)), "round %d final", round)
	}
}

func TestInvoiceNumbersAreUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	p := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-1", Quantity: 50, RetailPrice: d("1")})

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
			Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 1}},
			PaymentMethod: domain.PaymentCash,
		})
		require.NoError(t, err)
		require.False(t, seen[sale.InvoiceNumber], "duplicate %s", sale.InvoiceNumber)
		seen[sale.InvoiceNumber] = true
	}

	sales, err := svc.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 20)
	assert.False(t, sales[0].SaleDate.Before(sales[19].SaleDate))
}

func TestDraftFlowByTermAndSubmit(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := adminCtx()
	a := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Brake Pad", PartNumber: "BP-100", Quantity: 10, RetailPrice: d("10")})
	mustProduct(t, svc, domain.ProductCreateRequest{Name: "Brake Disc", PartNumber: "BD-200", Quantity: 10, RetailPrice: d("15")})

	sale, err := svc.CreateDraft(ctx, domain.DraftCreateRequest{CustomerName: "Budi"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCash, sale.PaymentMethod)

	_, err = svc.AddDraftItem(ctx, sale.ID, domain.DraftItemRequest{Term: "brake"})
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr, "ambiguous term must not auto-add")

	_, err = svc.AddDraftItem(ctx, sale.ID, domain.DraftItemRequest{Term: "b"})
	require.ErrorAs(t, err, &verr)

	_, err = svc.AddDraftItem(ctx, sale.ID, domain.DraftItemRequest{Term: "zzz"})
	require.ErrorIs(t, err, store.ErrNotFound)

	sale, err = svc.AddDraftItem(ctx, sale.ID, domain.DraftItemRequest{Term: "bp-100"})
	require.NoError(t, err)
	sale, err = svc.AddDraftItem(ctx, sale.ID, domain.DraftItemRequest{ProductID: a.ID})
	require.NoError(t, err)
	require.Len(t, sale.Lines, 1)
	assert.Equal(t, 2, sale.Lines[0].Quantity)

	discount := d("1")
	tax := d("0.5")
	sale, err = svc.UpdateDraft(ctx, sale.ID, domain.DraftUpdateRequest{Discount: &discount, Tax: &tax})
	require.NoError(t, err)
	assert.Equal(t, "19.5", sale.FinalAmount.String())

	created, err := svc.SubmitDraft(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "19.5", created.FinalAmount.String())
	assert.Equal(t, "Budi", created.CustomerName)

	_, err = svc.GetDraft(ctx, sale.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	after, _ := repo.GetProduct(ctx, a.ID)
	assert.Equal(t, 8, after.Quantity)
}

func TestSubmitEmptyDraftKeepsIt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()

	sale, err := svc.CreateDraft(ctx, domain.DraftCreateRequest{CustomerName: "Sari"})
	require.NoError(t, err)

	_, err = svc.SubmitDraft(ctx, sale.ID)
	require.True(t, errors.Is(err, draft.ErrEmpty))

	kept, err := svc.GetDraft(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sari", kept.CustomerName)

	sales, _ := svc.ListSales(ctx)
	assert.Empty(t, sales)
}

func TestDraftLineEditing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminCtx()
	p := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-1", Quantity: 10, RetailPrice: d("4")})

	sale, err := svc.CreateDraft(ctx, domain.DraftCreateRequest{})
	require.NoError(t, err)
	sale, err = svc.AddDraftItem(ctx, sale.ID, domain.DraftItemRequest{ProductID: p.ID})
	require.NoError(t, err)
	lineID := sale.Lines[0].ID

	qty := 3
	discount := d("2")
	sale, err = svc.UpdateDraftLine(ctx, sale.ID, lineID, domain.DraftLineUpdateRequest{Quantity: &qty, Discount: &discount})
	require.NoError(t, err)
	assert.Equal(t, "10", sale.Subtotal.String())

	zero := 0
	_, err = svc.UpdateDraftLine(ctx, sale.ID, lineID, domain.DraftLineUpdateRequest{Quantity: &zero})
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.UpdateDraftLine(ctx, sale.ID, "line_missing", domain.DraftLineUpdateRequest{Quantity: &qty})
	assert.ErrorIs(t, err, draft.ErrLineNotFound)

	sale, err = svc.RemoveDraftLine(ctx, sale.ID, lineID)
	require.NoError(t, err)
	assert.Empty(t, sale.Lines)

	require.NoError(t, svc.DiscardDraft(ctx, sale.ID))
	assert.ErrorIs(t, svc.DiscardDraft(ctx, sale.ID), store.ErrNotFound)
}

func TestSalesReportAndDashboard(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	repo := memory.NewWithClock(func() time.Time { return now })
	svc := New(repo, nil, zap.NewNop(), WithLocation(time.UTC), WithClock(func() time.Time { return now }))
	ctx := adminCtx()

	p := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-1", Quantity: 4, MinimumStock: 2, RetailPrice: d("10")})
	for _, method := range []domain.PaymentMethod{domain.PaymentCash, domain.PaymentCard} {
		_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
			Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 1}},
			PaymentMethod: method,
		})
		require.NoError(t, err)
	}

	report, err := svc.SalesReport(ctx, "2024-05-10", "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Summary.Transactions)
	assert.Equal(t, "20", report.Summary.TotalSales.String())
	assert.Equal(t, "10", report.Summary.AverageSale.String())

	empty, err := svc.SalesReport(ctx, "2024-05-11", "")
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr, "to defaults to today, before from")
	assert.Empty(t, empty.Sales)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20", stats.TodaySales.String())
	assert.Equal(t, "20", stats.MonthlySales.String())
	assert.Equal(t, 1, stats.ActiveProducts)
	assert.Equal(t, 1, stats.LowStockCount)

	logs, err := svc.ListAuditLogs(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "sale_create", logs[0].Action)
	assert.Equal(t, "admin", logs[0].ActorUsername)
}

func TestSaleDateAndInvoiceDateFollowServiceClock(t *testing.T) {
	now := time.Date(2024, 5, 9, 23, 30, 0, 0, time.UTC)
	wib := time.FixedZone("WIB", 7*3600)
	svc := New(memory.New(), nil, zap.NewNop(), WithLocation(wib), WithClock(func() time.Time { return now }))
	ctx := adminCtx()

	p := mustProduct(t, svc, domain.ProductCreateRequest{Name: "Pad", PartNumber: "P-1", Quantity: 4, RetailPrice: d("10")})
	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemInput{{ProductID: p.ID, Quantity: 1}},
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	assert.True(t, now.Equal(sale.SaleDate), "sale date = %s", sale.SaleDate)
	assert.Equal(t, "INV-20240510-000001", sale.InvoiceNumber)

	today, err := svc.TodaySales(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10", today.String())
}
