package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "Cash"
	PaymentCard     PaymentMethod = "Card"
	PaymentTransfer PaymentMethod = "Transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	default:
		return false
	}
}

// Product is an inventory record. Optional attributes are empty strings when absent.
// SupplierID is a weak reference: the supplier may be missing or deactivated.
type Product struct {
	ID                 string          `json:"id"`
	PartNumber         string          `json:"part_number"`
	Barcode            string          `json:"barcode,omitempty"`
	Name               string          `json:"name"`
	CompatibleVehicles string          `json:"compatible_vehicles,omitempty"`
	Location           string          `json:"location,omitempty"`
	Quantity           int             `json:"quantity"`
	MinimumStock       int             `json:"minimum_stock"`
	PurchasePrice      decimal.Decimal `json:"purchase_price"`
	WholesalePrice     decimal.Decimal `json:"wholesale_price"`
	RetailPrice        decimal.Decimal `json:"retail_price"`
	SupplierID         string          `json:"supplier_id,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsLowStock reports whether an active product sits at or below its minimum stock.
func (p Product) IsLowStock() bool {
	return p.IsActive && p.Quantity <= p.MinimumStock
}

type ProductCreateRequest struct {
	PartNumber         string          `json:"part_number" validate:"required,max=64"`
	Barcode            string          `json:"barcode" validate:"max=64"`
	Name               string          `json:"name" validate:"required,max=200"`
	CompatibleVehicles string          `json:"compatible_vehicles" validate:"max=500"`
	Location           string          `json:"location" validate:"max=100"`
	Quantity           int             `json:"quantity" validate:"gte=0"`
	MinimumStock       int             `json:"minimum_stock" validate:"gte=0"`
	PurchasePrice      decimal.Decimal `json:"purchase_price" validate:"min=0"`
	WholesalePrice     decimal.Decimal `json:"wholesale_price" validate:"min=0"`
	RetailPrice        decimal.Decimal `json:"retail_price" validate:"min=0"`
	SupplierID         string          `json:"supplier_id"`
	Notes              string          `json:"notes" validate:"max=2000"`
}

// ProductUpdateRequest is a partial update: nil fields are left untouched.
type ProductUpdateRequest struct {
	PartNumber         *string          `json:"part_number,omitempty" validate:"omitempty,min=1,max=64"`
	Barcode            *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Name               *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	CompatibleVehicles *string          `json:"compatible_vehicles,omitempty" validate:"omitempty,max=500"`
	Location           *string          `json:"location,omitempty" validate:"omitempty,max=100"`
	Quantity           *int             `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	MinimumStock       *int             `json:"minimum_stock,omitempty" validate:"omitempty,gte=0"`
	PurchasePrice      *decimal.Decimal `json:"purchase_price,omitempty" validate:"omitempty,min=0"`
	WholesalePrice     *decimal.Decimal `json:"wholesale_price,omitempty" validate:"omitempty,min=0"`
	RetailPrice        *decimal.Decimal `json:"retail_price,omitempty" validate:"omitempty,min=0"`
	SupplierID         *string          `json:"supplier_id,omitempty"`
	Notes              *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ProductDetail is a product with its supplier reference resolved for display.
type ProductDetail struct {
	Product
	SupplierName  string `json:"supplier_name"`
	SupplierFound bool   `json:"supplier_found"`
}

type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address,omitempty"`
	PaymentTerms  string    `json:"payment_terms,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type SupplierCreateRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=200"`
	Phone         string `json:"phone" validate:"max=50"`
	Email         string `json:"email" validate:"omitempty,email,max=200"`
	Address       string `json:"address" validate:"max=500"`
	PaymentTerms  string `json:"payment_terms" validate:"max=200"`
	Notes         string `json:"notes" validate:"max=2000"`
}

type SupplierUpdateRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	ContactPerson *string `json:"contact_person,omitempty" validate:"omitempty,max=200"`
	Phone         *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Email         *string `json:"email,omitempty" validate:"omitempty,email,max=200"`
	Address       *string `json:"address,omitempty" validate:"omitempty,max=500"`
	PaymentTerms  *string `json:"payment_terms,omitempty" validate:"omitempty,max=200"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// SaleItem is a snapshot of a product line at sale time. ProductID is a weak
// reference; ProductName and PartNumber are never recomputed.
type SaleItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	PartNumber  string          `json:"part_number"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// LineTotal returns quantity * unitPrice - discount.
func LineTotal(quantity int, unitPrice decimal.Decimal, discount decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Sub(discount)
}

// Sale is immutable once created.
type Sale struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	SaleDate      time.Time       `json:"sale_date"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Items         []SaleItem      `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
}

// SaleTotals returns the subtotal of the given lines and the final amount
// after the sale-level discount and tax.
func SaleTotals(items []SaleItem, discount decimal.Decimal, tax decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	return subtotal, subtotal.Sub(discount).Add(tax)
}

type SaleItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
	// UnitPrice is only set by a submitted draft, which keeps the price seen
	// when the line was added. Requests over the API are priced from the catalogue.
	UnitPrice *decimal.Decimal `json:"-" validate:"omitempty,min=0"`
	Discount  decimal.Decimal  `json:"discount" validate:"min=0"`
}

type SaleCreateRequest struct {
	CustomerName  string          `json:"customer_name" validate:"max=200"`
	Items         []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	Discount      decimal.Decimal `json:"discount" validate:"min=0"`
	Tax           decimal.Decimal `json:"tax" validate:"min=0"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required,oneof=Cash Card Transfer"`
}

type DraftLine struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	PartNumber  string          `json:"part_number"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// SaleDraft is an in-progress sale that has not been committed yet.
type SaleDraft struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Lines         []DraftLine     `json:"lines"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type DraftCreateRequest struct {
	CustomerName  string        `json:"customer_name" validate:"max=200"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"omitempty,oneof=Cash Card Transfer"`
}

type DraftUpdateRequest struct {
	CustomerName  *string          `json:"customer_name,omitempty" validate:"omitempty,max=200"`
	Discount      *decimal.Decimal `json:"discount,omitempty" validate:"omitempty,min=0"`
	Tax           *decimal.Decimal `json:"tax,omitempty" validate:"omitempty,min=0"`
	PaymentMethod *PaymentMethod   `json:"payment_method,omitempty" validate:"omitempty,oneof=Cash Card Transfer"`
}

// DraftItemRequest adds a product to a draft either by id or by a search term
// that must resolve to exactly one active product.
type DraftItemRequest struct {
	ProductID string `json:"product_id" validate:"max=64"`
	Term      string `json:"term" validate:"max=100"`
}

type DraftLineUpdateRequest struct {
	Quantity *int             `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	Discount *decimal.Decimal `json:"discount,omitempty" validate:"omitempty,min=0"`
}

type PaymentBreakdown struct {
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Transactions  int64           `json:"transactions"`
	Total         decimal.Decimal `json:"total"`
}

type SalesSummary struct {
	TotalSales    decimal.Decimal    `json:"total_sales"`
	Transactions  int64              `json:"transactions"`
	AverageSale   decimal.Decimal    `json:"average_sale"`
	TotalDiscount decimal.Decimal    `json:"total_discount"`
	TotalTax      decimal.Decimal    `json:"total_tax"`
	ByPayment     []PaymentBreakdown `json:"by_payment"`
}

type SalesReport struct {
	From    time.Time    `json:"from"`
	To      time.Time    `json:"to"`
	Summary SalesSummary `json:"summary"`
	Sales   []Sale       `json:"sales"`
}

type DashboardStats struct {
	TodaySales     decimal.Decimal `json:"today_sales"`
	MonthlySales   decimal.Decimal `json:"monthly_sales"`
	ActiveProducts int             `json:"active_products"`
	LowStockCount  int             `json:"low_stock_count"`
	LowStock       []Product       `json:"low_stock"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
