// Package draft composes a sale before it is committed.
package draft

import (
	"errors"

	"github.com/shopspring/decimal"

	"autoparts/backend/internal/domain"
	"autoparts/backend/internal/xid"
)

var (
	ErrEmpty           = errors.New("sale has no line items")
	ErrLineNotFound    = errors.New("draft line not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNegativeAmount  = errors.New("amount must not be negative")
)

// Draft edits a domain.SaleDraft in place and keeps its totals current.
type Draft struct {
	sale   *domain.SaleDraft
	lineID func() string
}

func Edit(sale *domain.SaleDraft) *Draft {
	if sale.Lines == nil {
		sale.Lines = []domain.DraftLine{}
	}
	d := &Draft{sale: sale, lineID: func() string { return xid.New("line") }}
	d.recalculate()
	return d
}

func (d *Draft) Sale() *domain.SaleDraft {
	return d.sale
}

// AddProduct increments the existing line for the product, or appends a new
// line with quantity 1 priced at the product's retail price.
func (d *Draft) AddProduct(product domain.Product) domain.DraftLine {
	for i := range d.sale.Lines {
		if d.sale.Lines[i].ProductID == product.ID {
			d.sale.Lines[i].Quantity++
			d.updateLine(i)
			return d.sale.Lines[i]
		}
	}

	line := domain.DraftLine{
		ID:          d.lineID(),
		ProductID:   product.ID,
		ProductName: product.Name,
		PartNumber:  product.PartNumber,
		Quantity:    1,
		UnitPrice:   product.RetailPrice,
		Discount:    decimal.Zero,
	}
	d.sale.Lines = append(d.sale.Lines, line)
	d.updateLine(len(d.sale.Lines) - 1)
	return d.sale.Lines[len(d.sale.Lines)-1]
}

func (d *Draft) SetQuantity(lineID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	idx, err := d.find(lineID)
	if err != nil {
		return err
	}
	d.sale.Lines[idx].Quantity = quantity
	d.updateLine(idx)
	return nil
}

func (d *Draft) SetLineDiscount(lineID string, discount decimal.Decimal) error {
	if discount.IsNegative() {
		return ErrNegativeAmount
	}
	idx, err := d.find(lineID)
	if err != nil {
		return err
	}
	d.sale.Lines[idx].Discount = discount
	d.updateLine(idx)
	return nil
}

func (d *Draft) RemoveLine(lineID string) error {
	idx, err := d.find(lineID)
	if err != nil {
		return err
	}
	d.sale.Lines = append(d.sale.Lines[:idx], d.sale.Lines[idx+1:]...)
	d.recalculate()
	return nil
}

func (d *Draft) SetDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() {
		return ErrNegativeAmount
	}
	d.sale.Discount = discount
	d.recalculate()
	return nil
}

func (d *Draft) SetTax(tax decimal.Decimal) error {
	if tax.IsNegative() {
		return ErrNegativeAmount
	}
	d.sale.Tax = tax
	d.recalculate()
	return nil
}

func (d *Draft) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range d.sale.Lines {
		subtotal = subtotal.Add(line.TotalPrice)
	}
	return subtotal
}

// FinalAmount is subtotal - discount + tax.
func (d *Draft) FinalAmount() decimal.Decimal {
	return d.Subtotal().Sub(d.sale.Discount).Add(d.sale.Tax)
}

// Validate reports ErrEmpty for a draft without lines. The draft is left as is.
func (d *Draft) Validate() error {
	if len(d.sale.Lines) == 0 {
		return ErrEmpty
	}
	return nil
}

// SaleRequest converts the draft into the request used to record a sale.
func (d *Draft) SaleRequest() domain.SaleCreateRequest {
	items := make([]domain.SaleItemInput, 0, len(d.sale.Lines))
	for _, line := range d.sale.Lines {
		unitPrice := line.UnitPrice
		items = append(items, domain.SaleItemInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: &unitPrice,
			Discount:  line.Discount,
		})
	}
	method := d.sale.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}
	return domain.SaleCreateRequest{
		CustomerName:  d.sale.CustomerName,
		Items:         items,
		Discount:      d.sale.Discount,
		Tax:           d.sale.Tax,
		PaymentMethod: method,
	}
}

func (d *Draft) find(lineID string) (int, error) {
	for i, line := range d.sale.Lines {
		if line.ID == lineID {
			return i, nil
		}
	}
	return -1, ErrLineNotFound
}

func (d *Draft) updateLine(idx int) {
	line := &d.sale.Lines[idx]
	line.TotalPrice = domain.LineTotal(line.Quantity, line.UnitPrice, line.Discount)
	d.recalculate()
}

func (d *Draft) recalculate() {
	d.sale.Subtotal = d.Subtotal()
	d.sale.FinalAmount = d.FinalAmount()
}
