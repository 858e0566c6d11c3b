// Package metrics derives dashboard and report figures from product and sale
// snapshots. Every function is pure and recomputes from its inputs.
package metrics

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"autoparts/backend/internal/domain"
)

var ErrInvalidRange = errors.New("invalid date range")

var paymentOrder = []domain.PaymentMethod{domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer}

// LowStock returns active products at or below their minimum stock, in input order.
func LowStock(products []domain.Product) []domain.Product {
	result := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.IsLowStock() {
			result = append(result, p)
		}
	}
	return result
}

func ActiveCount(products []domain.Product) int {
	count := 0
	for _, p := range products {
		if p.IsActive {
			count++
		}
	}
	return count
}

// TodaySales sums FinalAmount of sales dated on now's calendar day in now's location.
func TodaySales(sales []domain.Sale, now time.Time) decimal.Decimal {
	start := startOfDay(now)
	return sumFinal(SalesByDateRange(sales, start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)))
}

// MonthlySales sums FinalAmount of sales dated in now's calendar month.
func MonthlySales(sales []domain.Sale, now time.Time) decimal.Decimal {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return sumFinal(SalesByDateRange(sales, start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)))
}

// SalesByDateRange keeps sales with start <= SaleDate <= end.
func SalesByDateRange(sales []domain.Sale, start time.Time, end time.Time) []domain.Sale {
	result := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale.SaleDate.Before(start) || sale.SaleDate.After(end) {
			continue
		}
		result = append(result, sale)
	}
	return result
}

// DefaultRangeDays is how far back a report reaches when "from" is blank.
const DefaultRangeDays = 30

// ParseRangeBounds parses report bounds in loc. A date-only "to" covers the
// whole day through 23:59:59. A blank "from" is DefaultRangeDays before today
// and a blank "to" is the end of today.
func ParseRangeBounds(from string, to string, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := startOfDay(now.In(loc))

	start := today.AddDate(0, 0, -DefaultRangeDays)
	if strings.TrimSpace(from) != "" {
		parsed, _, err := parseBound(from, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from: %v", ErrInvalidRange, err)
		}
		start = parsed
	}

	end := endOfDay(today)
	if strings.TrimSpace(to) != "" {
		parsed, dateOnly, err := parseBound(to, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to: %v", ErrInvalidRange, err)
		}
		end = parsed
		if dateOnly {
			end = endOfDay(parsed)
		}
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", ErrInvalidRange)
	}
	return start, end, nil
}

func parseBound(raw string, loc *time.Location) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, true, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, loc); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("unsupported date %q", raw)
	}
	return t, false, nil
}

// Summarize totals a set of sales. AverageSale is rounded to two decimals.
func Summarize(sales []domain.Sale) domain.SalesSummary {
	summary := domain.SalesSummary{
		TotalSales:    decimal.Zero,
		AverageSale:   decimal.Zero,
		TotalDiscount: decimal.Zero,
		TotalTax:      decimal.Zero,
		ByPayment:     make([]domain.PaymentBreakdown, 0, len(paymentOrder)),
	}

	byPayment := make(map[domain.PaymentMethod]*domain.PaymentBreakdown, len(paymentOrder))
	extra := make([]domain.PaymentMethod, 0)
	for _, sale := range sales {
		summary.TotalSales = summary.TotalSales.Add(sale.FinalAmount)
		summary.TotalDiscount = summary.TotalDiscount.Add(sale.Discount)
		summary.TotalTax = summary.TotalTax.Add(sale.Tax)
		summary.Transactions++

		bucket, ok := byPayment[sale.PaymentMethod]
		if !ok {
			bucket = &domain.PaymentBreakdown{PaymentMethod: sale.PaymentMethod, Total: decimal.Zero}
			byPayment[sale.PaymentMethod] = bucket
			if !sale.PaymentMethod.Valid() {
				extra = append(extra, sale.PaymentMethod)
			}
		}
		bucket.Transactions++
		bucket.Total = bucket.Total.Add(sale.FinalAmount)
	}

	if summary.Transactions > 0 {
		summary.AverageSale = summary.TotalSales.Div(decimal.NewFromInt(summary.Transactions)).Round(2)
	}
	for _, method := range slices.Concat(paymentOrder, extra) {
		if bucket, ok := byPayment[method]; ok {
			summary.ByPayment = append(summary.ByPayment, *bucket)
		}
	}
	return summary
}

// Dashboard builds the landing figures from current products and sales.
func Dashboard(products []domain.Product, sales []domain.Sale, now time.Time) domain.DashboardStats {
	low := LowStock(products)
	return domain.DashboardStats{
		TodaySales:     TodaySales(sales, now),
		MonthlySales:   MonthlySales(sales, now),
		ActiveProducts: ActiveCount(products),
		LowStockCount:  len(low),
		LowStock:       low,
		GeneratedAt:    now,
	}
}

func sumFinal(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.FinalAmount)
	}
	return total
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
