// Package report renders sales reports and receipts for download or print.
package report

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"autoparts/backend/internal/domain"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Filename returns a download name such as "sales-report-2024-05-01_2024-05-31.csv".
func Filename(report domain.SalesReport, ext string) string {
	return fmt.Sprintf("sales-report-%s_%s.%s", report.From.Format(dateLayout), report.To.Format(dateLayout), ext)
}

// CSV writes a summary section followed by one row per sale.
func CSV(w io.Writer, report domain.SalesReport) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "from", report.From.Format(dateTimeLayout)},
		{"summary", "to", report.To.Format(dateTimeLayout)},
		{"summary", "transactions", strconv.FormatInt(report.Summary.Transactions, 10)},
		{"summary", "total_sales", money(report.Summary.TotalSales)},
		{"summary", "average_sale", money(report.Summary.AverageSale)},
		{"summary", "total_discount", money(report.Summary.TotalDiscount)},
		{"summary", "total_tax", money(report.Summary.TotalTax)},
	}
	for _, payment := range report.Summary.ByPayment {
		rows = append(rows,
			[]string{"payment", string(payment.PaymentMethod) + "_transactions", strconv.FormatInt(payment.Transactions, 10)},
			[]string{"payment", string(payment.PaymentMethod) + "_total", money(payment.Total)},
		)
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}

	if err := cw.Write([]string{}); err != nil {
		return err
	}
	rows = [][]string{{"invoice_number", "sale_date", "customer", "items", "total_amount", "discount", "tax", "final_amount", "payment_method"}}
	for _, sale := range report.Sales {
		rows = append(rows, []string{
			sale.InvoiceNumber,
			sale.SaleDate.In(report.From.Location()).Format(dateTimeLayout),
			sale.CustomerName,
			strconv.Itoa(len(sale.Items)),
			money(sale.TotalAmount),
			money(sale.Discount),
			money(sale.Tax),
			money(sale.FinalAmount),
			string(sale.PaymentMethod),
		})
	}
	return cw.WriteAll(rows)
}

var htmlTmpl = template.Must(template.New("sales-report").Funcs(template.FuncMap{
	"money": money,
	"date":  func(r domain.SalesReport) string { return r.From.Format(dateLayout) + " - " + r.To.Format(dateLayout) },
	"local": func(r domain.SalesReport, s domain.Sale) string {
		return s.SaleDate.In(r.From.Location()).Format(dateTimeLayout)
	},
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Sales Report {{date .}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Sales Report {{date .}}</h2>
  <p>Transactions: {{.Summary.Transactions}}</p>
  <p>Total: {{money .Summary.TotalSales}} | Average: {{money .Summary.AverageSale}} | Discount: {{money .Summary.TotalDiscount}} | Tax: {{money .Summary.TotalTax}}</p>

  <h3>By Payment</h3>
  <table>
    <thead><tr><th>Payment</th><th>Transactions</th><th>Total</th></tr></thead>
    <tbody>{{range .Summary.ByPayment}}<tr><td>{{.PaymentMethod}}</td><td class="num">{{.Transactions}}</td><td class="num">{{money .Total}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Sales</h3>
  <table>
    <thead><tr><th>Invoice</th><th>Date</th><th>Customer</th><th>Payment</th><th>Final</th></tr></thead>
    <tbody>{{$r := .}}{{range .Sales}}<tr><td>{{.InvoiceNumber}}</td><td>{{local $r .}}</td><td>{{.CustomerName}}</td><td>{{.PaymentMethod}}</td><td class="num">{{money .FinalAmount}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

// HTML writes a printable page. User-supplied text is escaped by html/template.
func HTML(w io.Writer, report domain.SalesReport) error {
	return htmlTmpl.Execute(w, report)
}
