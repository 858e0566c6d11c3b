package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"autoparts/backend/internal/domain"
)

// PDF writes the sales report as an A4 document.
func PDF(w io.Writer, report domain.SalesReport) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Sales Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("%s to %s", report.From.Format(dateTimeLayout), report.To.Format(dateTimeLayout)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	labelW := contentW * 0.7
	valueW := contentW - labelW
	summary := [][2]string{
		{"Transactions", fmt.Sprintf("%d", report.Summary.Transactions)},
		{"Total sales", money(report.Summary.TotalSales)},
		{"Average sale", money(report.Summary.AverageSale)},
		{"Total discount", money(report.Summary.TotalDiscount)},
		{"Total tax", money(report.Summary.TotalTax)},
	}
	for _, payment := range report.Summary.ByPayment {
		summary = append(summary, [2]string{
			fmt.Sprintf("%s (%d)", payment.PaymentMethod, payment.Transactions),
			money(payment.Total),
		})
	}
	for _, row := range summary {
		pdf.CellFormat(labelW, 5, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 5, row[1], "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	cols := []float64{contentW * 0.26, contentW * 0.2, contentW * 0.26, contentW * 0.12, contentW * 0.16}
	pdf.SetFont("Helvetica", "B", 9)
	for i, title := range []string{"Invoice", "Date", "Customer", "Payment", "Final"} {
		align := "L"
		if i == len(cols)-1 {
			align = "R"
		}
		pdf.CellFormat(cols[i], 6, title, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	loc := report.From.Location()
	for _, sale := range report.Sales {
		pdf.CellFormat(cols[0], 5, sale.InvoiceNumber, "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], 5, sale.SaleDate.In(loc).Format(dateTimeLayout), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2], 5, tr(truncate(sale.CustomerName, 28)), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[3], 5, string(sale.PaymentMethod), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[4], 5, money(sale.FinalAmount), "", 1, "R", false, 0, "")
	}

	return pdf.Output(w)
}

// ReceiptPDF writes a receipt-sized document for a single sale, dated in loc.
func ReceiptPDF(w io.Writer, storeName string, loc *time.Location, sale domain.Sale) error {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: 160},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()
	// Core fonts are cp1252.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	for i, line := range receiptHeader(storeName, loc, sale) {
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(contentW, 7, tr(line), "", 1, "C", false, 0, "")
			pdf.SetFont("Helvetica", "", 8)
			continue
		}
		pdf.CellFormat(contentW, 4, tr(line), "", 1, "C", false, 0, "")
	}
	if sale.CustomerName != "" {
		pdf.CellFormat(contentW, 4, tr("Customer: "+sale.CustomerName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(1)

	col1 := contentW * 0.52
	col2 := contentW * 0.16
	col3 := contentW * 0.32

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Part", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, item := range sale.Items {
		pdf.CellFormat(col1, 5, tr(truncate(item.PartNumber+" "+item.ProductName, 26)), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, money(item.TotalPrice), "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(1)

	pdf.CellFormat(col1+col2, 5, "Subtotal", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 5, money(sale.TotalAmount), "", 1, "R", false, 0, "")
	if !sale.Discount.IsZero() {
		pdf.CellFormat(col1+col2, 5, "Discount", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, "-"+money(sale.Discount), "", 1, "R", false, 0, "")
	}
	if !sale.Tax.IsZero() {
		pdf.CellFormat(col1+col2, 5, "Tax", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, money(sale.Tax), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, money(sale.FinalAmount), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Paid by "+string(sale.PaymentMethod), "", 1, "L", false, 0, "")

	return pdf.Output(w)
}

// receiptHeader returns the store name, invoice number and local sale time.
func receiptHeader(storeName string, loc *time.Location, sale domain.Sale) []string {
	if loc == nil {
		loc = time.UTC
	}
	return []string{storeName, sale.InvoiceNumber, sale.SaleDate.In(loc).Format(dateTimeLayout)}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "."
}
