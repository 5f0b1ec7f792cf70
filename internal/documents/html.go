package documents

import (
	"bytes"
	"html/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rentfolio/rentfolio/internal/billing"
	"github.com/rentfolio/rentfolio/internal/payments"
)

// FormatAmount renders a money amount with its currency symbol, falling back
// to the raw code for unknown currencies.
func FormatAmount(code string, amount decimal.Decimal) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code + " " + amount.StringFixed(2)
	}
	value, _ := amount.Float64()
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v%.2f", currency.Symbol(unit), value)
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.Number}}</title>
<style>body{font-family:sans-serif;margin:40px}table{width:100%;border-collapse:collapse}
td,th{padding:6px;border-bottom:1px solid #ddd;text-align:left}.total{font-weight:bold}</style>
</head>
<body>
<h1>Invoice {{.Number}}</h1>
<p>Period {{.PeriodStart}} &ndash; {{.PeriodEnd}}<br>Due {{.DueDate}}</p>
<table>
<tr><th>Concept</th><th>Amount</th></tr>
<tr><td>Rent and expenses</td><td>{{.Subtotal}}</td></tr>
{{if .LateFee}}<tr><td>Late fee</td><td>{{.LateFee}}</td></tr>{{end}}
{{if .Adjustments}}<tr><td>Adjustments</td><td>{{.Adjustments}}</td></tr>{{end}}
<tr class="total"><td>Total</td><td>{{.Total}}</td></tr>
</table>
</body>
</html>`))

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Receipt {{.Number}}</title>
<style>body{font-family:sans-serif;margin:40px}table{width:100%;border-collapse:collapse}
td,th{padding:6px;border-bottom:1px solid #ddd;text-align:left}.total{font-weight:bold}</style>
</head>
<body>
<h1>Receipt {{.Number}}</h1>
<p>Date {{.Date}}<br>Method {{.Method}}</p>
{{if .Items}}<table>
<tr><th>Item</th><th>Amount</th></tr>
{{range .Items}}<tr><td>{{.Description}}</td><td>{{.Amount}}</td></tr>{{end}}
</table>{{end}}
<p class="total">Amount received: {{.Amount}}</p>
</body>
</html>`))

type invoiceView struct {
	Number      string
	PeriodStart string
	PeriodEnd   string
	DueDate     string
	Subtotal    string
	LateFee     string
	Adjustments string
	Total       string
}

type receiptItemView struct {
	Description string
	Amount      string
}

type receiptView struct {
	Number string
	Date   string
	Method string
	Amount string
	Items  []receiptItemView
}

const dateLayout = "2006-01-02"

// BuildInvoiceHTML renders the invoice PDF source.
func BuildInvoiceHTML(inv *billing.Invoice) (string, error) {
	view := invoiceView{
		Number:      inv.InvoiceNumber,
		PeriodStart: inv.PeriodStart.Format(dateLayout),
		PeriodEnd:   inv.PeriodEnd.Format(dateLayout),
		DueDate:     inv.DueDate.Format(dateLayout),
		Subtotal:    FormatAmount(inv.Currency, inv.Subtotal),
		Total:       FormatAmount(inv.Currency, inv.Total),
	}
	if inv.LateFee.IsPositive() {
		view.LateFee = FormatAmount(inv.Currency, inv.LateFee)
	}
	if !inv.Adjustments.IsZero() {
		view.Adjustments = FormatAmount(inv.Currency, inv.Adjustments)
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildReceiptHTML renders the receipt PDF source for a confirmed payment.
func BuildReceiptHTML(p *payments.Payment) (string, error) {
	number := ""
	if p.ReceiptNumber != nil {
		number = *p.ReceiptNumber
	}
	view := receiptView{
		Number: number,
		Date:   p.PaymentDate.Format(dateLayout),
		Method: p.Method,
		Amount: FormatAmount(p.Currency, p.Amount),
	}
	for i := range p.Items {
		it := &p.Items[i]
		view.Items = append(view.Items, receiptItemView{
			Description: it.Description,
			Amount:      FormatAmount(p.Currency, it.Signed()),
		})
	}
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
