package pdf

import (
	"bytes"
	"html/template"
	"time"

	"github.com/allcitylocks/locksmith_backend/models"
	"github.com/shopspring/decimal"
)

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 12px; color: #222; }
h1 { font-size: 20px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border-bottom: 1px solid #ccc; padding: 6px 4px; text-align: left; }
td.amount, th.amount { text-align: right; }
.totals { margin-top: 12px; width: 40%; margin-left: auto; }
.meta { margin-top: 8px; }
</style>
</head>
<body>
<h1>{{.Kind}} #{{.Number}}</h1>
<div class="meta">
<div><strong>{{.CustomerName}}</strong></div>
{{if .CustomerAddress}}<div>{{.CustomerAddress}}</div>{{end}}
<div>Date: {{.Date}}</div>
{{if .DueDate}}<div>Due: {{.DueDate}}</div>{{end}}
{{if .PoNumber}}<div>PO: {{.PoNumber}}</div>{{end}}
{{if .Vin}}<div>VIN: {{.Vin}}</div>{{end}}
{{if .Description}}<div>{{.Description}}</div>{{end}}
</div>
<table>
<tr><th>Service</th><th class="amount">Qty</th><th class="amount">Unit Price</th><th class="amount">Total</th></tr>
{{range .Lines}}
<tr><td>{{.Name}}</td><td class="amount">{{.Quantity}}</td><td class="amount">{{.UnitPrice}}</td><td class="amount">{{.Total}}</td></tr>
{{end}}
</table>
<table class="totals">
<tr><td>Subtotal</td><td class="amount">{{.Subtotal}}</td></tr>
<tr><td>Tax</td><td class="amount">{{.TaxTotal}}</td></tr>
<tr><td><strong>Total</strong></td><td class="amount"><strong>{{.Total}}</strong></td></tr>
</table>
</body>
</html>`

var documentTmpl = template.Must(template.New("document").Parse(documentTemplate))

type documentView struct {
	Kind            string
	Number          int
	CustomerName    string
	CustomerAddress string
	Date            string
	DueDate         string
	PoNumber        string
	Vin             string
	Description     string
	Lines           []lineView
	Subtotal        string
	TaxTotal        string
	Total           string
}

type lineView struct {
	Name      string
	Quantity  string
	UnitPrice string
	Total     string
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func formatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// BuildInvoiceHTML assembles a complete, normalized invoice aggregate into
// printable markup. The caller is responsible for passing an aggregate with
// derived fields populated and line items normalized.
func BuildInvoiceHTML(invoice *models.Invoice) (string, error) {
	view := documentView{
		Kind:        "Invoice",
		Number:      invoice.ID,
		Date:        formatDate(invoice.InvoiceDate),
		PoNumber:    invoice.PoNumber,
		Vin:         invoice.Vin,
		Description: invoice.Description,
		Subtotal:    formatMoney(invoice.Subtotal),
		TaxTotal:    formatMoney(invoice.TaxTotal),
		Total:       formatMoney(invoice.TotalAmount),
	}
	if invoice.DueDate != nil {
		view.DueDate = formatDate(*invoice.DueDate)
	}
	if invoice.Customer != nil {
		view.CustomerName = invoice.Customer.Name
		view.CustomerAddress = invoice.Customer.Address
	}
	for _, d := range invoice.Details {
		view.Lines = append(view.Lines, lineView{
			Name:      d.ServiceName,
			Quantity:  d.Quantity.String(),
			UnitPrice: formatMoney(d.UnitPrice),
			Total:     formatMoney(d.TotalPrice),
		})
	}
	return renderView(view)
}

func BuildQuoteHTML(quote *models.Quote) (string, error) {
	view := documentView{
		Kind:        "Quote",
		Number:      quote.ID,
		Date:        formatDate(quote.QuoteDate),
		PoNumber:    quote.PoNumber,
		Vin:         quote.Vin,
		Description: quote.Description,
		Subtotal:    formatMoney(quote.Subtotal),
		TaxTotal:    formatMoney(quote.TaxTotal),
		Total:       formatMoney(quote.TotalAmount),
	}
	if quote.Customer != nil {
		view.CustomerName = quote.Customer.Name
		view.CustomerAddress = quote.Customer.Address
	}
	for _, d := range quote.Details {
		view.Lines = append(view.Lines, lineView{
			Name:      d.ServiceName,
			Quantity:  d.Quantity.String(),
			UnitPrice: formatMoney(d.UnitPrice),
			Total:     formatMoney(d.TotalPrice),
		})
	}
	return renderView(view)
}

func renderView(view documentView) (string, error) {
	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
