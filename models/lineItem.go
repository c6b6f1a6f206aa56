package models

import (
	"os"

	"github.com/shopspring/decimal"
)

// NewDocumentItem is one submitted service line of an invoice or quote payload.
type NewDocumentItem struct {
	ServiceId   int             `json:"service_id"`
	ServiceName string          `json:"servicename"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitprice"`
	IsTaxed     bool            `json:"istaxed"`
	Quantity    decimal.Decimal `json:"quantity"`
}

var defaultTaxRate = decimal.NewFromFloat(0.0875)

// TaxRate is the fixed proportional rate applied to taxed lines.
// Overridable via TAX_RATE (e.g. "0.0875").
func TaxRate() decimal.Decimal {
	v := os.Getenv("TAX_RATE")
	if v == "" {
		return defaultTaxRate
	}
	rate, err := decimal.NewFromString(v)
	if err != nil || rate.IsNegative() {
		return defaultTaxRate
	}
	return rate
}

// CoerceOrDrop is the named line validation policy: a line is kept iff it has
// a non-empty service name AND a service reference AND, when requirePositiveQty
// (update paths), a positive quantity. Invalid lines are silently dropped, not
// reported. Kept lines are normalized in place: quantity is clamped to a
// minimum of 1 and a negative unit price becomes 0.
func CoerceOrDrop(items []NewDocumentItem, requirePositiveQty bool) []NewDocumentItem {
	valid := make([]NewDocumentItem, 0, len(items))
	one := decimal.NewFromInt(1)
	for _, item := range items {
		if item.ServiceName == "" || item.ServiceId <= 0 {
			continue
		}
		if requirePositiveQty && !item.Quantity.IsPositive() {
			continue
		}
		if item.Quantity.LessThan(one) {
			item.Quantity = one
		}
		if item.UnitPrice.IsNegative() {
			item.UnitPrice = decimal.Zero
		}
		valid = append(valid, item)
	}
	return valid
}

type DocumentTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxTotal decimal.Decimal `json:"tax_total"`
	Total    decimal.Decimal `json:"total_amount"`
}

// extension is the line amount qty x unit price, rounded to cents.
func (item NewDocumentItem) extension() decimal.Decimal {
	return item.Quantity.Mul(item.UnitPrice).Round(2)
}

// lineTax is the tax on a taxed line, rounded to cents per line.
func (item NewDocumentItem) lineTax(rate decimal.Decimal) decimal.Decimal {
	if !item.IsTaxed {
		return decimal.Zero
	}
	return item.Quantity.Mul(item.UnitPrice).Mul(rate).Round(2)
}

// ComputeDocumentTotals sums per-line amounts. Each line's extension and tax
// are rounded to 2 places BEFORE summation; totals are never rounded once at
// the end. Callers must pass lines already normalized by CoerceOrDrop.
func ComputeDocumentTotals(items []NewDocumentItem) DocumentTotals {
	rate := TaxRate()
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.extension())
		taxTotal = taxTotal.Add(item.lineTax(rate))
	}
	return DocumentTotals{
		Subtotal: subtotal,
		TaxTotal: taxTotal,
		Total:    subtotal.Add(taxTotal),
	}
}
