package models

import (
	"context"
	"fmt"
	"time"

	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// FinancialSummary aggregates invoices over an optional date range. "Unpaid"
// is the Pending/Overdue subset; PartsTotal is the cross-cutting sum of line
// totals for services flagged as parts, independent of per-document totals.
type FinancialSummary struct {
	TotalTax     decimal.Decimal `json:"total_tax"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	InvoiceCount int             `json:"invoice_count"`
	UnpaidTotal  decimal.Decimal `json:"unpaid_total"`
	UnpaidCount  int             `json:"unpaid_count"`
	PartsTotal   decimal.Decimal `json:"parts_total"`
}

func GetFinancialSummary(ctx context.Context, from *time.Time, to *time.Time) (*FinancialSummary, error) {
	db := config.GetDB()

	rangeCond := "1 = 1"
	var rangeArgs []interface{}
	if from != nil {
		rangeCond += " AND invoices.invoice_date >= ?"
		rangeArgs = append(rangeArgs, *from)
	}
	if to != nil {
		rangeCond += " AND invoices.invoice_date <= ?"
		rangeArgs = append(rangeArgs, *to)
	}

	var summary FinancialSummary
	totalsSQL := fmt.Sprintf(`
SELECT
	COALESCE(SUM(tax_total), 0) AS total_tax,
	COALESCE(SUM(total_amount), 0) AS total_amount,
	COUNT(id) AS invoice_count
FROM invoices
WHERE %s`, rangeCond)
	if err := db.WithContext(ctx).Raw(totalsSQL, rangeArgs...).Scan(&summary).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}

	var unpaid struct {
		UnpaidTotal decimal.Decimal
		UnpaidCount int
	}
	unpaidSQL := fmt.Sprintf(`
SELECT
	COALESCE(SUM(total_amount), 0) AS unpaid_total,
	COUNT(id) AS unpaid_count
FROM invoices
WHERE current_status IN ('Pending', 'Overdue') AND %s`, rangeCond)
	if err := db.WithContext(ctx).Raw(unpaidSQL, rangeArgs...).Scan(&unpaid).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	summary.UnpaidTotal = unpaid.UnpaidTotal
	summary.UnpaidCount = unpaid.UnpaidCount

	var partsTotal decimal.Decimal
	partsSQL := fmt.Sprintf(`
SELECT
	COALESCE(SUM(invoice_details.total_price), 0)
FROM invoice_details
	JOIN services ON services.id = invoice_details.service_id
	JOIN invoices ON invoices.id = invoice_details.invoice_id
WHERE services.is_parts = true AND %s`, rangeCond)
	if err := db.WithContext(ctx).Raw(partsSQL, rangeArgs...).Scan(&partsTotal).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	summary.PartsTotal = partsTotal

	return &summary, nil
}

// ExportFinancialSummaryExcel renders the summary as a one-sheet workbook.
func ExportFinancialSummaryExcel(ctx context.Context, from *time.Time, to *time.Time) (*excelize.File, error) {
	summary, err := GetFinancialSummary(ctx, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Sheet1"

	f.SetCellValue(sheet, "A1", "Metric")
	f.SetCellValue(sheet, "B1", "Value")

	rows := []struct {
		label string
		value interface{}
	}{
		{"Invoice Count", summary.InvoiceCount},
		{"Total Amount", summary.TotalAmount.StringFixed(2)},
		{"Total Tax", summary.TotalTax.StringFixed(2)},
		{"Unpaid Count", summary.UnpaidCount},
		{"Unpaid Total", summary.UnpaidTotal.StringFixed(2)},
		{"Parts Total", summary.PartsTotal.StringFixed(2)},
	}
	for i, row := range rows {
		f.SetCellValue(sheet, "A"+fmt.Sprint(i+2), row.label)
		f.SetCellValue(sheet, "B"+fmt.Sprint(i+2), row.value)
	}

	return f, nil
}
