package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeDocumentTotals_MixedTaxedLines(t *testing.T) {
	// 2 x $10.00 untaxed + 1 x $19.99 taxed:
	// line tax = 19.99 * 0.0875 = 1.749125 -> 1.75 rounded per line.
	items := []NewDocumentItem{
		{ServiceId: 1, ServiceName: "Rekey", UnitPrice: dec("10.00"), Quantity: dec("2"), IsTaxed: false},
		{ServiceId: 2, ServiceName: "Deadbolt", UnitPrice: dec("19.99"), Quantity: dec("1"), IsTaxed: true},
	}

	totals := ComputeDocumentTotals(items)

	if !totals.Subtotal.Equal(dec("39.99")) {
		t.Errorf("subtotal = %s; want 39.99", totals.Subtotal)
	}
	if !totals.TaxTotal.Equal(dec("1.75")) {
		t.Errorf("tax total = %s; want 1.75", totals.TaxTotal)
	}
	if !totals.Total.Equal(dec("41.74")) {
		t.Errorf("total = %s; want 41.74", totals.Total)
	}
}

func TestComputeDocumentTotals_HalfCentRoundsUp(t *testing.T) {
	// 50.00 * 0.0875 = 4.375 exactly; per-line rounding goes to 4.38.
	items := []NewDocumentItem{
		{ServiceId: 1, ServiceName: "Safe opening", UnitPrice: dec("50.00"), Quantity: dec("1"), IsTaxed: true},
	}

	totals := ComputeDocumentTotals(items)

	if !totals.TaxTotal.Equal(dec("4.38")) {
		t.Errorf("tax total = %s; want 4.38", totals.TaxTotal)
	}
	if !totals.Total.Equal(dec("54.38")) {
		t.Errorf("total = %s; want 54.38", totals.Total)
	}
}

func TestComputeDocumentTotals_PerLineRoundingBeforeSummation(t *testing.T) {
	// Three taxed lines of $0.99: per line 0.086625 -> 0.09, summed = 0.27.
	// Rounding once at the end would give 0.26.
	items := []NewDocumentItem{
		{ServiceId: 1, ServiceName: "Key copy", UnitPrice: dec("0.99"), Quantity: dec("1"), IsTaxed: true},
		{ServiceId: 1, ServiceName: "Key copy", UnitPrice: dec("0.99"), Quantity: dec("1"), IsTaxed: true},
		{ServiceId: 1, ServiceName: "Key copy", UnitPrice: dec("0.99"), Quantity: dec("1"), IsTaxed: true},
	}

	totals := ComputeDocumentTotals(items)

	if !totals.TaxTotal.Equal(dec("0.27")) {
		t.Errorf("tax total = %s; want 0.27 (per-line rounding)", totals.TaxTotal)
	}
}

func TestComputeDocumentTotals_Empty(t *testing.T) {
	totals := ComputeDocumentTotals(nil)
	if !totals.Subtotal.IsZero() || !totals.TaxTotal.IsZero() || !totals.Total.IsZero() {
		t.Errorf("empty totals = %+v; want all zero", totals)
	}
}

func TestTaxRate_EnvOverride(t *testing.T) {
	t.Setenv("TAX_RATE", "0.05")
	if got := TaxRate(); !got.Equal(dec("0.05")) {
		t.Errorf("TaxRate() = %s; want 0.05", got)
	}

	t.Setenv("TAX_RATE", "not-a-number")
	if got := TaxRate(); !got.Equal(dec("0.0875")) {
		t.Errorf("TaxRate() with garbage env = %s; want default 0.0875", got)
	}

	t.Setenv("TAX_RATE", "-1")
	if got := TaxRate(); !got.Equal(dec("0.0875")) {
		t.Errorf("TaxRate() with negative env = %s; want default 0.0875", got)
	}
}

func TestCoerceOrDrop_DropsUnnamedAndUnreferencedLines(t *testing.T) {
	items := []NewDocumentItem{
		{ServiceId: 1, ServiceName: "Lockout", UnitPrice: dec("75"), Quantity: dec("1")},
		{ServiceId: 2, ServiceName: "", UnitPrice: dec("10"), Quantity: dec("1")},
		{ServiceId: 0, ServiceName: "Orphan", UnitPrice: dec("10"), Quantity: dec("1")},
		{ServiceId: -4, ServiceName: "Negative ref", UnitPrice: dec("10"), Quantity: dec("1")},
	}

	kept := CoerceOrDrop(items, false)

	if len(kept) != 1 {
		t.Fatalf("kept %d lines; want 1", len(kept))
	}
	if kept[0].ServiceName != "Lockout" {
		t.Errorf("kept line = %q; want Lockout", kept[0].ServiceName)
	}
}

func TestCoerceOrDrop_ClampsQuantityAndPrice(t *testing.T) {
	items := []NewDocumentItem{
		{ServiceId: 1, ServiceName: "Zero qty", UnitPrice: dec("10"), Quantity: dec("0")},
		{ServiceId: 2, ServiceName: "Negative qty", UnitPrice: dec("10"), Quantity: dec("-3")},
		{ServiceId: 3, ServiceName: "Negative price", UnitPrice: dec("-5"), Quantity: dec("2")},
	}

	kept := CoerceOrDrop(items, false)

	if len(kept) != 3 {
		t.Fatalf("kept %d lines; want 3", len(kept))
	}
	one := decimal.NewFromInt(1)
	if !kept[0].Quantity.Equal(one) {
		t.Errorf("zero quantity clamped to %s; want 1", kept[0].Quantity)
	}
	if !kept[1].Quantity.Equal(one) {
		t.Errorf("negative quantity clamped to %s; want 1", kept[1].Quantity)
	}
	if !kept[2].UnitPrice.IsZero() {
		t.Errorf("negative price coerced to %s; want 0", kept[2].UnitPrice)
	}
}

func TestCoerceOrDrop_UpdatePathDropsNonPositiveQuantity(t *testing.T) {
	items := []NewDocumentItem{
		{ServiceId: 1, ServiceName: "Keep", UnitPrice: dec("10"), Quantity: dec("2")},
		{ServiceId: 2, ServiceName: "Drop zero", UnitPrice: dec("10"), Quantity: dec("0")},
		{ServiceId: 3, ServiceName: "Drop negative", UnitPrice: dec("10"), Quantity: dec("-1")},
	}

	kept := CoerceOrDrop(items, true)

	if len(kept) != 1 {
		t.Fatalf("kept %d lines; want 1", len(kept))
	}
	if kept[0].ServiceName != "Keep" {
		t.Errorf("kept line = %q; want Keep", kept[0].ServiceName)
	}
}

func TestCoerceOrDrop_FractionalQuantitySurvives(t *testing.T) {
	items := []NewDocumentItem{
		{ServiceId: 1, ServiceName: "Labor", UnitPrice: dec("80"), Quantity: dec("1.5")},
	}
	kept := CoerceOrDrop(items, true)
	if len(kept) != 1 || !kept[0].Quantity.Equal(dec("1.5")) {
		t.Fatalf("fractional quantity mangled: %+v", kept)
	}
}
