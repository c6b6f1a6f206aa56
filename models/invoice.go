package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Invoice struct {
	ID              int             `gorm:"primary_key" json:"id"`
	CustomerId      int             `gorm:"index;not null" json:"customer_id" binding:"required"`
	Customer        *Customer       `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	InvoiceDate     time.Time       `gorm:"not null" json:"invoice_date" binding:"required"`
	DueDate         *time.Time      `json:"due_date"`
	CurrentStatus   InvoiceStatus   `gorm:"type:enum('Pending','Paid','Overdue');not null;default:'Pending'" json:"current_status"`
	PoNumber        string          `gorm:"size:100;default:null" json:"po_number"`
	Vin             string          `gorm:"size:32;default:null" json:"vin"`
	Description     string          `gorm:"type:text" json:"description"`
	PrivateComments string          `gorm:"type:text" json:"private_comments"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxTotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_total"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Details         []InvoiceDetail `gorm:"foreignKey:InvoiceId" json:"details"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceDetail struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   int             `gorm:"index;not null" json:"invoice_id"`
	ServiceId   int             `gorm:"index;not null" json:"service_id"`
	ServiceName string          `gorm:"size:100;not null" json:"servicename"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitprice"`
	IsTaxed     *bool           `gorm:"not null;default:false" json:"istaxed"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvoiceListItem is the flat projection for table display.
type InvoiceListItem struct {
	ID            int             `json:"id"`
	CustomerId    int             `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	DueDate       *time.Time      `json:"due_date"`
	CurrentStatus InvoiceStatus   `json:"current_status"`
	PoNumber      string          `json:"po_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type SweepResult struct {
	Count      int   `json:"count"`
	InvoiceIds []int `json:"invoice_ids"`
}

func newInvoiceDetails(items []NewDocumentItem) []InvoiceDetail {
	details := make([]InvoiceDetail, 0, len(items))
	for _, item := range items {
		taxed := item.IsTaxed
		details = append(details, InvoiceDetail{
			ServiceId:   item.ServiceId,
			ServiceName: item.ServiceName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			IsTaxed:     &taxed,
			TotalPrice:  item.extension(),
		})
	}
	return details
}

func CreateInvoice(ctx context.Context, input *NewDocument) (*Invoice, error) {
	db := config.GetDB()

	doc, err := input.validate(ctx, DocumentKindInvoice, false)
	if err != nil {
		return nil, err
	}

	invoice := Invoice{
		CustomerId:      input.CustomerId,
		InvoiceDate:     doc.Date,
		DueDate:         doc.DueDate,
		CurrentStatus:   InvoiceStatusPending,
		PoNumber:        input.PoNumber,
		Vin:             input.Vin,
		Description:     input.Description,
		PrivateComments: input.PrivateComments,
		Subtotal:        doc.Totals.Subtotal,
		TaxTotal:        doc.Totals.TaxTotal,
		TotalAmount:     doc.Totals.Total,
		Details:         newInvoiceDetails(doc.Items),
	}

	tx := db.Begin()
	// always rollback on early-return or panic so the connection is released
	// on every exit path (rollback after commit is a no-op)
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := syncServicesFromLines(tx.WithContext(ctx), doc.Items); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return &invoice, nil
}

func UpdateInvoice(ctx context.Context, invoiceId int, input *NewDocument) (*Invoice, error) {
	db := config.GetDB()

	doc, err := input.validate(ctx, DocumentKindInvoice, true)
	if err != nil {
		return nil, err
	}

	existing, err := utils.FetchModel[Invoice](ctx, invoiceId)
	if err != nil {
		return nil, err
	}

	existing.CustomerId = input.CustomerId
	existing.InvoiceDate = doc.Date
	existing.DueDate = doc.DueDate
	existing.PoNumber = input.PoNumber
	existing.Vin = input.Vin
	existing.Description = input.Description
	existing.PrivateComments = input.PrivateComments
	existing.Subtotal = doc.Totals.Subtotal
	existing.TaxTotal = doc.Totals.TaxTotal
	existing.TotalAmount = doc.Totals.Total

	details := newInvoiceDetails(doc.Items)
	for i := range details {
		details[i].InvoiceId = existing.ID
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Omit("Details").Save(existing).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	// full replace of the line set, no partial diffing
	if err := tx.WithContext(ctx).Where("invoice_id = ?", existing.ID).Delete(&InvoiceDetail{}).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.WithContext(ctx).Create(&details).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := syncServicesFromLines(tx.WithContext(ctx), doc.Items); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}

	existing.Details = details
	return existing, nil
}

// DeleteInvoice verifies existence before touching anything, so a NotFound
// leaves zero side effects.
func DeleteInvoice(ctx context.Context, invoiceId int) (*Invoice, error) {
	db := config.GetDB()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var invoice Invoice
	if err := tx.WithContext(ctx).First(&invoice, invoiceId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.WithContext(ctx).Where("invoice_id = ?", invoiceId).Delete(&InvoiceDetail{}).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.WithContext(ctx).Delete(&Invoice{}, invoiceId).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return &invoice, nil
}

// MarkInvoicePaid flips the status and appends the payment row in one
// transaction. Overdue invoices may still be paid.
func MarkInvoicePaid(ctx context.Context, invoiceId int, paymentMethod string) (*Invoice, error) {
	db := config.GetDB()

	if paymentMethod == "" {
		return nil, errors.New("payment method is required")
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var invoice Invoice
	if err := tx.WithContext(ctx).First(&invoice, invoiceId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}

	if err := tx.WithContext(ctx).Model(&invoice).Update("CurrentStatus", InvoiceStatusPaid).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	invoice.CurrentStatus = InvoiceStatusPaid

	payment := NewPaymentRecord(invoice.ID, paymentMethod)
	if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return &invoice, nil
}

// SweepOverdueInvoices transitions pending invoices whose due date is before
// today (calendar-date compare). Idempotent: a second run with no state change
// matches zero rows. A best-effort redis lock keeps concurrent sweeps
// single-flight; correctness does not depend on it since the UPDATE predicate
// only matches still-pending rows.
func SweepOverdueInvoices(ctx context.Context) (*SweepResult, error) {
	db := config.GetDB()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "SweepOverdueLock", 30*time.Second, nil)
		if err == nil {
			defer lock.Release(ctx)
		} else if err != redislock.ErrNotObtained {
			config.LogError(config.GetLogger(), "invoice.go", "SweepOverdueInvoices", "Obtain lock", nil, err)
		}
	}

	today := utils.Today()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var ids []int
	if err := tx.WithContext(ctx).Model(&Invoice{}).
		Where("current_status = ? AND due_date IS NOT NULL AND due_date < ?", InvoiceStatusPending, today).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}

	if len(ids) > 0 {
		if err := tx.WithContext(ctx).Model(&Invoice{}).
			Where("id IN ? AND current_status = ?", ids, InvoiceStatusPending).
			Update("current_status", InvoiceStatusOverdue).Error; err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return &SweepResult{Count: len(ids), InvoiceIds: ids}, nil
}

// GetInvoice joins the aggregate with its customer and line items. An invoice
// with no real line items yields an empty sequence, never nulls.
func GetInvoice(ctx context.Context, invoiceId int) (*Invoice, error) {
	invoice, err := utils.FetchModel[Invoice](ctx, invoiceId, "Details", "Customer")
	if err != nil {
		return nil, err
	}
	if invoice.Details == nil {
		invoice.Details = []InvoiceDetail{}
	}
	return invoice, nil
}

// GetAllInvoices is the flat list projection, date descending. No totals
// recomputation.
func GetAllInvoices(ctx context.Context) ([]*InvoiceListItem, error) {
	db := config.GetDB()
	var items []*InvoiceListItem
	if err := db.WithContext(ctx).Table("invoices").
		Joins("LEFT JOIN customers ON customers.id = invoices.customer_id").
		Select("invoices.id, invoices.customer_id, customers.name AS customer_name, invoices.invoice_date, invoices.due_date, invoices.current_status, invoices.po_number, invoices.total_amount").
		Order("invoices.invoice_date DESC, invoices.id DESC").
		Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return items, nil
}
