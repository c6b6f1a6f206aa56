package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Quote struct {
	ID              int             `gorm:"primary_key" json:"id"`
	CustomerId      int             `gorm:"index;not null" json:"customer_id" binding:"required"`
	Customer        *Customer       `gorm:"foreignKey:CustomerId" json:"customer,omitempty"`
	QuoteDate       time.Time       `gorm:"not null" json:"quote_date" binding:"required"`
	CurrentStatus   QuoteStatus     `gorm:"type:enum('Pending','Accepted','Rejected');not null;default:'Pending'" json:"current_status"`
	PoNumber        string          `gorm:"size:100;default:null" json:"po_number"`
	Vin             string          `gorm:"size:32;default:null" json:"vin"`
	Description     string          `gorm:"type:text" json:"description"`
	PrivateComments string          `gorm:"type:text" json:"private_comments"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxTotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_total"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Details         []QuoteDetail   `gorm:"foreignKey:QuoteId" json:"details"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type QuoteDetail struct {
	ID          int             `gorm:"primary_key" json:"id"`
	QuoteId     int             `gorm:"index;not null" json:"quote_id"`
	ServiceId   int             `gorm:"index;not null" json:"service_id"`
	ServiceName string          `gorm:"size:100;not null" json:"servicename"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitprice"`
	IsTaxed     *bool           `gorm:"not null;default:false" json:"istaxed"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type QuoteListItem struct {
	ID            int             `json:"id"`
	CustomerId    int             `json:"customer_id"`
	CustomerName  string          `json:"customer_name"`
	QuoteDate     time.Time       `json:"quote_date"`
	CurrentStatus QuoteStatus     `json:"current_status"`
	PoNumber      string          `json:"po_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

func newQuoteDetails(items []NewDocumentItem) []QuoteDetail {
	details := make([]QuoteDetail, 0, len(items))
	for _, item := range items {
		taxed := item.IsTaxed
		details = append(details, QuoteDetail{
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

func CreateQuote(ctx context.Context, input *NewDocument) (*Quote, error) {
	db := config.GetDB()

	doc, err := input.validate(ctx, DocumentKindQuote, false)
	if err != nil {
		return nil, err
	}

	quote := Quote{
		CustomerId:      input.CustomerId,
		QuoteDate:       doc.Date,
		CurrentStatus:   QuoteStatusPending,
		PoNumber:        input.PoNumber,
		Vin:             input.Vin,
		Description:     input.Description,
		PrivateComments: input.PrivateComments,
		Subtotal:        doc.Totals.Subtotal,
		TaxTotal:        doc.Totals.TaxTotal,
		TotalAmount:     doc.Totals.Total,
		Details:         newQuoteDetails(doc.Items),
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Create(&quote).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := syncServicesFromLines(tx.WithContext(ctx), doc.Items); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return &quote, nil
}

func UpdateQuote(ctx context.Context, quoteId int, input *NewDocument) (*Quote, error) {
	db := config.GetDB()

	doc, err := input.validate(ctx, DocumentKindQuote, true)
	if err != nil {
		return nil, err
	}

	existing, err := utils.FetchModel[Quote](ctx, quoteId)
	if err != nil {
		return nil, err
	}

	existing.CustomerId = input.CustomerId
	existing.QuoteDate = doc.Date
	existing.PoNumber = input.PoNumber
	existing.Vin = input.Vin
	existing.Description = input.Description
	existing.PrivateComments = input.PrivateComments
	existing.Subtotal = doc.Totals.Subtotal
	existing.TaxTotal = doc.Totals.TaxTotal
	existing.TotalAmount = doc.Totals.Total

	details := newQuoteDetails(doc.Items)
	for i := range details {
		details[i].QuoteId = existing.ID
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
	if err := tx.WithContext(ctx).Where("quote_id = ?", existing.ID).Delete(&QuoteDetail{}).Error; err != nil {
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

func DeleteQuote(ctx context.Context, quoteId int) (*Quote, error) {
	db := config.GetDB()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var quote Quote
	if err := tx.WithContext(ctx).First(&quote, quoteId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.WithContext(ctx).Where("quote_id = ?", quoteId).Delete(&QuoteDetail{}).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.WithContext(ctx).Delete(&Quote{}, quoteId).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return &quote, nil
}

// ConvertQuoteToInvoice copies the quote's fields, already-computed totals and
// line items verbatim into a new pending invoice and marks the quote accepted.
// All effects share one transaction: a failure leaves the quote untouched and
// no invoice created.
func ConvertQuoteToInvoice(ctx context.Context, quoteId int, dueDate *time.Time) (*Invoice, error) {
	db := config.GetDB()

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var quote Quote
	if err := tx.WithContext(ctx).Preload("Details").First(&quote, quoteId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if quote.CurrentStatus != QuoteStatusPending {
		return nil, errors.New("quote is not pending")
	}

	details := make([]InvoiceDetail, 0, len(quote.Details))
	for _, d := range quote.Details {
		details = append(details, InvoiceDetail{
			ServiceId:   d.ServiceId,
			ServiceName: d.ServiceName,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			IsTaxed:     d.IsTaxed,
			TotalPrice:  d.TotalPrice,
		})
	}

	invoice := Invoice{
		CustomerId:      quote.CustomerId,
		InvoiceDate:     utils.Today(),
		DueDate:         dueDate,
		CurrentStatus:   InvoiceStatusPending,
		PoNumber:        quote.PoNumber,
		Vin:             quote.Vin,
		Description:     quote.Description,
		PrivateComments: quote.PrivateComments,
		Subtotal:        quote.Subtotal,
		TaxTotal:        quote.TaxTotal,
		TotalAmount:     quote.TotalAmount,
		Details:         details,
	}

	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.WithContext(ctx).Model(&quote).Update("CurrentStatus", QuoteStatusAccepted).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return &invoice, nil
}

// MarkQuoteRejected transitions pending -> rejected. No reverts.
func MarkQuoteRejected(ctx context.Context, quoteId int) (*Quote, error) {
	db := config.GetDB()

	quote, err := utils.FetchModel[Quote](ctx, quoteId)
	if err != nil {
		return nil, err
	}
	if quote.CurrentStatus != QuoteStatusPending {
		return nil, errors.New("quote is not pending")
	}
	if err := db.WithContext(ctx).Model(quote).Update("CurrentStatus", QuoteStatusRejected).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	quote.CurrentStatus = QuoteStatusRejected
	return quote, nil
}

func GetQuote(ctx context.Context, quoteId int) (*Quote, error) {
	quote, err := utils.FetchModel[Quote](ctx, quoteId, "Details", "Customer")
	if err != nil {
		return nil, err
	}
	if quote.Details == nil {
		quote.Details = []QuoteDetail{}
	}
	return quote, nil
}

func GetAllQuotes(ctx context.Context) ([]*QuoteListItem, error) {
	db := config.GetDB()
	var items []*QuoteListItem
	if err := db.WithContext(ctx).Table("quotes").
		Joins("LEFT JOIN customers ON customers.id = quotes.customer_id").
		Select("quotes.id, quotes.customer_id, customers.name AS customer_name, quotes.quote_date, quotes.current_status, quotes.po_number, quotes.total_amount").
		Order("quotes.quote_date DESC, quotes.id DESC").
		Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return items, nil
}
