package models

import (
	"context"
	"fmt"
	"time"

	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/utils"
	"github.com/google/uuid"
)

// Payment is an append-only record of a payment event. Rows are never updated
// or deleted; marking an invoice paid creates one.
type Payment struct {
	ID            int       `gorm:"primary_key" json:"id"`
	InvoiceId     int       `gorm:"index;not null" json:"invoice_id"`
	PaymentNumber string    `gorm:"size:64;not null" json:"payment_number"`
	PaymentMethod string    `gorm:"size:64;not null" json:"payment_method"`
	PaymentDate   time.Time `gorm:"not null" json:"payment_date"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func NewPaymentRecord(invoiceId int, method string) Payment {
	return Payment{
		InvoiceId:     invoiceId,
		PaymentNumber: uuid.NewString(),
		PaymentMethod: method,
		PaymentDate:   time.Now().UTC(),
	}
}

// get payment history of an invoice, newest first
func GetInvoicePayments(ctx context.Context, invoiceId int) ([]*Payment, error) {
	db := config.GetDB()
	var payments []*Payment
	if err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceId).
		Order("payment_date DESC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return payments, nil
}
