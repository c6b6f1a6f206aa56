package models

import "errors"

type DocumentKind string

const (
	DocumentKindInvoice DocumentKind = "Invoice"
	DocumentKindQuote   DocumentKind = "Quote"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "Pending"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
)

func (s InvoiceStatus) Valid() error {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusOverdue:
		return nil
	}
	return errors.New("invalid invoice status")
}

type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "Pending"
	QuoteStatusAccepted QuoteStatus = "Accepted"
	QuoteStatusRejected QuoteStatus = "Rejected"
)

func (s QuoteStatus) Valid() error {
	switch s {
	case QuoteStatusPending, QuoteStatusAccepted, QuoteStatusRejected:
		return nil
	}
	return errors.New("invalid quote status")
}
