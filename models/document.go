package models

import (
	"context"
	"errors"
	"time"

	"github.com/allcitylocks/locksmith_backend/utils"
)

// NewDocument is the shared write payload for both document kinds. Totals are
// never part of it: they are recomputed server-side from the lines on every
// create and update.
type NewDocument struct {
	CustomerId      int               `json:"customer_id" binding:"required"`
	PoNumber        string            `json:"PO"`
	Description     string            `json:"description"`
	PrivateComments string            `json:"comments"`
	Vin             string            `json:"vin"`
	StartDate       string            `json:"startDate" binding:"required"`
	DueDate         string            `json:"dueDate"`
	Services        []NewDocumentItem `json:"services" binding:"required"`
}

// normalized carries the validated, reconciled form of a NewDocument.
type normalizedDocument struct {
	Date    time.Time
	DueDate *time.Time
	Items   []NewDocumentItem
	Totals  DocumentTotals
}

// validate checks the payload, reconciles the line set and recomputes totals.
// forUpdate selects the update-path reconciliation rule (positive quantity
// required for a line to survive).
func (input *NewDocument) validate(ctx context.Context, kind DocumentKind, forUpdate bool) (*normalizedDocument, error) {
	if err := utils.ValidateResourceId[Customer](ctx, input.CustomerId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, errors.New("customer not found")
		}
		return nil, err
	}

	date, err := utils.ParseCalendarDate(input.StartDate)
	if err != nil {
		return nil, err
	}

	var dueDate *time.Time
	if kind == DocumentKindInvoice && input.DueDate != "" {
		d, err := utils.ParseCalendarDate(input.DueDate)
		if err != nil {
			return nil, err
		}
		dueDate = &d
	}

	items := CoerceOrDrop(input.Services, forUpdate)
	if len(items) == 0 {
		return nil, errors.New("at least one valid service line is required")
	}

	var serviceIds []int
	for _, item := range items {
		serviceIds = append(serviceIds, item.ServiceId)
	}
	if err := utils.ValidateResourcesId[Service](ctx, serviceIds); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, errors.New("service not found")
		}
		return nil, err
	}

	return &normalizedDocument{
		Date:    date,
		DueDate: dueDate,
		Items:   items,
		Totals:  ComputeDocumentTotals(items),
	}, nil
}
