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

// Service is a catalog item. It is shared between documents, never owned by
// one: a document line captures its own price at time of use.
type Service struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Name        string          `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	Description string          `gorm:"size:255;default:null" json:"description"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	IsTaxed     *bool           `gorm:"not null;default:false" json:"is_taxed"`
	IsParts     *bool           `gorm:"not null;default:false" json:"is_parts"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewService struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	IsTaxed     *bool           `json:"is_taxed"`
	IsParts     *bool           `json:"is_parts"`
}

const serviceListCacheKey = "ServiceList"

func clearServiceListCache() {
	if err := config.RemoveRedisKey(serviceListCacheKey); err != nil {
		config.LogError(config.GetLogger(), "service.go", "clearServiceListCache", "RemoveRedisKey", nil, err)
	}
}

func CreateService(ctx context.Context, input *NewService) (*Service, error) {
	db := config.GetDB()

	if err := utils.ValidateUnique[Service](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}

	service := Service{
		Name:        input.Name,
		Description: input.Description,
		UnitPrice:   input.UnitPrice,
		IsTaxed:     input.IsTaxed,
		IsParts:     input.IsParts,
	}
	if service.IsTaxed == nil {
		service.IsTaxed = utils.NewFalse()
	}
	if service.IsParts == nil {
		service.IsParts = utils.NewFalse()
	}
	if err := db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, err
	}
	clearServiceListCache()
	return &service, nil
}

func UpdateService(ctx context.Context, id int, input *NewService) (*Service, error) {
	db := config.GetDB()

	if err := utils.ValidateUnique[Service](ctx, "name", input.Name, id); err != nil {
		return nil, err
	}

	service, err := utils.FetchModel[Service](ctx, id)
	if err != nil {
		return nil, err
	}

	service.Name = input.Name
	service.Description = input.Description
	service.UnitPrice = input.UnitPrice
	if input.IsTaxed != nil {
		service.IsTaxed = input.IsTaxed
	}
	if input.IsParts != nil {
		service.IsParts = input.IsParts
	}

	if err := db.WithContext(ctx).Save(service).Error; err != nil {
		return nil, err
	}
	clearServiceListCache()
	return service, nil
}

func DeleteService(ctx context.Context, id int) (*Service, error) {
	db := config.GetDB()

	service, err := utils.FetchModel[Service](ctx, id)
	if err != nil {
		return nil, err
	}

	invoiceUse, err := utils.ResourceCountWhere[InvoiceDetail](ctx, "service_id = ?", id)
	if err != nil {
		return nil, err
	}
	quoteUse, err := utils.ResourceCountWhere[QuoteDetail](ctx, "service_id = ?", id)
	if err != nil {
		return nil, err
	}
	if invoiceUse > 0 || quoteUse > 0 {
		return nil, errors.New("service is used in documents")
	}

	if err := db.WithContext(ctx).Delete(service).Error; err != nil {
		return nil, err
	}
	clearServiceListCache()
	return service, nil
}

func GetService(ctx context.Context, id int) (*Service, error) {
	return utils.FetchModel[Service](ctx, id)
}

// GetAllServices serves the catalog from redis when available; writes
// invalidate the cached list.
func GetAllServices(ctx context.Context) ([]*Service, error) {
	var services []*Service
	exists, err := config.GetRedisObject(serviceListCacheKey, &services)
	if err != nil {
		config.LogError(config.GetLogger(), "service.go", "GetAllServices", "GetRedisObject", nil, err)
	}
	if exists {
		return services, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Order("name asc").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	if err := config.SetRedisObject(serviceListCacheKey, &services, time.Hour); err != nil {
		config.LogError(config.GetLogger(), "service.go", "GetAllServices", "SetRedisObject", nil, err)
	}
	return services, nil
}

// syncServicesFromLines rewrites a shared catalog row in place when a
// document edit changes the line's description, unit price or taxed flag.
// Runs inside the document's transaction so a rollback also undoes it.
func syncServicesFromLines(tx *gorm.DB, items []NewDocumentItem) error {
	for _, item := range items {
		var service Service
		if err := tx.First(&service, item.ServiceId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("service not found: " + item.ServiceName)
			}
			return err
		}
		changed := false
		if item.Description != "" && item.Description != service.Description {
			service.Description = item.Description
			changed = true
		}
		if !item.UnitPrice.Equal(service.UnitPrice) {
			service.UnitPrice = item.UnitPrice
			changed = true
		}
		if service.IsTaxed == nil || *service.IsTaxed != item.IsTaxed {
			v := item.IsTaxed
			service.IsTaxed = &v
			changed = true
		}
		if !changed {
			continue
		}
		if err := tx.Save(&service).Error; err != nil {
			return err
		}
	}
	if len(items) > 0 {
		clearServiceListCache()
	}
	return nil
}
