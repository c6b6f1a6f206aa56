package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/utils"
	"gorm.io/gorm/clause"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Mobile    string    `gorm:"size:20" json:"mobile"`
	Address   string    `gorm:"type:text" json:"address"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (input *NewCustomer) validate() error {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
	}
	return nil
}

// CreateCustomer upserts on the unique name: a customer is created on first
// reference and updated in place when the same name is submitted again.
func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	db := config.GetDB()

	if err := input.validate(); err != nil {
		return nil, err
	}

	customer := Customer{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Mobile:  input.Mobile,
		Address: input.Address,
		Notes:   input.Notes,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "phone", "mobile", "address", "notes", "updated_at"}),
	}).Create(&customer).Error
	if err != nil {
		return nil, err
	}

	// MySQL does not report the existing row's id on the duplicate-key path,
	// so always re-read by the unique name instead of trusting LastInsertId.
	var saved Customer
	if err := db.WithContext(ctx).Where("name = ?", input.Name).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return &saved, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	db := config.GetDB()

	if err := input.validate(); err != nil {
		return nil, err
	}
	// validate unique name
	if err := utils.ValidateUnique[Customer](ctx, "name", input.Name, id); err != nil {
		return nil, err
	}

	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, err
	}

	customer.Name = input.Name
	customer.Email = input.Email
	customer.Phone = input.Phone
	customer.Mobile = input.Mobile
	customer.Address = input.Address
	customer.Notes = input.Notes

	if err := db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

// DeleteCustomer refuses while documents still reference the customer.
func DeleteCustomer(ctx context.Context, id int) (*Customer, error) {
	db := config.GetDB()

	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, err
	}

	invoiceCount, err := utils.ResourceCountWhere[Invoice](ctx, "customer_id = ?", id)
	if err != nil {
		return nil, err
	}
	quoteCount, err := utils.ResourceCountWhere[Quote](ctx, "customer_id = ?", id)
	if err != nil {
		return nil, err
	}
	if invoiceCount > 0 || quoteCount > 0 {
		return nil, errors.New("customer is used in invoices or quotes")
	}

	if err := db.WithContext(ctx).Delete(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return utils.FetchModel[Customer](ctx, id)
}

func GetAllCustomers(ctx context.Context) ([]*Customer, error) {
	db := config.GetDB()
	var customers []*Customer
	if err := db.WithContext(ctx).Order("name asc").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrorPersistence, err)
	}
	return customers, nil
}
