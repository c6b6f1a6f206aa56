package models

import (
	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&User{},
		&Customer{},
		&Service{},
		&Invoice{},
		&InvoiceDetail{},
		&Quote{},
		&QuoteDetail{},
		&Payment{},
	)
	utils.ErrorPanic(err)
}
