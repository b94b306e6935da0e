package models

import "github.com/abdoul9859/techplus/config"

func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&User{},
		&Client{},
		&Product{},
		&ProductVariant{},
		&ProductVariantAttribute{},
		&StockMovement{},
		&Quotation{},
		&QuotationItem{},
		&Invoice{},
		&InvoiceItem{},
		&InvoicePayment{},
		&DeliveryNote{},
		&DeliveryNoteItem{},
		&AppSetting{},
	)
}
