package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quotation carries no stock impact; only its conversion into an invoice
// moves inventory.
type Quotation struct {
	ID              int             `gorm:"primary_key" json:"quotation_id"`
	QuotationNumber string          `gorm:"size:50;unique;not null" json:"quotation_number"`
	ClientId        int             `gorm:"index;not null" json:"client_id"`
	Date            time.Time       `gorm:"not null" json:"date"`
	ValidUntil      *time.Time      `json:"valid_until"`
	Status          string          `gorm:"size:20;default:'brouillon'" json:"status"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(5,2);default:18" json:"tax_rate"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"tax_amount"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	Notes           string          `gorm:"type:text" json:"notes"`
	ShowTax         bool            `gorm:"default:true" json:"show_tax"`
	Items           []QuotationItem `gorm:"foreignKey:QuotationId" json:"items"`
	ClientName      string          `gorm:"-" json:"client_name"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type QuotationItem struct {
	ID          int             `gorm:"primary_key" json:"item_id"`
	QuotationId int             `gorm:"index;not null" json:"quotation_id"`
	ProductId   *int            `gorm:"index" json:"product_id"`
	ProductName string          `gorm:"size:100;not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
}

type NewQuotationItem struct {
	ProductId   *int            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type NewQuotation struct {
	QuotationNumber string             `json:"quotation_number"`
	ClientId        int                `json:"client_id" binding:"required"`
	Date            time.Time          `json:"date" binding:"required"`
	ValidUntil      *time.Time         `json:"valid_until"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	TaxRate         decimal.Decimal    `json:"tax_rate"`
	TaxAmount       decimal.Decimal    `json:"tax_amount"`
	Total           decimal.Decimal    `json:"total"`
	Notes           string             `json:"notes"`
	ShowTax         bool               `json:"show_tax"`
	Items           []NewQuotationItem `json:"items"`
}

func CreateQuotation(ctx context.Context, input *NewQuotation) (*Quotation, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if err := tx.Error; err != nil {
		return nil, err
	}

	var client Client
	if err := tx.First(&client, input.ClientId).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: client %d", utils.ErrorRecordNotFound, input.ClientId)
	}

	number := strings.TrimSpace(input.QuotationNumber)
	if number == "" {
		generated, err := nextQuotationNumber(tx)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		number = generated
	} else {
		var count int64
		if err := tx.Model(&Quotation{}).Where("quotation_number = ?", number).Count(&count).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if count > 0 {
			tx.Rollback()
			return nil, fmt.Errorf("%w: quotation number %s already used", utils.ErrorConflict, number)
		}
	}

	quotation := Quotation{
		QuotationNumber: number,
		ClientId:        input.ClientId,
		Date:            input.Date,
		ValidUntil:      input.ValidUntil,
		Status:          QuotationStatusDraft,
		Subtotal:        input.Subtotal,
		TaxRate:         input.TaxRate,
		TaxAmount:       input.TaxAmount,
		Total:           input.Total,
		Notes:           input.Notes,
		ShowTax:         input.ShowTax,
	}
	if err := tx.Create(&quotation).Error; err != nil {
		config.LogError(logger, "quotation", "CreateQuotation", "insert", input, err)
		tx.Rollback()
		return nil, err
	}

	for _, itemData := range input.Items {
		name := itemData.ProductName
		if name == "" && itemData.ProductId != nil {
			var product Product
			if err := tx.First(&product, *itemData.ProductId).Error; err == nil {
				name = product.Name
			}
		}
		if name == "" {
			name = "Service"
		}
		item := QuotationItem{
			QuotationId: quotation.ID,
			ProductId:   itemData.ProductId,
			ProductName: utils.Truncate(name, 100),
			Quantity:    itemData.Quantity,
			Price:       itemData.Price,
			Total:       itemData.Total,
		}
		if err := tx.Create(&item).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetQuotationById(ctx, quotation.ID)
}

// nextQuotationNumber mirrors the invoice sequence with the DEV prefix.
func nextQuotationNumber(tx *gorm.DB) (string, error) {
	var numbers []string
	if err := tx.Model(&Quotation{}).Where("quotation_number LIKE ?", "DEV-%").
		Pluck("quotation_number", &numbers).Error; err != nil {
		return "", err
	}
	lastSeq := 0
	for _, num := range numbers {
		var seq int
		if _, err := fmt.Sscanf(strings.TrimSpace(num), "DEV-%d", &seq); err == nil && seq > lastSeq {
			lastSeq = seq
		}
	}
	for next := lastSeq + 1; ; next++ {
		candidate := fmt.Sprintf("DEV-%04d", next)
		var count int64
		if err := tx.Model(&Quotation{}).Where("quotation_number = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
}

var validQuotationStatuses = map[string]bool{
	QuotationStatusDraft:    true,
	QuotationStatusSent:     true,
	QuotationStatusAccepted: true,
	QuotationStatusRejected: true,
	QuotationStatusExpired:  true,
}

func UpdateQuotationStatus(ctx context.Context, id int, status string) error {
	db := config.GetDB()

	if !validQuotationStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", utils.ErrorInvalidState, status)
	}
	result := db.WithContext(ctx).Model(&Quotation{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: quotation %d", utils.ErrorRecordNotFound, id)
	}
	return nil
}

func GetQuotationById(ctx context.Context, id int) (*Quotation, error) {
	db := config.GetDB()

	var quotation Quotation
	if err := db.WithContext(ctx).Preload("Items").First(&quotation, id).Error; err != nil {
		return nil, fmt.Errorf("%w: quotation %d", utils.ErrorRecordNotFound, id)
	}
	var client Client
	if err := db.WithContext(ctx).First(&client, quotation.ClientId).Error; err == nil {
		quotation.ClientName = client.Name
	}
	return &quotation, nil
}

func GetQuotations(ctx context.Context, status string, clientId, limit, offset int) ([]Quotation, int64, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	query := db.WithContext(ctx).Model(&Quotation{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if clientId > 0 {
		query = query.Where("client_id = ?", clientId)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		config.LogError(logger, "quotation", "GetQuotations", "count", status, err)
		return nil, 0, err
	}

	var quotations []Quotation
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Preload("Items").Order("id desc").Find(&quotations).Error; err != nil {
		config.LogError(logger, "quotation", "GetQuotations", "find", status, err)
		return nil, 0, err
	}
	return quotations, total, nil
}

func DeleteQuotation(ctx context.Context, id int) error {
	db := config.GetDB()

	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if err := tx.Error; err != nil {
		return err
	}

	var quotation Quotation
	if err := tx.First(&quotation, id).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: quotation %d", utils.ErrorRecordNotFound, id)
	}
	if err := tx.Where("quotation_id = ?", id).Delete(&QuotationItem{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&Quotation{}, id).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
