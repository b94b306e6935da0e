package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DeliveryNote struct {
	ID                 int                `gorm:"primary_key" json:"delivery_note_id"`
	DeliveryNoteNumber string             `gorm:"size:50;unique;not null" json:"delivery_note_number"`
	InvoiceId          *int               `gorm:"index" json:"invoice_id"`
	ClientId           int                `gorm:"index;not null" json:"client_id"`
	Date               time.Time          `json:"date"`
	DeliveryDate       *time.Time         `json:"delivery_date"`
	Status             string             `gorm:"size:20;default:'en_preparation'" json:"status"`
	DeliveryAddress    string             `gorm:"type:text" json:"delivery_address"`
	DeliveryContact    string             `gorm:"size:100" json:"delivery_contact"`
	DeliveryPhone      string             `gorm:"size:20" json:"delivery_phone"`
	Subtotal           decimal.Decimal    `gorm:"type:decimal(12,2)" json:"subtotal"`
	TaxRate            decimal.Decimal    `gorm:"type:decimal(5,2)" json:"tax_rate"`
	TaxAmount          decimal.Decimal    `gorm:"type:decimal(12,2)" json:"tax_amount"`
	Total              decimal.Decimal    `gorm:"type:decimal(12,2)" json:"total"`
	Notes              string             `gorm:"type:text" json:"notes"`
	SignatureDataUrl   string             `gorm:"type:text" json:"signature_data_url"`
	Items              []DeliveryNoteItem `gorm:"foreignKey:DeliveryNoteId" json:"items"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

type DeliveryNoteItem struct {
	ID                int             `gorm:"primary_key" json:"item_id"`
	DeliveryNoteId    int             `gorm:"index;not null" json:"delivery_note_id"`
	ProductId         *int            `gorm:"index" json:"product_id"`
	ProductName       string          `gorm:"size:100;not null" json:"product_name"`
	Quantity          int             `gorm:"not null" json:"quantity"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	DeliveredQuantity int             `gorm:"default:0" json:"delivered_quantity"`
	SerialNumbers     *string         `gorm:"type:text" json:"serial_numbers"`
}

// nextDeliveryNoteNumber allocates BL-YYYYMMDD-#### with a sequence that
// restarts every day.
func nextDeliveryNoteNumber(tx *gorm.DB) (string, error) {
	todayPrefix := time.Now().Format("BL-20060102-")

	var last DeliveryNote
	err := tx.Where("delivery_note_number LIKE ?", todayPrefix+"%").
		Order("id desc").First(&last).Error
	nextSeq := 1
	if err == nil && strings.HasPrefix(last.DeliveryNoteNumber, todayPrefix) {
		parts := strings.Split(last.DeliveryNoteNumber, "-")
		if seq, perr := strconv.Atoi(parts[len(parts)-1]); perr == nil {
			nextSeq = seq + 1
		}
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return "", err
	}
	return fmt.Sprintf("%s%04d", todayPrefix, nextSeq), nil
}

// CreateDeliveryNoteFromInvoice copies an invoice into a delivery note: all
// lines including free-form ones, the invoice amounts, and per-line serial
// numbers recovered from the invoice's notes metadata. The client's address
// book fills the delivery fields.
func CreateDeliveryNoteFromInvoice(ctx context.Context, invoiceId int) (*DeliveryNote, error) {
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

	var invoice Invoice
	if err := tx.Preload("Items").First(&invoice, invoiceId).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: invoice %d", utils.ErrorRecordNotFound, invoiceId)
	}
	var client Client
	if err := tx.First(&client, invoice.ClientId).Error; err != nil && err != gorm.ErrRecordNotFound {
		tx.Rollback()
		return nil, err
	}

	number, err := nextDeliveryNoteNumber(tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	imeisByProduct := make(map[int][]string)
	for _, entry := range ParseSerialsFromNotes(invoice.Notes) {
		if entry.ProductId != 0 {
			imeisByProduct[entry.ProductId] = entry.Imeis
		}
	}

	now := time.Now()
	note := DeliveryNote{
		DeliveryNoteNumber: number,
		InvoiceId:          &invoice.ID,
		ClientId:           invoice.ClientId,
		Date:               now,
		DeliveryDate:       &now,
		Status:             DeliveryNoteStatusPreparing,
		DeliveryAddress:    client.Address,
		DeliveryContact:    client.Name,
		DeliveryPhone:      client.Phone,
		Subtotal:           invoice.Subtotal,
		TaxRate:            invoice.TaxRate,
		TaxAmount:          invoice.TaxAmount,
		Total:              invoice.Total,
		Notes:              fmt.Sprintf("Créé depuis facture %s", invoice.InvoiceNumber),
		SignatureDataUrl:   ExtractSignatureFromNotes(invoice.Notes),
	}
	if err := tx.Create(&note).Error; err != nil {
		config.LogError(logger, "deliveryNote", "CreateDeliveryNoteFromInvoice", "insert", invoiceId, err)
		tx.Rollback()
		return nil, err
	}

	for _, item := range invoice.Items {
		var serials *string
		if item.ProductId != nil {
			if imeis := imeisByProduct[*item.ProductId]; len(imeis) > 0 {
				if payload, jerr := json.Marshal(imeis); jerr == nil {
					s := string(payload)
					serials = &s
				}
			}
		}
		noteItem := DeliveryNoteItem{
			DeliveryNoteId: note.ID,
			ProductId:      item.ProductId,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			Price:          item.Price,
			SerialNumbers:  serials,
		}
		if err := tx.Create(&noteItem).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetDeliveryNoteById(ctx, note.ID)
}

func GetDeliveryNoteById(ctx context.Context, id int) (*DeliveryNote, error) {
	db := config.GetDB()

	var note DeliveryNote
	if err := db.WithContext(ctx).Preload("Items").First(&note, id).Error; err != nil {
		return nil, fmt.Errorf("%w: delivery note %d", utils.ErrorRecordNotFound, id)
	}
	return &note, nil
}

func GetDeliveryNotes(ctx context.Context, status string, clientId, limit, offset int) ([]DeliveryNote, int64, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	query := db.WithContext(ctx).Model(&DeliveryNote{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if clientId > 0 {
		query = query.Where("client_id = ?", clientId)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		config.LogError(logger, "deliveryNote", "GetDeliveryNotes", "count", status, err)
		return nil, 0, err
	}

	var notes []DeliveryNote
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Preload("Items").Order("id desc").Find(&notes).Error; err != nil {
		config.LogError(logger, "deliveryNote", "GetDeliveryNotes", "find", status, err)
		return nil, 0, err
	}
	return notes, total, nil
}

var validDeliveryNoteStatuses = map[string]bool{
	DeliveryNoteStatusPreparing: true,
	DeliveryNoteStatusShipped:   true,
	DeliveryNoteStatusDelivered: true,
}

func UpdateDeliveryNoteStatus(ctx context.Context, id int, status string) error {
	db := config.GetDB()

	if !validDeliveryNoteStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", utils.ErrorInvalidState, status)
	}
	result := db.WithContext(ctx).Model(&DeliveryNote{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: delivery note %d", utils.ErrorRecordNotFound, id)
	}
	return nil
}

func DeleteDeliveryNote(ctx context.Context, id int) error {
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

	var note DeliveryNote
	if err := tx.First(&note, id).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: delivery note %d", utils.ErrorRecordNotFound, id)
	}
	if err := tx.Where("delivery_note_id = ?", id).Delete(&DeliveryNoteItem{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&DeliveryNote{}, id).Error; err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// deleteDeliveryNotesForInvoice cascades an invoice deletion to its linked
// delivery notes inside the caller's transaction.
func deleteDeliveryNotesForInvoice(tx *gorm.DB, invoiceId int) error {
	var noteIds []int
	if err := tx.Model(&DeliveryNote{}).Where("invoice_id = ?", invoiceId).
		Pluck("id", &noteIds).Error; err != nil {
		return err
	}
	if len(noteIds) == 0 {
		return nil
	}
	if err := tx.Where("delivery_note_id IN ?", noteIds).Delete(&DeliveryNoteItem{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", noteIds).Delete(&DeliveryNote{}).Error
}
