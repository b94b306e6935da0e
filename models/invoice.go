package models

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Invoice struct {
	ID                int              `gorm:"primary_key" json:"invoice_id"`
	InvoiceNumber     string           `gorm:"size:50;unique;not null" json:"invoice_number"`
	ClientId          int              `gorm:"index;not null" json:"client_id"`
	QuotationId       *int             `gorm:"index" json:"quotation_id"`
	Date              time.Time        `gorm:"not null" json:"date"`
	DueDate           *time.Time       `json:"due_date"`
	Status            string           `gorm:"size:30;default:'en attente'" json:"status"`
	PaymentMethod     string           `gorm:"size:50" json:"payment_method"`
	Subtotal          decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxRate           decimal.Decimal  `gorm:"type:decimal(5,2);default:18" json:"tax_rate"`
	TaxAmount         decimal.Decimal  `gorm:"type:decimal(12,2);default:0" json:"tax_amount"`
	Total             decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"total"`
	PaidAmount        decimal.Decimal  `gorm:"type:decimal(12,2);default:0" json:"paid_amount"`
	RemainingAmount   decimal.Decimal  `gorm:"type:decimal(12,2);default:0" json:"remaining_amount"`
	Notes             string           `gorm:"type:text" json:"notes"`
	ShowTax           bool             `gorm:"default:true" json:"show_tax"`
	PriceDisplay      string           `gorm:"size:10;default:'TTC'" json:"price_display"`
	HasWarranty       bool             `gorm:"default:false" json:"has_warranty"`
	WarrantyDuration  *int             `json:"warranty_duration"`
	WarrantyStartDate *time.Time       `json:"warranty_start_date"`
	WarrantyEndDate   *time.Time       `json:"warranty_end_date"`
	Items             []InvoiceItem    `gorm:"foreignKey:InvoiceId" json:"items"`
	Payments          []InvoicePayment `gorm:"foreignKey:InvoiceId" json:"payments"`
	ClientName        string           `gorm:"-" json:"client_name"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// InvoiceItem snapshots the product name at sale time; later product renames
// must not rewrite past invoices.
type InvoiceItem struct {
	ID          int             `gorm:"primary_key" json:"item_id"`
	InvoiceId   int             `gorm:"index;not null" json:"invoice_id"`
	ProductId   *int            `gorm:"index" json:"product_id"`
	ProductName string          `gorm:"size:100;not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
}

type InvoicePayment struct {
	ID            int             `gorm:"primary_key" json:"payment_id"`
	InvoiceId     int             `gorm:"index;not null" json:"invoice_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentMethod string          `gorm:"size:50" json:"payment_method"`
	PaymentDate   time.Time       `json:"payment_date"`
	Reference     string          `gorm:"size:100" json:"reference"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewInvoiceItem struct {
	ProductId   *int            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	VariantId   *int            `json:"variant_id"`
}

type NewInvoice struct {
	InvoiceNumber    string           `json:"invoice_number"`
	ClientId         int              `json:"client_id" binding:"required"`
	QuotationId      *int             `json:"quotation_id"`
	Date             time.Time        `json:"date" binding:"required"`
	DueDate          *time.Time       `json:"due_date"`
	PaymentMethod    string           `json:"payment_method"`
	Subtotal         decimal.Decimal  `json:"subtotal"`
	TaxRate          decimal.Decimal  `json:"tax_rate"`
	TaxAmount        decimal.Decimal  `json:"tax_amount"`
	Total            decimal.Decimal  `json:"total"`
	Notes            string           `json:"notes"`
	ShowTax          bool             `json:"show_tax"`
	PriceDisplay     string           `json:"price_display"`
	HasWarranty      bool             `json:"has_warranty"`
	WarrantyDuration *int             `json:"warranty_duration"`
	Items            []NewInvoiceItem `json:"items"`
}

type NewInvoicePayment struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethod string          `json:"payment_method"`
	PaymentDate   *time.Time      `json:"payment_date"`
	Reference     string          `json:"reference"`
	Notes         string          `json:"notes"`
}

// NextInvoiceNumber returns the next free FAC-#### number.
func NextInvoiceNumber(ctx context.Context) (string, error) {
	db := config.GetDB()
	return nextInvoiceNumber(db.WithContext(ctx), "FAC")
}

// nextInvoiceNumber scans existing numbers sharing the prefix and increments
// the highest sequence. Numbers in the exact PREFIX-<digits> shape win; when
// none match, the last digit run of each number is used so legacy free-form
// numbers still seed the sequence. The candidate is then probed for
// collisions until a free number is found.
func nextInvoiceNumber(tx *gorm.DB, prefix string) (string, error) {
	pf := strings.Trim(prefix, "-")
	if pf == "" {
		pf = "FAC"
	}
	basePrefix := pf + "-"

	var numbers []string
	if err := tx.Model(&Invoice{}).Where("invoice_number LIKE ?", basePrefix+"%").
		Pluck("invoice_number", &numbers).Error; err != nil {
		return "", err
	}

	lastSeq := 0
	exact := regexp.MustCompile("^" + regexp.QuoteMeta(pf) + `-(\d+)$`)
	for _, num := range numbers {
		if m := exact.FindStringSubmatch(strings.TrimSpace(num)); m != nil {
			if val, err := strconv.Atoi(m[1]); err == nil && val > lastSeq {
				lastSeq = val
			}
		}
	}
	if lastSeq == 0 {
		digitRun := regexp.MustCompile(`\d+`)
		for _, num := range numbers {
			runs := digitRun.FindAllString(strings.TrimSpace(num), -1)
			if len(runs) == 0 {
				continue
			}
			if val, err := strconv.Atoi(runs[len(runs)-1]); err == nil && val > lastSeq {
				lastSeq = val
			}
		}
	}

	for next := lastSeq + 1; ; next++ {
		candidate := fmt.Sprintf("%s%04d", basePrefix, next)
		var count int64
		if err := tx.Model(&Invoice{}).Where("invoice_number = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
}

func warrantyDates(input *NewInvoice) (*time.Time, *time.Time) {
	if !input.HasWarranty || input.WarrantyDuration == nil || *input.WarrantyDuration <= 0 {
		return nil, nil
	}
	start := input.Date
	end := start.AddDate(0, 0, *input.WarrantyDuration*30)
	return &start, &end
}

// CreateInvoice creates the invoice, applies stock for each product line and
// marks named variants sold, all in one transaction. An empty or taken
// invoice number falls back to the next generated one.
func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
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

	number, err := resolveInvoiceNumber(tx, input.InvoiceNumber)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	warrantyStart, warrantyEnd := warrantyDates(input)
	priceDisplay := input.PriceDisplay
	if priceDisplay == "" {
		priceDisplay = "TTC"
	}

	invoice := Invoice{
		InvoiceNumber:     number,
		ClientId:          input.ClientId,
		QuotationId:       input.QuotationId,
		Date:              input.Date,
		DueDate:           input.DueDate,
		Status:            InvoiceStatusPending,
		PaymentMethod:     input.PaymentMethod,
		Subtotal:          input.Subtotal,
		TaxRate:           input.TaxRate,
		TaxAmount:         input.TaxAmount,
		Total:             input.Total,
		PaidAmount:        decimal.Zero,
		RemainingAmount:   input.Total,
		Notes:             input.Notes,
		ShowTax:           input.ShowTax,
		PriceDisplay:      priceDisplay,
		HasWarranty:       input.HasWarranty,
		WarrantyDuration:  input.WarrantyDuration,
		WarrantyStartDate: warrantyStart,
		WarrantyEndDate:   warrantyEnd,
	}
	if err := tx.Create(&invoice).Error; err != nil {
		config.LogError(logger, "invoice", "CreateInvoice", "insert", input, err)
		tx.Rollback()
		return nil, err
	}

	consumed, err := applyInvoiceItems(tx, &invoice, input.Items, ReferenceInvoice)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	notes := encodeSerialsIntoNotes(input.Notes, consumed)
	if notes != invoice.Notes {
		invoice.Notes = notes
		if err := tx.Model(&Invoice{}).Where("id = ?", invoice.ID).Update("notes", notes).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	refreshInvoiceCaches(ctx)
	return GetInvoiceById(ctx, invoice.ID)
}

// resolveInvoiceNumber honors the requested number unless it is empty, the
// AUTO placeholder, or already taken; in those cases the generator decides.
func resolveInvoiceNumber(tx *gorm.DB, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	upper := strings.ToUpper(requested)
	if requested == "" || upper == "AUTO" || upper == "AUTOMATIC" {
		return nextInvoiceNumber(tx, "FAC")
	}
	var count int64
	if err := tx.Model(&Invoice{}).Where("invoice_number = ?", requested).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return nextInvoiceNumber(tx, "FAC")
	}
	return requested, nil
}

// applyInvoiceItems inserts the line items and applies their stock impact.
// Lines without a product are free-form services and touch no stock. The
// returned map collects consumed variant serials per product for the notes
// metadata block.
func applyInvoiceItems(tx *gorm.DB, invoice *Invoice, items []NewInvoiceItem, refType ReferenceType) (map[int][]string, error) {
	consumed := make(map[int][]string)

	for _, itemData := range items {
		if itemData.ProductId == nil {
			name := itemData.ProductName
			if name == "" {
				name = "Service"
			}
			item := InvoiceItem{
				InvoiceId:   invoice.ID,
				ProductName: utils.Truncate(name, 100),
				Quantity:    itemData.Quantity,
				Price:       itemData.Price,
				Total:       itemData.Total,
			}
			if err := tx.Create(&item).Error; err != nil {
				return nil, err
			}
			continue
		}

		var product Product
		if err := tx.First(&product, *itemData.ProductId).Error; err != nil {
			return nil, fmt.Errorf("%w: product %d", utils.ErrorRecordNotFound, *itemData.ProductId)
		}
		if product.Quantity < itemData.Quantity {
			return nil, fmt.Errorf("%w: product %s has %d in stock, %d requested",
				utils.ErrorInsufficientStock, product.Name, product.Quantity, itemData.Quantity)
		}

		if itemData.VariantId != nil {
			var variant ProductVariant
			if err := tx.First(&variant, *itemData.VariantId).Error; err != nil {
				return nil, fmt.Errorf("%w: variant %d", utils.ErrorRecordNotFound, *itemData.VariantId)
			}
			if variant.ProductId != product.ID {
				return nil, fmt.Errorf("%w: variant %d does not belong to product %d",
					utils.ErrorInvalidState, variant.ID, product.ID)
			}
			if variant.IsSold {
				return nil, fmt.Errorf("%w: variant %s already sold", utils.ErrorInvalidState, variant.ImeiSerial)
			}
			if err := tx.Model(&ProductVariant{}).Where("id = ?", variant.ID).
				Update("is_sold", true).Error; err != nil {
				return nil, err
			}
			consumed[product.ID] = append(consumed[product.ID], variant.ImeiSerial)
		}

		name := itemData.ProductName
		if name == "" {
			name = product.Name
		}
		item := InvoiceItem{
			InvoiceId:   invoice.ID,
			ProductId:   itemData.ProductId,
			ProductName: utils.Truncate(name, 100),
			Quantity:    itemData.Quantity,
			Price:       itemData.Price,
			Total:       itemData.Total,
		}
		if err := tx.Create(&item).Error; err != nil {
			return nil, err
		}

		product.Quantity -= itemData.Quantity
		if err := tx.Model(&Product{}).Where("id = ?", product.ID).
			Update("quantity", product.Quantity).Error; err != nil {
			return nil, err
		}

		notes := fmt.Sprintf("Vente - Facture %s", invoice.InvoiceNumber)
		if refType == ReferenceInvoiceUpdate {
			notes = fmt.Sprintf("Mise à jour - Facture %s", invoice.InvoiceNumber)
		}
		movement := StockMovement{
			ProductId:     product.ID,
			Quantity:      itemData.Quantity,
			MovementType:  MovementOut,
			ReferenceType: refType,
			ReferenceId:   invoice.ID,
			Notes:         notes,
			UnitPrice:     itemData.Price,
		}
		// Ledger append failures are logged, never fatal: the sale itself
		// must go through even when the movement row cannot be written.
		if err := createStockMovement(tx, &movement); err != nil {
			config.LogError(config.GetLogger(), "invoice", "applyInvoiceItems", "insert movement", product.ID, err)
		}
	}
	return consumed, nil
}

var lineImeiRe = regexp.MustCompile(`(?i)\(IMEI:\s*([^)]+)\)`)

// releaseSoldVariants reactivates the variants an invoice had consumed, using
// three recovery tiers of decreasing reliability:
//
//  1. the __SERIALS__ metadata block in the invoice notes,
//  2. an "(IMEI: ...)" fragment in the line's name snapshot, for products
//     not already covered by tier 1,
//  3. for remaining products, unsell the first N sold variants where N is
//     the line quantity.
//
// Tier 3 is a heuristic for legacy invoices that carry neither metadata nor
// IMEI in the name; it returns the per-product counts it freed so callers
// can reconcile product quantities. Failures here never abort the caller's
// transaction.
func releaseSoldVariants(tx *gorm.DB, notes string, oldItems []InvoiceItem) map[int]int {
	logger := config.GetLogger()
	processed := make(map[int]bool)
	freedByTier3 := make(map[int]int)

	for _, entry := range ParseSerialsFromNotes(notes) {
		if entry.ProductId != 0 {
			processed[entry.ProductId] = true
		}
		for _, imei := range entry.Imeis {
			if err := unsellVariantByImei(tx, imei); err != nil {
				config.LogError(logger, "invoice", "releaseSoldVariants", "tier1 unsell", imei, err)
			}
		}
	}

	for _, item := range oldItems {
		if item.ProductId == nil || processed[*item.ProductId] {
			continue
		}
		m := lineImeiRe.FindStringSubmatch(item.ProductName)
		if m == nil {
			continue
		}
		imei := strings.TrimSpace(m[1])
		if imei == "" {
			continue
		}
		processed[*item.ProductId] = true
		if err := unsellVariantByImei(tx, imei); err != nil {
			config.LogError(logger, "invoice", "releaseSoldVariants", "tier2 unsell", imei, err)
		}
	}

	for _, item := range oldItems {
		if item.ProductId == nil || processed[*item.ProductId] || item.Quantity <= 0 {
			continue
		}
		var sold []ProductVariant
		err := tx.Where("product_id = ? AND is_sold = ?", *item.ProductId, true).
			Order("id asc").Limit(item.Quantity).Find(&sold).Error
		if err != nil {
			config.LogError(logger, "invoice", "releaseSoldVariants", "tier3 find", *item.ProductId, err)
			continue
		}
		for _, v := range sold {
			if err := tx.Model(&ProductVariant{}).Where("id = ?", v.ID).
				Update("is_sold", false).Error; err != nil {
				config.LogError(logger, "invoice", "releaseSoldVariants", "tier3 unsell", v.ID, err)
				continue
			}
			freedByTier3[*item.ProductId]++
		}
	}
	return freedByTier3
}

func unsellVariantByImei(tx *gorm.DB, imei string) error {
	imei = strings.TrimSpace(imei)
	if imei == "" {
		return nil
	}
	var variant ProductVariant
	err := tx.Where("TRIM(imei_serial) = ?", imei).First(&variant).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	if !variant.IsSold {
		return nil
	}
	return tx.Model(&ProductVariant{}).Where("id = ?", variant.ID).Update("is_sold", false).Error
}

// restoreInvoiceStock gives each product line its quantity back and writes
// the compensating IN movement.
func restoreInvoiceStock(tx *gorm.DB, invoice *Invoice, refType ReferenceType) error {
	for _, item := range invoice.Items {
		if item.ProductId == nil {
			continue
		}
		var product Product
		if err := tx.First(&product, *item.ProductId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return err
		}
		if err := tx.Model(&Product{}).Where("id = ?", product.ID).
			Update("quantity", product.Quantity+item.Quantity).Error; err != nil {
			return err
		}

		notes := fmt.Sprintf("Annulation facture %s", invoice.InvoiceNumber)
		if refType == ReferenceInvoiceUpdateRevert {
			notes = fmt.Sprintf("Revert mise à jour facture %s", invoice.InvoiceNumber)
		}
		movement := StockMovement{
			ProductId:     product.ID,
			Quantity:      item.Quantity,
			MovementType:  MovementIn,
			ReferenceType: refType,
			ReferenceId:   invoice.ID,
			Notes:         notes,
			UnitPrice:     item.Price,
		}
		if err := createStockMovement(tx, &movement); err != nil {
			config.LogError(config.GetLogger(), "invoice", "restoreInvoiceStock", "insert movement", product.ID, err)
		}
	}
	return nil
}

// UpdateInvoice replaces an invoice's content with full stock and variant
// reconciliation: the old lines are reverted (stock restored IN, sold
// variants released), then the new lines are applied exactly like a create.
// Existing payments are kept and the status re-derived from them, except
// that a cancelled invoice keeps its status.
func UpdateInvoice(ctx context.Context, id int, input *NewInvoice) (*Invoice, error) {
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
	if err := tx.Preload("Items").First(&invoice, id).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: invoice %d", utils.ErrorRecordNotFound, id)
	}

	requested := strings.TrimSpace(input.InvoiceNumber)
	if requested != "" && requested != invoice.InvoiceNumber {
		var count int64
		if err := tx.Model(&Invoice{}).Where("invoice_number = ? AND id <> ?", requested, id).
			Count(&count).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if count > 0 {
			tx.Rollback()
			return nil, fmt.Errorf("%w: invoice number %s already used", utils.ErrorConflict, requested)
		}
		invoice.InvoiceNumber = requested
	}

	var client Client
	if err := tx.First(&client, input.ClientId).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: client %d", utils.ErrorRecordNotFound, input.ClientId)
	}

	// Revert phase.
	if err := restoreInvoiceStock(tx, &invoice, ReferenceInvoiceUpdateRevert); err != nil {
		config.LogError(logger, "invoice", "UpdateInvoice", "restore stock", id, err)
		tx.Rollback()
		return nil, err
	}
	releaseSoldVariants(tx, invoice.Notes, invoice.Items)

	if err := tx.Where("invoice_id = ?", id).Delete(&InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Apply phase.
	invoice.ClientId = input.ClientId
	invoice.QuotationId = input.QuotationId
	invoice.Date = input.Date
	invoice.DueDate = input.DueDate
	invoice.PaymentMethod = input.PaymentMethod
	invoice.Subtotal = input.Subtotal
	invoice.TaxRate = input.TaxRate
	invoice.TaxAmount = input.TaxAmount
	invoice.Total = input.Total
	invoice.ShowTax = input.ShowTax
	if input.PriceDisplay != "" {
		invoice.PriceDisplay = input.PriceDisplay
	}
	invoice.HasWarranty = input.HasWarranty
	invoice.WarrantyDuration = input.WarrantyDuration
	invoice.WarrantyStartDate, invoice.WarrantyEndDate = warrantyDates(input)

	invoice.RemainingAmount = invoice.Total.Sub(invoice.PaidAmount)
	if invoice.RemainingAmount.IsNegative() {
		invoice.RemainingAmount = decimal.Zero
	}
	if invoice.Status != InvoiceStatusCancelled {
		switch {
		case invoice.RemainingAmount.IsZero():
			invoice.Status = InvoiceStatusPaid
		case invoice.PaidAmount.IsPositive():
			invoice.Status = InvoiceStatusPartial
		default:
			invoice.Status = InvoiceStatusPending
		}
	}

	consumed, err := applyInvoiceItems(tx, &invoice, input.Items, ReferenceInvoiceUpdate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	invoice.Notes = encodeSerialsIntoNotes(input.Notes, consumed)

	invoice.Items = nil
	if err := tx.Omit(clause.Associations).Save(&invoice).Error; err != nil {
		config.LogError(logger, "invoice", "UpdateInvoice", "save", id, err)
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	refreshInvoiceCaches(ctx)
	return GetInvoiceById(ctx, id)
}

// DeleteInvoice removes an invoice after restoring stock and releasing sold
// variants. Linked delivery notes go with it. Tier-3 variant recovery also
// bumps the product quantity by the number of variants it freed, since those
// products track quantity through variants.
func DeleteInvoice(ctx context.Context, id int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if err := tx.Error; err != nil {
		return err
	}

	var invoice Invoice
	if err := tx.Preload("Items").First(&invoice, id).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: invoice %d", utils.ErrorRecordNotFound, id)
	}

	if err := restoreInvoiceStock(tx, &invoice, ReferenceInvoiceCancellation); err != nil {
		config.LogError(logger, "invoice", "DeleteInvoice", "restore stock", id, err)
		tx.Rollback()
		return err
	}

	freed := releaseSoldVariants(tx, invoice.Notes, invoice.Items)
	for productId, count := range freed {
		if count <= 0 {
			continue
		}
		var product Product
		if err := tx.First(&product, productId).Error; err != nil {
			continue
		}
		if err := tx.Model(&Product{}).Where("id = ?", productId).
			Update("quantity", product.Quantity+count).Error; err != nil {
			config.LogError(logger, "invoice", "DeleteInvoice", "tier3 quantity", productId, err)
		}
	}

	if err := deleteDeliveryNotesForInvoice(tx, id); err != nil {
		config.LogError(logger, "invoice", "DeleteInvoice", "delete delivery notes", id, err)
		tx.Rollback()
		return err
	}

	if err := tx.Where("invoice_id = ?", id).Delete(&InvoicePayment{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("invoice_id = ?", id).Delete(&InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&Invoice{}, id).Error; err != nil {
		config.LogError(logger, "invoice", "DeleteInvoice", "delete", id, err)
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	refreshInvoiceCaches(ctx)
	return nil
}

// AddInvoicePayment records a payment, capped to the remaining balance.
// Amounts are rounded to whole currency units before the cap comparison.
func AddInvoicePayment(ctx context.Context, invoiceId int, input *NewInvoicePayment) (*InvoicePayment, error) {
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
	if err := tx.First(&invoice, invoiceId).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: invoice %d", utils.ErrorRecordNotFound, invoiceId)
	}
	if invoice.Status == InvoiceStatusCancelled {
		tx.Rollback()
		return nil, fmt.Errorf("%w: invoice %s is cancelled", utils.ErrorInvalidState, invoice.InvoiceNumber)
	}
	if !input.Amount.IsPositive() {
		tx.Rollback()
		return nil, fmt.Errorf("%w: payment amount must be positive", utils.ErrorInvalidState)
	}

	amount := input.Amount.Round(0)
	remaining := invoice.RemainingAmount.Round(0)
	if amount.GreaterThan(remaining) {
		tx.Rollback()
		return nil, fmt.Errorf("%w: payment %s exceeds remaining balance %s",
			utils.ErrorInvalidState, amount, remaining)
	}

	paymentDate := time.Now()
	if input.PaymentDate != nil {
		paymentDate = *input.PaymentDate
	}
	payment := InvoicePayment{
		InvoiceId:     invoiceId,
		Amount:        amount,
		PaymentMethod: input.PaymentMethod,
		PaymentDate:   paymentDate,
		Reference:     input.Reference,
		Notes:         input.Notes,
	}
	if err := tx.Create(&payment).Error; err != nil {
		config.LogError(logger, "invoice", "AddInvoicePayment", "insert", invoiceId, err)
		tx.Rollback()
		return nil, err
	}

	invoice.PaidAmount = invoice.PaidAmount.Add(amount)
	invoice.RemainingAmount = remaining.Sub(amount)
	if invoice.RemainingAmount.IsZero() {
		invoice.Status = InvoiceStatusPaid
	} else if invoice.PaidAmount.IsPositive() {
		invoice.Status = InvoiceStatusPartial
	}

	err := tx.Model(&Invoice{}).Where("id = ?", invoiceId).Updates(map[string]interface{}{
		"paid_amount":      invoice.PaidAmount,
		"remaining_amount": invoice.RemainingAmount,
		"status":           invoice.Status,
	}).Error
	if err != nil {
		config.LogError(logger, "invoice", "AddInvoicePayment", "update invoice", invoiceId, err)
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	refreshInvoiceCaches(ctx)
	return &payment, nil
}

var validInvoiceStatuses = map[string]bool{
	InvoiceStatusPending:   true,
	InvoiceStatusPartial:   true,
	InvoiceStatusPaid:      true,
	InvoiceStatusOverdue:   true,
	InvoiceStatusCancelled: true,
}

func UpdateInvoiceStatus(ctx context.Context, id int, status string) error {
	db := config.GetDB()

	if !validInvoiceStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", utils.ErrorInvalidState, status)
	}

	result := db.WithContext(ctx).Model(&Invoice{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: invoice %d", utils.ErrorRecordNotFound, id)
	}
	refreshInvoiceCaches(ctx)
	return nil
}

func GetInvoiceById(ctx context.Context, id int) (*Invoice, error) {
	db := config.GetDB()

	var invoice Invoice
	err := db.WithContext(ctx).Preload("Items").Preload("Payments").First(&invoice, id).Error
	if err != nil {
		return nil, fmt.Errorf("%w: invoice %d", utils.ErrorRecordNotFound, id)
	}

	var client Client
	if err := db.WithContext(ctx).First(&client, invoice.ClientId).Error; err == nil {
		invoice.ClientName = client.Name
	}
	return &invoice, nil
}

type InvoiceFilter struct {
	Search   string
	Status   string
	ClientId int
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// GetInvoices lists invoices newest first with client names resolved in one
// extra query instead of per row.
func GetInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	query := db.WithContext(ctx).Model(&Invoice{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("invoice_number LIKE ?", like)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ClientId > 0 {
		query = query.Where("client_id = ?", filter.ClientId)
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		config.LogError(logger, "invoice", "GetInvoices", "count", filter, err)
		return nil, 0, err
	}

	var invoices []Invoice
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	err := query.Preload("Items").Order("id desc").Find(&invoices).Error
	if err != nil {
		config.LogError(logger, "invoice", "GetInvoices", "find", filter, err)
		return nil, 0, err
	}

	clientIds := make([]int, 0, len(invoices))
	seen := make(map[int]bool)
	for _, inv := range invoices {
		if !seen[inv.ClientId] {
			seen[inv.ClientId] = true
			clientIds = append(clientIds, inv.ClientId)
		}
	}
	if len(clientIds) > 0 {
		var clients []Client
		if err := db.WithContext(ctx).Where("id IN ?", clientIds).Find(&clients).Error; err == nil {
			names := make(map[int]string, len(clients))
			for _, c := range clients {
				names[c.ID] = c.Name
			}
			for i := range invoices {
				invoices[i].ClientName = names[invoices[i].ClientId]
			}
		}
	}
	return invoices, total, nil
}

// refreshInvoiceCaches drops the list cache and recomputes the persisted
// dashboard aggregates. Best-effort: stats failures never surface to the
// caller who just finished a successful write.
func refreshInvoiceCaches(ctx context.Context) {
	InvoiceListCache.Clear()
	if _, err := RecomputeInvoiceStats(ctx); err != nil {
		config.LogError(config.GetLogger(), "invoice", "refreshInvoiceCaches", "recompute stats", nil, err)
	}
}
