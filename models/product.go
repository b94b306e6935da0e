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
	"gorm.io/gorm/clause"
)

type Product struct {
	ID              int              `gorm:"primary_key" json:"product_id"`
	Name            string           `gorm:"size:500;not null" json:"name"`
	Description     string           `gorm:"type:text" json:"description"`
	Quantity        int              `gorm:"not null;default:0" json:"quantity"`
	Price           decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"price"`
	PurchasePrice   decimal.Decimal  `gorm:"type:decimal(12,2);default:0" json:"purchase_price"`
	Category        string           `gorm:"size:50;index" json:"category"`
	Brand           string           `gorm:"size:100" json:"brand"`
	Model           string           `gorm:"size:100" json:"model"`
	Barcode         *string          `gorm:"size:255;unique" json:"barcode"`
	Condition       string           `gorm:"size:50;default:'neuf'" json:"condition"`
	HasUniqueSerial bool             `gorm:"default:false" json:"has_unique_serial"`
	EntryDate       *time.Time       `json:"entry_date"`
	Notes           string           `gorm:"type:text" json:"notes"`
	Variants        []ProductVariant `gorm:"foreignKey:ProductId" json:"variants"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

type ProductVariant struct {
	ID         int                       `gorm:"primary_key" json:"variant_id"`
	ProductId  int                       `gorm:"index;not null" json:"product_id"`
	ImeiSerial string                    `gorm:"size:255;unique;not null" json:"imei_serial"`
	Barcode    *string                   `gorm:"size:128;unique" json:"barcode"`
	Condition  string                    `gorm:"size:50" json:"condition"`
	IsSold     bool                      `gorm:"default:false;index" json:"is_sold"`
	Attributes []ProductVariantAttribute `gorm:"foreignKey:VariantId" json:"attributes"`
	CreatedAt  time.Time                 `gorm:"autoCreateTime" json:"created_at"`
}

type ProductVariantAttribute struct {
	ID             int    `gorm:"primary_key" json:"attribute_id"`
	VariantId      int    `gorm:"index;not null" json:"variant_id"`
	AttributeName  string `gorm:"size:50;not null" json:"attribute_name"`
	AttributeValue string `gorm:"size:100;not null" json:"attribute_value"`
}

type NewVariantAttribute struct {
	AttributeName  string `json:"attribute_name" binding:"required"`
	AttributeValue string `json:"attribute_value"`
}

type NewProductVariant struct {
	ImeiSerial string                `json:"imei_serial"`
	Barcode    *string               `json:"barcode"`
	Condition  string                `json:"condition"`
	Attributes []NewVariantAttribute `json:"attributes"`
}

type NewProduct struct {
	Name            string              `json:"name" binding:"required"`
	Description     string              `json:"description"`
	Quantity        int                 `json:"quantity"`
	Price           decimal.Decimal     `json:"price"`
	PurchasePrice   decimal.Decimal     `json:"purchase_price"`
	Category        string              `json:"category"`
	Brand           string              `json:"brand"`
	Model           string              `json:"model"`
	Barcode         *string             `json:"barcode"`
	Condition       string              `json:"condition"`
	HasUniqueSerial bool                `json:"has_unique_serial"`
	EntryDate       *time.Time          `json:"entry_date"`
	Notes           string              `json:"notes"`
	Variants        []NewProductVariant `json:"variants"`
}

// UpdateProductInput uses pointers so absent fields are left untouched.
// Variants follows the same convention: nil means "do not touch variants",
// an empty slice means "this product should end up with no variants".
type UpdateProductInput struct {
	Name            *string              `json:"name"`
	Description     *string              `json:"description"`
	Quantity        *int                 `json:"quantity"`
	Price           *decimal.Decimal     `json:"price"`
	PurchasePrice   *decimal.Decimal     `json:"purchase_price"`
	Category        *string              `json:"category"`
	Brand           *string              `json:"brand"`
	Model           *string              `json:"model"`
	Barcode         *string              `json:"barcode"`
	Condition       *string              `json:"condition"`
	HasUniqueSerial *bool                `json:"has_unique_serial"`
	EntryDate       *time.Time           `json:"entry_date"`
	Notes           *string              `json:"notes"`
	Variants        *[]NewProductVariant `json:"variants"`
	DeletedVariants []int                `json:"deleted_variants"`
}

func validateVariantPayload(variants []NewProductVariant) error {
	seenImeis := make(map[string]bool)
	seenBarcodes := make(map[string]bool)
	for _, v := range variants {
		imei := strings.TrimSpace(v.ImeiSerial)
		if imei == "" {
			return fmt.Errorf("%w: every variant needs an IMEI/serial", utils.ErrorInvalidState)
		}
		if seenImeis[imei] {
			return fmt.Errorf("%w: duplicate IMEI %s in payload", utils.ErrorConflict, imei)
		}
		seenImeis[imei] = true
		if v.Barcode != nil && *v.Barcode != "" {
			if seenBarcodes[*v.Barcode] {
				return fmt.Errorf("%w: duplicate variant barcode %s in payload", utils.ErrorConflict, *v.Barcode)
			}
			seenBarcodes[*v.Barcode] = true
		}
	}
	return nil
}

// variantImeiTaken reports whether another product already owns this serial.
func variantImeiTaken(tx *gorm.DB, imei string, excludeProductId int) (bool, error) {
	var count int64
	query := tx.Model(&ProductVariant{}).Where("imei_serial = ?", imei)
	if excludeProductId > 0 {
		query = query.Where("product_id <> ?", excludeProductId)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func variantBarcodeTaken(tx *gorm.DB, barcode string, excludeProductId int) (bool, error) {
	var count int64
	query := tx.Model(&ProductVariant{}).Where("barcode = ?", barcode)
	if excludeProductId > 0 {
		query = query.Where("product_id <> ?", excludeProductId)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func validateCondition(ctx context.Context, condition string) error {
	if condition == "" {
		return nil
	}
	conditions := GetProductConditions(ctx)
	for _, opt := range conditions.Options {
		if opt == condition {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown condition %q", utils.ErrorInvalidState, condition)
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	hasVariants := len(input.Variants) > 0
	if hasVariants && input.Barcode != nil && *input.Barcode != "" {
		return nil, fmt.Errorf("%w: a product with variants cannot carry its own barcode", utils.ErrorInvalidState)
	}
	if err := validateCondition(ctx, input.Condition); err != nil {
		return nil, err
	}
	if err := validateVariantPayload(input.Variants); err != nil {
		return nil, err
	}

	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	if err := tx.Error; err != nil {
		return nil, err
	}

	if input.Barcode != nil && *input.Barcode != "" {
		var count int64
		if err := tx.Model(&Product{}).Where("barcode = ?", *input.Barcode).Count(&count).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if count > 0 {
			tx.Rollback()
			return nil, fmt.Errorf("%w: barcode %s already used", utils.ErrorConflict, *input.Barcode)
		}
	}

	quantity := input.Quantity
	if hasVariants {
		quantity = len(input.Variants)
	}

	condition := input.Condition
	if condition == "" {
		condition = GetProductConditions(ctx).Default
	}

	product := Product{
		Name:            input.Name,
		Description:     input.Description,
		Quantity:        quantity,
		Price:           input.Price,
		PurchasePrice:   input.PurchasePrice,
		Category:        input.Category,
		Brand:           input.Brand,
		Model:           input.Model,
		Barcode:         input.Barcode,
		Condition:       condition,
		HasUniqueSerial: input.HasUniqueSerial || hasVariants,
		EntryDate:       input.EntryDate,
		Notes:           input.Notes,
	}
	if err := tx.Create(&product).Error; err != nil {
		config.LogError(logger, "product", "CreateProduct", "insert product", input.Name, err)
		tx.Rollback()
		return nil, err
	}

	for _, v := range input.Variants {
		imei := strings.TrimSpace(v.ImeiSerial)
		taken, err := variantImeiTaken(tx, imei, 0)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if taken {
			tx.Rollback()
			return nil, fmt.Errorf("%w: IMEI %s already registered", utils.ErrorConflict, imei)
		}
		if v.Barcode != nil && *v.Barcode != "" {
			taken, err := variantBarcodeTaken(tx, *v.Barcode, 0)
			if err != nil {
				tx.Rollback()
				return nil, err
			}
			if taken {
				tx.Rollback()
				return nil, fmt.Errorf("%w: variant barcode %s already registered", utils.ErrorConflict, *v.Barcode)
			}
		}

		variant := ProductVariant{
			ProductId:  product.ID,
			ImeiSerial: imei,
			Barcode:    v.Barcode,
			Condition:  v.Condition,
		}
		if err := tx.Create(&variant).Error; err != nil {
			config.LogError(logger, "product", "CreateProduct", "insert variant", imei, err)
			tx.Rollback()
			return nil, err
		}
		if err := replaceVariantAttributes(tx, variant.ID, v.Attributes); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if quantity > 0 {
		movement := StockMovement{
			ProductId:     product.ID,
			Quantity:      quantity,
			MovementType:  MovementIn,
			ReferenceType: ReferenceCreation,
			ReferenceId:   product.ID,
			Notes:         "Stock initial",
			UnitPrice:     input.PurchasePrice,
		}
		if err := createStockMovement(tx, &movement); err != nil {
			config.LogError(logger, "product", "CreateProduct", "insert movement", product.ID, err)
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetProductById(ctx, product.ID)
}

func replaceVariantAttributes(tx *gorm.DB, variantId int, attrs []NewVariantAttribute) error {
	if err := tx.Where("variant_id = ?", variantId).Delete(&ProductVariantAttribute{}).Error; err != nil {
		return err
	}
	for _, a := range attrs {
		attr := ProductVariantAttribute{
			VariantId:      variantId,
			AttributeName:  a.AttributeName,
			AttributeValue: a.AttributeValue,
		}
		if err := tx.Create(&attr).Error; err != nil {
			return err
		}
	}
	return nil
}

// UpdateProduct applies a non-destructive upsert. Once a product has been
// referenced by an invoice its scalar fields are frozen and variants can only
// be added; deleting or rewriting variants would orphan sold serial numbers.
// Products never invoiced accept the full rewrite, including removals listed
// in deleted_variants.
func UpdateProduct(ctx context.Context, id int, input *UpdateProductInput) (*Product, error) {
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

	var product Product
	if err := tx.Preload("Variants").First(&product, id).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: product %d", utils.ErrorRecordNotFound, id)
	}

	var invoiceRefs int64
	if err := tx.Model(&InvoiceItem{}).Where("product_id = ?", id).Count(&invoiceRefs).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	usedInInvoice := invoiceRefs > 0

	willHaveVariants := len(product.Variants) > 0
	if input.Variants != nil {
		willHaveVariants = len(*input.Variants) > 0
	}

	if !usedInInvoice {
		if input.Condition != nil {
			if err := validateCondition(ctx, *input.Condition); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
		if input.Barcode != nil && *input.Barcode != "" {
			if willHaveVariants {
				tx.Rollback()
				return nil, fmt.Errorf("%w: a product with variants cannot carry its own barcode", utils.ErrorInvalidState)
			}
			var count int64
			if err := tx.Model(&Product{}).Where("barcode = ? AND id <> ?", *input.Barcode, id).Count(&count).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
			if count > 0 {
				tx.Rollback()
				return nil, fmt.Errorf("%w: barcode %s already used", utils.ErrorConflict, *input.Barcode)
			}
		}
		applyProductScalars(&product, input)
	}

	if input.Variants != nil {
		if err := validateVariantPayload(*input.Variants); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := upsertVariants(tx, &product, *input.Variants, input.DeletedVariants, usedInInvoice); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := recomputeProductQuantity(tx, &product); err != nil {
		tx.Rollback()
		return nil, err
	}

	product.Variants = nil
	if err := tx.Omit(clause.Associations).Save(&product).Error; err != nil {
		config.LogError(logger, "product", "UpdateProduct", "save", id, err)
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return GetProductById(ctx, id)
}

func applyProductScalars(product *Product, input *UpdateProductInput) {
	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Quantity != nil {
		product.Quantity = *input.Quantity
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.PurchasePrice != nil {
		product.PurchasePrice = *input.PurchasePrice
	}
	if input.Category != nil {
		product.Category = *input.Category
	}
	if input.Brand != nil {
		product.Brand = *input.Brand
	}
	if input.Model != nil {
		product.Model = *input.Model
	}
	if input.Barcode != nil {
		product.Barcode = input.Barcode
	}
	if input.Condition != nil {
		product.Condition = *input.Condition
	}
	if input.HasUniqueSerial != nil {
		product.HasUniqueSerial = *input.HasUniqueSerial
	}
	if input.EntryDate != nil {
		product.EntryDate = input.EntryDate
	}
	if input.Notes != nil {
		product.Notes = *input.Notes
	}
}

func upsertVariants(tx *gorm.DB, product *Product, incoming []NewProductVariant, deletedIds []int, usedInInvoice bool) error {
	existingByImei := make(map[string]*ProductVariant, len(product.Variants))
	for i := range product.Variants {
		existingByImei[strings.TrimSpace(product.Variants[i].ImeiSerial)] = &product.Variants[i]
	}

	incomingImeis := make(map[string]bool, len(incoming))
	for _, v := range incoming {
		imei := strings.TrimSpace(v.ImeiSerial)
		incomingImeis[imei] = true

		existing, ok := existingByImei[imei]
		if ok {
			if usedInInvoice {
				continue
			}
			if v.Barcode != nil {
				existing.Barcode = v.Barcode
			}
			if v.Condition != "" {
				existing.Condition = v.Condition
			}
			if err := tx.Save(existing).Error; err != nil {
				return err
			}
			if err := replaceVariantAttributes(tx, existing.ID, v.Attributes); err != nil {
				return err
			}
			continue
		}

		taken, err := variantImeiTaken(tx, imei, product.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: IMEI %s already registered", utils.ErrorConflict, imei)
		}
		if v.Barcode != nil && *v.Barcode != "" {
			taken, err := variantBarcodeTaken(tx, *v.Barcode, product.ID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: variant barcode %s already registered", utils.ErrorConflict, *v.Barcode)
			}
		}

		variant := ProductVariant{
			ProductId:  product.ID,
			ImeiSerial: imei,
			Barcode:    v.Barcode,
			Condition:  v.Condition,
		}
		if err := tx.Create(&variant).Error; err != nil {
			return err
		}
		if err := replaceVariantAttributes(tx, variant.ID, v.Attributes); err != nil {
			return err
		}
	}

	if usedInInvoice {
		return nil
	}

	for imei, existing := range existingByImei {
		if incomingImeis[imei] {
			continue
		}
		if err := deleteVariant(tx, existing); err != nil {
			return err
		}
	}
	for _, variantId := range deletedIds {
		var variant ProductVariant
		if err := tx.Where("id = ? AND product_id = ?", variantId, product.ID).First(&variant).Error; err != nil {
			continue
		}
		if incomingImeis[strings.TrimSpace(variant.ImeiSerial)] {
			continue
		}
		if err := deleteVariant(tx, &variant); err != nil {
			return err
		}
	}
	return nil
}

func deleteVariant(tx *gorm.DB, variant *ProductVariant) error {
	if err := tx.Where("variant_id = ?", variant.ID).Delete(&ProductVariantAttribute{}).Error; err != nil {
		return err
	}
	return tx.Delete(&ProductVariant{}, variant.ID).Error
}

// recomputeProductQuantity derives quantity from unsold variants for
// serial-tracked products. Plain products keep their manual quantity.
func recomputeProductQuantity(tx *gorm.DB, product *Product) error {
	var variantCount int64
	if err := tx.Model(&ProductVariant{}).Where("product_id = ?", product.ID).Count(&variantCount).Error; err != nil {
		return err
	}
	if variantCount == 0 {
		return nil
	}
	var unsold int64
	if err := tx.Model(&ProductVariant{}).Where("product_id = ? AND is_sold = ?", product.ID, false).Count(&unsold).Error; err != nil {
		return err
	}
	product.Quantity = int(unsold)
	return nil
}

func DeleteProduct(ctx context.Context, id int) error {
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

	var product Product
	if err := tx.First(&product, id).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: product %d", utils.ErrorRecordNotFound, id)
	}

	var invoiceRefs int64
	if err := tx.Model(&InvoiceItem{}).Where("product_id = ?", id).Count(&invoiceRefs).Error; err != nil {
		tx.Rollback()
		return err
	}
	if invoiceRefs > 0 {
		tx.Rollback()
		return fmt.Errorf("%w: product %d is referenced by invoices", utils.ErrorConflict, id)
	}

	if product.Quantity > 0 {
		movement := StockMovement{
			ProductId:     product.ID,
			Quantity:      -product.Quantity,
			MovementType:  MovementOut,
			ReferenceType: ReferenceDeletion,
			ReferenceId:   product.ID,
			Notes:         "Suppression du produit",
			UnitPrice:     product.PurchasePrice,
		}
		if err := createStockMovement(tx, &movement); err != nil {
			config.LogError(logger, "product", "DeleteProduct", "insert movement", id, err)
			tx.Rollback()
			return err
		}
	}

	var variantIds []int
	if err := tx.Model(&ProductVariant{}).Where("product_id = ?", id).Pluck("id", &variantIds).Error; err != nil {
		tx.Rollback()
		return err
	}
	if len(variantIds) > 0 {
		if err := tx.Where("variant_id IN ?", variantIds).Delete(&ProductVariantAttribute{}).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&ProductVariant{}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Delete(&Product{}, id).Error; err != nil {
		config.LogError(logger, "product", "DeleteProduct", "delete", id, err)
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func GetProductById(ctx context.Context, id int) (*Product, error) {
	db := config.GetDB()

	var product Product
	err := db.WithContext(ctx).Preload("Variants").Preload("Variants.Attributes").First(&product, id).Error
	if err != nil {
		return nil, fmt.Errorf("%w: product %d", utils.ErrorRecordNotFound, id)
	}
	return &product, nil
}

type ProductFilter struct {
	Search   string
	Category string
	Brand    string
	InStock  bool
	Limit    int
	Offset   int
}

func GetProducts(ctx context.Context, filter ProductFilter) ([]Product, int64, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	query := db.WithContext(ctx).Model(&Product{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR brand LIKE ? OR model LIKE ? OR barcode LIKE ?", like, like, like, like)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Brand != "" {
		query = query.Where("brand = ?", filter.Brand)
	}
	if filter.InStock {
		query = query.Where("quantity > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		config.LogError(logger, "product", "GetProducts", "count", filter, err)
		return nil, 0, err
	}

	var products []Product
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	err := query.Preload("Variants").Preload("Variants.Attributes").Order("id desc").Find(&products).Error
	if err != nil {
		config.LogError(logger, "product", "GetProducts", "find", filter, err)
		return nil, 0, err
	}
	return products, total, nil
}

type ScanResult struct {
	Product *Product        `json:"product"`
	Variant *ProductVariant `json:"variant,omitempty"`
	Source  string          `json:"source"`
}

// ScanBarcode resolves a scanned code against product barcodes first, then
// variant barcodes and serial numbers.
func ScanBarcode(ctx context.Context, code string) (*ScanResult, error) {
	db := config.GetDB()

	code = strings.TrimSpace(code)
	var product Product
	err := db.WithContext(ctx).Where("barcode = ?", code).First(&product).Error
	if err == nil {
		full, err := GetProductById(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		return &ScanResult{Product: full, Source: "product"}, nil
	}

	var variant ProductVariant
	err = db.WithContext(ctx).Preload("Attributes").
		Where("barcode = ? OR imei_serial = ?", code, code).First(&variant).Error
	if err == gorm.ErrRecordNotFound && len(code) >= 4 {
		// Scanners sometimes drop leading characters; try a partial match.
		err = db.WithContext(ctx).Preload("Attributes").
			Where("imei_serial LIKE ?", "%"+code+"%").First(&variant).Error
	}
	if err != nil {
		return nil, fmt.Errorf("%w: no product or variant matches %s", utils.ErrorRecordNotFound, code)
	}
	full, err := GetProductById(ctx, variant.ProductId)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Product: full, Variant: &variant, Source: "variant"}, nil
}
