package models

import (
	"context"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMovement is the append-only ledger of quantity changes. Rows are never
// updated after insert; corrections get a compensating row instead.
type StockMovement struct {
	ID            int             `gorm:"primary_key" json:"movement_id"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	MovementType  MovementType    `gorm:"size:10;not null" json:"movement_type"`
	ReferenceType ReferenceType   `gorm:"size:30" json:"reference_type"`
	ReferenceId   int             `json:"reference_id"`
	Notes         string          `gorm:"type:text" json:"notes"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"unit_price"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func createStockMovement(tx *gorm.DB, movement *StockMovement) error {
	return tx.Create(movement).Error
}

// GetStockMovements lists ledger rows for one product, or all products when
// productId is zero, newest first.
func GetStockMovements(ctx context.Context, productId, limit, offset int) ([]StockMovement, int64, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	query := db.WithContext(ctx).Model(&StockMovement{})
	if productId > 0 {
		query = query.Where("product_id = ?", productId)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		config.LogError(logger, "stockMovement", "GetStockMovements", "count", productId, err)
		return nil, 0, err
	}

	var movements []StockMovement
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("id desc").Find(&movements).Error; err != nil {
		config.LogError(logger, "stockMovement", "GetStockMovements", "find", productId, err)
		return nil, 0, err
	}
	return movements, total, nil
}
