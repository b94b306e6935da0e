package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
	"gorm.io/gorm/clause"
)

type AppSetting struct {
	Key       string    `gorm:"primaryKey;size:50" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const settingProductConditions = "product_conditions"

type ProductConditions struct {
	Options []string `json:"options"`
	Default string   `json:"default"`
}

func defaultProductConditions() ProductConditions {
	return ProductConditions{
		Options: []string{"neuf", "occasion", "venant"},
		Default: "neuf",
	}
}

// GetProductConditions returns the allowed product condition labels. Missing
// or unreadable settings fall back to the built-in list.
func GetProductConditions(ctx context.Context) ProductConditions {
	db := config.GetDB()

	var setting AppSetting
	err := db.WithContext(ctx).Where("key = ?", settingProductConditions).First(&setting).Error
	if err != nil {
		return defaultProductConditions()
	}

	var conditions ProductConditions
	if err := json.Unmarshal([]byte(setting.Value), &conditions); err != nil || len(conditions.Options) == 0 {
		return defaultProductConditions()
	}
	if conditions.Default == "" {
		conditions.Default = conditions.Options[0]
	}
	return conditions
}

func SetProductConditions(ctx context.Context, input ProductConditions) (ProductConditions, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	options := make([]string, 0, len(input.Options))
	for _, opt := range input.Options {
		opt = strings.TrimSpace(opt)
		if opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) == 0 {
		return ProductConditions{}, fmt.Errorf("%w: conditions list cannot be empty", utils.ErrorInvalidState)
	}

	def := strings.TrimSpace(input.Default)
	found := false
	for _, opt := range options {
		if opt == def {
			found = true
			break
		}
	}
	if !found {
		def = options[0]
	}

	conditions := ProductConditions{Options: options, Default: def}
	payload, err := json.Marshal(conditions)
	if err != nil {
		return ProductConditions{}, err
	}

	setting := AppSetting{Key: settingProductConditions, Value: string(payload)}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		config.LogError(logger, "settings", "SetProductConditions", "upsert", conditions, err)
		return ProductConditions{}, err
	}
	return conditions, nil
}
