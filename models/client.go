package models

import (
	"context"
	"fmt"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
)

type Client struct {
	ID         int       `gorm:"primary_key" json:"client_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Contact    string    `gorm:"size:100" json:"contact"`
	Email      string    `gorm:"size:100" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Address    string    `gorm:"type:text" json:"address"`
	City       string    `gorm:"size:50" json:"city"`
	PostalCode string    `gorm:"size:10" json:"postal_code"`
	Country    string    `gorm:"size:50;default:'Sénégal'" json:"country"`
	TaxNumber  string    `gorm:"size:50" json:"tax_number"`
	Notes      string    `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewClient struct {
	Name       string `json:"name" binding:"required"`
	Contact    string `json:"contact"`
	Email      string `json:"email" binding:"omitempty,email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	TaxNumber  string `json:"tax_number"`
	Notes      string `json:"notes"`
}

func CreateClient(ctx context.Context, input *NewClient) (*Client, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, fmt.Errorf("%w: invalid phone number %s", utils.ErrorInvalidState, input.Phone)
		}
	}

	country := input.Country
	if country == "" {
		country = "Sénégal"
	}
	client := Client{
		Name:       input.Name,
		Contact:    input.Contact,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		City:       input.City,
		PostalCode: input.PostalCode,
		Country:    country,
		TaxNumber:  input.TaxNumber,
		Notes:      input.Notes,
	}
	if err := db.WithContext(ctx).Create(&client).Error; err != nil {
		config.LogError(logger, "client", "CreateClient", "insert", input, err)
		return nil, err
	}
	return &client, nil
}

func UpdateClient(ctx context.Context, id int, input *NewClient) (*Client, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	var client Client
	if err := db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, fmt.Errorf("%w: client %d", utils.ErrorRecordNotFound, id)
	}

	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, fmt.Errorf("%w: invalid phone number %s", utils.ErrorInvalidState, input.Phone)
		}
	}

	client.Name = input.Name
	client.Contact = input.Contact
	client.Email = input.Email
	client.Phone = input.Phone
	client.Address = input.Address
	client.City = input.City
	client.PostalCode = input.PostalCode
	if input.Country != "" {
		client.Country = input.Country
	}
	client.TaxNumber = input.TaxNumber
	client.Notes = input.Notes

	if err := db.WithContext(ctx).Save(&client).Error; err != nil {
		config.LogError(logger, "client", "UpdateClient", "save", id, err)
		return nil, err
	}
	return &client, nil
}

// DeleteClient refuses to remove a client that still has invoices; the
// invoices keep their client_id foreign key and must go first.
func DeleteClient(ctx context.Context, id int) error {
	db := config.GetDB()
	logger := config.GetLogger()

	var client Client
	if err := db.WithContext(ctx).First(&client, id).Error; err != nil {
		return fmt.Errorf("%w: client %d", utils.ErrorRecordNotFound, id)
	}

	var invoiceCount int64
	if err := db.WithContext(ctx).Model(&Invoice{}).Where("client_id = ?", id).Count(&invoiceCount).Error; err != nil {
		config.LogError(logger, "client", "DeleteClient", "count invoices", id, err)
		return err
	}
	if invoiceCount > 0 {
		return fmt.Errorf("%w: client %d has %d invoices", utils.ErrorConflict, id, invoiceCount)
	}

	if err := db.WithContext(ctx).Delete(&client).Error; err != nil {
		config.LogError(logger, "client", "DeleteClient", "delete", id, err)
		return err
	}
	return nil
}

func GetClientById(ctx context.Context, id int) (*Client, error) {
	db := config.GetDB()

	var client Client
	if err := db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, fmt.Errorf("%w: client %d", utils.ErrorRecordNotFound, id)
	}
	return &client, nil
}

// GetClients filters by a free-text search over name, contact, email and
// phone. An empty search returns everything, newest first.
func GetClients(ctx context.Context, search string, limit, offset int) ([]Client, int64, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	query := db.WithContext(ctx).Model(&Client{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR contact LIKE ? OR email LIKE ? OR phone LIKE ?", like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		config.LogError(logger, "client", "GetClients", "count", search, err)
		return nil, 0, err
	}

	var clients []Client
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Order("id desc").Find(&clients).Error; err != nil {
		config.LogError(logger, "client", "GetClients", "find", search, err)
		return nil, 0, err
	}
	return clients, total, nil
}
