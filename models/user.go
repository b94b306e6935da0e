package models

import (
	"context"
	"fmt"
	"time"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/utils"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"user_id"`
	Username  string    `gorm:"size:50;unique;not null" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"size:20;default:'admin'" json:"role"`
	FullName  string    `gorm:"size:100" json:"full_name"`
	Email     string    `gorm:"size:100" json:"email"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type NewUser struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()
	logger := config.GetLogger()

	var count int64
	if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", input.Username).Count(&count).Error; err != nil {
		config.LogError(logger, "user", "CreateUser", "count existing", input.Username, err)
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: username %s already taken", utils.ErrorConflict, input.Username)
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		config.LogError(logger, "user", "CreateUser", "hash password", nil, err)
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = RoleAdmin
	}
	user := User{
		Username: input.Username,
		Password: hashed,
		Role:     role,
		FullName: input.FullName,
		Email:    input.Email,
		IsActive: true,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		config.LogError(logger, "user", "CreateUser", "insert", input.Username, err)
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies the credentials and returns the matching active user.
func Authenticate(ctx context.Context, username, password string) (*User, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Where("username = ? AND is_active = ?", username, true).First(&user).Error
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", utils.ErrorForbidden)
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", utils.ErrorForbidden)
	}
	return &user, nil
}

func GetUserById(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()

	var user User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("%w: user %d", utils.ErrorRecordNotFound, id)
	}
	return &user, nil
}
