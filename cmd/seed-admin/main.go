// seed-admin creates or resets the admin user so a fresh deployment can log
// in. Credentials come from ADMIN_USERNAME / ADMIN_PASSWORD, defaulting to
// admin / admin123.
//
// Usage:
//
//	DB_DRIVER=sqlite go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/models"
	"github.com/abdoul9859/techplus/utils"
	"gorm.io/gorm"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	var user models.User
	err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	switch err {
	case nil:
		hashed, herr := utils.HashPassword(password)
		if herr != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", herr)
			os.Exit(1)
		}
		user.Password = hashed
		user.Role = models.RoleAdmin
		user.IsActive = true
		if err := db.WithContext(ctx).Save(&user).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("admin user %q updated (id=%d)\n", username, user.ID)
	case gorm.ErrRecordNotFound:
		created, cerr := models.CreateUser(ctx, &models.NewUser{
			Username: username,
			Password: password,
			Role:     models.RoleAdmin,
			FullName: "Administrateur",
		})
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin: %v\n", cerr)
			os.Exit(1)
		}
		fmt.Printf("admin user %q created (id=%d)\n", username, created.ID)
	default:
		fmt.Fprintf(os.Stderr, "failed to lookup admin: %v\n", err)
		os.Exit(1)
	}
}
