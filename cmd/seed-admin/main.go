// seed-admin creates or updates the platform admin user (username: trazoAdmin).
// Admin users have role 'A' and bypass tenant scoping.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/models"
	"github.com/anejaagam/trazo-backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "trazoAdmin"
	adminPassword = "Tr@zoAdmin"
	adminName     = "Trazo Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// Attach a real organization id and mark this as admin/bypass tenant scope.
	var org models.Organization
	if err := db.WithContext(ctx).Model(&models.Organization{}).Select("id").First(&org).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			fmt.Fprintln(os.Stderr, "no organizations found in DB. Create an organization first, then rerun seed-admin.")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "failed to lookup organization: %v\n", err)
		os.Exit(1)
	}

	organizationID := org.ID.String()
	ctx = utils.SetOrganizationIdInContext(ctx, organizationID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetUsernameInContext(ctx, adminUsername)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username:       adminUsername,
			Name:           adminName,
			Password:       hashedStr,
			IsActive:       utils.NewTrue(),
			Role:           models.UserRoleAdmin,
			OrganizationId: organizationID,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin)\n", adminUsername)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":        hashedStr,
		"name":            adminName,
		"is_active":       utils.NewTrue(),
		"organization_id": organizationID,
		"role":            models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin user: username=%q (role=Admin)\n", adminUsername)
}
