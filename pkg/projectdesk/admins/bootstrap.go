package admins

import (
	"errors"
	"strings"

	"github.com/mikepea/projectdesk/pkg/projectdesk/auth"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/shrimpsizemoose/trekker/logger"
	"gorm.io/gorm"
)

// EnsureRootAdmin creates a root admin with email and password when the
// database has none. It reports whether an account was created.
func EnsureRootAdmin(db *gorm.DB, email, password string) (bool, error) {
	var count int64
	if err := db.Model(&models.Admin{}).Where("admin_role_id = ?", models.AdminRoleRoot).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		logger.Info.Printf("No root admin exists and no default admin credentials are configured")
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	admin := models.Admin{
		FirstName:    "Root",
		LastName:     "Admin",
		Email:        email,
		PasswordHash: hash,
		AdminRoleID:  models.AdminRoleRoot,
	}
	if err := db.Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// the address belongs to a non-root admin, promote it
			return true, db.Model(&models.Admin{}).Where("email = ?", email).
				Update("admin_role_id", models.AdminRoleRoot).Error
		}
		return false, err
	}

	logger.Info.Printf("Created root admin %s", email)
	return true, nil
}
