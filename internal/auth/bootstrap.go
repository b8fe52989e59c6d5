package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

// EnsureAdmin creates the admin account if no user has that email yet.
// An existing user is left untouched, whatever its role.
func EnsureAdmin(ctx context.Context, db *gorm.DB, email, password string, log zerolog.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}

	var existing models.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		if existing.Role != models.RoleAdmin {
			log.Warn().Str("email", email).Str("role", string(existing.Role)).Msg("admin bootstrap email belongs to a non-admin user")
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{Email: email, PasswordHash: string(hash), Role: models.RoleAdmin, FirstName: "Admin"}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("admin user created")
	return nil
}
