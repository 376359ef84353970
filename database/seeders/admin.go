package seeders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/leppupy/app/models"
	"github.com/shashiranjanraj/leppupy/app/repositories"
	"github.com/shashiranjanraj/leppupy/config"
	"github.com/shashiranjanraj/leppupy/pkg/auth"
)

func init() {
	Register("admin", SeedAdmin)
}

// SeedAdmin creates the first administrator from SEED_ADMIN_EMAIL and
// SEED_ADMIN_PASSWORD. An existing account with that email is left alone.
func SeedAdmin(ctx context.Context, store repositories.Store) error {
	email := config.Get("SEED_ADMIN_EMAIL", "admin@leppupy.local")
	password := config.Get("SEED_ADMIN_PASSWORD", "")
	if password == "" {
		return errors.New("SEED_ADMIN_PASSWORD is not set")
	}

	_, err := store.Users().FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return store.Users().Insert(ctx, &models.User{
		Name:           config.Get("SEED_ADMIN_NAME", "Administrador"),
		Phone:          config.Get("SEED_ADMIN_PHONE", "0000000000"),
		Email:          email,
		Role:           models.RoleAdmin,
		PasswordDigest: digest,
		Verified:       true,
		CreatedAt:      time.Now().UTC(),
	})
}
