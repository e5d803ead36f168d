package auth

import (
	"context"

	"github.com/odontosync/backend/internal/models"
	"github.com/odontosync/backend/pkg/utils"
)

// EnsureDemo creates the local demo account when it does not exist yet.
// Credentials come from configuration; an existing account is left alone
// so a password change survives restarts.
func (r *Repository) EnsureDemo(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := r.GetByEmail(ctx, email, models.ProviderDemo); err == nil {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = r.CreateDemo(ctx, email, hash, name)
	return err
}
