package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odontosync/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, COALESCE(password_hash,''), name, COALESCE(picture,''), provider, created_at, updated_at
		FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Picture, &u.Provider, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email and provider. The same mailbox signed
// in through google and through demo are distinct accounts.
func (r *Repository) GetByEmail(ctx context.Context, email string, provider models.IdentityProvider) (*models.User, error) {
	const q = `SELECT id, email, COALESCE(password_hash,''), name, COALESCE(picture,''), provider, created_at, updated_at
		FROM users WHERE email = $1 AND provider = $2`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, string(provider)).Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Picture, &u.Provider, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Upsert inserts or refreshes a federated user on sign-in. Name and picture
// follow whatever the provider reported most recently.
func (r *Repository) Upsert(ctx context.Context, email, name, picture string, provider models.IdentityProvider) (*models.User, error) {
	const q = `INSERT INTO users (email, name, picture, provider)
		VALUES ($1, $2, NULLIF($3,''), $4)
		ON CONFLICT (email, provider) DO UPDATE SET name = EXCLUDED.name, picture = EXCLUDED.picture, updated_at = now()
		RETURNING id, email, COALESCE(password_hash,''), name, COALESCE(picture,''), provider, created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, name, picture, string(provider)).
		Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Picture, &u.Provider, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateDemo inserts a demo account with a local password hash.
func (r *Repository) CreateDemo(ctx context.Context, email, passwordHash, name string) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, name, provider)
		VALUES ($1, $2, $3, 'demo')
		RETURNING id, email, COALESCE(password_hash,''), name, COALESCE(picture,''), provider, created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, name).
		Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Picture, &u.Provider, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all users for the settings screen.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, name, COALESCE(picture,''), provider
		FROM users ORDER BY name, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.Provider); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
