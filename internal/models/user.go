package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityProvider identifies how a user signed in.
type IdentityProvider string

const (
	ProviderGoogle    IdentityProvider = "google"
	ProviderMicrosoft IdentityProvider = "microsoft"
	ProviderDemo      IdentityProvider = "demo"
)

// Valid reports whether p is a known identity provider.
func (p IdentityProvider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderMicrosoft, ProviderDemo:
		return true
	}
	return false
}

// User is a dashboard account. Password is set only for demo accounts;
// google and microsoft users carry no local credential.
type User struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	Password  string           `json:"-"`
	Name      string           `json:"name"`
	Picture   string           `json:"picture,omitempty"`
	Provider  IdentityProvider `json:"provider"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// UserPublic is the safe subset returned to clients.
type UserPublic struct {
	ID       uuid.UUID        `json:"id"`
	Email    string           `json:"email"`
	Name     string           `json:"name"`
	Picture  string           `json:"picture,omitempty"`
	Provider IdentityProvider `json:"provider"`
}

// ToPublic strips credential fields.
func (u *User) ToPublic() UserPublic {
	return UserPublic{ID: u.ID, Email: u.Email, Name: u.Name, Picture: u.Picture, Provider: u.Provider}
}
