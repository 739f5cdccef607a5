package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity-provider account mirrored into the local store.
// Rows are upserted on first authenticated contact and refreshed on
// every request; IsAdmin is synced from the provider's group claim.
type User struct {
	ID          uuid.UUID `json:"user_id"`
	EntraID     string    `json:"entra_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Principal is the authenticated actor attached to every request.
// The core trusts it as already verified by the identity layer.
type Principal struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	IsAdmin     bool
}

// Principal derives the request principal for the user.
func (u *User) Principal() Principal {
	return Principal{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsAdmin:     u.IsAdmin,
	}
}
