// Package user defines the staff identity entity and the repository contract
// used by the identity backend. Persistence details live in infrastructure.
package user

import (
	"context"
	"time"
)

// Identity represents a staff member able to sign in to the booking site.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	CreatedAt    time.Time `json:"createdAt"`
}

// IdentityRepository defines the operations for persisting Identity entities.
// Lookups return (nil, nil) when nothing matches.
type IdentityRepository interface {
	FindByID(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Store(ctx context.Context, identity *Identity) error
	Ping(ctx context.Context) error
}
