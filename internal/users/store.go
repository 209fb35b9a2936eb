package users

import "context"

// Store persists accounts. Implementations must return ErrNotFound for
// missing emails and ErrAlreadyExists on duplicate creation.
type Store interface {
	Create(ctx context.Context, u User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	// List returns accounts, optionally filtered by role. An empty role
	// returns everyone.
	List(ctx context.Context, role string) ([]User, error)
}
