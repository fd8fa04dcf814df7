package users

import "context"

// Store persists users. Lookups of unknown users return ErrNotFound; taken
// usernames and emails return ErrDuplicateUsername and ErrDuplicateEmail.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id int64, username, email string) (User, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}
