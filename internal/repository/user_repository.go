package repository

import (
	"context"

	"github.com/iliyamo/storefront-auth/internal/model"
)

// UserStore is the persistence capability used by the auth services.
// Implementations must enforce uniqueness of Username and Email and
// return ErrDuplicate when it is violated.
type UserStore interface {
	// FindByHandleOrEmail returns the first user whose username equals
	// handle or whose email equals email.  Empty arguments never match.
	FindByHandleOrEmail(ctx context.Context, handle, email string) (*model.User, error)
	// FindByID returns ErrNotFound when the id is unknown or malformed.
	FindByID(ctx context.Context, id string) (*model.User, error)
	// ExistsByRole reports whether at least one user holds role.
	ExistsByRole(ctx context.Context, role model.Role) (bool, error)
	// Insert stores u, assigning u.ID and timestamps.
	Insert(ctx context.Context, u *model.User) error
	// UpdateByID applies patch and returns the updated user.
	UpdateByID(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
	// DeleteByID removes the user and returns the deleted record.
	DeleteByID(ctx context.Context, id string) (*model.User, error)
}
