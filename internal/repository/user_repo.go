// internal/repository/user_repo.go
package repository

import (
	"context"

	"zrlda-finance/internal/domain"
)

// UserRepository stores account holders. Usernames are unique.
type UserRepository interface {
	// CreateUser inserts user and sets its ID. A taken username yields util.ErrDuplicateEntry.
	CreateUser(ctx context.Context, q DBExecutor, user *domain.User) error
	// GetUserByUsername returns util.ErrNotFound when no user has that name.
	GetUserByUsername(ctx context.Context, q DBExecutor, username string) (*domain.User, error)
}
