// internal/repository/postgres/user_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/util"
)

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct{}

// NewUserRepository creates a new UserRepository.
func NewUserRepository() repository.UserRepository {
	return &UserRepository{}
}

// CreateUser inserts user. The unique index on username reports races
// between two sign-ups with the same name.
func (r *UserRepository) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (username, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		user.Username, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("username %q: %w", user.Username, util.ErrDuplicateEntry)
	case err != nil:
		return fmt.Errorf("insert user %q: %w", user.Username, err)
	}
	return nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, q repository.DBExecutor, username string) (*domain.User, error) {
	var user domain.User
	err := q.GetContext(ctx, &user, `SELECT id, username, created_at, updated_at FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, util.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return &user, nil
}
