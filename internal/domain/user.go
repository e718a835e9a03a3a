// internal/domain/user.go
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// User owns exactly one main wallet and any number of sub-wallets.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"` // Stored normalized, see NormalizeUsername
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,31}$`)

// NormalizeUsername lowercases and trims raw, then checks it is 3 to 32
// characters of letters, digits, '_', '.' or '-', starting with a letter
// or digit.
func NormalizeUsername(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("invalid username %q", raw)
	}
	return username, nil
}

// NewUser creates a User for an already normalized username.
func NewUser(username string) *User {
	now := time.Now().UTC()
	return &User{
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
