package users

import (
	"errors"
	"time"

	"github.com/meridian-dms/meridian/internal/shared"
)

// User models an operator account: sales agents, drivers and managers.
type User struct {
	ID           int64
	Email        string
	Name         string
	Role         shared.Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrUserNotFound indicates a missing user row.
var ErrUserNotFound = errors.New("users: user not found")
