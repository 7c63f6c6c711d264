package repository

import (
	"context"
	"errors"

	"mega-get-server/internal/domain"
)

// Sentinel errors shared by all UserRepository implementations, so callers
// can branch with errors.Is instead of matching error text.
var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
