package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// AccountRepository defines credential storage for the self-hosted identity provider.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	Update(ctx context.Context, a *entity.Account) error
	SetVerified(ctx context.Context, id string) error
}
