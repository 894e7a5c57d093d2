package repository

import (
	"context"
	"time"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
)

// ProfileRepository reads and writes Profile documents.
type ProfileRepository interface {
	// Get returns (nil, nil) when no profile exists for uid.
	Get(ctx context.Context, uid string) (*entity.Profile, error)
	Create(ctx context.Context, p *entity.Profile) error
	// MarkVerified sets emailVerified=true. It reports false without writing
	// when the profile is already verified.
	MarkVerified(ctx context.Context, uid string, at time.Time) (bool, error)
	MarkVerificationSent(ctx context.Context, uid string, at time.Time) error
	List(ctx context.Context, filter ProfileFilter) ([]*entity.Profile, error)
}

// ProfileFilter narrows a profile listing. Empty fields are ignored.
type ProfileFilter struct {
	Role     entity.Role
	Verified *bool
	Limit    int
}
