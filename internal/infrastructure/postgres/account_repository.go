package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/domain/repository"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, display_name, email_verified)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, entity.NormalizeEmail(a.Email), a.PasswordHash, a.DisplayName, a.EmailVerified)

	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAccountExists
		}
		return classify(err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.scanOne(ctx, `
		SELECT id, email, password_hash, display_name, email_verified, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.scanOne(ctx, `
		SELECT id, email, password_hash, display_name, email_verified, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`, entity.NormalizeEmail(email))
}

func (r *AccountRepository) scanOne(ctx context.Context, sql string, arg any) (*entity.Account, error) {
	a := &entity.Account{}
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName,
		&a.EmailVerified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrAccountNotFound
		}
		return nil, classify(err)
	}
	return a, nil
}

func (r *AccountRepository) Update(ctx context.Context, a *entity.Account) error {
	a.UpdatedAt = time.Now()

	res, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET email = $1, password_hash = $2, display_name = $3, email_verified = $4, updated_at = $5
		WHERE id = $6
	`, entity.NormalizeEmail(a.Email), a.PasswordHash, a.DisplayName, a.EmailVerified, a.UpdatedAt, a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAccountExists
		}
		return classify(err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

func (r *AccountRepository) SetVerified(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE accounts SET email_verified = TRUE, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return classify(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
