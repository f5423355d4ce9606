package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/magiclink/internal/model"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository interface {
	ByID(ctx context.Context, id string) (*model.Account, error)
	ByEmail(ctx context.Context, email string) (*model.Account, error)
	FindOrCreate(ctx context.Context, account *model.Account) (*model.Account, bool, error)
	WithTx(tx *sqlx.Tx) AccountRepository
}

type accountRepository struct {
	db sqlx.ExtContext
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *accountRepository) WithTx(tx *sqlx.Tx) AccountRepository {
	return &accountRepository{db: tx}
}

func (r *accountRepository) ByID(ctx context.Context, id string) (*model.Account, error) {
	account := &model.Account{}
	query := `SELECT id, email, name, created_at, updated_at FROM accounts WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

func (r *accountRepository) ByEmail(ctx context.Context, email string) (*model.Account, error) {
	account := &model.Account{}
	query := `SELECT id, email, name, created_at, updated_at FROM accounts WHERE email = $1`

	err := sqlx.GetContext(ctx, r.db, account, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// FindOrCreate inserts account unless its email is taken and returns the
// stored row. The unique constraint on email decides concurrent inserts, so
// two callers racing on a new email both end up with the same account.
// The boolean reports whether this call created the row.
func (r *accountRepository) FindOrCreate(ctx context.Context, account *model.Account) (*model.Account, bool, error) {
	query := `
		INSERT INTO accounts (id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Name,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert account: %w", err)
	}

	stored, err := r.ByEmail(ctx, account.Email)
	if err != nil {
		return nil, false, err
	}

	return stored, rows == 1, nil
}
