package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/magiclink/internal/model"
)

var (
	ErrLinkTokenNotFound = errors.New("link token not found")
	ErrDuplicateToken    = errors.New("link token already exists")
)

type LinkTokenRepository interface {
	Create(ctx context.Context, token *model.LinkToken) error
	ByToken(ctx context.Context, token string) (*model.LinkToken, error)
	MarkUsed(ctx context.Context, id string, usedAt time.Time) (bool, error)
	CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) LinkTokenRepository
}

type linkTokenRepository struct {
	db sqlx.ExtContext
}

func NewLinkTokenRepository(db *sqlx.DB) LinkTokenRepository {
	return &linkTokenRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *linkTokenRepository) WithTx(tx *sqlx.Tx) LinkTokenRepository {
	return &linkTokenRepository{db: tx}
}

func (r *linkTokenRepository) Create(ctx context.Context, token *model.LinkToken) error {
	query := `
		INSERT INTO link_tokens (id, account_id, token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.AccountID,
		token.Token,
		token.ExpiresAt,
		token.CreatedAt,
		token.UpdatedAt,
	)
	if err != nil {
		// Unique constraint violation (works for both SQLite and PostgreSQL)
		errStr := err.Error()
		if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
			return ErrDuplicateToken
		}
		return fmt.Errorf("failed to insert link token: %w", err)
	}
	return nil
}

func (r *linkTokenRepository) ByToken(ctx context.Context, token string) (*model.LinkToken, error) {
	t := &model.LinkToken{}
	query := `
		SELECT id, account_id, token, expires_at, used_at, created_at, updated_at
		FROM link_tokens
		WHERE token = $1
	`

	err := sqlx.GetContext(ctx, r.db, t, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLinkTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link token: %w", err)
	}

	return t, nil
}

// MarkUsed sets used_at only if it is still NULL. It returns false when
// another request consumed the token first.
func (r *linkTokenRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	query := `
		UPDATE link_tokens
		SET used_at = $1, updated_at = $1
		WHERE id = $2
		AND used_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, usedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark link token used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark link token used: %w", err)
	}

	return rows == 1, nil
}

// CleanupExpired removes consumed tokens used before cutoff and tokens that
// expired before cutoff. Issuance and verification never delete tokens; this
// is an operator-triggered retention task.
func (r *linkTokenRepository) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM link_tokens
		WHERE (used_at IS NOT NULL AND used_at < $1)
		   OR (expires_at < $1)
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup link tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return rowsAffected, nil
}
