package model

import (
	"time"
)

type LinkToken struct {
	ID        string     `db:"id"`
	AccountID string     `db:"account_id"`
	Token     string     `db:"token"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// TokenStatus is the verification-relevant state of a link token.
type TokenStatus string

const (
	TokenStatusValid   TokenStatus = "valid"
	TokenStatusExpired TokenStatus = "expired"
	TokenStatusUsed    TokenStatus = "used"
)

// IsExpired reports whether now is at or past the expiry.
func (t *LinkToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *LinkToken) IsUsed() bool {
	return t.UsedAt != nil
}

func (t *LinkToken) IsValid(now time.Time) bool {
	return !t.IsExpired(now) && !t.IsUsed()
}

// Status classifies the token at now. Consumption wins over expiry: a token
// used before it expired stays "used".
func (t *LinkToken) Status(now time.Time) TokenStatus {
	switch {
	case t.IsUsed():
		return TokenStatusUsed
	case t.IsExpired(now):
		return TokenStatusExpired
	default:
		return TokenStatusValid
	}
}
