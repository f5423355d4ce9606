package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/magiclink/internal/db"
	"github.com/templui/magiclink/internal/metrics"
	"github.com/templui/magiclink/internal/model"
	"github.com/templui/magiclink/internal/repository"
)

// DefaultLinkTTL is how long a magic link stays valid when no TTL is configured.
const DefaultLinkTTL = 15 * time.Minute

// IssueResult is what the caller needs to deliver a magic link.
type IssueResult struct {
	Token     string
	URL       string
	ExpiresAt time.Time
	Account   *model.Account
	Created   bool // account was created by this issuance
}

type TokenIssuer struct {
	db                  *sqlx.DB
	accountRepository   repository.AccountRepository
	linkTokenRepository repository.LinkTokenRepository
	baseURL             string
	ttl                 time.Duration
	now                 func() time.Time
	generate            func() (string, error)
}

func NewTokenIssuer(
	database *sqlx.DB,
	accountRepository repository.AccountRepository,
	linkTokenRepository repository.LinkTokenRepository,
	baseURL string,
	ttl time.Duration,
) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &TokenIssuer{
		db:                  database,
		accountRepository:   accountRepository,
		linkTokenRepository: linkTokenRepository,
		baseURL:             strings.TrimRight(baseURL, "/"),
		ttl:                 ttl,
		now:                 time.Now,
		generate:            GenerateToken,
	}
}

// Issue resolves or creates the account for email and stores a new link token
// for it, both in one transaction. It does not deliver the link.
func (s *TokenIssuer) Issue(ctx context.Context, email string) (*IssueResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		metrics.LinksIssuedTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidEmail
	}

	now := s.now().UTC()
	result := &IssueResult{}

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		accounts := s.accountRepository.WithTx(tx)
		tokens := s.linkTokenRepository.WithTx(tx)

		account, created, err := accounts.FindOrCreate(ctx, &model.Account{
			ID:        uuid.New().String(),
			Email:     email,
			Name:      model.DisplayNameFromEmail(email),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}

		linkToken, err := s.createToken(ctx, tokens, account.ID, now)
		if err != nil {
			return err
		}

		result.Account = account
		result.Created = created
		result.Token = linkToken.Token
		result.ExpiresAt = linkToken.ExpiresAt
		return nil
	})
	if err != nil {
		metrics.LinksIssuedTotal.WithLabelValues("failure").Inc()
		slog.Error("magic link issuance failed", "error", err, "email", email)
		return nil, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	result.URL = s.VerificationURL(result.Token)

	if result.Created {
		slog.Info("new account created", "email", email, "account_id", result.Account.ID)
	}
	metrics.LinksIssuedTotal.WithLabelValues("success").Inc()
	slog.Info("magic link issued", "account_id", result.Account.ID, "token_prefix", tokenPrefix(result.Token), "expires_at", result.ExpiresAt)
	return result, nil
}

func (s *TokenIssuer) createToken(ctx context.Context, tokens repository.LinkTokenRepository, accountID string, now time.Time) (*model.LinkToken, error) {
	value, err := s.generate()
	if err != nil {
		return nil, err
	}

	linkToken := &model.LinkToken{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Token:     value,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// A collision on 256 random bits surfaces as ErrDuplicateToken and fails
	// the issuance; the caller can simply request another link.
	err = tokens.Create(ctx, linkToken)
	if err != nil {
		return nil, err
	}
	return linkToken, nil
}

// VerificationURL builds the link a user clicks to sign in.
func (s *TokenIssuer) VerificationURL(token string) string {
	return s.baseURL + "/auth/magic-link/" + url.PathEscape(token)
}

// TTL returns the validity window of issued links.
func (s *TokenIssuer) TTL() time.Duration {
	return s.ttl
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
