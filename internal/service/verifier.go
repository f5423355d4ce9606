package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/magiclink/internal/db"
	"github.com/templui/magiclink/internal/metrics"
	"github.com/templui/magiclink/internal/model"
	"github.com/templui/magiclink/internal/repository"
)

type TokenVerifier struct {
	db                  *sqlx.DB
	accountRepository   repository.AccountRepository
	linkTokenRepository repository.LinkTokenRepository
	now                 func() time.Time
}

func NewTokenVerifier(
	database *sqlx.DB,
	accountRepository repository.AccountRepository,
	linkTokenRepository repository.LinkTokenRepository,
) *TokenVerifier {
	return &TokenVerifier{
		db:                  database,
		accountRepository:   accountRepository,
		linkTokenRepository: linkTokenRepository,
		now:                 time.Now,
	}
}

// Verify consumes token and returns its account. Rejections are
// *TokenInvalidError; storage failures match ErrVerificationFailed.
//
// Lookup, validity check and consumption run in one transaction, and the
// consumption itself is a compare-and-set on used_at, so concurrent requests
// for the same link produce exactly one success.
func (s *TokenVerifier) Verify(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		metrics.LinkVerificationsTotal.WithLabelValues(string(ReasonNotFound)).Inc()
		return nil, tokenInvalid(ReasonNotFound)
	}

	now := s.now().UTC()
	var account *model.Account

	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		tokens := s.linkTokenRepository.WithTx(tx)
		accounts := s.accountRepository.WithTx(tx)

		linkToken, err := tokens.ByToken(ctx, token)
		if errors.Is(err, repository.ErrLinkTokenNotFound) {
			return tokenInvalid(ReasonNotFound)
		}
		if err != nil {
			return err
		}

		switch linkToken.Status(now) {
		case model.TokenStatusUsed:
			return tokenInvalid(ReasonUsed)
		case model.TokenStatusExpired:
			return tokenInvalid(ReasonExpired)
		}

		account, err = accounts.ByID(ctx, linkToken.AccountID)
		if errors.Is(err, repository.ErrAccountNotFound) {
			slog.Error("link token references missing account", "token_id", linkToken.ID, "account_id", linkToken.AccountID)
			return tokenInvalid(ReasonOrphaned)
		}
		if err != nil {
			return err
		}

		consumed, err := tokens.MarkUsed(ctx, linkToken.ID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return tokenInvalid(ReasonUsed)
		}
		return nil
	})
	if err != nil {
		if reason, ok := InvalidReasonOf(err); ok {
			metrics.LinkVerificationsTotal.WithLabelValues(string(reason)).Inc()
			slog.Warn("magic link rejected", "reason", reason, "token_prefix", tokenPrefix(token))
			return nil, err
		}
		metrics.LinkVerificationsTotal.WithLabelValues("error").Inc()
		slog.Error("magic link verification failed", "error", err, "token_prefix", tokenPrefix(token))
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	metrics.LinkVerificationsTotal.WithLabelValues("success").Inc()
	slog.Info("user authenticated via magic link", "account_id", account.ID, "email", account.Email)
	return account, nil
}
