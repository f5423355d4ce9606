package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/templui/magiclink/internal/model"
	"github.com/templui/magiclink/internal/repository"
)

// Notifier delivers a verification URL to an email address.
type Notifier interface {
	Send(ctx context.Context, to, url string) error
}

type AuthService struct {
	issuer            *TokenIssuer
	verifier          *TokenVerifier
	notifier          Notifier
	accountRepository repository.AccountRepository
}

func NewAuthService(
	issuer *TokenIssuer,
	verifier *TokenVerifier,
	notifier Notifier,
	accountRepository repository.AccountRepository,
) *AuthService {
	return &AuthService{
		issuer:            issuer,
		verifier:          verifier,
		notifier:          notifier,
		accountRepository: accountRepository,
	}
}

// SendMagicLink handles the combined login/signup flow: it issues a link
// for email and hands it to the notifier. When delivery fails the issued
// link stays valid; the returned error matches ErrNotificationFailed and the
// result is still returned.
func (s *AuthService) SendMagicLink(ctx context.Context, email string) (*IssueResult, error) {
	result, err := s.issuer.Issue(ctx, email)
	if err != nil {
		return nil, err
	}

	err = s.notifier.Send(ctx, result.Account.Email, result.URL)
	if err != nil {
		slog.Error("failed to send magic link email", "error", err, "email", result.Account.Email)
		return result, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	slog.Info("magic link sent", "email", result.Account.Email)
	return result, nil
}

// VerifyMagicLink consumes the token and returns the authenticated account.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string) (*model.Account, error) {
	return s.verifier.Verify(ctx, token)
}

// AccountByID loads the account bound to a session.
func (s *AuthService) AccountByID(ctx context.Context, id string) (*model.Account, error) {
	return s.accountRepository.ByID(ctx, id)
}
