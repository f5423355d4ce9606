package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrIssuanceFailed     = errors.New("magic link issuance failed")
	ErrNotificationFailed = errors.New("magic link delivery failed")
	ErrVerificationFailed = errors.New("magic link verification failed")
	ErrTokenInvalid       = errors.New("invalid magic link")
)

// InvalidReason tells why a token was rejected.
type InvalidReason string

const (
	ReasonNotFound InvalidReason = "not_found"
	ReasonExpired  InvalidReason = "expired"
	ReasonUsed     InvalidReason = "used"
	ReasonOrphaned InvalidReason = "orphaned"
)

// TokenInvalidError is returned by verification when the token cannot be
// consumed. It matches ErrTokenInvalid with errors.Is.
type TokenInvalidError struct {
	Reason InvalidReason
}

func (e *TokenInvalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTokenInvalid, e.Reason)
}

func (e *TokenInvalidError) Is(target error) bool {
	return target == ErrTokenInvalid
}

// InvalidReasonOf returns the rejection reason carried by err, if any.
func InvalidReasonOf(err error) (InvalidReason, bool) {
	var invalid *TokenInvalidError
	if errors.As(err, &invalid) {
		return invalid.Reason, true
	}
	return "", false
}

func tokenInvalid(reason InvalidReason) error {
	return &TokenInvalidError{Reason: reason}
}

const (
	MessageLinkExpired   = "Link expired—request a new one."
	MessageLinkInvalid   = "Invalid magic link. Please request a new one."
	MessageSendFailed    = "We couldn't send your link. Please try again."
	MessageInvalidEmail  = "Please provide a valid email address"
	MessageGenericFailed = "Something went wrong. Please try again."
)

// UserMessage maps a service error to text safe to show to the user.
// Expired and used links share one message so the response does not reveal
// which check failed.
func UserMessage(err error) string {
	if reason, ok := InvalidReasonOf(err); ok {
		switch reason {
		case ReasonExpired, ReasonUsed:
			return MessageLinkExpired
		default:
			return MessageLinkInvalid
		}
	}

	switch {
	case errors.Is(err, ErrInvalidEmail):
		return MessageInvalidEmail
	case errors.Is(err, ErrNotificationFailed):
		return MessageSendFailed
	default:
		return MessageGenericFailed
	}
}
