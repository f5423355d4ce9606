package validation

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrEmailRequired = errors.New("email address is required")
	ErrEmailTooLong  = errors.New("email address is too long (max 254 characters)")
	ErrEmailFormat   = errors.New("invalid email address format")
)

// ValidateEmail checks that email is a single bare address.
// Display-name forms like "Ann <ann@x.com>" are rejected since the value is
// used as an account key.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}

	// RFC 5321: total max 254 with @
	if len(email) > 254 {
		return ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrEmailFormat
	}

	domain := addr.Address[strings.LastIndex(addr.Address, "@")+1:]
	if domain != "localhost" && !strings.Contains(domain, ".") {
		return ErrEmailFormat
	}

	return nil
}
