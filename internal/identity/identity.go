// Package identity defines the account backend the portal authenticates
// against and a Client that tracks one signed-in session over it.
package identity

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/pkg/errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateAccount   = errors.New("an account with this email already exists")
	ErrWeakCredential     = errors.New("password does not meet the minimum policy")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// MinPasswordLength is the shortest password any backend accepts.
const MinPasswordLength = 6

// Credentials identify an authenticated session.
type Credentials struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Attributes travel with a registration. Backends that keep user metadata
// store them; the others ignore them.
type Attributes struct {
	DisplayName string
	Role        model.Role
}

type Backend interface {
	// Authenticate fails with ErrInvalidCredentials when the provider rejects the pair.
	Authenticate(ctx context.Context, email, password string) (Credentials, error)
	// Register creates the account and returns its user id. It does not sign in.
	Register(ctx context.Context, email, password string, attrs Attributes) (string, error)
	// Invalidate revokes token at the provider.
	Invalidate(ctx context.Context, token string) error
	// Verify resolves token to its user id or fails with ErrInvalidToken.
	Verify(ctx context.Context, token string) (string, error)
}

func CheckPassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errors.Wrapf(ErrWeakCredential, "at least %d characters", MinPasswordLength)
	}
	return nil
}
