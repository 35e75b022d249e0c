// Package memory is an in-process identity backend for dev mode and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bwise1/campus_voice/internal/identity"
	"github.com/bwise1/campus_voice/util"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const defaultTTL = 24 * time.Hour

type account struct {
	id    string
	hash  []byte
	attrs identity.Attributes
}

type session struct {
	userID    string
	expiresAt time.Time
}

type Backend struct {
	mu       sync.Mutex
	accounts map[string]account
	sessions map[string]session
	ttl      time.Duration

	Now func() time.Time
	// Fail, when set, is consulted before each operation; a non-nil result is
	// returned as a transport failure.
	Fail func(op string) error
}

func New() *Backend {
	return &Backend{
		accounts: make(map[string]account),
		sessions: make(map[string]session),
		ttl:      defaultTTL,
		Now:      time.Now,
	}
}

func (b *Backend) fail(op string) error {
	if b.Fail == nil {
		return nil
	}
	return b.Fail(op)
}

func (b *Backend) Register(ctx context.Context, email, password string, attrs identity.Attributes) (string, error) {
	if err := b.fail("register"); err != nil {
		return "", err
	}
	if err := identity.CheckPassword(password); err != nil {
		return "", err
	}
	email = util.NormalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[email]; ok {
		return "", identity.ErrDuplicateAccount
	}
	id := uuid.NewString()
	b.accounts[email] = account{id: id, hash: hash, attrs: attrs}
	return id, nil
}

func (b *Backend) Authenticate(ctx context.Context, email, password string) (identity.Credentials, error) {
	if err := b.fail("authenticate"); err != nil {
		return identity.Credentials{}, err
	}
	b.mu.Lock()
	acct, ok := b.accounts[util.NormalizeEmail(email)]
	b.mu.Unlock()
	if !ok {
		return identity.Credentials{}, identity.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return identity.Credentials{}, identity.ErrInvalidCredentials
	}

	creds := identity.Credentials{
		UserID:    acct.id,
		Token:     uuid.NewString(),
		ExpiresAt: b.Now().Add(b.ttl),
	}
	b.mu.Lock()
	b.sessions[creds.Token] = session{userID: creds.UserID, expiresAt: creds.ExpiresAt}
	b.mu.Unlock()
	return creds, nil
}

func (b *Backend) Invalidate(ctx context.Context, token string) error {
	if err := b.fail("invalidate"); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.sessions, token)
	b.mu.Unlock()
	return nil
}

func (b *Backend) Verify(ctx context.Context, token string) (string, error) {
	if err := b.fail("verify"); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[token]
	if !ok || !b.Now().Before(s.expiresAt) {
		return "", identity.ErrInvalidToken
	}
	return s.userID, nil
}
