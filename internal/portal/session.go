package portal

import (
	"context"
	"sync"
	"time"

	"github.com/bwise1/campus_voice/internal/identity"
	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/bwise1/campus_voice/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Session is a resolved, role-checked sign-in.
type Session struct {
	Profile   model.Profile
	Token     string
	ExpiresAt time.Time
}

// SessionManager owns the session state for one identity client. State is
// written only by the session-change listener registered in NewSessionManager.
type SessionManager struct {
	client   *identity.Client
	profiles store.ProfileStore
	log      zerolog.Logger

	// signIn serialises SignIn so expect applies to exactly one resolution.
	signIn sync.Mutex

	mu       sync.RWMutex
	current  *Session
	expect   model.Role
	resolved error

	unsubscribe func()
}

func NewSessionManager(client *identity.Client, profiles store.ProfileStore, log zerolog.Logger) *SessionManager {
	m := &SessionManager{
		client:   client,
		profiles: profiles,
		log:      log.With().Str("component", "session").Logger(),
	}
	m.unsubscribe = client.OnSessionChange(m.onSessionChange)
	return m
}

// Close releases the session-change subscription.
func (m *SessionManager) Close() {
	m.unsubscribe()
}

func (m *SessionManager) onSessionChange(ctx context.Context, creds *identity.Credentials) {
	if creds == nil {
		m.mu.Lock()
		m.current = nil
		m.resolved = nil
		m.mu.Unlock()
		return
	}

	m.mu.RLock()
	cached := m.current != nil && m.current.Token == creds.Token
	m.mu.RUnlock()
	if cached {
		return
	}

	profile, err := m.profiles.GetProfile(ctx, creds.UserID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.resolved = ErrProfileNotFound
	case err != nil:
		m.resolved = errors.Wrapf(ErrStoreUnavailable, "load profile: %v", err)
	case m.expect != "" && profile.Role != m.expect:
		m.resolved = ErrRoleMismatch
	default:
		m.resolved = nil
		m.current = &Session{Profile: profile, Token: creds.Token, ExpiresAt: creds.ExpiresAt}
	}
}

func (m *SessionManager) setExpect(role model.Role) {
	m.mu.Lock()
	m.expect = role
	m.mu.Unlock()
}

func (m *SessionManager) outcome() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.resolved != nil {
		return nil, m.resolved
	}
	if m.current == nil {
		return nil, ErrProfileNotFound
	}
	s := *m.current
	return &s, nil
}

// SignIn authenticates and admits the session only when the stored profile
// role equals expected. A rejected session is signed out before the error is
// returned.
func (m *SessionManager) SignIn(ctx context.Context, email, password string, expected model.Role) (Session, error) {
	if !expected.Valid() {
		return Session{}, invalid("role", "must be student or admin")
	}

	m.signIn.Lock()
	defer m.signIn.Unlock()

	m.setExpect(expected)
	defer m.setExpect("")

	if _, err := m.client.SignIn(ctx, util.NormalizeEmail(email), password); err != nil {
		return Session{}, err
	}

	s, err := m.outcome()
	if err != nil {
		if serr := m.client.SignOut(ctx); serr != nil {
			m.log.Warn().Err(serr).Msg("could not revoke rejected session")
		}
		m.log.Info().Err(err).Str("email", util.NormalizeEmail(email)).Msg("sign-in rejected")
		return Session{}, err
	}
	return *s, nil
}

// Restore adopts a token issued earlier, typically one presented as a bearer
// credential. It does not role-check; callers gate on CurrentRole.
func (m *SessionManager) Restore(ctx context.Context, token string) (Session, error) {
	if _, err := m.client.Restore(ctx, token); err != nil {
		return Session{}, err
	}
	s, err := m.outcome()
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			_ = m.client.SignOut(ctx)
		}
		return Session{}, err
	}
	return *s, nil
}

// SignUp creates the identity and its profile. The caller is not signed in.
func (m *SessionManager) SignUp(ctx context.Context, email, password, displayName string, role model.Role) (model.Profile, error) {
	email = util.NormalizeEmail(email)
	fields := map[string]string{}
	if !util.IsEmail(email) {
		fields["email"] = "must be a valid email address"
	}
	if !role.Valid() {
		fields["role"] = "must be student or admin"
	}
	if len(fields) > 0 {
		return model.Profile{}, &ValidationError{Fields: fields}
	}

	userID, err := m.client.SignUp(ctx, email, password, identity.Attributes{
		DisplayName: displayName,
		Role:        role,
	})
	if err != nil {
		return model.Profile{}, err
	}

	profile := model.Profile{
		ID:          userID,
		Role:        role,
		DisplayName: displayName,
		Email:       email,
	}
	if err := m.profiles.CreateProfile(ctx, profile); err != nil {
		// the identity exists without a profile and needs manual repair
		m.log.Error().Err(err).
			Str("user_id", userID).
			Str("email", email).
			Str("role", string(role)).
			Msg("identity registered but profile not created")
		return model.Profile{}, errors.Wrapf(ErrStoreUnavailable, "create profile: %v", err)
	}
	m.log.Info().Str("user_id", userID).Str("role", string(role)).Msg("account registered")
	return profile, nil
}

// SignOut clears the session. The remote invalidation error, if any, is
// returned after local state is already gone.
func (m *SessionManager) SignOut(ctx context.Context) error {
	return m.client.SignOut(ctx)
}

func (m *SessionManager) CurrentUser() (model.Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return model.Profile{}, false
	}
	return m.current.Profile, true
}

func (m *SessionManager) CurrentRole() (model.Role, bool) {
	p, ok := m.CurrentUser()
	return p.Role, ok
}

func (m *SessionManager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return "", false
	}
	return m.current.Token, true
}
