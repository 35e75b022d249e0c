package portal_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/bwise1/campus_voice/internal/identity"
	idmemory "github.com/bwise1/campus_voice/internal/identity/memory"
	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/internal/store/memory"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type sessionFixture struct {
	profiles *memory.Store
	backend  *idmemory.Backend
	client  *identity.Client
	manager *portal.SessionManager
}

func newSessionFixture(t *testing.T) sessionFixture {
	t.Helper()
	backend := idmemory.New()
	client := identity.NewClient(backend)
	profiles := newStore()
	manager := portal.NewSessionManager(client, profiles, nop)
	t.Cleanup(manager.Close)
	return sessionFixture{profiles: profiles, backend: backend, client: client, manager: manager}
}

func TestSignUpThenSignIn(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	profile, err := f.manager.SignUp(ctx, "Ada@Uni.edu", "secret1", "Ada", model.RoleStudent)
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if profile.Email != "ada@uni.edu" || profile.Role != model.RoleStudent {
		t.Errorf("profile = %+v", profile)
	}
	if _, ok := f.manager.CurrentUser(); ok {
		t.Fatal("SignUp must not sign the caller in")
	}

	session, err := f.manager.SignIn(ctx, "ada@uni.edu", "secret1", model.RoleStudent)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if session.Profile.ID != profile.ID || session.Token == "" {
		t.Errorf("session = %+v", session)
	}
	if role, ok := f.manager.CurrentRole(); !ok || role != model.RoleStudent {
		t.Errorf("CurrentRole = %q, %v", role, ok)
	}
}

func TestSignInRoleMismatchLeavesNoSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	if _, err := f.manager.SignUp(ctx, "ada@uni.edu", "secret1", "Ada", model.RoleStudent); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	var published []model.Role
	f.client.OnSessionChange(func(ctx context.Context, creds *identity.Credentials) {
		if role, ok := f.manager.CurrentRole(); ok {
			published = append(published, role)
		}
	})

	_, err := f.manager.SignIn(ctx, "ada@uni.edu", "secret1", model.RoleAdmin)
	if !errors.Is(err, portal.ErrRoleMismatch) {
		t.Fatalf("SignIn err = %v; want ErrRoleMismatch", err)
	}
	if _, ok := f.manager.CurrentUser(); ok {
		t.Error("wrong-role user is visible after a rejected sign-in")
	}
	if _, ok := f.client.Session(); ok {
		t.Error("identity client still holds credentials")
	}
	if len(published) != 0 {
		t.Errorf("wrong-role state was observable: %v", published)
	}
}

func TestSignInRevokesMismatchedToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, _ = f.manager.SignUp(ctx, "ada@uni.edu", "secret1", "Ada", model.RoleStudent)

	var token string
	f.client.OnSessionChange(func(ctx context.Context, creds *identity.Credentials) {
		if creds != nil {
			token = creds.Token
		}
	})
	_, _ = f.manager.SignIn(ctx, "ada@uni.edu", "secret1", model.RoleAdmin)

	if _, err := f.backend.Verify(ctx, token); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("token still valid after role mismatch: %v", err)
	}
}

func TestSignInErrors(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, _ = f.manager.SignUp(ctx, "ada@uni.edu", "secret1", "Ada", model.RoleStudent)

	// an identity with no profile record
	if _, err := f.backend.Register(ctx, "ghost@uni.edu", "secret1", identity.Attributes{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	testCases := []struct {
		name     string
		email    string
		password string
		role     model.Role
		wantErr  error
	}{
		{"wrong password", "ada@uni.edu", "nope123", model.RoleStudent, identity.ErrInvalidCredentials},
		{"unknown account", "bob@uni.edu", "secret1", model.RoleStudent, identity.ErrInvalidCredentials},
		{"no profile", "ghost@uni.edu", "secret1", model.RoleStudent, portal.ErrProfileNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.manager.SignIn(ctx, tc.email, tc.password, tc.role)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v; want %v", err, tc.wantErr)
			}
			if _, ok := f.client.Session(); ok {
				t.Error("session left behind after failed sign-in")
			}
		})
	}

	if _, err := f.manager.SignIn(ctx, "ada@uni.edu", "secret1", "teacher"); !portal.IsValidation(err) {
		t.Errorf("unknown role: err = %v; want validation error", err)
	}
}

func TestSignUpErrors(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, _ = f.manager.SignUp(ctx, "ada@uni.edu", "secret1", "Ada", model.RoleStudent)

	if _, err := f.manager.SignUp(ctx, "ADA@uni.edu", "secret1", "Ada", model.RoleStudent); !errors.Is(err, identity.ErrDuplicateAccount) {
		t.Errorf("duplicate: err = %v", err)
	}
	if _, err := f.manager.SignUp(ctx, "new@uni.edu", "12345", "New", model.RoleStudent); !errors.Is(err, identity.ErrWeakCredential) {
		t.Errorf("weak: err = %v", err)
	}
	if _, err := f.manager.SignUp(ctx, "not-an-email", "secret1", "X", "janitor"); !portal.IsValidation(err) {
		t.Errorf("invalid input: err = %v", err)
	}
}

func TestSignOutClearsStateOnRemoteFailure(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, _ = f.manager.SignUp(ctx, "ada@uni.edu", "secret1", "Ada", model.RoleStudent)
	if _, err := f.manager.SignIn(ctx, "ada@uni.edu", "secret1", model.RoleStudent); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	f.backend.Fail = func(op string) error {
		if op == "invalidate" {
			return errors.New("connection reset")
		}
		return nil
	}
	if err := f.manager.SignOut(ctx); err == nil {
		t.Error("remote failure was swallowed")
	}
	if _, ok := f.manager.CurrentUser(); ok {
		t.Error("user still signed in locally")
	}
	if _, ok := f.manager.Token(); ok {
		t.Error("token still held locally")
	}
}

func TestRestore(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	_, _ = f.manager.SignUp(ctx, "ada@uni.edu", "secret1", "Ada", model.RoleAdmin)
	first, err := f.manager.SignIn(ctx, "ada@uni.edu", "secret1", model.RoleAdmin)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	shared := portal.NewSessionManager(identity.NewClient(f.backend), f.profiles, nop)
	defer shared.Close()
	restored, err := shared.Restore(ctx, first.Token)
	if err != nil || restored.Profile.Role != model.RoleAdmin {
		t.Fatalf("Restore = %+v, %v", restored, err)
	}

	other := portal.NewSessionManager(identity.NewClient(f.backend), newStore(), nop)
	defer other.Close()
	if _, err := other.Restore(ctx, first.Token); !errors.Is(err, portal.ErrProfileNotFound) {
		t.Errorf("restore against a store without the profile: err = %v", err)
	}

	again := portal.NewSessionManager(identity.NewClient(f.backend), newStore(), nop)
	defer again.Close()
	if _, err := again.Restore(ctx, "bogus"); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("bogus token: err = %v", err)
	}
}

func TestSignUpLogsIdentityWithoutProfile(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	backend := idmemory.New()
	profiles := newStore()
	profiles.Fail = func(op string) error {
		if op == "create_profile" {
			return errors.New("connection reset")
		}
		return nil
	}
	manager := portal.NewSessionManager(identity.NewClient(backend), profiles, zerolog.New(&logs))
	defer manager.Close()

	_, err := manager.SignUp(ctx, "lost@uni.edu", "secret1", "Lost", model.RoleStudent)
	if !errors.Is(err, portal.ErrStoreUnavailable) {
		t.Fatalf("SignUp err = %v; want ErrStoreUnavailable", err)
	}

	creds, err := backend.Authenticate(ctx, "lost@uni.edu", "secret1")
	if err != nil {
		t.Fatalf("identity should exist: %v", err)
	}
	out := logs.String()
	for _, want := range []string{`"level":"error"`, creds.UserID, "lost@uni.edu"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}
