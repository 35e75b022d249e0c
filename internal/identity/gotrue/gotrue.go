// Package gotrue authenticates against a hosted GoTrue server (Supabase auth).
package gotrue

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwise1/campus_voice/internal/identity"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

type Backend struct {
	client *resty.Client
	log    zerolog.Logger
}

// New returns a backend for the GoTrue API rooted at baseURL, for example
// https://<project>.supabase.co/auth/v1.
func New(baseURL, apiKey string, log zerolog.Logger) *Backend {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(defaultTimeout).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json")
	return &Backend{client: client, log: log.With().Str("component", "gotrue").Logger()}
}

type user struct {
	ID string `json:"id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
	User        user   `json:"user"`
}

// signupResponse covers both shapes GoTrue returns: a bare user when email
// confirmation is on, a session with a nested user when it is off.
type signupResponse struct {
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
	User        *user  `json:"user"`
}

type apiError struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e apiError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

func (b *Backend) Authenticate(ctx context.Context, email, password string) (identity.Credentials, error) {
	var out tokenResponse
	var apiErr apiError
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/token")
	if err != nil {
		return identity.Credentials{}, errors.Wrap(err, "gotrue token request")
	}

	switch {
	case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnauthorized:
		return identity.Credentials{}, identity.ErrInvalidCredentials
	case resp.IsError():
		return identity.Credentials{}, errors.Errorf("gotrue token: %d %s", resp.StatusCode(), apiErr.text())
	}

	expiresAt := time.Unix(out.ExpiresAt, 0)
	if out.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return identity.Credentials{
		UserID:    out.User.ID,
		Token:     out.AccessToken,
		ExpiresAt: expiresAt,
	}, nil
}

func (b *Backend) Register(ctx context.Context, email, password string, attrs identity.Attributes) (string, error) {
	if err := identity.CheckPassword(password); err != nil {
		return "", err
	}

	var out signupResponse
	var apiErr apiError
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"email":    email,
			"password": password,
			"data": map[string]string{
				"display_name": attrs.DisplayName,
				"role":         string(attrs.Role),
			},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/signup")
	if err != nil {
		return "", errors.Wrap(err, "gotrue signup request")
	}

	if resp.IsError() {
		msg := strings.ToLower(apiErr.text())
		switch {
		case apiErr.ErrorCode == "user_already_exists" || strings.Contains(msg, "already registered"):
			return "", identity.ErrDuplicateAccount
		case apiErr.ErrorCode == "weak_password" || strings.Contains(msg, "password"):
			return "", errors.Wrap(identity.ErrWeakCredential, apiErr.text())
		}
		return "", errors.Errorf("gotrue signup: %d %s", resp.StatusCode(), apiErr.text())
	}

	id := out.ID
	if out.User != nil && out.User.ID != "" {
		id = out.User.ID
	}
	if id == "" {
		return "", errors.New("gotrue signup: response carried no user id")
	}

	// with auto-confirm on, signup also opens a session; signup never signs
	// the caller in, so revoke it
	if out.AccessToken != "" {
		if err := b.Invalidate(ctx, out.AccessToken); err != nil {
			b.log.Warn().Err(err).Str("user_id", id).Msg("could not revoke signup session")
		}
	}
	return id, nil
}

func (b *Backend) Invalidate(ctx context.Context, token string) error {
	var apiErr apiError
	resp, err := b.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetError(&apiErr).
		Post("/logout")
	if err != nil {
		return errors.Wrap(err, "gotrue logout request")
	}
	// an already-invalid token is as signed out as it gets
	if resp.IsError() && resp.StatusCode() != http.StatusUnauthorized {
		return errors.Errorf("gotrue logout: %d %s", resp.StatusCode(), apiErr.text())
	}
	return nil
}

func (b *Backend) Verify(ctx context.Context, token string) (string, error) {
	var out user
	var apiErr apiError
	resp, err := b.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		SetError(&apiErr).
		Get("/user")
	if err != nil {
		return "", errors.Wrap(err, "gotrue user request")
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return "", identity.ErrInvalidToken
	case resp.IsError():
		return "", errors.Errorf("gotrue user: %d %s", resp.StatusCode(), apiErr.text())
	case out.ID == "":
		return "", identity.ErrInvalidToken
	}
	return out.ID, nil
}
