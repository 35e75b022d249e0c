package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwise1/campus_voice/internal/identity"
	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/util"
	"github.com/bwise1/campus_voice/util/tracing"
	"github.com/bwise1/campus_voice/util/values"
	"github.com/lucsky/cuid"
	"github.com/pkg/errors"
)

type ctxKey string

const sessionCtxKey ctxKey = "session_manager"

// RequestTracing attaches the tracing context and a request-scoped logger.
func (api *API) RequestTracing(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestSource := r.Header.Get(values.HeaderRequestSource)
		if requestSource == "" {
			requestSource = values.DefaultRequestSource
		}

		requestID := r.Header.Get(values.HeaderRequestID)
		if requestID == "" {
			requestID = cuid.New()
		}
		w.Header().Set(values.HeaderRequestID, requestID)

		tracingContext := tracing.Context{
			RequestID:     requestID,
			RequestSource: requestSource,
		}

		ctx = context.WithValue(ctx, values.ContextTracingKey, tracingContext)
		ctx = tracingContext.Logger(api.Log).WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}

func bearerToken(r *http.Request) string {
	authorization := strings.Split(r.Header.Get("Authorization"), " ")
	if len(authorization) == 2 && authorization[0] == "Bearer" {
		return authorization[1]
	}
	// browsers cannot set headers on websocket upgrades
	if r.URL.Path == "/live" || strings.HasSuffix(r.URL.Path, "/live") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// RequireLogin restores the session behind the bearer token and puts the
// user, role and session manager on the request context.
func (api *API) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeErrorResponse(w, errors.New(values.NotAuthorised), values.NotAuthorised, "not-authorized")
			return
		}

		sessions := api.Deps.NewSessionManager()
		defer sessions.Close()

		session, err := sessions.Restore(r.Context(), token)
		switch {
		case errors.Is(err, identity.ErrInvalidToken):
			writeErrorResponse(w, err, values.NotAuthorised, "invalid-token")
			return
		case errors.Is(err, portal.ErrProfileNotFound):
			writeErrorResponse(w, err, values.NotAuthorised, "user-not-found")
			return
		case err != nil:
			api.Log.Error().Err(err).Msg("session restore failed")
			writeErrorResponse(w, err, values.Unavailable, "unable to verify session")
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, values.ContextUserIDKey, session.Profile.ID)
		ctx = context.WithValue(ctx, values.ContextRoleKey, string(session.Profile.Role))
		ctx = context.WithValue(ctx, values.ContextTokenKey, session.Token)
		ctx = context.WithValue(ctx, sessionCtxKey, sessions)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects signed-in users whose profile role is not role.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, err := util.GetRoleFromContext(r.Context())
			if err != nil {
				writeErrorResponse(w, err, values.NotAuthorised, "not-authorized")
				return
			}
			if model.Role(got) != role {
				writeErrorResponse(w, errors.New("role not permitted"), values.NotAllowed, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionFromContext(ctx context.Context) (*portal.SessionManager, bool) {
	sm, ok := ctx.Value(sessionCtxKey).(*portal.SessionManager)
	return sm, ok
}

func tracingFromContext(ctx context.Context) tracing.Context {
	tc, _ := ctx.Value(values.ContextTracingKey).(tracing.Context)
	return tc
}

// viewerID returns the signed-in user's id as placed by RequireLogin.
func viewerID(ctx context.Context) (string, error) {
	id, err := util.GetUserIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
