package rest

import (
	"net/http"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/util"
	"github.com/bwise1/campus_voice/util/tracing"
	"github.com/bwise1/campus_voice/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

func (api *API) AuthRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Method(http.MethodPost, "/signup", Handler(api.SignUp))
	mux.Method(http.MethodPost, "/signin", Handler(api.SignIn))

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodPost, "/signout", Handler(api.SignOut))
		r.Method(http.MethodGet, "/me", Handler(api.Me))
	})

	return mux
}

func invalidRequest(err error, tc *tracing.Context) *ServerResponse {
	resp := respondWithError(err, "validation failed", values.Unprocessable, tc)
	resp.Errors = util.FieldErrors(err)
	return resp
}

func (api *API) SignUp(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	var req model.SignUpRequest
	if err := util.DecodeJSONBody(&tc, r.Body, &req); err != nil {
		return respondWithError(err, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return invalidRequest(err, &tc)
	}

	sessions := api.Deps.NewSessionManager()
	defer sessions.Close()

	profile, err := sessions.SignUp(r.Context(), util.NormalizeEmail(req.Email), req.Password, req.DisplayName, req.Role)
	if err != nil {
		return respondWithDomainError(err, &tc)
	}
	return respondWithData(profile, "account created; sign in to continue", values.Created)
}

func (api *API) SignIn(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	var req model.SignInRequest
	if err := util.DecodeJSONBody(&tc, r.Body, &req); err != nil {
		return respondWithError(err, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return invalidRequest(err, &tc)
	}

	sessions := api.Deps.NewSessionManager()
	defer sessions.Close()

	session, err := sessions.SignIn(r.Context(), util.NormalizeEmail(req.Email), req.Password, req.Role)
	if err != nil {
		return respondWithDomainError(err, &tc)
	}

	resp := model.SignInResponse{User: session.Profile, Token: session.Token}
	if !session.ExpiresAt.IsZero() {
		resp.ExpiresAt = session.ExpiresAt.Unix()
	}
	return respondWithData(resp, "signed in", values.Success)
}

// SignOut always clears the session. A failed remote revocation is reported
// as accepted rather than as an error.
func (api *API) SignOut(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	sessions, ok := sessionFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no session on request"), "not-authorized", values.NotAuthorised, &tc)
	}

	if err := sessions.SignOut(r.Context()); err != nil {
		log := tc.Logger(api.Log)
		log.Warn().Err(err).Msg("remote sign-out failed")
		return &ServerResponse{
			Message:    "signed out locally; the token could not be revoked",
			Status:     values.Accepted,
			StatusCode: util.StatusCode(values.Accepted),
		}
	}
	return respondWithData(nil, "signed out", values.Success)
}

func (api *API) Me(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	sessions, ok := sessionFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no session on request"), "not-authorized", values.NotAuthorised, &tc)
	}
	profile, ok := sessions.CurrentUser()
	if !ok {
		return respondWithError(errors.New("session not resolved"), "not-authorized", values.NotAuthorised, &tc)
	}
	return respondWithData(profile, "current user", values.Success)
}
