package rest

import (
	"net/http"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/bwise1/campus_voice/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

func (api *API) ProfileRoutes() chi.Router {
	mux := chi.NewRouter()
	mux.Use(api.RequireLogin)

	mux.Method(http.MethodGet, "/", Handler(api.GetProfile))

	return mux
}

func (api *API) GetProfile(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	sessions, ok := sessionFromContext(r.Context())
	if !ok {
		return respondWithError(errors.New("no session on request"), "not-authorized", values.NotAuthorised, &tc)
	}
	profile, ok := sessions.CurrentUser()
	if !ok {
		return respondWithError(errors.New("session not resolved"), "not-authorized", values.NotAuthorised, &tc)
	}

	count, err := api.Deps.Tickets.Count(r.Context(), store.Predicate{CreatedBy: profile.ID})
	if err != nil {
		return respondWithDomainError(err, &tc)
	}

	return respondWithData(model.ProfileResponse{Profile: profile, TicketCount: count}, "profile", values.Success)
}
