package rest

import (
	"io"
	"mime"
	"net/http"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/bwise1/campus_voice/util"
	"github.com/bwise1/campus_voice/util/tracing"
	"github.com/bwise1/campus_voice/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// maxSubmissionBytes bounds the whole multipart body: one image plus fields.
const maxSubmissionBytes = portal.MaxImageBytes + 1<<20

func (api *API) TicketRoutes() chi.Router {
	mux := chi.NewRouter()
	mux.Use(api.RequireLogin)

	mux.Method(http.MethodGet, "/mine", Handler(api.MyTickets))
	mux.Method(http.MethodGet, "/feed", Handler(api.Feed))
	mux.Method(http.MethodPost, "/{id}/upvote", Handler(api.ToggleUpvote))

	mux.Group(func(r chi.Router) {
		r.Use(requireStudent())
		r.Method(http.MethodPost, "/", Handler(api.CreateTicket))
	})

	return mux
}

func (api *API) CreateTicket(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	userID, err := viewerID(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	var form *portal.Form
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		form, err = readMultipartForm(w, r)
		if err != nil {
			return respondWithError(err, "unable to read form", values.BadRequestBody, &tc)
		}
	} else {
		var req model.CreateTicketRequest
		if err := util.DecodeJSONBody(&tc, r.Body, &req); err != nil {
			return respondWithError(err, "unable to decode request", values.BadRequestBody, &tc)
		}
		form = portal.FormFromRequest(req)
	}

	ticket, err := api.Deps.Submitter.Submit(r.Context(), form, userID)
	if err != nil {
		return respondWithDomainError(err, &tc)
	}
	return respondWithData(ticket, "ticket submitted", values.Created)
}

func readMultipartForm(w http.ResponseWriter, r *http.Request) (*portal.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		return nil, errors.Wrap(err, "parse multipart form")
	}

	form := portal.FormFromRequest(model.CreateTicketRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    model.Category(r.FormValue("category")),
		Severity:    model.Severity(r.FormValue("severity")),
		Visibility:  model.Visibility(r.FormValue("visibility")),
	})

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	defer file.Close()

	// one byte past the limit is enough for validation to reject it
	data, err := io.ReadAll(io.LimitReader(file, portal.MaxImageBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	form.Image = &portal.Image{Filename: header.Filename, Data: data}
	return form, nil
}

func (api *API) MyTickets(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	userID, err := viewerID(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	snap, err := api.Deps.NewTicketList(portal.Mine(userID)).Load(r.Context())
	if err != nil {
		return respondWithDomainError(err, &tc)
	}
	return respondWithData(snap, "your tickets", values.Success)
}

func (api *API) Feed(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	userID, err := viewerID(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	split, err := portal.ParseFeedSplit(r.URL.Query().Get("split"))
	if err != nil {
		return respondWithDomainError(err, &tc)
	}

	snap, err := api.Deps.NewTicketList(portal.Feed(userID, split)).Load(r.Context())
	if err != nil {
		return respondWithDomainError(err, &tc)
	}
	return respondWithData(snap, "public feed", values.Success)
}

// ToggleUpvote flips the viewer's upvote on a public ticket. A click that
// lands while the previous one is still being written is accepted as a no-op.
func (api *API) ToggleUpvote(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())
	ticketID := chi.URLParam(r, "id")

	userID, err := viewerID(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	list := api.Deps.NewTicketList(portal.Feed(userID, portal.SplitAll))
	if _, err := list.Load(r.Context()); err != nil {
		return respondWithDomainError(err, &tc)
	}

	applied, err := api.Deps.Upvoter.Toggle(r.Context(), list, ticketID)
	if err != nil {
		return respondWithDomainError(err, &tc)
	}

	return upvoteResponse(list, ticketID, applied, &tc)
}

func upvoteResponse(list *portal.TicketList, ticketID string, applied bool, tc *tracing.Context) *ServerResponse {
	var ticket *model.Ticket
	for _, t := range list.Snapshot().Tickets {
		if t.ID == ticketID {
			t := t
			ticket = &t
			break
		}
	}
	if ticket == nil {
		return respondWithDomainError(errors.Wrapf(store.ErrNotFound, "ticket %s", ticketID), tc)
	}

	resp := model.UpvoteResponse{Applied: applied, Upvoted: list.HasUpvoted(ticketID), Ticket: *ticket}
	if !applied {
		return &ServerResponse{
			Message:    "an upvote for this ticket is already in progress",
			Status:     values.Accepted,
			StatusCode: util.StatusCode(values.Accepted),
			Data:       resp,
		}
	}
	return respondWithData(resp, "upvote toggled", values.Success)
}
