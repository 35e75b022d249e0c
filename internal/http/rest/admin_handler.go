package rest

import (
	"net/http"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/util"
	"github.com/bwise1/campus_voice/util/values"
	"github.com/bwise1/campus_voice/util/websockets"
	"github.com/go-chi/chi/v5"
)

// StatusChangedMessage is pushed to the creator's live connections when an
// admin moves one of their tickets.
type StatusChangedMessage struct {
	Type     string       `json:"type"`
	TicketID string       `json:"ticket_id"`
	Title    string       `json:"title"`
	From     model.Status `json:"from"`
	To       model.Status `json:"to"`
}

type adminTickets struct {
	portal.Snapshot
	Filters portal.AdminFilters `json:"filters"`
	Stats   model.TicketStats   `json:"stats"`
}

func (api *API) AdminRoutes() chi.Router {
	mux := chi.NewRouter()
	mux.Use(api.RequireLogin, requireAdmin())

	mux.Method(http.MethodGet, "/tickets", Handler(api.AdminTickets))
	mux.Method(http.MethodPatch, "/tickets/{id}/status", Handler(api.UpdateTicketStatus))
	mux.Method(http.MethodGet, "/stats", Handler(api.AdminStats))

	return mux
}

func (api *API) AdminTickets(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	userID, err := viewerID(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}
	q := r.URL.Query()
	filters, err := portal.ParseAdminFilters(q.Get("status"), q.Get("severity"))
	if err != nil {
		return respondWithDomainError(err, &tc)
	}

	list := api.Deps.NewTicketList(portal.Admin(userID, filters))
	snap, err := list.Load(r.Context())
	if err != nil {
		return respondWithDomainError(err, &tc)
	}

	return respondWithData(adminTickets{Snapshot: snap, Filters: filters, Stats: list.Stats()}, "all tickets", values.Success)
}

func (api *API) UpdateTicketStatus(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())
	ticketID := chi.URLParam(r, "id")

	var req model.UpdateStatusRequest
	if err := util.DecodeJSONBody(&tc, r.Body, &req); err != nil {
		return respondWithError(err, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return invalidRequest(err, &tc)
	}

	change, err := api.Deps.Triage.SetStatus(r.Context(), ticketID, req.Status)
	if err != nil {
		return respondWithDomainError(err, &tc)
	}

	if change.From != change.To {
		api.Deps.WebSocket.SendToUser(change.Ticket.CreatedBy, StatusChangedMessage{
			Type:     websockets.MsgTypeStatusChanged,
			TicketID: change.Ticket.ID,
			Title:    change.Ticket.Title,
			From:     change.From,
			To:       change.To,
		})
	}

	return respondWithData(change.Ticket, "status updated", values.Success)
}

func (api *API) AdminStats(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := tracingFromContext(r.Context())

	stats, err := api.Deps.Triage.Stats(r.Context())
	if err != nil {
		return respondWithDomainError(err, &tc)
	}
	return respondWithData(stats, "ticket stats", values.Success)
}
