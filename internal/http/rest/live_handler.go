package rest

import (
	"context"
	"net/http"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/util"
	"github.com/bwise1/campus_voice/util/values"
	"github.com/bwise1/campus_voice/util/websockets"
	"github.com/pkg/errors"
)

// SnapshotMessage carries the full list a live view should display.
type SnapshotMessage struct {
	Type     string            `json:"type"`
	Audience portal.Audience   `json:"audience"`
	Tickets  []model.Ticket    `json:"tickets"`
	Upvoted  map[string]bool   `json:"upvoted"`
	Stats    model.TicketStats `json:"stats"`
}

// UpvoteResultMessage answers a toggle_upvote request.
type UpvoteResultMessage struct {
	Type     string `json:"type"`
	TicketID string `json:"ticket_id"`
	Applied  bool   `json:"applied"`
	Upvoted  bool   `json:"upvoted"`
}

var errAdminOnly = errors.New("the admin view requires an admin account")

// liveScope builds the list scope from the /live query string. Admin views
// are only open to admins.
func liveScope(r *http.Request, userID string, role model.Role) (portal.Scope, error) {
	q := r.URL.Query()
	switch portal.Audience(q.Get("audience")) {
	case portal.AudienceAdmin:
		if role != model.RoleAdmin {
			return portal.Scope{}, errAdminOnly
		}
		filters, err := portal.ParseAdminFilters(q.Get("status"), q.Get("severity"))
		if err != nil {
			return portal.Scope{}, err
		}
		return portal.Admin(userID, filters), nil
	case portal.AudienceFeed:
		split, err := portal.ParseFeedSplit(q.Get("split"))
		if err != nil {
			return portal.Scope{}, err
		}
		return portal.Feed(userID, split), nil
	case portal.AudienceMine, "":
		return portal.Mine(userID), nil
	}
	return portal.Scope{}, &portal.ValidationError{Fields: map[string]string{"audience": "must be mine, feed or admin"}}
}

// Live upgrades to a websocket that streams a ticket list. Each connection
// owns one list; it is refetched on every relevant change and torn down when
// the socket closes.
func (api *API) Live(w http.ResponseWriter, r *http.Request) {
	tc := tracingFromContext(r.Context())
	log := tc.Logger(api.Log)

	userID, err := viewerID(r.Context())
	if err != nil {
		writeErrorResponse(w, err, values.NotAuthorised, "not-authorized")
		return
	}
	role, _ := util.GetRoleFromContext(r.Context())

	scope, err := liveScope(r, userID, model.Role(role))
	if errors.Is(err, errAdminOnly) {
		writeErrorResponse(w, err, values.NotAllowed, err.Error())
		return
	}
	if err != nil {
		resp := respondWithDomainError(err, &tc)
		writeErrorResponse(w, err, resp.Status, resp.Message)
		return
	}

	client, err := api.Deps.WebSocket.Upgrade(w, r, userID)
	if err != nil {
		log.Warn().Err(err).Msg("live upgrade failed")
		return
	}
	defer api.Deps.WebSocket.Unregister(client)

	// the request context ends with the handler; toggles must not outlive it
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	list := api.Deps.NewTicketList(scope)
	send := func(snap portal.Snapshot, err error) {
		if err != nil {
			_ = client.Send(websockets.ErrorMessage{Type: websockets.MsgTypeError, Message: "ticket list could not be refreshed"})
			return
		}
		_ = client.Send(SnapshotMessage{
			Type:     websockets.MsgTypeSnapshot,
			Audience: scope.Audience,
			Tickets:  snap.Tickets,
			Upvoted:  snap.Upvoted,
			Stats:    list.Stats(),
		})
	}

	// subscribe before the first load so no change falls between the two
	stop, err := list.Subscribe(ctx, send)
	if err != nil {
		log.Error().Err(err).Msg("live subscribe failed")
		_ = client.Send(websockets.ErrorMessage{Type: websockets.MsgTypeError, Message: "live updates are unavailable"})
		return
	}
	defer stop()

	if _, err := list.Load(ctx); err != nil {
		send(portal.Snapshot{}, err)
	} else {
		send(list.Snapshot(), nil)
	}

	for {
		var msg websockets.Message
		if err := client.Conn.ReadJSON(&msg); err != nil {
			log.Debug().Err(err).Msg("live connection closed")
			return
		}

		switch msg.Type {
		case websockets.MsgTypeToggleUpvote:
			// not awaited, so a second click reaches the in-flight guard
			go api.liveToggle(ctx, client, list, msg.TicketID)
		case websockets.MsgTypeFilters:
			if scope.Audience != portal.AudienceAdmin {
				_ = client.Send(websockets.ErrorMessage{Type: websockets.MsgTypeError, Message: "filters apply to the admin view only"})
				continue
			}
			filters, err := portal.ParseAdminFilters(msg.Status, msg.Severity)
			if err != nil {
				_ = client.Send(websockets.ErrorMessage{Type: websockets.MsgTypeError, Message: err.Error()})
				continue
			}
			list.SetFilters(filters)
		default:
			_ = client.Send(websockets.ErrorMessage{Type: websockets.MsgTypeError, Message: "unknown message type " + msg.Type})
		}
	}
}

func (api *API) liveToggle(ctx context.Context, client *websockets.Client, list *portal.TicketList, ticketID string) {
	if list.Scope().Audience != portal.AudienceFeed {
		_ = client.Send(websockets.ErrorMessage{Type: websockets.MsgTypeError, Message: "upvotes are only available on the feed", TicketID: ticketID})
		return
	}

	applied, err := api.Deps.Upvoter.Toggle(ctx, list, ticketID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		_ = client.Send(websockets.ErrorMessage{Type: websockets.MsgTypeError, Message: "upvote could not be saved", TicketID: ticketID})
		return
	}
	_ = client.Send(UpvoteResultMessage{
		Type:     websockets.MsgTypeUpvoteResult,
		TicketID: ticketID,
		Applied:  applied,
		Upvoted:  list.HasUpvoted(ticketID),
	})
}
