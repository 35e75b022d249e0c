package portal

import "context"

const (
	EventTicketCreated       = "ticket.created"
	EventTicketStatusChanged = "ticket.status_changed"
	EventUpvoteToggled       = "ticket.upvote_toggled"
)

// EventPublisher forwards domain events to whatever is listening outside the
// process. Publishing is best effort: a failure is logged, never surfaced.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
