package portal

import (
	"context"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Triage is the admin's write path. Status updates are not applied
// optimistically and any status may follow any other.
type Triage struct {
	tickets store.TicketStore
	events  EventPublisher
	log     zerolog.Logger
}

func NewTriage(tickets store.TicketStore, events EventPublisher, log zerolog.Logger) *Triage {
	return &Triage{
		tickets: tickets,
		events:  publisherOrNop(events),
		log:     log.With().Str("component", "triage").Logger(),
	}
}

func (t *Triage) SetStatus(ctx context.Context, ticketID string, status model.Status) (model.StatusChange, error) {
	if !status.Valid() {
		return model.StatusChange{}, invalid("status", "must be open, in_progress or resolved")
	}

	before, err := t.tickets.Get(ctx, ticketID)
	if errors.Is(err, store.ErrNotFound) {
		return model.StatusChange{}, store.ErrNotFound
	}
	if err != nil {
		return model.StatusChange{}, errors.Wrapf(ErrUpdate, "read ticket: %v", err)
	}

	after, err := t.tickets.UpdateStatus(ctx, ticketID, status)
	if errors.Is(err, store.ErrNotFound) {
		return model.StatusChange{}, store.ErrNotFound
	}
	if err != nil {
		t.log.Error().Err(err).Str("ticket_id", ticketID).Msg("status update rejected")
		return model.StatusChange{}, errors.Wrapf(ErrUpdate, "%v", err)
	}

	change := model.StatusChange{Ticket: after, From: before.Status, To: after.Status}
	t.log.Info().
		Str("ticket_id", ticketID).
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Msg("ticket status changed")

	if err := t.events.Publish(ctx, EventTicketStatusChanged, change); err != nil {
		t.log.Warn().Err(err).Msg("publish status event")
	}
	return change, nil
}

// Stats counts every ticket, unfiltered.
func (t *Triage) Stats(ctx context.Context) (model.TicketStats, error) {
	all, err := t.tickets.Query(ctx, store.Predicate{}, store.SortNewest)
	if err != nil {
		return model.TicketStats{}, errors.Wrapf(ErrStoreUnavailable, "load tickets: %v", err)
	}
	return ComputeStats(all), nil
}
