package portal

import (
	"context"
	"sync"
	"time"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type upvoteKey struct {
	ticketID string
	userID   string
}

// Upvoter toggles upvotes optimistically on a TicketList and reconciles with
// the store. At most one toggle per (ticket, user) runs at a time across every
// list sharing the Upvoter.
type Upvoter struct {
	tickets store.TicketStore
	ledger  store.UpvoteLedger
	events  EventPublisher
	log     zerolog.Logger

	mu       sync.Mutex
	inflight map[upvoteKey]struct{}
}

func NewUpvoter(tickets store.TicketStore, ledger store.UpvoteLedger, events EventPublisher, log zerolog.Logger) *Upvoter {
	return &Upvoter{
		tickets:  tickets,
		ledger:   ledger,
		events:   publisherOrNop(events),
		log:      log.With().Str("component", "upvoter").Logger(),
		inflight: make(map[upvoteKey]struct{}),
	}
}

func (u *Upvoter) acquire(k upvoteKey) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, busy := u.inflight[k]; busy {
		return false
	}
	u.inflight[k] = struct{}{}
	return true
}

func (u *Upvoter) release(k upvoteKey) {
	u.mu.Lock()
	delete(u.inflight, k)
	u.mu.Unlock()
}

// Toggle flips the viewer's upvote on ticketID. applied is false with a nil
// error when another toggle for the same pair is still in flight. On failure
// the list is put back exactly as it was and the error is returned.
func (u *Upvoter) Toggle(ctx context.Context, list *TicketList, ticketID string) (applied bool, err error) {
	viewer := list.Scope().Viewer
	if viewer == "" {
		return false, ErrNoViewer
	}

	key := upvoteKey{ticketID: ticketID, userID: viewer}
	if !u.acquire(key) {
		return false, nil
	}
	defer u.release(key)

	wasUpvoted, prevCount, ok := list.flip(ticketID)
	if !ok {
		return false, errors.Wrapf(store.ErrNotFound, "ticket %s is not in this list", ticketID)
	}

	if err := u.apply(ctx, ticketID, viewer, !wasUpvoted); err != nil {
		list.restore(ticketID, wasUpvoted, prevCount)
		u.log.Warn().Err(err).
			Str("ticket_id", ticketID).
			Str("user_id", viewer).
			Msg("upvote toggle reverted")
		return false, err
	}

	if _, err := list.Load(ctx); err != nil {
		u.log.Warn().Err(err).Str("ticket_id", ticketID).Msg("refetch after upvote failed")
	}

	if err := u.events.Publish(ctx, EventUpvoteToggled, model.UpvoteToggled{
		TicketID:  ticketID,
		UserID:    viewer,
		Upvoted:   !wasUpvoted,
		ToggledAt: time.Now(),
	}); err != nil {
		u.log.Warn().Err(err).Msg("publish upvote event")
	}
	return true, nil
}

// apply mutates the ledger first, then the counter. The two writes are not
// atomic together; a failure between them leaves the counter off by one.
func (u *Upvoter) apply(ctx context.Context, ticketID, userID string, add bool) error {
	delta := 1
	if add {
		if err := u.ledger.Add(ctx, ticketID, userID); err != nil {
			return errors.Wrap(err, "record upvote")
		}
	} else {
		delta = -1
		if err := u.ledger.Remove(ctx, ticketID, userID); err != nil {
			return errors.Wrap(err, "remove upvote")
		}
	}

	if err := u.tickets.IncrementUpvotes(ctx, ticketID, delta); err != nil {
		return errors.Wrap(err, "adjust upvote counter")
	}
	return nil
}
