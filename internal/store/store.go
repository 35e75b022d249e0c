// Package store defines the capability interfaces the portal core consumes and
// the query vocabulary shared by every backend adapter.
package store

import (
	"context"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("record already exists")
	ErrUnavailable = errors.New("store unavailable")
)

// TicketStore is the ticket collection of the record store.
type TicketStore interface {
	Query(ctx context.Context, p Predicate, s Sort) ([]model.Ticket, error)
	Get(ctx context.Context, id string) (model.Ticket, error)
	// Insert assigns ID, Status, UpvoteCount and timestamps and returns the stored row.
	Insert(ctx context.Context, t model.Ticket) (model.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Ticket, error)
	// IncrementUpvotes adds delta to the stored counter atomically. The result is clamped at zero.
	IncrementUpvotes(ctx context.Context, id string, delta int) error
	Count(ctx context.Context, p Predicate) (int, error)
	// Subscribe registers fn for changes matching p. fn runs on the notifier's
	// goroutine and must not block.
	Subscribe(p Predicate, fn func(ChangeEvent)) (Subscription, error)
}

// UpvoteLedger records which user upvoted which ticket.
type UpvoteLedger interface {
	// Add fails with ErrDuplicate when the pair exists.
	Add(ctx context.Context, ticketID, userID string) error
	// Remove fails with ErrNotFound when the pair does not exist.
	Remove(ctx context.Context, ticketID, userID string) error
	UpvotedBy(ctx context.Context, userID string, ticketIDs []string) (map[string]bool, error)
	CountUpvotes(ctx context.Context, ticketID string) (int, error)
	// RecountUpvotes sets the ticket's stored counter to the number of ledger
	// records in one step and returns the counter before and after.
	RecountUpvotes(ctx context.Context, ticketID string) (before, after int, err error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	// CreateProfile inserts once; an existing profile is left untouched so the
	// role stays fixed.
	CreateProfile(ctx context.Context, p model.Profile) error
}
