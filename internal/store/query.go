package store

import (
	"sort"

	"github.com/bwise1/campus_voice/internal/model"
)

// Predicate selects tickets. Zero-valued fields match everything.
type Predicate struct {
	CreatedBy  string
	Visibility model.Visibility
	Statuses   []model.Status
}

func (p Predicate) Matches(t model.Ticket) bool {
	if p.CreatedBy != "" && t.CreatedBy != p.CreatedBy {
		return false
	}
	if p.Visibility != "" && t.Visibility != p.Visibility {
		return false
	}
	return p.statusMatches(t.Status)
}

// MatchesEvent reports whether ev touched the matched set, either by entering
// it or by leaving it.
func (p Predicate) MatchesEvent(ev ChangeEvent) bool {
	if p.CreatedBy != "" && ev.CreatedBy != p.CreatedBy {
		return false
	}
	if p.Visibility != "" && ev.Visibility != p.Visibility {
		return false
	}
	if p.statusMatches(ev.Status) {
		return true
	}
	return ev.OldStatus != "" && p.statusMatches(ev.OldStatus)
}

func (p Predicate) statusMatches(s model.Status) bool {
	if len(p.Statuses) == 0 {
		return true
	}
	for _, want := range p.Statuses {
		if want == s {
			return true
		}
	}
	return false
}

type Sort int

const (
	// SortNewest orders by created_at descending.
	SortNewest Sort = iota
	// SortFeed orders by upvotes descending, severity rank, created_at descending.
	SortFeed
	// SortTriage orders by severity rank, upvotes descending, created_at descending.
	SortTriage
)

func (s Sort) Less(a, b model.Ticket) bool {
	switch s {
	case SortFeed:
		if a.UpvoteCount != b.UpvoteCount {
			return a.UpvoteCount > b.UpvoteCount
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
	case SortTriage:
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.UpvoteCount != b.UpvoteCount {
			return a.UpvoteCount > b.UpvoteCount
		}
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// SortTickets orders ts in place.
func SortTickets(ts []model.Ticket, s Sort) {
	sort.SliceStable(ts, func(i, j int) bool {
		return s.Less(ts[i], ts[j])
	})
}

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// ChangeEvent describes one row change in the ticket collection.
type ChangeEvent struct {
	Op         Op               `json:"op"`
	TicketID   string           `json:"id"`
	CreatedBy  string           `json:"created_by"`
	Visibility model.Visibility `json:"visibility"`
	Status     model.Status     `json:"status"`
	OldStatus  model.Status     `json:"old_status,omitempty"`
}

// EventFor builds the change event for t. old is the status before an update.
func EventFor(op Op, t model.Ticket, old model.Status) ChangeEvent {
	return ChangeEvent{
		Op:         op,
		TicketID:   t.ID,
		CreatedBy:  t.CreatedBy,
		Visibility: t.Visibility,
		Status:     t.Status,
		OldStatus:  old,
	}
}
