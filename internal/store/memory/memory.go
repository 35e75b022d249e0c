// Package memory is an in-process backend for the record store. It backs dev
// mode and the test suites.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store holds tickets, upvotes and profiles. It implements store.TicketStore,
// store.UpvoteLedger and store.ProfileStore.
type Store struct {
	mu       sync.RWMutex
	tickets  map[string]model.Ticket
	upvotes  map[string]map[string]time.Time
	profiles map[string]model.Profile
	hub      *store.Hub

	// Now stamps inserted records. Tests replace it for deterministic ordering.
	Now func() time.Time
	// Fail, when set, is consulted before every operation; a non-nil result is
	// returned as the operation's error.
	Fail func(op string) error
}

func New() *Store {
	return &Store{
		tickets:  make(map[string]model.Ticket),
		upvotes:  make(map[string]map[string]time.Time),
		profiles: make(map[string]model.Profile),
		hub:      store.NewHub(),
		Now:      time.Now,
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	if err := s.Fail(op); err != nil {
		return errors.Wrap(store.ErrUnavailable, err.Error())
	}
	return nil
}

func (s *Store) Query(ctx context.Context, p store.Predicate, sort store.Sort) ([]model.Ticket, error) {
	if err := s.fail("query"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		if p.Matches(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	store.SortTickets(out, sort)
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.Ticket, error) {
	if err := s.fail("get"); err != nil {
		return model.Ticket{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, store.ErrNotFound
	}
	return t, nil
}

func (s *Store) Insert(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	if err := s.fail("insert"); err != nil {
		return model.Ticket{}, err
	}
	now := s.Now()
	t.ID = uuid.NewString()
	t.Status = model.StatusOpen
	t.UpvoteCount = 0
	t.CreatedAt = now
	t.UpdatedAt = now

	s.mu.Lock()
	s.tickets[t.ID] = t
	s.mu.Unlock()

	s.hub.Publish(store.EventFor(store.OpInsert, t, ""))
	return t, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Ticket, error) {
	if err := s.fail("update_status"); err != nil {
		return model.Ticket{}, err
	}
	s.mu.Lock()
	t, ok := s.tickets[id]
	if !ok {
		s.mu.Unlock()
		return model.Ticket{}, store.ErrNotFound
	}
	old := t.Status
	t.Status = status
	t.UpdatedAt = s.Now()
	s.tickets[id] = t
	s.mu.Unlock()

	s.hub.Publish(store.EventFor(store.OpUpdate, t, old))
	return t, nil
}

func (s *Store) IncrementUpvotes(ctx context.Context, id string, delta int) error {
	if err := s.fail("increment"); err != nil {
		return err
	}
	s.mu.Lock()
	t, ok := s.tickets[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	t.UpvoteCount += delta
	if t.UpvoteCount < 0 {
		t.UpvoteCount = 0
	}
	s.tickets[id] = t
	s.mu.Unlock()

	s.hub.Publish(store.EventFor(store.OpUpdate, t, t.Status))
	return nil
}

func (s *Store) Count(ctx context.Context, p store.Predicate) (int, error) {
	if err := s.fail("count"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tickets {
		if p.Matches(t) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Subscribe(p store.Predicate, fn func(store.ChangeEvent)) (store.Subscription, error) {
	if err := s.fail("subscribe"); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(p, fn), nil
}

// Subscribers returns the number of live change subscriptions.
func (s *Store) Subscribers() int {
	return s.hub.Len()
}

// Delete removes a ticket and its upvotes.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.fail("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	t, ok := s.tickets[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.tickets, id)
	delete(s.upvotes, id)
	s.mu.Unlock()

	s.hub.Publish(store.EventFor(store.OpDelete, t, ""))
	return nil
}
