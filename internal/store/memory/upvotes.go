package memory

import (
	"context"
	"time"

	"github.com/bwise1/campus_voice/internal/store"
)

func (s *Store) Add(ctx context.Context, ticketID, userID string) error {
	if err := s.fail("upvote_add"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[ticketID]; !ok {
		return store.ErrNotFound
	}
	voters, ok := s.upvotes[ticketID]
	if !ok {
		voters = make(map[string]time.Time)
		s.upvotes[ticketID] = voters
	}
	if _, exists := voters[userID]; exists {
		return store.ErrDuplicate
	}
	voters[userID] = s.Now()
	return nil
}

func (s *Store) Remove(ctx context.Context, ticketID, userID string) error {
	if err := s.fail("upvote_remove"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	voters := s.upvotes[ticketID]
	if _, exists := voters[userID]; !exists {
		return store.ErrNotFound
	}
	delete(voters, userID)
	return nil
}

func (s *Store) UpvotedBy(ctx context.Context, userID string, ticketIDs []string) (map[string]bool, error) {
	if err := s.fail("upvoted_by"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool, len(ticketIDs))
	for _, id := range ticketIDs {
		if _, ok := s.upvotes[id][userID]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *Store) CountUpvotes(ctx context.Context, ticketID string) (int, error) {
	if err := s.fail("upvote_count"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.upvotes[ticketID]), nil
}

func (s *Store) RecountUpvotes(ctx context.Context, ticketID string) (int, int, error) {
	if err := s.fail("recount"); err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	t, ok := s.tickets[ticketID]
	if !ok {
		s.mu.Unlock()
		return 0, 0, store.ErrNotFound
	}
	before := t.UpvoteCount
	t.UpvoteCount = len(s.upvotes[ticketID])
	s.tickets[ticketID] = t
	s.mu.Unlock()

	if before != t.UpvoteCount {
		s.hub.Publish(store.EventFor(store.OpUpdate, t, t.Status))
	}
	return before, t.UpvoteCount, nil
}
