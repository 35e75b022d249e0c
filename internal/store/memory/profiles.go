package memory

import (
	"context"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
)

func (s *Store) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	if err := s.fail("get_profile"); err != nil {
		return model.Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p model.Profile) error {
	if err := s.fail("create_profile"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.ID]; exists {
		return nil
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.Now()
	}
	s.profiles[p.ID] = p
	return nil
}
