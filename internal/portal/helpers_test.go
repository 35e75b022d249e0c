package portal_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store/memory"
	"github.com/rs/zerolog"
)

var nop = zerolog.Nop()

// newStore returns a memory store whose clock advances one second per call,
// so created_at ordering is deterministic.
func newStore() *memory.Store {
	s := memory.New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	s.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func seedTicket(t *testing.T, s *memory.Store, creator string, sev model.Severity, vis model.Visibility) model.Ticket {
	t.Helper()
	tk, err := s.Insert(context.Background(), model.Ticket{
		Title:       "Broken projector in Lab 3",
		Description: "The projector in lab 3 has not worked for two weeks and slows down class",
		Category:    model.CategoryInfrastructure,
		Severity:    sev,
		Visibility:  vis,
		CreatedBy:   creator,
	})
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return tk
}

func ids(ts []model.Ticket) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func contains(ts []model.Ticket, id string) bool {
	for _, t := range ts {
		if t.ID == id {
			return true
		}
	}
	return false
}

func find(ts []model.Ticket, id string) (model.Ticket, bool) {
	for _, t := range ts {
		if t.ID == id {
			return t, true
		}
	}
	return model.Ticket{}, false
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
