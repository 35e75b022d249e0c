package store

import (
	"sync"
)

type Subscription interface {
	Unsubscribe()
}

// Hub fans change events out to predicate-filtered subscribers.
type Hub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*hubSubscription
}

type hubSubscription struct {
	hub  *Hub
	id   uint64
	pred Predicate
	fn   func(ChangeEvent)
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*hubSubscription)}
}

func (h *Hub) Subscribe(p Predicate, fn func(ChangeEvent)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	s := &hubSubscription{hub: h, id: h.next, pred: p, fn: fn}
	h.subs[s.id] = s
	return s
}

// Publish calls every matching subscriber synchronously, outside the hub lock.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	matched := make([]func(ChangeEvent), 0, len(h.subs))
	for _, s := range h.subs {
		if s.pred.MatchesEvent(ev) {
			matched = append(matched, s.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range matched {
		fn(ev)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *hubSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
}
