package portal_test

import (
	"context"
	"testing"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/bwise1/campus_voice/internal/store/memory"
	"github.com/pkg/errors"
)

func loadedFeed(t *testing.T, s *memory.Store, viewer string) *portal.TicketList {
	t.Helper()
	list := portal.NewTicketList(s, s, portal.Feed(viewer, portal.SplitAll), nop)
	if _, err := list.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return list
}

func TestToggleTwiceRestoresCount(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	tk := seedTicket(t, s, "author", model.SeverityMedium, model.VisibilityPublic)
	_ = s.IncrementUpvotes(ctx, tk.ID, 3)

	events := &recordingPublisher{}
	up := portal.NewUpvoter(s, s, events, nop)
	list := loadedFeed(t, s, "voter")

	applied, err := up.Toggle(ctx, list, tk.ID)
	if err != nil || !applied {
		t.Fatalf("first toggle = %v, %v", applied, err)
	}
	got, _ := find(list.Snapshot().Tickets, tk.ID)
	if got.UpvoteCount != 4 || !list.HasUpvoted(tk.ID) {
		t.Fatalf("after add: count %d upvoted %v", got.UpvoteCount, list.HasUpvoted(tk.ID))
	}

	applied, err = up.Toggle(ctx, list, tk.ID)
	if err != nil || !applied {
		t.Fatalf("second toggle = %v, %v", applied, err)
	}
	got, _ = find(list.Snapshot().Tickets, tk.ID)
	if got.UpvoteCount != 3 || list.HasUpvoted(tk.ID) {
		t.Errorf("after remove: count %d upvoted %v", got.UpvoteCount, list.HasUpvoted(tk.ID))
	}

	if n, _ := s.CountUpvotes(ctx, tk.ID); n != 0 {
		t.Errorf("ledger count = %d; want 0", n)
	}
	if len(events.Events()) != 2 {
		t.Errorf("events = %v", events.Events())
	}
}

func TestToggleRevertsOnFailure(t *testing.T) {
	testCases := []struct {
		name   string
		failOn string
	}{
		{"ledger write fails", "upvote_add"},
		{"counter write fails", "increment"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()
			tk := seedTicket(t, s, "author", model.SeverityLow, model.VisibilityPublic)
			_ = s.IncrementUpvotes(ctx, tk.ID, 2)

			up := portal.NewUpvoter(s, s, nil, nop)
			list := loadedFeed(t, s, "voter")

			var seen []int
			cancel, err := list.Subscribe(ctx, func(snap portal.Snapshot, err error) {
				if got, ok := find(snap.Tickets, tk.ID); ok {
					seen = append(seen, got.UpvoteCount)
				}
			})
			if err != nil {
				t.Fatalf("Subscribe: %v", err)
			}
			defer cancel()

			s.Fail = func(op string) error {
				if op == tc.failOn {
					return errors.New("backend rejected write")
				}
				return nil
			}
			applied, err := up.Toggle(ctx, list, tk.ID)
			if err == nil || applied {
				t.Fatalf("Toggle = %v, %v; want failure", applied, err)
			}
			if !errors.Is(err, store.ErrUnavailable) {
				t.Errorf("err = %v; want store unavailable", err)
			}

			got, _ := find(list.Snapshot().Tickets, tk.ID)
			if got.UpvoteCount != 2 || list.HasUpvoted(tk.ID) {
				t.Errorf("not reverted: count %d upvoted %v", got.UpvoteCount, list.HasUpvoted(tk.ID))
			}
			if len(seen) < 2 || seen[0] != 3 || seen[1] != 2 {
				t.Errorf("observed counts %v; want optimistic 3 then reverted 2", seen)
			}
		})
	}
}

func TestToggleNeverDisplaysNegative(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	tk := seedTicket(t, s, "author", model.SeverityLow, model.VisibilityPublic)

	// ledger says upvoted but the counter drifted to zero
	if err := s.Add(ctx, tk.ID, "voter"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	up := portal.NewUpvoter(s, s, nil, nop)
	list := loadedFeed(t, s, "voter")

	if _, err := up.Toggle(ctx, list, tk.ID); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	got, _ := find(list.Snapshot().Tickets, tk.ID)
	if got.UpvoteCount != 0 {
		t.Errorf("count = %d; want 0", got.UpvoteCount)
	}
}

// slowLedger blocks Add until release is closed.
type slowLedger struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (l *slowLedger) Add(ctx context.Context, ticketID, userID string) error {
	close(l.entered)
	<-l.release
	return l.Store.Add(ctx, ticketID, userID)
}

func TestToggleInFlightGuard(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	tk := seedTicket(t, s, "author", model.SeverityLow, model.VisibilityPublic)
	ledger := &slowLedger{Store: s, entered: make(chan struct{}), release: make(chan struct{})}

	up := portal.NewUpvoter(s, ledger, nil, nop)
	list := portal.NewTicketList(s, ledger, portal.Feed("voter", portal.SplitAll), nop)
	if _, err := list.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	other := portal.NewTicketList(s, ledger, portal.Feed("voter", portal.SplitAll), nop)
	if _, err := other.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	type result struct {
		applied bool
		err     error
	}
	first := make(chan result, 1)
	go func() {
		applied, err := up.Toggle(ctx, list, tk.ID)
		first <- result{applied, err}
	}()
	<-ledger.entered

	for _, l := range []*portal.TicketList{list, other} {
		applied, err := up.Toggle(ctx, l, tk.ID)
		if applied || err != nil {
			t.Errorf("concurrent toggle = %v, %v; want a silent no-op", applied, err)
		}
	}

	close(ledger.release)
	if r := <-first; !r.applied || r.err != nil {
		t.Fatalf("first toggle = %+v", r)
	}

	stored, _ := s.Get(ctx, tk.ID)
	if stored.UpvoteCount != 1 {
		t.Errorf("stored count = %d; want 1", stored.UpvoteCount)
	}
}

func TestToggleUnknownTicket(t *testing.T) {
	s := newStore()
	private := seedTicket(t, s, "author", model.SeverityLow, model.VisibilityPrivate)
	up := portal.NewUpvoter(s, s, nil, nop)
	list := loadedFeed(t, s, "voter")

	if _, err := up.Toggle(context.Background(), list, private.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}

	anonymous := portal.NewTicketList(s, s, portal.Feed("", portal.SplitAll), nop)
	if _, err := up.Toggle(context.Background(), anonymous, private.ID); !errors.Is(err, portal.ErrNoViewer) {
		t.Errorf("err = %v; want ErrNoViewer", err)
	}
}
