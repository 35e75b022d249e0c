package portal_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/portal"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/bwise1/campus_voice/internal/store/memory"
	"github.com/pkg/errors"
)

func TestSubmittedTicketAppearsInTheRightLists(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	sub := portal.NewSubmitter(s, nil, nil, nop)

	form := portal.FormFromRequest(model.CreateTicketRequest{
		Title:       "Broken projector in Lab 3",
		Description: "The projector in lab 3 has not worked for two weeks and slows down class",
		Category:    model.CategoryInfrastructure,
		Severity:    model.SeverityMedium,
		Visibility:  model.VisibilityPublic,
	})
	created, err := sub.Submit(ctx, form, "student-a")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if created.Status != model.StatusOpen || created.UpvoteCount != 0 || created.CreatedBy != "student-a" {
		t.Errorf("created = %+v", created)
	}

	lists := []struct {
		name  string
		scope portal.Scope
		want  bool
	}{
		{"own list", portal.Mine("student-a"), true},
		{"public feed", portal.Feed("student-b", portal.SplitAll), true},
		{"active feed", portal.Feed("student-b", portal.SplitActive), true},
		{"resolved feed", portal.Feed("student-b", portal.SplitResolved), false},
		{"another student's own list", portal.Mine("student-b"), false},
		{"admin", portal.Admin("admin-1", portal.AdminFilters{}), true},
	}

	for _, tc := range lists {
		t.Run(tc.name, func(t *testing.T) {
			snap, err := portal.NewTicketList(s, s, tc.scope, nop).Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := contains(snap.Tickets, created.ID); got != tc.want {
				t.Errorf("contains = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestPrivateTicketsNeverInFeed(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	private := seedTicket(t, s, "student-a", model.SeverityCritical, model.VisibilityPrivate)
	public := seedTicket(t, s, "student-a", model.SeverityLow, model.VisibilityPublic)

	for _, split := range []portal.FeedSplit{portal.SplitAll, portal.SplitActive} {
		snap, err := portal.NewTicketList(s, s, portal.Feed("student-a", split), nop).Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if contains(snap.Tickets, private.ID) {
			t.Errorf("split %s: private ticket leaked into the feed", split)
		}
		if !contains(snap.Tickets, public.ID) {
			t.Errorf("split %s: public ticket missing", split)
		}
	}

	mine, _ := portal.NewTicketList(s, s, portal.Mine("student-a"), nop).Load(ctx)
	if !contains(mine.Tickets, private.ID) {
		t.Error("owner cannot see their private ticket")
	}
}

func TestAdminSortPutsSeverityFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	low := seedTicket(t, s, "u1", model.SeverityLow, model.VisibilityPublic)
	critical := seedTicket(t, s, "u1", model.SeverityCritical, model.VisibilityPrivate)
	mediumOld := seedTicket(t, s, "u1", model.SeverityMedium, model.VisibilityPublic)
	mediumNew := seedTicket(t, s, "u1", model.SeverityMedium, model.VisibilityPublic)
	_ = s.IncrementUpvotes(ctx, low.ID, 50)

	snap, err := portal.NewTicketList(s, s, portal.Admin("admin", portal.AdminFilters{}), nop).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{critical.ID, mediumNew.ID, mediumOld.ID, low.ID}
	got := ids(snap.Tickets)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v; want %v", got, want)
		}
	}

	feed, _ := portal.NewTicketList(s, s, portal.Feed("u1", portal.SplitAll), nop).Load(ctx)
	if feed.Tickets[0].ID != low.ID {
		t.Errorf("feed should lead with the most upvoted ticket, got %s", feed.Tickets[0].ID)
	}
}

func TestAdminFiltersAndStats(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	critical := seedTicket(t, s, "u1", model.SeverityCritical, model.VisibilityPublic)
	seedTicket(t, s, "u1", model.SeverityCritical, model.VisibilityPrivate)
	seedTicket(t, s, "u1", model.SeverityLow, model.VisibilityPublic)
	if _, err := s.UpdateStatus(ctx, critical.ID, model.StatusResolved); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	list := portal.NewTicketList(s, s, portal.Admin("admin", portal.AdminFilters{}), nop)
	if _, err := list.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	testCases := []struct {
		status, severity string
		want             int
	}{
		{"all", "all", 3},
		{"", "", 3},
		{"resolved", "all", 1},
		{"open", "critical", 1},
		{"open", "low", 1},
		{"in_progress", "all", 0},
	}
	for _, tc := range testCases {
		filters, err := portal.ParseAdminFilters(tc.status, tc.severity)
		if err != nil {
			t.Fatalf("ParseAdminFilters(%q, %q): %v", tc.status, tc.severity, err)
		}
		if got := len(list.SetFilters(filters).Tickets); got != tc.want {
			t.Errorf("filters %q/%q: %d tickets; want %d", tc.status, tc.severity, got, tc.want)
		}
	}

	stats := list.Stats()
	want := model.TicketStats{Open: 2, Resolved: 1, CriticalUnresolved: 1}
	if stats != want {
		t.Errorf("Stats = %+v; want %+v", stats, want)
	}

	if _, err := portal.ParseAdminFilters("closed", "all"); !portal.IsValidation(err) {
		t.Errorf("unknown status filter: err = %v", err)
	}
}

func TestLoadReportsStoreUnavailable(t *testing.T) {
	s := newStore()
	s.Fail = func(op string) error {
		if op == "query" {
			return errors.New("connection refused")
		}
		return nil
	}
	_, err := portal.NewTicketList(s, s, portal.Mine("u1"), nop).Load(context.Background())
	if !errors.Is(err, portal.ErrStoreUnavailable) {
		t.Errorf("err = %v; want ErrStoreUnavailable", err)
	}
}

// blockingStore holds the first Query open until release is closed.
type blockingStore struct {
	*memory.Store
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Query(ctx context.Context, p store.Predicate, s store.Sort) ([]model.Ticket, error) {
	b.mu.Lock()
	b.calls++
	n := b.calls
	b.mu.Unlock()

	res, err := b.Store.Query(ctx, p, s)
	if n == 1 {
		close(b.entered)
		<-b.release
	}
	return res, err
}

func TestLoadLastFetchWins(t *testing.T) {
	ctx := context.Background()
	mem := newStore()
	first := seedTicket(t, mem, "u1", model.SeverityLow, model.VisibilityPublic)
	bs := &blockingStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	list := portal.NewTicketList(bs, mem, portal.Feed("u1", portal.SplitAll), nop)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = list.Load(ctx)
	}()
	<-bs.entered

	second := seedTicket(t, mem, "u1", model.SeverityLow, model.VisibilityPublic)
	if _, err := list.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	close(bs.release)
	<-done

	snap := list.Snapshot()
	if !contains(snap.Tickets, first.ID) || !contains(snap.Tickets, second.ID) {
		t.Errorf("stale load overwrote newer state: %v", ids(snap.Tickets))
	}
}

func TestSubscribeRefetchesAndCancels(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	list := portal.NewTicketList(s, s, portal.Feed("u1", portal.SplitAll), nop)
	if _, err := list.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	updates := make(chan portal.Snapshot, 16)
	cancel, err := list.Subscribe(ctx, func(snap portal.Snapshot, err error) {
		if err == nil {
			updates <- snap
		}
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if s.Subscribers() != 1 {
		t.Fatalf("Subscribers = %d; want 1", s.Subscribers())
	}

	created := seedTicket(t, s, "u2", model.SeverityMedium, model.VisibilityPublic)
	select {
	case snap := <-updates:
		if !contains(snap.Tickets, created.ID) {
			t.Errorf("refetched snapshot missing the new ticket")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no refetch after insert")
	}

	cancel()
	cancel()
	if s.Subscribers() != 0 {
		t.Errorf("Subscribers = %d after cancel; want 0", s.Subscribers())
	}

	seedTicket(t, s, "u2", model.SeverityMedium, model.VisibilityPublic)
	select {
	case <-updates:
		t.Error("onChange called after cancel")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeRefetchesAfterDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	kept := seedTicket(t, s, "u2", model.SeverityLow, model.VisibilityPublic)
	gone := seedTicket(t, s, "u2", model.SeverityCritical, model.VisibilityPublic)

	list := portal.NewTicketList(s, s, portal.Feed("u1", portal.SplitAll), nop)
	if snap, err := list.Load(ctx); err != nil || len(snap.Tickets) != 2 {
		t.Fatalf("Load = %d tickets, %v", len(snap.Tickets), err)
	}

	updates := make(chan portal.Snapshot, 16)
	cancel, err := list.Subscribe(ctx, func(snap portal.Snapshot, err error) {
		if err == nil {
			updates <- snap
		}
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if err := s.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	select {
	case snap := <-updates:
		if contains(snap.Tickets, gone.ID) || !contains(snap.Tickets, kept.ID) {
			t.Errorf("snapshot after delete = %v", ids(snap.Tickets))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no refetch after delete")
	}
	if contains(list.Snapshot().Tickets, gone.ID) {
		t.Error("deleted ticket still in the list")
	}
}

func TestComputeStats(t *testing.T) {
	tickets := []model.Ticket{
		{Status: model.StatusOpen, Severity: model.SeverityCritical},
		{Status: model.StatusInProgress, Severity: model.SeverityCritical},
		{Status: model.StatusResolved, Severity: model.SeverityCritical},
		{Status: model.StatusOpen, Severity: model.SeverityLow},
	}
	want := model.TicketStats{Open: 2, InProgress: 1, Resolved: 1, CriticalUnresolved: 2}
	if got := portal.ComputeStats(tickets); got != want {
		t.Errorf("ComputeStats = %+v; want %+v", got, want)
	}
}
