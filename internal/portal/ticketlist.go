package portal

import (
	"context"
	"sync"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Audience string

const (
	AudienceMine  Audience = "mine"
	AudienceFeed  Audience = "feed"
	AudienceAdmin Audience = "admin"
)

// FeedSplit narrows the public feed by resolution state.
type FeedSplit string

const (
	SplitAll      FeedSplit = "all"
	SplitActive   FeedSplit = "active"
	SplitResolved FeedSplit = "resolved"
)

const filterAll = "all"

// AdminFilters are applied locally on top of the loaded admin snapshot.
// An empty value or "all" matches everything.
type AdminFilters struct {
	Status   string `json:"status"`
	Severity string `json:"severity"`
}

// ParseAdminFilters validates raw filter values from a query string or message.
func ParseAdminFilters(status, severity string) (AdminFilters, error) {
	f := AdminFilters{Status: status, Severity: severity}
	if f.Status == "" {
		f.Status = filterAll
	}
	if f.Severity == "" {
		f.Severity = filterAll
	}

	fields := map[string]string{}
	if f.Status != filterAll && !model.Status(f.Status).Valid() {
		fields["status"] = "must be all, open, in_progress or resolved"
	}
	if f.Severity != filterAll && !model.Severity(f.Severity).Valid() {
		fields["severity"] = "must be all, critical, medium or low"
	}
	if len(fields) > 0 {
		return AdminFilters{}, &ValidationError{Fields: fields}
	}
	return f, nil
}

func (f AdminFilters) matches(t model.Ticket) bool {
	if f.Status != "" && f.Status != filterAll && string(t.Status) != f.Status {
		return false
	}
	if f.Severity != "" && f.Severity != filterAll && string(t.Severity) != f.Severity {
		return false
	}
	return true
}

func ParseFeedSplit(s string) (FeedSplit, error) {
	switch FeedSplit(s) {
	case "", SplitAll:
		return SplitAll, nil
	case SplitActive, SplitResolved:
		return FeedSplit(s), nil
	}
	return "", invalid("split", "must be all, active or resolved")
}

// Scope is the audience a list is built for, plus the viewer whose upvotes
// are tracked.
type Scope struct {
	Audience Audience
	Viewer   string
	Split    FeedSplit
	Filters  AdminFilters
}

func Mine(viewer string) Scope {
	return Scope{Audience: AudienceMine, Viewer: viewer}
}

func Feed(viewer string, split FeedSplit) Scope {
	return Scope{Audience: AudienceFeed, Viewer: viewer, Split: split}
}

func Admin(viewer string, filters AdminFilters) Scope {
	return Scope{Audience: AudienceAdmin, Viewer: viewer, Filters: filters}
}

func (s Scope) predicate() store.Predicate {
	switch s.Audience {
	case AudienceMine:
		return store.Predicate{CreatedBy: s.Viewer}
	case AudienceFeed:
		p := store.Predicate{Visibility: model.VisibilityPublic}
		switch s.Split {
		case SplitActive:
			p.Statuses = []model.Status{model.StatusOpen, model.StatusInProgress}
		case SplitResolved:
			p.Statuses = []model.Status{model.StatusResolved}
		}
		return p
	default:
		return store.Predicate{}
	}
}

func (s Scope) sort() store.Sort {
	switch s.Audience {
	case AudienceFeed:
		return store.SortFeed
	case AudienceAdmin:
		return store.SortTriage
	default:
		return store.SortNewest
	}
}

// Snapshot is what a list currently displays.
type Snapshot struct {
	Tickets []model.Ticket  `json:"tickets"`
	Upvoted map[string]bool `json:"upvoted"`
}

// TicketList keeps a live, sorted projection of tickets for one scope.
type TicketList struct {
	tickets store.TicketStore
	ledger  store.UpvoteLedger
	scope   Scope
	log     zerolog.Logger

	mu       sync.Mutex
	started  uint64
	applied  uint64
	all      []model.Ticket
	upvoted  map[string]bool
	filters  AdminFilters
	onChange func(Snapshot, error)
}

func NewTicketList(tickets store.TicketStore, ledger store.UpvoteLedger, scope Scope, log zerolog.Logger) *TicketList {
	return &TicketList{
		tickets: tickets,
		ledger:  ledger,
		scope:   scope,
		filters: scope.Filters,
		upvoted: map[string]bool{},
		log: log.With().
			Str("component", "ticket_list").
			Str("audience", string(scope.Audience)).
			Logger(),
	}
}

func (l *TicketList) Scope() Scope {
	return l.scope
}

// Load runs the full query and replaces local state with the result. When
// loads overlap, a result never replaces one from a load started after it.
func (l *TicketList) Load(ctx context.Context) (Snapshot, error) {
	l.mu.Lock()
	l.started++
	seq := l.started
	l.mu.Unlock()

	tickets, err := l.tickets.Query(ctx, l.scope.predicate(), l.scope.sort())
	if err != nil {
		return Snapshot{}, errors.Wrapf(ErrStoreUnavailable, "load %s tickets: %v", l.scope.Audience, err)
	}

	upvoted := map[string]bool{}
	if l.scope.Viewer != "" && len(tickets) > 0 {
		ids := make([]string, len(tickets))
		for i, t := range tickets {
			ids[i] = t.ID
		}
		upvoted, err = l.ledger.UpvotedBy(ctx, l.scope.Viewer, ids)
		if err != nil {
			return Snapshot{}, errors.Wrapf(ErrStoreUnavailable, "load upvotes: %v", err)
		}
	}

	l.mu.Lock()
	if seq < l.applied {
		snap := l.snapshotLocked()
		l.mu.Unlock()
		l.log.Debug().Uint64("seq", seq).Msg("discarded stale load")
		return snap, nil
	}
	if upvoted == nil {
		upvoted = map[string]bool{}
	}
	l.applied = seq
	l.all = tickets
	l.upvoted = upvoted
	snap := l.snapshotLocked()
	l.mu.Unlock()

	return snap, nil
}

// Subscribe refetches the list whenever a change touches the scope and hands
// the fresh snapshot to onChange. Notifications that arrive while a refetch is
// pending fold into it. Call cancel when the view goes away.
func (l *TicketList) Subscribe(ctx context.Context, onChange func(Snapshot, error)) (cancel func(), err error) {
	poke := make(chan struct{}, 1)
	sub, err := l.tickets.Subscribe(l.scope.predicate(), func(store.ChangeEvent) {
		select {
		case poke <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "subscribe: %v", err)
	}

	l.mu.Lock()
	l.onChange = onChange
	l.mu.Unlock()

	ctx, stop := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-poke:
			}
			snap, err := l.Load(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				l.log.Warn().Err(err).Msg("refetch after change failed")
			}
			l.emit(snap, err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.Unsubscribe()
			stop()
			l.mu.Lock()
			l.onChange = nil
			l.mu.Unlock()
		})
	}, nil
}

func (l *TicketList) emit(snap Snapshot, err error) {
	l.mu.Lock()
	fn := l.onChange
	l.mu.Unlock()
	if fn != nil {
		fn(snap, err)
	}
}

// SetFilters re-applies admin filters to the loaded snapshot without a refetch.
func (l *TicketList) SetFilters(f AdminFilters) Snapshot {
	l.mu.Lock()
	l.filters = f
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.emit(snap, nil)
	return snap
}

func (l *TicketList) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *TicketList) HasUpvoted(ticketID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.upvoted[ticketID]
}

// Stats summarises the loaded snapshot ignoring admin filters.
func (l *TicketList) Stats() model.TicketStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ComputeStats(l.all)
}

func (l *TicketList) snapshotLocked() Snapshot {
	tickets := make([]model.Ticket, 0, len(l.all))
	for _, t := range l.all {
		if l.scope.Audience == AudienceAdmin && !l.filters.matches(t) {
			continue
		}
		tickets = append(tickets, t)
	}
	// optimistic edits can disturb the order
	store.SortTickets(tickets, l.scope.sort())

	upvoted := make(map[string]bool, len(l.upvoted))
	for id, v := range l.upvoted {
		if v {
			upvoted[id] = true
		}
	}
	return Snapshot{Tickets: tickets, Upvoted: upvoted}
}

// flip applies an optimistic upvote toggle and returns the state it replaced.
func (l *TicketList) flip(ticketID string) (wasUpvoted bool, prevCount int, ok bool) {
	l.mu.Lock()
	idx := l.indexLocked(ticketID)
	if idx < 0 {
		l.mu.Unlock()
		return false, 0, false
	}
	wasUpvoted = l.upvoted[ticketID]
	prevCount = l.all[idx].UpvoteCount

	count := prevCount + 1
	if wasUpvoted {
		count = prevCount - 1
	}
	if count < 0 {
		count = 0
	}
	l.setLocked(idx, !wasUpvoted, count)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.emit(snap, nil)
	return wasUpvoted, prevCount, true
}

// restore puts back the state flip replaced.
func (l *TicketList) restore(ticketID string, upvoted bool, count int) {
	l.mu.Lock()
	idx := l.indexLocked(ticketID)
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	l.setLocked(idx, upvoted, count)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.emit(snap, nil)
}

func (l *TicketList) setLocked(idx int, upvoted bool, count int) {
	l.all[idx].UpvoteCount = count
	l.upvoted[l.all[idx].ID] = upvoted
}

func (l *TicketList) indexLocked(ticketID string) int {
	for i, t := range l.all {
		if t.ID == ticketID {
			return i
		}
	}
	return -1
}

func (l *TicketList) ticket(ticketID string) (model.Ticket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx := l.indexLocked(ticketID); idx >= 0 {
		return l.all[idx], true
	}
	return model.Ticket{}, false
}

// ComputeStats counts tickets by status, plus critical tickets not yet resolved.
func ComputeStats(tickets []model.Ticket) model.TicketStats {
	var s model.TicketStats
	for _, t := range tickets {
		switch t.Status {
		case model.StatusOpen:
			s.Open++
		case model.StatusInProgress:
			s.InProgress++
		case model.StatusResolved:
			s.Resolved++
		}
		if t.Severity == model.SeverityCritical && t.Status != model.StatusResolved {
			s.CriticalUnresolved++
		}
	}
	return s
}
