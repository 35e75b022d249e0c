package portal

import (
	"context"

	"github.com/bwise1/campus_voice/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Recounter brings stored upvote counters back in line with the ledger. It
// only runs when an operator schedules it.
type Recounter struct {
	tickets store.TicketStore
	ledger  store.UpvoteLedger
	log     zerolog.Logger
}

func NewRecounter(tickets store.TicketStore, ledger store.UpvoteLedger, log zerolog.Logger) *Recounter {
	return &Recounter{
		tickets: tickets,
		ledger:  ledger,
		log:     log.With().Str("component", "recounter").Logger(),
	}
}

// Run repairs every drifted counter and returns how many it touched. A failure
// on one ticket is logged and the pass continues.
func (r *Recounter) Run(ctx context.Context) (int, error) {
	all, err := r.tickets.Query(ctx, store.Predicate{}, store.SortNewest)
	if err != nil {
		return 0, errors.Wrapf(ErrStoreUnavailable, "recount: %v", err)
	}

	repaired := 0
	for _, t := range all {
		if ctx.Err() != nil {
			return repaired, ctx.Err()
		}
		before, after, err := r.ledger.RecountUpvotes(ctx, t.ID)
		if err != nil {
			r.log.Warn().Err(err).Str("ticket_id", t.ID).Msg("repair counter")
			continue
		}
		if before == after {
			continue
		}
		r.log.Info().
			Str("ticket_id", t.ID).
			Int("stored", before).
			Int("ledger", after).
			Msg("upvote counter repaired")
		repaired++
	}
	return repaired, nil
}
