package postgres

import (
	"context"

	"github.com/bwise1/campus_voice/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Store) Add(ctx context.Context, ticketID, userID string) error {
	if !validID(ticketID) {
		return store.ErrNotFound
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ticket_upvotes (ticket_id, user_id) VALUES ($1, $2)`,
		ticketID, userID,
	)
	switch pgCode(err) {
	case "":
	case pgUniqueViolation:
		return store.ErrDuplicate
	case pgForeignKeyViolation:
		return store.ErrNotFound
	}
	if err != nil {
		return unavailable(err, "add upvote")
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, ticketID, userID string) error {
	if !validID(ticketID) {
		return store.ErrNotFound
	}
	result, err := s.pool.Exec(ctx,
		`DELETE FROM ticket_upvotes WHERE ticket_id = $1 AND user_id = $2`,
		ticketID, userID,
	)
	if err != nil {
		return unavailable(err, "remove upvote")
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpvotedBy(ctx context.Context, userID string, ticketIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ticketIDs))
	if len(ticketIDs) == 0 || !validID(userID) {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
        SELECT ticket_id::text
        FROM ticket_upvotes
        WHERE user_id = $1 AND ticket_id::text = ANY($2)
    `, userID, ticketIDs)
	if err != nil {
		return nil, unavailable(err, "query upvotes")
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable(err, "scan upvote")
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate upvotes")
	}
	return out, nil
}

func (s *Store) CountUpvotes(ctx context.Context, ticketID string) (int, error) {
	if !validID(ticketID) {
		return 0, store.ErrNotFound
	}
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ticket_upvotes WHERE ticket_id = $1`, ticketID).Scan(&n)
	if err != nil {
		return 0, unavailable(err, "count upvotes")
	}
	return n, nil
}

// RecountUpvotes rewrites the counter from the ledger in a single statement.
// The row lock taken by the CTE keeps concurrent increments from interleaving.
func (s *Store) RecountUpvotes(ctx context.Context, ticketID string) (int, int, error) {
	if !validID(ticketID) {
		return 0, 0, store.ErrNotFound
	}
	query := `
        WITH prior AS (
            SELECT upvote_count FROM tickets WHERE id = $1 FOR UPDATE
        )
        UPDATE tickets t
        SET upvote_count = (SELECT COUNT(*) FROM ticket_upvotes u WHERE u.ticket_id = t.id)
        FROM prior
        WHERE t.id = $1
        RETURNING prior.upvote_count, t.upvote_count
    `
	var before, after int
	err := s.pool.QueryRow(ctx, query, ticketID).Scan(&before, &after)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, store.ErrNotFound
	}
	if err != nil {
		return 0, 0, unavailable(err, "recount upvotes")
	}
	return before, after, nil
}
