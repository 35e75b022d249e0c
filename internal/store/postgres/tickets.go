package postgres

import (
	"context"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Category, &t.Severity, &t.Status, &t.Visibility,
		&t.UpvoteCount, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &t.ImageURL,
	)
	return t, err
}

func (s *Store) Query(ctx context.Context, p store.Predicate, sort store.Sort) ([]model.Ticket, error) {
	if p.CreatedBy != "" && !validID(p.CreatedBy) {
		return []model.Ticket{}, nil
	}
	query, args := buildTicketQuery(p, sort)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err, "query tickets")
	}
	defer rows.Close()

	tickets := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, unavailable(err, "scan ticket")
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "iterate tickets")
	}
	return tickets, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.Ticket, error) {
	if !validID(id) {
		return model.Ticket{}, store.ErrNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	t, err := scanTicket(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ticket{}, store.ErrNotFound
	}
	if err != nil {
		return model.Ticket{}, unavailable(err, "get ticket")
	}
	return t, nil
}

func (s *Store) Insert(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	query := `
        INSERT INTO tickets (
            title, description, category, severity, visibility, created_by, image_url
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + ticketColumns

	created, err := scanTicket(s.pool.QueryRow(ctx, query,
		t.Title, t.Description, string(t.Category), string(t.Severity),
		string(t.Visibility), t.CreatedBy, t.ImageURL,
	))
	if err != nil {
		if pgCode(err) == pgCheckViolation {
			return model.Ticket{}, errors.Wrap(err, "ticket rejected by store constraints")
		}
		return model.Ticket{}, unavailable(err, "insert ticket")
	}
	return created, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Ticket, error) {
	if !validID(id) {
		return model.Ticket{}, store.ErrNotFound
	}
	query := `
        UPDATE tickets
        SET status = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING ` + ticketColumns

	t, err := scanTicket(s.pool.QueryRow(ctx, query, string(status), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ticket{}, store.ErrNotFound
	}
	if err != nil {
		return model.Ticket{}, unavailable(err, "update ticket status")
	}
	return t, nil
}

// IncrementUpvotes applies delta in a single UPDATE so concurrent writers never
// lose increments.
func (s *Store) IncrementUpvotes(ctx context.Context, id string, delta int) error {
	if !validID(id) {
		return store.ErrNotFound
	}
	query := `
        UPDATE tickets
        SET upvote_count = GREATEST(upvote_count + $1, 0)
        WHERE id = $2
    `
	result, err := s.pool.Exec(ctx, query, delta, id)
	if err != nil {
		return unavailable(err, "increment upvotes")
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, p store.Predicate) (int, error) {
	if p.CreatedBy != "" && !validID(p.CreatedBy) {
		return 0, nil
	}
	where, args := buildWhere(p)

	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets `+where, args...).Scan(&n); err != nil {
		return 0, unavailable(err, "count tickets")
	}
	return n, nil
}

func (s *Store) Subscribe(p store.Predicate, fn func(store.ChangeEvent)) (store.Subscription, error) {
	return s.hub.Subscribe(p, fn), nil
}
