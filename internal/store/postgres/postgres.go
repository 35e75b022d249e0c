// Package postgres is the pgx-backed record store: tickets, the upvote ledger,
// profiles, and change notifications relayed from LISTEN/NOTIFY.
package postgres

import (
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

type Store struct {
	pool *pgxpool.Pool
	hub  *store.Hub
	log  zerolog.Logger
}

func New(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{
		pool: pool,
		hub:  store.NewHub(),
		log:  log.With().Str("component", "pgstore").Logger(),
	}
}

// unavailable marks err as a transport/store failure while keeping its text.
func unavailable(err error, op string) error {
	return errors.Wrapf(store.ErrUnavailable, "%s: %v", op, err)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// validID rejects ids that could never match a uuid column, so a malformed
// path parameter reads as "not found" instead of a server error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
