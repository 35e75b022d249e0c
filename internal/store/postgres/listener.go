package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwise1/campus_voice/internal/store"
	"github.com/pkg/errors"
)

// ChangeChannel is the NOTIFY channel fed by the tickets trigger.
const ChangeChannel = "ticket_changes"

const maxListenBackoff = 30 * time.Second

// Listen relays ticket change notifications to subscribers until ctx ends,
// reconnecting with backoff when the listening connection drops.
func (s *Store) Listen(ctx context.Context) error {
	backoff := time.Second
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("ticket listener disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxListenBackoff {
			backoff *= 2
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire listener connection")
	}
	defer func() {
		cleanup, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = conn.Exec(cleanup, "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return errors.Wrap(err, "listen")
	}
	s.log.Info().Str("channel", ChangeChannel).Msg("listening for ticket changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return errors.Wrap(err, "wait for notification")
		}

		var ev store.ChangeEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			s.log.Error().Err(err).Str("payload", n.Payload).Msg("malformed ticket change")
			continue
		}
		s.hub.Publish(ev)
	}
}
