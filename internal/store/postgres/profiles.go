package postgres

import (
	"context"

	"github.com/bwise1/campus_voice/internal/model"
	"github.com/bwise1/campus_voice/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Store) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	if !validID(id) {
		return model.Profile{}, store.ErrNotFound
	}
	var p model.Profile
	err := s.pool.QueryRow(ctx, `
        SELECT id::text, role, display_name, email, created_at
        FROM profiles
        WHERE id = $1
    `, id).Scan(&p.ID, &p.Role, &p.DisplayName, &p.Email, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, store.ErrNotFound
	}
	if err != nil {
		return model.Profile{}, unavailable(err, "get profile")
	}
	return p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p model.Profile) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO profiles (id, role, display_name, email)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO NOTHING
    `, p.ID, string(p.Role), p.DisplayName, p.Email)
	if err != nil {
		return unavailable(err, "create profile")
	}
	return nil
}
