// Package local keeps accounts in Postgres and issues HS256 access tokens.
// Each token carries a session id (jti) so sign-out can revoke it server-side.
package local

import (
	"context"
	"fmt"
	"time"

	"github.com/bwise1/campus_voice/internal/db"
	"github.com/bwise1/campus_voice/internal/identity"
	"github.com/bwise1/campus_voice/util"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const tokenTypeAccess = "access"

type Backend struct {
	db     *db.DB
	secret []byte
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

func New(database *db.DB, secret string, ttl time.Duration, log zerolog.Logger) *Backend {
	return &Backend{
		db:     database,
		secret: []byte(secret),
		ttl:    ttl,
		log:    log.With().Str("component", "identity_local").Logger(),
		now:    time.Now,
	}
}

func (b *Backend) Register(ctx context.Context, email, password string, attrs identity.Attributes) (string, error) {
	if err := identity.CheckPassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}

	id := uuid.NewString()
	_, err = b.db.Pool().Exec(ctx,
		`INSERT INTO identities (id, email, password_hash) VALUES ($1, $2, $3)`,
		id, util.NormalizeEmail(email), string(hash),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", identity.ErrDuplicateAccount
		}
		return "", errors.Wrap(err, "insert identity")
	}
	return id, nil
}

func (b *Backend) Authenticate(ctx context.Context, email, password string) (identity.Credentials, error) {
	var (
		userID string
		hash   string
	)
	err := b.db.Pool().QueryRow(ctx,
		`SELECT id::text, password_hash FROM identities WHERE email = $1`,
		util.NormalizeEmail(email),
	).Scan(&userID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return identity.Credentials{}, identity.ErrInvalidCredentials
	}
	if err != nil {
		return identity.Credentials{}, errors.Wrap(err, "lookup identity")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return identity.Credentials{}, identity.ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	expiresAt := b.now().Add(b.ttl)
	err = b.db.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM auth_sessions WHERE user_id = $1 AND (expires_at < NOW() OR revoked_at IS NOT NULL)`,
			userID,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO auth_sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`,
			sessionID, userID, expiresAt,
		)
		return err
	})
	if err != nil {
		return identity.Credentials{}, errors.Wrap(err, "store session")
	}

	token, err := b.sign(userID, sessionID, expiresAt)
	if err != nil {
		return identity.Credentials{}, err
	}
	return identity.Credentials{UserID: userID, Token: token, ExpiresAt: expiresAt}, nil
}

func (b *Backend) Invalidate(ctx context.Context, token string) error {
	claims, err := b.parse(token)
	if err != nil {
		// an unusable token has nothing left to revoke
		return nil
	}
	_, err = b.db.Pool().Exec(ctx,
		`UPDATE auth_sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`,
		claims.sessionID,
	)
	return errors.Wrap(err, "revoke session")
}

func (b *Backend) Verify(ctx context.Context, token string) (string, error) {
	claims, err := b.parse(token)
	if err != nil {
		return "", err
	}

	var live bool
	err = b.db.Pool().QueryRow(ctx, `
        SELECT revoked_at IS NULL AND expires_at > NOW()
        FROM auth_sessions
        WHERE id = $1 AND user_id = $2
    `, claims.sessionID, claims.userID).Scan(&live)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", identity.ErrInvalidToken
	}
	if err != nil {
		return "", errors.Wrap(err, "lookup session")
	}
	if !live {
		return "", identity.ErrInvalidToken
	}
	return claims.userID, nil
}

func (b *Backend) sign(userID, sessionID string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"jti": sessionID,
		"exp": expiresAt.Unix(),
		"iat": b.now().Unix(),
		"typ": tokenTypeAccess,
	})
	signed, err := token.SignedString(b.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

type tokenClaims struct {
	userID    string
	sessionID string
}

func (b *Backend) parse(tokenString string) (tokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return b.secret, nil
	})
	if err != nil || !token.Valid {
		b.log.Debug().Err(err).Msg("token rejected")
		return tokenClaims{}, identity.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return tokenClaims{}, identity.ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != tokenTypeAccess {
		return tokenClaims{}, identity.ErrInvalidToken
	}
	userID, _ := claims["sub"].(string)
	sessionID, _ := claims["jti"].(string)
	if userID == "" || sessionID == "" {
		return tokenClaims{}, identity.ErrInvalidToken
	}
	return tokenClaims{userID: userID, sessionID: sessionID}, nil
}
