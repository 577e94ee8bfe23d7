package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	imodels "github.com/pribylovaa/go-blog/internal/models"
	"github.com/pribylovaa/go-blog/internal/storage"
)

// SaveRefreshToken сохраняет хэш нового refresh-токена.
func (s *Storage) SaveRefreshToken(ctx context.Context, t *imodels.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
		INSERT INTO refresh_tokens(token_hash, user_id, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query, t.TokenHash, t.UserID, t.CreatedAt, t.ExpiresAt, t.Revoked)
	return wrap(op, err)
}

func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*imodels.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `
		SELECT token_hash, user_id, created_at, expires_at, revoked
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var t imodels.RefreshToken
	err := s.db.QueryRow(ctx, query, hash).Scan(&t.TokenHash, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.Revoked)
	if err != nil {
		return nil, wrap(op, err)
	}

	return &t, nil
}

// RevokeRefreshToken атомарно отзывает активный токен.
// Если UPDATE ничего не задел, отличаем «уже отозван» от «нет такого».
func (s *Storage) RevokeRefreshToken(ctx context.Context, hash string) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	const upd = `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE
		RETURNING user_id
	`

	var userID string
	err := s.db.QueryRow(ctx, upd, hash).Scan(&userID)
	if err == nil {
		return true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE token_hash = $1)`, hash).Scan(&exists); err != nil {
		return false, wrap(op, err)
	}

	if !exists {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return false, nil
}

// DeleteExpiredTokens чистит просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, wrap(op, err)
	}

	return tag.RowsAffected(), nil
}
