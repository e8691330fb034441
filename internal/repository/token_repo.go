package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealboard/internal/model"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Store(ctx context.Context, rec model.RefreshTokenRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, user_agent, ip_address, expires_at, revoked, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
		rec.ID, rec.UserID, rec.TokenHash, rec.UserAgent, rec.IPAddress, rec.ExpiresAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) FindByHash(ctx context.Context, tokenHash string) (model.RefreshTokenRecord, error) {
	var rec model.RefreshTokenRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, token_hash, user_agent, ip_address, expires_at, revoked, last_used_at, created_at
		 FROM refresh_tokens WHERE token_hash = $1`, tokenHash).
		Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.UserAgent, &rec.IPAddress,
			&rec.ExpiresAt, &rec.Revoked, &rec.LastUsedAt, &rec.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshTokenRecord{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshTokenRecord{}, fmt.Errorf("find refresh token: %w", err)
	}
	return rec, nil
}

// Rotate revokes the presented token and records its replacement in the
// same transaction, so a captured old refresh token dies the moment it is
// used to mint a new one.
func (r *TokenRepository) Rotate(ctx context.Context, oldID string, replacement model.RefreshTokenRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate token: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, last_used_at = $2 WHERE id = $1 AND NOT revoked`,
		oldID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke rotated token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenRevoked
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, user_agent, ip_address, expires_at, revoked, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
		replacement.ID, replacement.UserID, replacement.TokenHash, replacement.UserAgent,
		replacement.IPAddress, replacement.ExpiresAt, replacement.CreatedAt); err != nil {
		return fmt.Errorf("store replacement token: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *TokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= now() OR revoked`)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
