package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"dealboard/internal/ids"
	"dealboard/internal/model"
)

// AttemptRepository writes login attempt facts. The table is append-only
// from this core's perspective; the audit subsystem reads it.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) Record(ctx context.Context, attempt model.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = ids.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO login_attempts (id, email, ip_address, user_agent, success, failure_reason, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.ID, attempt.Email, attempt.IPAddress, attempt.UserAgent,
		attempt.Success, attempt.FailureReason, attempt.AttemptedAt)
	if err != nil {
		return fmt.Errorf("record login attempt: %w", err)
	}
	return nil
}
