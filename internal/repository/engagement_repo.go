package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealboard/internal/model"
)

type EngagementRepository struct {
	pool *pgxpool.Pool
}

func NewEngagementRepository(pool *pgxpool.Pool) *EngagementRepository {
	return &EngagementRepository{pool: pool}
}

const engagementColumns = `e.id, e.title, e.account_name, e.stage, e.value_cents, e.owner_id,
	        u.manager_id, e.created_at, e.updated_at`

const engagementFrom = ` FROM engagements e JOIN users u ON u.id = e.owner_id`

func scanEngagement(row pgx.Row) (model.Engagement, error) {
	var e model.Engagement
	err := row.Scan(&e.ID, &e.Title, &e.AccountName, &e.Stage, &e.ValueCents,
		&e.OwnerID, &e.OwnerManagerID, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// FindByID loads the engagement together with its owner's manager, which
// the authorization engine needs for team-scope decisions.
func (r *EngagementRepository) FindByID(ctx context.Context, id string) (model.Engagement, error) {
	e, err := scanEngagement(r.pool.QueryRow(ctx,
		`SELECT `+engagementColumns+engagementFrom+` WHERE e.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Engagement{}, model.ErrEngagementNotFound
	}
	if err != nil {
		return model.Engagement{}, fmt.Errorf("find engagement: %w", err)
	}
	return e, nil
}

func (r *EngagementRepository) Create(ctx context.Context, e model.Engagement) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO engagements (id, title, account_name, stage, value_cents, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Title, e.AccountName, e.Stage, e.ValueCents, e.OwnerID, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create engagement: %w", err)
	}
	return nil
}

func (r *EngagementRepository) Update(ctx context.Context, e model.Engagement) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE engagements SET title = $2, account_name = $3, stage = $4, value_cents = $5, updated_at = $6
		 WHERE id = $1`,
		e.ID, e.Title, e.AccountName, e.Stage, e.ValueCents, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update engagement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEngagementNotFound
	}
	return nil
}

func (r *EngagementRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM engagements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete engagement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEngagementNotFound
	}
	return nil
}

// ListVisible returns engagements the principal can see, widest scope
// first: all, then team (own plus direct reports), then own only.
func (r *EngagementRepository) ListVisible(ctx context.Context, principalID string, scope model.AccessScope) ([]model.Engagement, error) {
	query := `SELECT ` + engagementColumns + engagementFrom
	var args []any

	switch scope {
	case model.ScopeAll:
	case model.ScopeTeam:
		query += ` WHERE e.owner_id = $1 OR u.manager_id = $1`
		args = append(args, principalID)
	default:
		query += ` WHERE e.owner_id = $1`
		args = append(args, principalID)
	}
	query += ` ORDER BY e.updated_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}
	defer rows.Close()

	engagements := make([]model.Engagement, 0)
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan engagement: %w", err)
		}
		engagements = append(engagements, e)
	}
	return engagements, rows.Err()
}
