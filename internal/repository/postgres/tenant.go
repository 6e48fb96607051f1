package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/repository"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
)

type tenantRepository struct {
	db *sqlx.DB
}

func NewTenantRepository(db *sqlx.DB) repository.TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Get(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	query := `SELECT * FROM tenants WHERE id = $1`
	var tenant model.Tenant
	err := r.db.GetContext(ctx, &tenant, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("tenant", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// Deduct runs as a single conditional update so a concurrent user-initiated
// send can never interleave a stale read. The balance is clamped at zero.
func (r *tenantRepository) Deduct(ctx context.Context, id uuid.UUID, amount int64) (int64, error) {
	query := `
		UPDATE tenants
		SET credits = GREATEST(credits - $1, 0), updated_at = $2
		WHERE id = $3
		RETURNING credits
	`
	var balance int64
	err := r.db.GetContext(ctx, &balance, query, amount, time.Now(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NotFound("tenant", err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deduct credits: %w", err)
	}
	return balance, nil
}

func (r *tenantRepository) MarkLowCreditAlerted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tenants SET low_credit_sent = TRUE, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark low-credit alert: %w", err)
	}
	return nil
}
