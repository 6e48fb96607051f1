package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/repository"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
)

type sequenceRepository struct {
	db *sqlx.DB
}

func NewSequenceRepository(db *sqlx.DB) repository.SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Sequence, error) {
	query := `SELECT * FROM sequences WHERE id = $1`
	var seq model.Sequence
	err := r.db.GetContext(ctx, &seq, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("sequence", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}

	stepsQuery := `
		SELECT * FROM sequence_steps
		WHERE sequence_id = $1
		ORDER BY step_number ASC
	`
	if err := r.db.SelectContext(ctx, &seq.Steps, stepsQuery, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get sequence steps: %w", err)
	}
	return &seq, nil
}
