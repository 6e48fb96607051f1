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

type enrollmentRepository struct {
	db *sqlx.DB
}

func NewEnrollmentRepository(db *sqlx.DB) repository.EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Create(ctx context.Context, e *model.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, tenant_id, lead_id, sequence_id, thread_id, kind, status,
			current_step, messages_sent, max_messages, started_at, next_send_at,
			expires_at, send_attempts, guardrail_failures, last_error,
			completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.TenantID, e.LeadID, e.SequenceID, e.ThreadID, e.Kind, e.Status,
		e.CurrentStep, e.MessagesSent, e.MaxMessages, e.StartedAt, e.NextSendAt,
		e.ExpiresAt, e.SendAttempts, e.GuardrailFailures, e.LastError,
		e.CompletedAt, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

func (r *enrollmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	query := `SELECT * FROM enrollments WHERE id = $1`
	var e model.Enrollment
	err := r.db.GetContext(ctx, &e, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("enrollment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &e, nil
}

// Save writes the full scheduling state in one statement, so a crash can
// never leave a half-updated row.
func (r *enrollmentRepository) Save(ctx context.Context, e *model.Enrollment) error {
	query := `
		UPDATE enrollments SET
			status = $1,
			current_step = $2,
			messages_sent = $3,
			next_send_at = $4,
			send_attempts = $5,
			guardrail_failures = $6,
			last_error = $7,
			completed_at = $8,
			updated_at = $9
		WHERE id = $10
	`
	e.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, query,
		e.Status, e.CurrentStep, e.MessagesSent, e.NextSendAt,
		e.SendAttempts, e.GuardrailFailures, e.LastError,
		e.CompletedAt, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NotFound("enrollment", nil)
	}
	return nil
}

func (r *enrollmentRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.Enrollment, error) {
	query := `
		SELECT * FROM enrollments
		WHERE status = $1
		AND next_send_at IS NOT NULL
		AND next_send_at <= $2
		ORDER BY next_send_at ASC
		LIMIT $3
	`
	var enrollments []*model.Enrollment
	err := r.db.SelectContext(ctx, &enrollments, query, model.EnrollmentStatusActive, now, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due enrollments: %w", err)
	}
	return enrollments, nil
}

func (r *enrollmentRepository) RescheduleAllDue(ctx context.Context, now, newTime time.Time) (int64, error) {
	query := `
		UPDATE enrollments
		SET next_send_at = $1, updated_at = $2
		WHERE status = $3
		AND next_send_at IS NOT NULL
		AND next_send_at <= $4
	`
	res, err := r.db.ExecContext(ctx, query, newTime, time.Now(), model.EnrollmentStatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reschedule due enrollments: %w", err)
	}
	return res.RowsAffected()
}

func (r *enrollmentRepository) ActiveForLead(ctx context.Context, sequenceID, leadID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE sequence_id = $1 AND lead_id = $2 AND status IN ($3, $4)
		)
	`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, sequenceID, leadID,
		model.EnrollmentStatusActive, model.EnrollmentStatusPaused)
	if err != nil {
		return false, fmt.Errorf("failed to check existing enrollment: %w", err)
	}
	return exists, nil
}
