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

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) GetRecent(ctx context.Context, threadID uuid.UUID, limit int) ([]*model.ThreadMessage, error) {
	query := `
		SELECT * FROM thread_messages
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	var messages []*model.ThreadMessage
	err := r.db.SelectContext(ctx, &messages, query, threadID, limit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) AppendOutbound(ctx context.Context, msg *model.ThreadMessage) error {
	query := `
		INSERT INTO thread_messages (id, thread_id, tenant_id, direction, body, provider_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.Direction = model.MessageDirectionOutbound

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.ThreadID, msg.TenantID, msg.Direction, msg.Body, msg.ProviderID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append outbound message: %w", err)
	}
	return nil
}

type dripMessageRepository struct {
	db *sqlx.DB
}

func NewDripMessageRepository(db *sqlx.DB) repository.DripMessageRepository {
	return &dripMessageRepository{db: db}
}

func (r *dripMessageRepository) GetByNumber(ctx context.Context, enrollmentID uuid.UUID, messageNumber int) (*model.DripMessage, error) {
	query := `
		SELECT * FROM drip_messages
		WHERE enrollment_id = $1 AND message_number = $2
	`
	var msg model.DripMessage
	err := r.db.GetContext(ctx, &msg, query, enrollmentID, messageNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("drip message", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drip message: %w", err)
	}
	return &msg, nil
}
