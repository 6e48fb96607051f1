package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/outreachly/drip-engine/internal/model"
)

// All repository interfaces in one file
type (
	// EnrollmentRepository is the durable per-(sequence, lead) scheduling state.
	EnrollmentRepository interface {
		Create(ctx context.Context, e *model.Enrollment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Enrollment, error)
		// Save is a full-state single-row update; the only writer besides
		// Create and the explicit lifecycle endpoints.
		Save(ctx context.Context, e *model.Enrollment) error
		// FetchDue returns active enrollments with next_send_at <= now,
		// ordered by next_send_at ascending.
		FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.Enrollment, error)
		// RescheduleAllDue bulk-defers every due enrollment to newTime.
		// Used only on the quiet-hours path.
		RescheduleAllDue(ctx context.Context, now, newTime time.Time) (int64, error)
		// ActiveForLead guards against duplicate enrollment of a lead in
		// the same sequence.
		ActiveForLead(ctx context.Context, sequenceID, leadID uuid.UUID) (bool, error)
	}

	SequenceRepository interface {
		// Get returns the sequence with its steps ordered by step_number.
		Get(ctx context.Context, id uuid.UUID) (*model.Sequence, error)
	}

	LeadRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Lead, error)
	}

	// MessageRepository reads the conversation snapshot and records sends.
	MessageRepository interface {
		GetRecent(ctx context.Context, threadID uuid.UUID, limit int) ([]*model.ThreadMessage, error)
		AppendOutbound(ctx context.Context, msg *model.ThreadMessage) error
	}

	// DripMessageRepository holds pre-generated AI drip bodies.
	DripMessageRepository interface {
		GetByNumber(ctx context.Context, enrollmentID uuid.UUID, messageNumber int) (*model.DripMessage, error)
	}

	TenantRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
		// Deduct atomically decrements credits, clamped at zero, and
		// returns the new balance. Never implemented as read-then-write.
		Deduct(ctx context.Context, id uuid.UUID, amount int64) (int64, error)
		MarkLowCreditAlerted(ctx context.Context, id uuid.UUID) error
	}
)
