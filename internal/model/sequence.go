package model

import (
	"time"

	"github.com/google/uuid"
)

type SequenceStatus string

const (
	SequenceStatusDraft    SequenceStatus = "draft"
	SequenceStatusActive   SequenceStatus = "active"
	SequenceStatusArchived SequenceStatus = "archived"
)

// Sequence is an immutable (per version) ordered list of steps that
// enrollments walk through. AI drips have no steps; their content comes
// from the drip_messages table or live generation.
type Sequence struct {
	ID       uuid.UUID      `db:"id" json:"id"`
	TenantID uuid.UUID      `db:"tenant_id" json:"tenant_id"`
	Name     string         `db:"name" json:"name"`
	Kind     EnrollmentKind `db:"kind" json:"kind"`
	Status   SequenceStatus `db:"status" json:"status"`
	Version  int            `db:"version" json:"version"`

	// Persona seeds live generation for AI drips.
	Persona string `db:"persona" json:"persona,omitempty"`

	Steps []*SequenceStep `json:"steps,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SequenceStep is one templated send. DelayDays/DelayHours offset from the
// previous step's send, not from enrollment start.
type SequenceStep struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SequenceID uuid.UUID `db:"sequence_id" json:"sequence_id"`
	StepNumber int       `db:"step_number" json:"step_number"` // 1-based
	DelayDays  int       `db:"delay_days" json:"delay_days"`
	DelayHours int       `db:"delay_hours" json:"delay_hours"`
	Content    string    `db:"content" json:"content"`
	Channel    string    `db:"channel" json:"channel"`
}

// Delay returns the step's offset from the previous send.
func (s *SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// StepAt returns the 0-indexed step, or nil when idx is past the end.
func (s *Sequence) StepAt(idx int) *SequenceStep {
	if idx < 0 || idx >= len(s.Steps) {
		return nil
	}
	return s.Steps[idx]
}

// DripMessage is a pre-generated AI drip body. When one exists for the next
// message number it is sent verbatim, with no generation call and no extra
// AI cost.
type DripMessage struct {
	ID            uuid.UUID `db:"id" json:"id"`
	EnrollmentID  uuid.UUID `db:"enrollment_id" json:"enrollment_id"`
	MessageNumber int       `db:"message_number" json:"message_number"` // 1-based
	Body          string    `db:"body" json:"body"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
