package model

import (
	"time"

	"github.com/google/uuid"
)

type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusPaused    EnrollmentStatus = "paused"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

type EnrollmentKind string

const (
	// EnrollmentKindStatic walks a fixed sequence of templated steps.
	EnrollmentKindStatic EnrollmentKind = "static"
	// EnrollmentKindAIDrip sends pre-generated or live-generated follow-ups.
	EnrollmentKindAIDrip EnrollmentKind = "ai_drip"
)

// Enrollment is one lead's live progress through one message sequence.
// It is the unit of scheduling: the worker only ever looks at active
// enrollments whose NextSendAt has passed.
type Enrollment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TenantID   uuid.UUID `db:"tenant_id" json:"tenant_id"`
	LeadID     uuid.UUID `db:"lead_id" json:"lead_id"`
	SequenceID uuid.UUID `db:"sequence_id" json:"sequence_id"`
	ThreadID   uuid.UUID `db:"thread_id" json:"thread_id"`

	Kind   EnrollmentKind   `db:"kind" json:"kind"`
	Status EnrollmentStatus `db:"status" json:"status"`

	// CurrentStep is 0 before anything has been sent and always equals the
	// number of successful sends for static sequences.
	CurrentStep  int `db:"current_step" json:"current_step"`
	MessagesSent int `db:"messages_sent" json:"messages_sent"`

	// MaxMessages bounds AI drips; 0 means unbounded.
	MaxMessages int `db:"max_messages" json:"max_messages"`

	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	NextSendAt *time.Time `db:"next_send_at" json:"next_send_at,omitempty"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`

	SendAttempts      int        `db:"send_attempts" json:"send_attempts"`
	GuardrailFailures int        `db:"guardrail_failures" json:"guardrail_failures"`
	LastError         *string    `db:"last_error" json:"last_error,omitempty"`
	CompletedAt       *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the enrollment can never fire again.
func (e *Enrollment) Terminal() bool {
	return e.Status == EnrollmentStatusCompleted || e.Status == EnrollmentStatusCancelled
}

// Complete moves the enrollment to its completed terminal state and clears
// the pending fire time. Safe to call on an already-terminal enrollment.
func (e *Enrollment) Complete(now time.Time) {
	e.Status = EnrollmentStatusCompleted
	e.NextSendAt = nil
	if e.CompletedAt == nil {
		t := now
		e.CompletedAt = &t
	}
	e.UpdatedAt = now
}

// Cancel marks the enrollment cancelled and clears the pending fire time.
func (e *Enrollment) Cancel(now time.Time, reason string) {
	e.Status = EnrollmentStatusCancelled
	e.NextSendAt = nil
	if reason != "" {
		e.LastError = &reason
	}
	e.UpdatedAt = now
}

// RecordError stores the failure for the status UI without touching
// progress or the fire time, so the same step is retried next tick.
func (e *Enrollment) RecordError(now time.Time, msg string) {
	e.LastError = &msg
	e.UpdatedAt = now
}

// Expired reports whether the hard cutoff has passed.
func (e *Enrollment) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// MaxReached reports whether an AI drip has hit its message cap.
func (e *Enrollment) MaxReached() bool {
	return e.MaxMessages > 0 && e.MessagesSent >= e.MaxMessages
}

// TickSummary is what one scheduler invocation reports back.
type TickSummary struct {
	Processed   int `json:"processed"`
	Sent        int `json:"sent"`
	Completed   int `json:"completed"`
	Errors      int `json:"errors"`
	Rescheduled int `json:"rescheduled"`
}
