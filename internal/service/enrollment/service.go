package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/repository"
	"github.com/outreachly/drip-engine/internal/schedule"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
	"github.com/outreachly/drip-engine/pkg/logger"
)

// Service owns the user-facing enrollment lifecycle. The scheduler is the
// only other writer of enrollment state.
type Service struct {
	enrollments repository.EnrollmentRepository
	sequences   repository.SequenceRepository
	leads       repository.LeadRepository
	window      *schedule.Window
	logger      *logger.Logger
}

func NewService(
	enrollments repository.EnrollmentRepository,
	sequences repository.SequenceRepository,
	leads repository.LeadRepository,
	window *schedule.Window,
	log *logger.Logger,
) *Service {
	return &Service{
		enrollments: enrollments,
		sequences:   sequences,
		leads:       leads,
		window:      window,
		logger:      log,
	}
}

// EnrollRequest enrolls one lead into one sequence.
type EnrollRequest struct {
	TenantID    uuid.UUID
	SequenceID  uuid.UUID
	LeadID      uuid.UUID
	ThreadID    uuid.UUID
	MaxMessages int
	ExpiresAt   *time.Time
}

// Enroll creates an active enrollment due at the first step's offset,
// clamped out of quiet hours.
func (s *Service) Enroll(ctx context.Context, req *EnrollRequest) (*model.Enrollment, error) {
	seq, err := s.sequences.Get(ctx, req.SequenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sequence: %w", err)
	}
	if seq.Status != model.SequenceStatusActive {
		return nil, apperrors.BadRequest("sequence is not active", nil)
	}

	lead, err := s.leads.Get(ctx, req.LeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	if !lead.Contactable() {
		return nil, apperrors.BadRequest("lead has opted out or has no phone", nil)
	}

	exists, err := s.enrollments.ActiveForLead(ctx, req.SequenceID, req.LeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing enrollment: %w", err)
	}
	if exists {
		return nil, apperrors.Conflict("lead is already enrolled in this sequence", nil)
	}

	now := time.Now()
	firstDelay := time.Duration(0)
	if first := seq.StepAt(0); first != nil {
		firstDelay = first.Delay()
	}
	nextAt := s.window.Clamp(now.Add(firstDelay))

	e := &model.Enrollment{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		LeadID:      req.LeadID,
		SequenceID:  req.SequenceID,
		ThreadID:    req.ThreadID,
		Kind:        seq.Kind,
		Status:      model.EnrollmentStatusActive,
		MaxMessages: req.MaxMessages,
		StartedAt:   now,
		NextSendAt:  &nextAt,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.enrollments.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	s.logger.Info("lead enrolled",
		"enrollment_id", e.ID.String(),
		"sequence_id", req.SequenceID.String(),
		"next_send_at", nextAt.Format(time.RFC3339))
	return e, nil
}

// EnrollBatch enrolls many leads, skipping the ones that fail so a single
// bad lead does not sink the batch. Returned in input order for successes.
func (s *Service) EnrollBatch(ctx context.Context, reqs []*EnrollRequest) ([]*model.Enrollment, []error) {
	enrolled := make([]*model.Enrollment, 0, len(reqs))
	var failures []error
	for _, req := range reqs {
		e, err := s.Enroll(ctx, req)
		if err != nil {
			failures = append(failures, fmt.Errorf("lead %s: %w", req.LeadID, err))
			continue
		}
		enrolled = append(enrolled, e)
	}
	return enrolled, failures
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	return s.enrollments.Get(ctx, id)
}

// Pause suspends a static enrollment. AI drips cannot pause; they stop by
// reply or cancellation.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	e, err := s.enrollments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Kind != model.EnrollmentKindStatic {
		return nil, apperrors.BadRequest("only static campaign enrollments can be paused", nil)
	}
	if e.Status != model.EnrollmentStatusActive {
		return nil, apperrors.BadRequest("enrollment is not active", nil)
	}

	e.Status = model.EnrollmentStatusPaused
	e.NextSendAt = nil
	e.UpdatedAt = time.Now()
	if err := s.enrollments.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to pause enrollment: %w", err)
	}
	return e, nil
}

// Resume reactivates a paused enrollment, due now (or at the next open
// window).
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	e, err := s.enrollments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EnrollmentStatusPaused {
		return nil, apperrors.BadRequest("enrollment is not paused", nil)
	}

	now := time.Now()
	nextAt := s.window.Clamp(now)
	e.Status = model.EnrollmentStatusActive
	e.NextSendAt = &nextAt
	e.UpdatedAt = now
	if err := s.enrollments.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to resume enrollment: %w", err)
	}
	return e, nil
}

// Cancel terminates an enrollment; terminal states are idempotent.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	e, err := s.enrollments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Terminal() {
		return e, nil
	}

	e.Cancel(time.Now(), "cancelled by user")
	if err := s.enrollments.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to cancel enrollment: %w", err)
	}
	return e, nil
}
