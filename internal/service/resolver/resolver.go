// Package resolver turns "this enrollment is due" into the concrete text to
// send next: the indexed template step for static sequences, or a
// pre-generated/live-generated follow-up for AI drips.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/repository"
	"github.com/outreachly/drip-engine/pkg/ai"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
	"github.com/outreachly/drip-engine/pkg/logger"
	"github.com/outreachly/drip-engine/pkg/metrics"
)

// contextTurns is how much recent conversation seeds live generation.
const contextTurns = 5

// Content is a resolved, ready-to-send message body. Step is nil for AI
// drip content.
type Content struct {
	Body string
	Step *model.SequenceStep
}

type Resolver struct {
	drips      repository.DripMessageRepository
	messages   repository.MessageRepository
	generator  ai.Generator
	guardrail  ai.Guardrail
	genTimeout time.Duration
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewResolver(
	drips repository.DripMessageRepository,
	messages repository.MessageRepository,
	generator ai.Generator,
	guardrail ai.Guardrail,
	genTimeout time.Duration,
	m *metrics.Metrics,
	log *logger.Logger,
) *Resolver {
	if genTimeout <= 0 {
		genTimeout = 20 * time.Second
	}
	return &Resolver{
		drips:      drips,
		messages:   messages,
		generator:  generator,
		guardrail:  guardrail,
		genTimeout: genTimeout,
		metrics:    m,
		logger:     log,
	}
}

// ResolveNext returns the next content for the enrollment, or
// errors.ErrNoMoreSteps when the sequence is exhausted.
func (r *Resolver) ResolveNext(ctx context.Context, e *model.Enrollment, seq *model.Sequence, lead *model.Lead) (*Content, error) {
	if e.Kind == model.EnrollmentKindAIDrip {
		return r.resolveDrip(ctx, e, seq)
	}
	return ResolveStatic(e, seq, lead)
}

// ResolveStatic indexes and renders the next templated step. Pure: no
// clock, no network, so the step-exhaustion and substitution rules are
// unit-testable exhaustively.
func ResolveStatic(e *model.Enrollment, seq *model.Sequence, lead *model.Lead) (*Content, error) {
	step := seq.StepAt(e.CurrentStep)
	if step == nil {
		return nil, apperrors.ErrNoMoreSteps
	}
	return &Content{
		Body: RenderTemplate(step.Content, lead),
		Step: step,
	}, nil
}

func (r *Resolver) resolveDrip(ctx context.Context, e *model.Enrollment, seq *model.Sequence) (*Content, error) {
	next := e.MessagesSent + 1

	// Pre-generated messages are sent verbatim: no generation call, no
	// extra AI cost, and no guardrail pass since they were screened when
	// generated.
	pre, err := r.drips.GetByNumber(ctx, e.ID, next)
	if err == nil {
		return &Content{Body: pre.Body}, nil
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrNotFound {
		return nil, fmt.Errorf("failed to look up pre-generated message %d: %w", next, err)
	}

	turns, err := r.recentTurns(ctx, e.ThreadID)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, r.genTimeout)
	defer cancel()

	text, err := r.generator.Generate(genCtx, seq.Persona, turns)
	if err != nil {
		r.metrics.GenerationCalls.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	r.metrics.GenerationCalls.WithLabelValues("success").Inc()

	if verdict := r.guardrail.Check(text); !verdict.Passed {
		r.logger.Warn("generated content blocked",
			"enrollment_id", e.ID.String(), "reason", verdict.Message)
		return nil, fmt.Errorf("%w: %s", apperrors.ErrGuardrailBlocked, verdict.Message)
	}

	return &Content{Body: text}, nil
}

func (r *Resolver) recentTurns(ctx context.Context, threadID uuid.UUID) ([]ai.Turn, error) {
	msgs, err := r.messages.GetRecent(ctx, threadID, contextTurns)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation context: %w", err)
	}

	// GetRecent returns newest first; generation wants chronological order.
	turns := make([]ai.Turn, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		role := "agent"
		if msgs[i].Inbound() {
			role = "lead"
		}
		turns = append(turns, ai.Turn{Role: role, Content: msgs[i].Body})
	}
	return turns, nil
}
