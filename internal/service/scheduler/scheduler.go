// Package scheduler is the batch engine that advances due enrollments.
// One call to ProcessDue is one tick: quiet-hours gate, bounded fetch, then
// reply check -> resolve -> dispatch -> save per enrollment, each isolated
// so a bad enrollment can only ever cost its own error counter.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/repository"
	"github.com/outreachly/drip-engine/internal/schedule"
	"github.com/outreachly/drip-engine/internal/service/resolver"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
	"github.com/outreachly/drip-engine/pkg/lock"
	"github.com/outreachly/drip-engine/pkg/logger"
	"github.com/outreachly/drip-engine/pkg/metrics"
)

type Config struct {
	BatchSize    int
	Concurrency  int
	PollInterval time.Duration
	// MaxSendAttempts cancels an enrollment whose step keeps failing, so an
	// unreachable number cannot loop forever.
	MaxSendAttempts int
}

// The collaborators are consumed as interfaces so tests can swap fakes in.
type (
	ReplyMonitor interface {
		HasRepliedSince(ctx context.Context, threadID uuid.UUID, since time.Time) (bool, error)
	}

	ContentResolver interface {
		ResolveNext(ctx context.Context, e *model.Enrollment, seq *model.Sequence, lead *model.Lead) (*resolver.Content, error)
	}

	Dispatcher interface {
		Dispatch(ctx context.Context, now time.Time, e *model.Enrollment, seq *model.Sequence, lead *model.Lead, content *resolver.Content) error
	}
)

type Service struct {
	enrollments repository.EnrollmentRepository
	sequences   repository.SequenceRepository
	leads       repository.LeadRepository
	replies     ReplyMonitor
	resolver    ContentResolver
	dispatcher  Dispatcher
	window      *schedule.Window
	tickLock    *lock.TickLock // nil when the invoking layer guarantees no overlap
	cfg         Config
	metrics     *metrics.Metrics
	logger      *logger.Logger
	now         func() time.Time
}

func NewService(
	enrollments repository.EnrollmentRepository,
	sequences repository.SequenceRepository,
	leads repository.LeadRepository,
	replies ReplyMonitor,
	contentResolver ContentResolver,
	dispatcher Dispatcher,
	window *schedule.Window,
	tickLock *lock.TickLock,
	cfg Config,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.MaxSendAttempts <= 0 {
		cfg.MaxSendAttempts = 10
	}
	return &Service{
		enrollments: enrollments,
		sequences:   sequences,
		leads:       leads,
		replies:     replies,
		resolver:    contentResolver,
		dispatcher:  dispatcher,
		window:      window,
		tickLock:    tickLock,
		cfg:         cfg,
		metrics:     m,
		logger:      log,
		now:         time.Now,
	}
}

// Start runs the tick loop until ctx is cancelled. Production path for the
// worker binary; the API trigger calls ProcessDue directly.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "poll_interval", s.cfg.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return
		case <-ticker.C:
			summary, err := s.ProcessDue(ctx)
			if err != nil {
				s.logger.Error(err, "tick failed")
				continue
			}
			if summary.Processed > 0 || summary.Rescheduled > 0 {
				s.logger.Info("tick complete",
					"processed", summary.Processed,
					"sent", summary.Sent,
					"completed", summary.Completed,
					"errors", summary.Errors,
					"rescheduled", summary.Rescheduled)
			}
		}
	}
}

// ProcessDue runs one tick. Idempotent to call repeatedly: it only touches
// enrollments that are actually due.
func (s *Service) ProcessDue(ctx context.Context) (model.TickSummary, error) {
	var summary model.TickSummary

	if s.tickLock != nil {
		if err := s.tickLock.Acquire(ctx); err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				s.logger.Debug("tick skipped, lock held elsewhere")
				return summary, nil
			}
			return summary, err
		}
		defer func() {
			if err := s.tickLock.Release(ctx); err != nil {
				s.logger.Error(err, "failed to release tick lock")
			}
		}()
	}

	s.metrics.TicksTotal.Inc()
	timer := prometheus.NewTimer(s.metrics.TickDuration)
	defer timer.ObserveDuration()

	now := s.now()

	if s.window.Blocked(now) {
		next := s.window.NextAllowed(now)
		n, err := s.enrollments.RescheduleAllDue(ctx, now, next)
		if err != nil {
			return summary, fmt.Errorf("quiet-hours bulk defer failed: %w", err)
		}
		summary.Rescheduled = int(n)
		s.metrics.QuietHoursDeferrals.Add(float64(n))
		if n > 0 {
			s.logger.Info("quiet hours, deferred due enrollments",
				"count", n, "until", next.Format(time.RFC3339))
		}
		return summary, nil
	}

	batch, err := s.enrollments.FetchDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch due enrollments: %w", err)
	}
	if len(batch) == 0 {
		return summary, nil
	}

	// Enrollments are independent by construction (keyed on lead+sequence),
	// so a small pool is safe: no shared mutable state crosses goroutines.
	results := make([]outcome, len(batch))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, e := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, e *model.Enrollment) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.processOne(ctx, now, e)
		}(i, e)
	}
	wg.Wait()

	for _, r := range results {
		summary.Processed++
		if r.sent {
			summary.Sent++
		}
		if r.completed {
			summary.Completed++
		}
		if r.errored {
			summary.Errors++
		}
	}
	s.metrics.EnrollmentsProcessed.Add(float64(summary.Processed))
	s.metrics.EnrollmentsCompleted.Add(float64(summary.Completed))
	s.metrics.EnrollmentErrors.Add(float64(summary.Errors))

	return summary, nil
}

type outcome struct {
	sent      bool
	completed bool
	errored   bool
}

// processOne walks one enrollment through the per-enrollment state machine.
// Any failure, including a panic, is converted to an error outcome; nothing
// escapes to abort the batch.
func (s *Service) processOne(ctx context.Context, now time.Time, e *model.Enrollment) (result outcome) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(fmt.Errorf("panic: %v", p), "enrollment processing panicked",
				"enrollment_id", e.ID.String())
			result = outcome{errored: true}
		}
	}()

	log := s.logger.WithFields(map[string]interface{}{
		"enrollment_id": e.ID.String(),
		"tenant_id":     e.TenantID.String(),
	})

	if e.Expired(now) || e.MaxReached() {
		e.Complete(now)
		return s.persist(ctx, e, log, outcome{completed: true})
	}

	replied, err := s.replies.HasRepliedSince(ctx, e.ThreadID, e.StartedAt)
	if err != nil {
		e.RecordError(now, fmt.Sprintf("reply check failed: %v", err))
		return s.persist(ctx, e, log, outcome{errored: true})
	}
	if replied {
		// The lead answered; the conversation belongs to a human now.
		e.Complete(now)
		log.Info("enrollment completed on reply")
		return s.persist(ctx, e, log, outcome{completed: true})
	}

	lead, err := s.leads.Get(ctx, e.LeadID)
	if err != nil {
		e.RecordError(now, fmt.Sprintf("lead lookup failed: %v", err))
		return s.persist(ctx, e, log, outcome{errored: true})
	}

	seq, err := s.sequences.Get(ctx, e.SequenceID)
	if err != nil {
		e.RecordError(now, fmt.Sprintf("sequence lookup failed: %v", err))
		return s.persist(ctx, e, log, outcome{errored: true})
	}

	content, err := s.resolver.ResolveNext(ctx, e, seq, lead)
	if errors.Is(err, apperrors.ErrNoMoreSteps) {
		e.Complete(now)
		return s.persist(ctx, e, log, outcome{completed: true})
	}
	if err != nil {
		// Generation and guardrail failures leave the enrollment due at its
		// current time; the next tick re-attempts and may produce passing
		// content. No progress, no cost.
		if errors.Is(err, apperrors.ErrGuardrailBlocked) {
			e.GuardrailFailures++
			s.metrics.GuardrailBlocks.Inc()
		}
		e.RecordError(now, err.Error())
		return s.persist(ctx, e, log, outcome{errored: true})
	}

	err = s.dispatcher.Dispatch(ctx, now, e, seq, lead, content)
	if errors.Is(err, apperrors.ErrDoNotContact) {
		e.Cancel(now, "lead cannot be contacted")
		log.Info("enrollment cancelled, do-not-contact")
		return s.persist(ctx, e, log, outcome{completed: true})
	}
	if err != nil {
		e.SendAttempts++
		if e.SendAttempts >= s.cfg.MaxSendAttempts {
			e.Cancel(now, fmt.Sprintf("cancelled after %d failed send attempts: %v", e.SendAttempts, err))
			log.Warn("enrollment cancelled, send attempts exhausted")
			return s.persist(ctx, e, log, outcome{completed: true})
		}
		e.RecordError(now, err.Error())
		return s.persist(ctx, e, log, outcome{errored: true})
	}

	return s.persist(ctx, e, log, outcome{sent: true, completed: e.Terminal()})
}

// persist saves the enrollment and folds a save failure into the outcome.
// If the save fails after a real send went out, the step will re-fire next
// tick: delivery is at-least-once and internal bookkeeping is not
// at-most-once. That trade-off is accepted here rather than hidden.
func (s *Service) persist(ctx context.Context, e *model.Enrollment, log *logger.Logger, result outcome) outcome {
	if err := s.enrollments.Save(ctx, e); err != nil {
		log.Error(err, "failed to save enrollment state")
		result.errored = true
	}
	return result
}
