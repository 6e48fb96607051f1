// Package dispatch owns the send side of a tick: do-not-contact screening,
// the carrier call, credit metering, thread bookkeeping, and advancing the
// enrollment to its next fire time.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/outreachly/drip-engine/internal/alert"
	"github.com/outreachly/drip-engine/internal/model"
	"github.com/outreachly/drip-engine/internal/repository"
	"github.com/outreachly/drip-engine/internal/schedule"
	"github.com/outreachly/drip-engine/internal/service/resolver"
	apperrors "github.com/outreachly/drip-engine/pkg/errors"
	"github.com/outreachly/drip-engine/pkg/logger"
	"github.com/outreachly/drip-engine/pkg/metrics"
	"github.com/outreachly/drip-engine/pkg/sms"
)

type Config struct {
	// FromNumber is the sending number stamped on automated sends.
	FromNumber string
	// CostPerMessage is deducted from the tenant balance per successful send.
	CostPerMessage int64
	// DripDelay spaces AI drip follow-ups; static steps carry their own delays.
	DripDelay time.Duration
	// SendTimeout bounds the carrier call.
	SendTimeout time.Duration
}

type Dispatcher struct {
	sender   sms.Sender
	tenants  repository.TenantRepository
	messages repository.MessageRepository
	window   *schedule.Window
	alerts   alert.Notifier
	cfg      Config
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewDispatcher(
	sender sms.Sender,
	tenants repository.TenantRepository,
	messages repository.MessageRepository,
	window *schedule.Window,
	alerts alert.Notifier,
	cfg Config,
	m *metrics.Metrics,
	log *logger.Logger,
) *Dispatcher {
	if cfg.CostPerMessage <= 0 {
		cfg.CostPerMessage = 1
	}
	if cfg.DripDelay <= 0 {
		cfg.DripDelay = 24 * time.Hour
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:   sender,
		tenants:  tenants,
		messages: messages,
		window:   window,
		alerts:   alerts,
		cfg:      cfg,
		metrics:  m,
		logger:   log,
	}
}

// Dispatch sends the resolved content and, on success, mutates the
// enrollment in place: progress advances by exactly one and the next fire
// time is computed from the delay of the step about to be attempted next,
// clamped out of quiet hours. On failure the enrollment is untouched so the
// same step retries next tick. The caller persists.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time, e *model.Enrollment, seq *model.Sequence, lead *model.Lead, content *resolver.Content) error {
	if !lead.Contactable() {
		return apperrors.ErrDoNotContact
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	timer := prometheus.NewTimer(d.metrics.SendDuration)
	result, err := d.sender.Send(sendCtx, sms.SendRequest{
		To:   lead.Phone,
		From: d.cfg.FromNumber,
		Body: content.Body,
		Metadata: map[string]string{
			"tenant_id":     e.TenantID.String(),
			"enrollment_id": e.ID.String(),
		},
	})
	timer.ObserveDuration()
	if err != nil {
		d.metrics.SendsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("send failed: %w", err)
	}
	d.metrics.SendsTotal.WithLabelValues("success").Inc()

	// The message is on the wire from here down. Metering and bookkeeping
	// failures are logged, never allowed to look like a failed send, or
	// the step would be re-sent next tick.
	d.meterAndRecord(ctx, e, result, content.Body)
	d.advance(now, e, seq)
	return nil
}

func (d *Dispatcher) meterAndRecord(ctx context.Context, e *model.Enrollment, result *sms.SendResult, body string) {
	balance, err := d.tenants.Deduct(ctx, e.TenantID, d.cfg.CostPerMessage)
	if err != nil {
		d.logger.Error(err, "credit deduction failed after send",
			"tenant_id", e.TenantID.String(), "enrollment_id", e.ID.String())
	} else {
		d.metrics.CreditsDeducted.Add(float64(d.cfg.CostPerMessage))
		if balance == 0 {
			if err := d.alerts.NotifyLowCredit(ctx, e.TenantID); err != nil {
				d.logger.Error(err, "low-credit alert failed", "tenant_id", e.TenantID.String())
			}
		}
	}

	providerID := result.ProviderID
	if err := d.messages.AppendOutbound(ctx, &model.ThreadMessage{
		ThreadID:   e.ThreadID,
		TenantID:   e.TenantID,
		Body:       body,
		ProviderID: &providerID,
	}); err != nil {
		d.logger.Error(err, "failed to record outbound message",
			"thread_id", e.ThreadID.String(), "enrollment_id", e.ID.String())
	}
}

func (d *Dispatcher) advance(now time.Time, e *model.Enrollment, seq *model.Sequence) {
	e.CurrentStep++
	e.MessagesSent++
	e.SendAttempts = 0
	e.LastError = nil
	e.UpdatedAt = now

	if e.Kind == model.EnrollmentKindAIDrip {
		if e.MaxReached() {
			e.Complete(now)
			return
		}
		next := d.window.Clamp(now.Add(d.cfg.DripDelay))
		e.NextSendAt = &next
		return
	}

	nextStep := seq.StepAt(e.CurrentStep)
	if nextStep == nil {
		e.Complete(now)
		return
	}
	next := d.window.Clamp(now.Add(nextStep.Delay()))
	e.NextSendAt = &next
}
