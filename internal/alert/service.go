// Package alert sends operational mail to tenant admins. Today that is a
// single notification: the credit balance hit zero and automated sends are
// burning nothing.
package alert

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/outreachly/drip-engine/internal/repository"
	"github.com/outreachly/drip-engine/pkg/logger"
)

type Notifier interface {
	NotifyLowCredit(ctx context.Context, tenantID uuid.UUID) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type service struct {
	tenants repository.TenantRepository
	dialer  *gomail.Dialer
	from    string
	logger  *logger.Logger
}

func NewService(tenants repository.TenantRepository, cfg SMTPConfig, log *logger.Logger) Notifier {
	return &service{
		tenants: tenants,
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		logger:  log,
	}
}

// NotifyLowCredit mails the tenant admin once per depletion; the
// low_credit_sent flag suppresses repeats until credits are topped up and
// the flag is reset by the billing side.
func (s *service) NotifyLowCredit(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant for alert: %w", err)
	}
	if tenant.LowCreditSent || tenant.AlertEmail == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", tenant.AlertEmail)
	m.SetHeader("Subject", "Your message credits have run out")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nYour account has run out of message credits. Scheduled follow-ups will keep their place in line, but nothing further will be charged or delivered until you top up.\n",
		tenant.Name,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send low-credit alert: %w", err)
	}

	if err := s.tenants.MarkLowCreditAlerted(ctx, tenantID); err != nil {
		s.logger.Error(err, "failed to mark low-credit alert", "tenant_id", tenantID.String())
	}
	return nil
}
