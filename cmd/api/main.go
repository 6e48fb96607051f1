package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/outreachly/drip-engine/internal/alert"
	"github.com/outreachly/drip-engine/internal/config"
	"github.com/outreachly/drip-engine/internal/handler"
	enrollmentHandler "github.com/outreachly/drip-engine/internal/handler/enrollment"
	schedulerHandler "github.com/outreachly/drip-engine/internal/handler/scheduler"
	"github.com/outreachly/drip-engine/internal/repository"
	"github.com/outreachly/drip-engine/internal/repository/postgres"
	"github.com/outreachly/drip-engine/internal/router"
	"github.com/outreachly/drip-engine/internal/schedule"
	"github.com/outreachly/drip-engine/internal/service/dispatch"
	enrollmentService "github.com/outreachly/drip-engine/internal/service/enrollment"
	"github.com/outreachly/drip-engine/internal/service/reply"
	"github.com/outreachly/drip-engine/internal/service/resolver"
	schedulerService "github.com/outreachly/drip-engine/internal/service/scheduler"
	"github.com/outreachly/drip-engine/pkg/ai"
	"github.com/outreachly/drip-engine/pkg/logger"
	"github.com/outreachly/drip-engine/pkg/metrics"
	"github.com/outreachly/drip-engine/pkg/sms"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	window, err := schedule.NewWindow(cfg.QuietHours.Zone, cfg.QuietHours.Start, cfg.QuietHours.End)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid quiet-hours configuration")
	}

	// Repositories
	enrollmentRepo := postgres.NewEnrollmentRepository(db)
	sequenceRepo := repository.NewCachedSequenceRepository(
		postgres.NewSequenceRepository(db), cfg.Scheduler.SequenceCache)
	leadRepo := postgres.NewLeadRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	dripRepo := postgres.NewDripMessageRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)

	// External clients
	carrier := sms.NewClient(sms.Config{
		BaseURL:       cfg.Carrier.BaseURL,
		AccountID:     cfg.Carrier.AccountID,
		AuthToken:     cfg.Carrier.AuthToken,
		Timeout:       cfg.Carrier.Timeout,
		RatePerSecond: cfg.Carrier.RatePerSecond,
		Burst:         cfg.Carrier.Burst,
	}, appLogger)
	generator := ai.NewClient(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	guardrail := ai.NewRuleGuardrail(cfg.AI.BlockedPhrases)
	alerts := alert.NewService(tenantRepo, alert.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, appLogger)

	m := metrics.NewMetrics("dripengine", "api")

	// Services
	replyMonitor := reply.NewMonitor(messageRepo, cfg.Scheduler.ReplyLookback)
	contentResolver := resolver.NewResolver(dripRepo, messageRepo, generator, guardrail, cfg.AI.Timeout, m, appLogger)
	dispatcher := dispatch.NewDispatcher(carrier, tenantRepo, messageRepo, window, alerts, dispatch.Config{
		FromNumber:     cfg.Dispatch.FromNumber,
		CostPerMessage: cfg.Dispatch.CostPerMessage,
		DripDelay:      cfg.Dispatch.DripDelay,
		SendTimeout:    cfg.Dispatch.SendTimeout,
	}, m, appLogger)

	// The API trigger runs without the redis tick lock; the deployment's
	// cron layer guarantees trigger calls do not overlap the worker.
	schedulerSvc := schedulerService.NewService(
		enrollmentRepo, sequenceRepo, leadRepo,
		replyMonitor, contentResolver, dispatcher,
		window, nil,
		schedulerService.Config{
			BatchSize:       cfg.Scheduler.BatchSize,
			Concurrency:     cfg.Scheduler.Concurrency,
			PollInterval:    cfg.Scheduler.PollInterval,
			MaxSendAttempts: cfg.Scheduler.MaxSendAttempts,
		}, m, appLogger)
	enrollmentSvc := enrollmentService.NewService(enrollmentRepo, sequenceRepo, leadRepo, window, appLogger)

	// Router
	r := router.NewRouter(
		handler.NewHandler(db),
		router.Config{
			ServiceTokenSecret: cfg.Auth.ServiceTokenSecret,
			RequestTimeout:     cfg.Server.RequestTimeout,
			MetricsPrefix:      "dripengine",
		},
		schedulerHandler.NewHandler(schedulerSvc),
		enrollmentHandler.NewHandler(enrollmentSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
