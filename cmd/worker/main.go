package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/outreachly/drip-engine/internal/alert"
	"github.com/outreachly/drip-engine/internal/config"
	"github.com/outreachly/drip-engine/internal/repository"
	"github.com/outreachly/drip-engine/internal/repository/postgres"
	"github.com/outreachly/drip-engine/internal/schedule"
	"github.com/outreachly/drip-engine/internal/service/dispatch"
	"github.com/outreachly/drip-engine/internal/service/reply"
	"github.com/outreachly/drip-engine/internal/service/resolver"
	"github.com/outreachly/drip-engine/internal/service/scheduler"
	"github.com/outreachly/drip-engine/pkg/ai"
	"github.com/outreachly/drip-engine/pkg/lock"
	"github.com/outreachly/drip-engine/pkg/logger"
	"github.com/outreachly/drip-engine/pkg/metrics"
	"github.com/outreachly/drip-engine/pkg/sms"
)

func setupHealthCheck(appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			appLogger.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}

	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	appLogger := logger.FromZerolog(zlog.Logger)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		appLogger.Fatal(err, "invalid redis URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	window, err := schedule.NewWindow(cfg.QuietHours.Zone, cfg.QuietHours.Start, cfg.QuietHours.End)
	if err != nil {
		appLogger.Fatal(err, "invalid quiet-hours configuration")
	}

	enrollmentRepo := postgres.NewEnrollmentRepository(db)
	sequenceRepo := repository.NewCachedSequenceRepository(
		postgres.NewSequenceRepository(db), cfg.Scheduler.SequenceCache)
	leadRepo := postgres.NewLeadRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	dripRepo := postgres.NewDripMessageRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)

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

	m := metrics.NewMetrics("dripengine", "worker")

	replyMonitor := reply.NewMonitor(messageRepo, cfg.Scheduler.ReplyLookback)
	contentResolver := resolver.NewResolver(dripRepo, messageRepo, generator, guardrail, cfg.AI.Timeout, m, appLogger)
	dispatcher := dispatch.NewDispatcher(carrier, tenantRepo, messageRepo, window, alerts, dispatch.Config{
		FromNumber:     cfg.Dispatch.FromNumber,
		CostPerMessage: cfg.Dispatch.CostPerMessage,
		DripDelay:      cfg.Dispatch.DripDelay,
		SendTimeout:    cfg.Dispatch.SendTimeout,
	}, m, appLogger)

	tickLock := lock.NewTickLock(redisClient, "dripengine:tick", cfg.Scheduler.LockTTL)

	svc := scheduler.NewService(
		enrollmentRepo, sequenceRepo, leadRepo,
		replyMonitor, contentResolver, dispatcher,
		window, tickLock,
		scheduler.Config{
			BatchSize:       cfg.Scheduler.BatchSize,
			Concurrency:     cfg.Scheduler.Concurrency,
			PollInterval:    cfg.Scheduler.PollInterval,
			MaxSendAttempts: cfg.Scheduler.MaxSendAttempts,
		}, m, appLogger)

	setupHealthCheck(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down")
		cancel()
	}()

	svc.Start(ctx)
}
