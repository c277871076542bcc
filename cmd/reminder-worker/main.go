package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/gov-appointments/internal/account"
	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/config"
	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/mail"
	"github.com/hackgods/gov-appointments/internal/notification"
	"github.com/hackgods/gov-appointments/internal/observability"
	"github.com/hackgods/gov-appointments/internal/realtime"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
	"github.com/hackgods/gov-appointments/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("reminder-worker", "unknown").Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger("reminder-worker", cfg.Env)
	logger.Info("reminder-worker starting up", "interval", cfg.ReminderInterval, "lead", cfg.ReminderLeadTime)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Reminders published through Redis reach clients connected to any
	// api-server instance.
	var rdb *redis.Client
	if c, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword); err != nil {
		logger.Warn("redis unavailable, reminders will not be pushed live", "error", err)
	} else {
		rdb = c
		defer rdb.Close()
	}

	// Email delivery runs inline: the worker has no request path to protect.
	side := tasks.Inline{Logger: logger}
	events := analytics.NewRecorder(analytics.NewPgStore(pgPool), side, logger)
	accounts := account.NewService(account.NewPgRepository(pgPool), auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL), events, logger)
	dispatcher := notification.NewDispatcher(
		notification.NewPgRepository(pgPool),
		realtime.NewHub(rdb, logger),
		accounts,
		mail.New(cfg.ResendAPIKey, cfg.MailFrom, logger),
		side,
		logger,
	)
	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		appointment.NewPgTxManager(pgPool),
		redisclient.NoopLocker{},
		dispatcher,
		events,
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.ReminderLeadTime, logger)

	interval := cfg.ReminderInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.ReminderLeadTime, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, lead time.Duration, logger *observability.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := svc.SendDueReminders(runCtx, lead)
	if err != nil {
		logger.Error("reminder run error", "error", err)
		return
	}
	logger.Info("reminder run complete", "sent", sent, "duration", time.Since(start))
}
