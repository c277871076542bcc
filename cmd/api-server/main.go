package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/gov-appointments/internal/account"
	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/api"
	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/complaint"
	"github.com/hackgods/gov-appointments/internal/config"
	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/document"
	"github.com/hackgods/gov-appointments/internal/mail"
	"github.com/hackgods/gov-appointments/internal/migrations"
	"github.com/hackgods/gov-appointments/internal/notification"
	"github.com/hackgods/gov-appointments/internal/observability"
	"github.com/hackgods/gov-appointments/internal/realtime"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
	"github.com/hackgods/gov-appointments/internal/slot"
	"github.com/hackgods/gov-appointments/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("api-server", "unknown").Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger("api-server", cfg.Env)

	if err := run(cfg, logger); err != nil {
		logger.Error("api-server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *observability.Logger) error {
	logger.Info("api-server starting up", "http_port", cfg.HTTPPort, "version", cfg.Version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrations.Up(cfg.PostgresDSN); err != nil {
		return err
	}

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Without Redis the server still runs: slot locking falls back to the
	// database check alone and realtime delivery stays on this instance.
	var (
		rdb         *redis.Client
		locker      redisclient.Locker = redisclient.NoopLocker{}
		redisHealth api.Check
	)
	rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn("redis unavailable, running degraded", "error", err)
		rdb = nil
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("error closing redis", "error", err)
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		redisHealth = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("connected to Redis")
	}

	queue := tasks.NewQueue(cfg.TaskQueueSize, cfg.TaskWorkers, logger)
	hub := realtime.NewHub(rdb, logger)
	mailer := mail.New(cfg.ResendAPIKey, cfg.MailFrom, logger)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	events := analytics.NewRecorder(analytics.NewPgStore(pgPool), queue, logger)
	accounts := account.NewService(account.NewPgRepository(pgPool), issuer, events, logger)
	accounts.EnablePasswordReset(account.PasswordReset{
		Mailer:  mailer,
		LinkURL: cfg.PasswordResetURL,
		TTL:     cfg.PasswordResetTTL,
	})
	dispatcher := notification.NewDispatcher(notification.NewPgRepository(pgPool), hub, accounts, mailer, queue, logger)
	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		appointment.NewPgTxManager(pgPool),
		locker,
		dispatcher,
		events,
		logger,
	)

	router := api.NewRouter(api.RouterConfig{
		Accounts:      accounts,
		Slots:         slot.NewService(slot.NewPgRepository(pgPool)),
		Appointments:  appointments,
		Notifications: dispatcher,
		Reports:       analytics.NewReports(analytics.NewPgStore(pgPool)),
		Events:        events,
		Complaints:    complaint.NewService(complaint.NewPgRepository(pgPool), accounts, events, logger),
		Documents: document.NewService(
			document.NewPgRepository(pgPool),
			document.NewFSStore(cfg.UploadDir),
			accounts,
			events,
			cfg.AllowedExtensions,
			cfg.MaxUploadBytes,
			logger,
		),
		Hub:    hub,
		Issuer: issuer,
		Health: api.NewHealthHandler(pgPool.Ping, redisHealth, cfg.Env, cfg.Version),
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The queue outlives the HTTP server so tasks queued by in-flight
	// requests are drained after shutdown.
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	queueDone := make(chan error, 1)
	go func() { queueDone <- queue.Run(queueCtx) }()

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		runReminders(ctx, appointments, cfg, logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down api-server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stopQueue()
	if qerr := <-queueDone; qerr != nil && err == nil {
		err = qerr
	}
	return err
}

// runReminders sends due reminders every ReminderInterval. A zero interval
// leaves reminders to the standalone reminder-worker.
func runReminders(ctx context.Context, svc *appointment.Service, cfg config.Config, logger *observability.Logger) {
	if cfg.ReminderInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			sent, err := svc.SendDueReminders(runCtx, cfg.ReminderLeadTime)
			cancel()
			if err != nil {
				logger.Error("reminder run failed", "error", err)
				continue
			}
			if sent > 0 {
				logger.Info("reminders sent", "count", sent)
			}
		}
	}
}
