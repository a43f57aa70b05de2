package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/nutrition-practice/internal/api"
	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/logger"
	"github.com/dom/nutrition-practice/internal/metrics"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/dom/nutrition-practice/internal/repository/postgres"
	"github.com/dom/nutrition-practice/internal/service"
	"github.com/dom/nutrition-practice/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

// app holds the process-wide components shared by the serve and worker commands
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *gorm.DB
	redis      *redis.Client
	repos      *repository.Repositories
	registry   *prometheus.Registry
	recorder   *metrics.Collector
	hub        *websocket.Hub
	queue      *notification.RedisQueue
	secrets    *notification.SecretBox
	dispatcher *notification.Dispatcher
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.SetupDefault(os.Stdout, cfg.Environment)

	db, err := postgres.NewConnection(cfg.DatabaseURL, postgres.LogLevel(cfg.Environment))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	secrets, err := notification.NewSecretBox(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	repos := postgres.NewRepositories(db)
	queue := notification.NewRedisQueue(redisClient)
	dispatcher := notification.NewDispatcher(repos.Notification, queue, recorder, notification.DispatcherConfig{
		MaxRetries: cfg.NotificationMaxRetries,
		TTL:        cfg.NotificationTTL,
		Secrets:    secrets,
	}, log)

	return &app{
		cfg:        cfg,
		logger:     log,
		db:         db,
		redis:      redisClient,
		repos:      repos,
		registry:   registry,
		recorder:   recorder,
		hub:        websocket.NewHub(),
		queue:      queue,
		secrets:    secrets,
		dispatcher: dispatcher,
	}, nil
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("failed to close redis client", slog.String("error", err.Error()))
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// Serve runs the HTTP API until SIGINT or SIGTERM
func (a *app) Serve(withWorker bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := auth.NewIdentityProvider(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.logger.Info("identity provider", slog.String("availability", provider.Availability().String()))

	issuer := auth.NewTokenIssuer(a.cfg.JWTSecret, a.cfg.JWTExpiration())
	services := service.NewServices(a.repos, service.Dependencies{
		Issuer:   issuer,
		Resets:   auth.NewRedisResetStore(a.redis, a.cfg.ResetTokenTTL),
		Notifier: a.dispatcher,
		Config:   a.cfg,
		Logger:   a.logger,
	})

	go a.hub.Run()
	defer a.hub.Stop()

	router := api.NewRouter(api.Dependencies{
		Services: services,
		Users:    a.repos.User,
		Hub:      a.hub,
		Hybrid:   auth.NewHybridResolver(issuer, provider),
		Provider: auth.NewProviderResolver(provider),
		Gate:     auth.NewGate(auth.NewProviderRoleSource(provider), auth.NewUserRoleSource(a.repos.User)),
		Metrics:  a.recorder,
		Gatherer: a.registry,
		Config:   a.cfg,
		Logger:   a.logger,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:         "0.0.0.0:" + a.cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server starting", slog.String("port", a.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if withWorker {
		g.Go(func() error {
			return a.runDelivery(gctx)
		})
	}

	err = g.Wait()
	a.logger.Info("server stopped")
	return err
}

// RunWorker delivers notifications until SIGINT or SIGTERM. In-app pushes
// only reach connections held by this process, so a standalone worker still
// records in-app notifications as delivered to the inbox.
func (a *app) RunWorker() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.hub.Run()
	defer a.hub.Stop()

	return a.runDelivery(ctx)
}

func (a *app) runDelivery(ctx context.Context) error {
	templates, err := notification.NewTemplates(a.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("parse email templates: %w", err)
	}
	mailer, err := a.mailer()
	if err != nil {
		return err
	}

	processor := notification.NewProcessor(a.repos.Notification, a.queue, map[domain.Channel]notification.Sender{
		domain.ChannelEmail: notification.NewEmailSender(a.repos.User, templates, mailer, a.secrets),
		domain.ChannelInApp: notification.NewInAppSender(a.hub, a.logger),
	}, a.recorder, notification.ProcessorConfig{BaseRetryDelay: a.cfg.QueueBaseRetryDelay}, a.logger)

	worker := notification.NewWorker(a.queue, processor, a.cfg.QueueConcurrency, a.cfg.QueuePollInterval, a.logger)
	sweeper := notification.NewSweeper(a.repos.Notification, a.queue, a.cfg.SweepStaleAfter, a.logger)
	cleanup := notification.NewCleanup(a.repos.Notification, a.logger)

	go sweeper.Run(ctx, a.cfg.SweepInterval)
	go cleanup.Run(ctx, time.Hour)

	a.logger.Info("notification worker starting", slog.Int("concurrency", a.cfg.QueueConcurrency))
	return worker.Run(ctx)
}

func (a *app) mailer() (notification.Mailer, error) {
	if a.cfg.SMTPHost == "" {
		a.logger.Warn("SMTP_HOST is not set, emails are logged instead of sent")
		return notification.NewLogMailer(a.logger), nil
	}
	mailer, err := notification.NewSMTPMailer(notification.SMTPConfig{
		Host:     a.cfg.SMTPHost,
		Port:     a.cfg.SMTPPort,
		Username: a.cfg.SMTPUsername,
		Password: a.cfg.SMTPPassword,
		From:     a.cfg.EmailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("configure smtp: %w", err)
	}
	return mailer, nil
}
