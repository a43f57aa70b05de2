package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dom/nutrition-practice/internal/api"
	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/metrics"
	"github.com/dom/nutrition-practice/internal/notification"
	"github.com/dom/nutrition-practice/internal/repository"
	repoPostgres "github.com/dom/nutrition-practice/internal/repository/postgres"
	"github.com/dom/nutrition-practice/internal/service"
	"github.com/dom/nutrition-practice/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a migrated connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_nutrition_practice"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"audit_log_entries",
		"patient_invites",
		"blog_posts",
		"consultations",
		"diet_plans",
		"nutritional_assessments",
		"patients",
		"notifications",
		"users",
	}

	if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))).Error; err != nil {
		t.Logf("warning: failed to truncate tables: %v", err)
	}
}

// NewTestRedis starts an in-process Redis and returns a client for it
func NewTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:                     "0",
		Environment:              "test",
		BaseURL:                  "http://localhost:3000",
		CORSOrigins:              []string{"*"},
		JWTSecret:                "test-jwt-secret-key-for-testing-only",
		JWTExpirationHours:       1,
		RateLimitWindow:          15 * time.Minute,
		RateLimitMaxRequests:     1000,
		AuthRateLimitMaxRequests: 1000,
		UserRateLimitMaxRequests: 1000,
		DefaultPageSize:          10,
		MaxPageSize:              100,
		PasswordMinLength:        6,
		PasswordMaxLength:        128,
		ResetTokenTTL:            time.Hour,
		EmailFrom:                "no-reply@test.local",
		QueueConcurrency:         2,
		QueuePollInterval:        10 * time.Millisecond,
		QueueBaseRetryDelay:      time.Second,
		NotificationMaxRetries:   3,
		NotificationTTL:          30 * 24 * time.Hour,
		SweepInterval:            time.Minute,
		SweepStaleAfter:          10 * time.Minute,
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server    *httptest.Server
	DB        *TestDB
	Redis     *redis.Client
	Repos     *repository.Repositories
	Services  *service.Services
	Hub       *websocket.Hub
	Config    *config.Config
	Issuer    *auth.TokenIssuer
	Provider  *FakeProvider
	Mailer    *notification.LogMailer
	Queue     *notification.RedisQueue
	Processor *notification.Processor
	Registry  *prometheus.Registry
}

// NewTestServer creates a complete test server backed by a real database and
// an in-process Redis. Notifications are queued but only delivered when a
// test calls DeliverQueued. Options adjust the configuration before wiring.
func NewTestServer(t *testing.T, opts ...func(*config.Config)) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	redisClient, _ := NewTestRedis(t)
	cfg := TestConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	log := DiscardLogger()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(registry)

	repos := repoPostgres.NewRepositories(testDB.DB)
	hub := websocket.NewHub()
	go hub.Run()

	provider := NewFakeProvider()
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration())

	secrets, err := notification.NewSecretBox(cfg.JWTSecret)
	if err != nil {
		t.Fatalf("failed to create secret box: %v", err)
	}

	queue := notification.NewRedisQueue(redisClient)
	dispatcher := notification.NewDispatcher(repos.Notification, queue, recorder, notification.DispatcherConfig{
		MaxRetries: cfg.NotificationMaxRetries,
		TTL:        cfg.NotificationTTL,
		Secrets:    secrets,
	}, log)

	templates, err := notification.NewTemplates(cfg.BaseURL)
	if err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}
	mailer := notification.NewLogMailer(log)
	processor := notification.NewProcessor(repos.Notification, queue, map[domain.Channel]notification.Sender{
		domain.ChannelEmail: notification.NewEmailSender(repos.User, templates, mailer, secrets),
		domain.ChannelInApp: notification.NewInAppSender(hub, log),
	}, recorder, notification.ProcessorConfig{BaseRetryDelay: cfg.QueueBaseRetryDelay}, log)

	services := service.NewServices(repos, service.Dependencies{
		Issuer:   issuer,
		Resets:   auth.NewRedisResetStore(redisClient, cfg.ResetTokenTTL),
		Notifier: dispatcher,
		Config:   cfg,
		Logger:   log,
	})

	router := api.NewRouter(api.Dependencies{
		Services: services,
		Users:    repos.User,
		Hub:      hub,
		Hybrid:   auth.NewHybridResolver(issuer, provider),
		Provider: auth.NewProviderResolver(provider),
		Gate:     auth.NewGate(auth.NewProviderRoleSource(provider), auth.NewUserRoleSource(repos.User)),
		Metrics:  recorder,
		Gatherer: registry,
		Config:   cfg,
		Logger:   log,
	})

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:    server,
		DB:        testDB,
		Redis:     redisClient,
		Repos:     repos,
		Services:  services,
		Hub:       hub,
		Config:    cfg,
		Issuer:    issuer,
		Provider:  provider,
		Mailer:    mailer,
		Queue:     queue,
		Processor: processor,
		Registry:  registry,
	}

	t.Cleanup(func() {
		server.Close()
		router.Close()
		hub.Stop()
	})

	return ts
}

// Reset clears the database and the queue between test cases
func (ts *TestServer) Reset(t *testing.T) {
	t.Helper()
	ts.DB.Truncate(t)
	if err := ts.Redis.FlushAll(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}

// DeliverQueued processes every job that is ready now and returns how many ran
func (ts *TestServer) DeliverQueued(t *testing.T) int {
	t.Helper()

	ctx := context.Background()
	processed := 0
	for {
		id, ok, err := ts.Queue.Dequeue(ctx)
		if err != nil {
			t.Fatalf("failed to dequeue: %v", err)
		}
		if !ok {
			return processed
		}
		if err := ts.Processor.Process(ctx, id); err != nil {
			t.Logf("processing %s: %v", id, err)
		}
		processed++
	}
}

// TokenFor issues a session token for a stored user
func (ts *TestServer) TokenFor(t *testing.T, user *domain.User) string {
	t.Helper()

	token, _, err := ts.Issuer.Issue(user.ID.String(), user.Email, user.Role)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + strings.TrimPrefix(ts.Server.URL, "http")
	return fmt.Sprintf("%s/api/ws?token=%s", wsURL, token)
}
