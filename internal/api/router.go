package api

import (
	"log/slog"
	"net/http"

	"github.com/dom/nutrition-practice/internal/api/handlers"
	"github.com/dom/nutrition-practice/internal/api/middleware"
	"github.com/dom/nutrition-practice/internal/auth"
	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/metrics"
	"github.com/dom/nutrition-practice/internal/service"
	"github.com/dom/nutrition-practice/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies wires the HTTP surface
type Dependencies struct {
	Services *service.Services
	Users    auth.UserLookup
	Hub      *websocket.Hub
	// Hybrid accepts local session tokens and provider tokens
	Hybrid *auth.Resolver
	// Provider accepts provider tokens only
	Provider *auth.Resolver
	Gate     *auth.Gate
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
	Config   *config.Config
	Logger   *slog.Logger
}

// Router is the API handler. Close stops its background rate limiter cleanup.
type Router struct {
	http.Handler
	limiters []*middleware.RateLimiter
}

func (rt *Router) Close() {
	for _, l := range rt.limiters {
		l.Stop()
	}
}

func NewRouter(deps Dependencies) *Router {
	cfg := deps.Config
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	generalLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Name:   "general",
		Window: cfg.RateLimitWindow,
		Burst:  cfg.RateLimitMaxRequests,
	})
	authLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Name:   "auth",
		Window: cfg.RateLimitWindow,
		Burst:  cfg.AuthRateLimitMaxRequests,
	})
	// Runs after Authenticate so every account gets its own bucket
	userLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Name:   "user",
		Window: cfg.RateLimitWindow,
		Burst:  cfg.UserRateLimitMaxRequests,
	})

	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(cfg.CORSOrigins))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	rs := handlers.NewResponder(cfg, deps.Logger)
	svc := deps.Services

	authHandler := handlers.NewAuthHandler(svc.Auth, rs)
	userHandler := handlers.NewUserHandler(svc.User, rs)
	patientHandler := handlers.NewPatientHandler(svc.Patient, rs)
	assessmentHandler := handlers.NewAssessmentHandler(svc.Assessment, rs)
	dietPlanHandler := handlers.NewDietPlanHandler(svc.DietPlan, rs)
	consultationHandler := handlers.NewConsultationHandler(svc.Consultation, rs)
	blogHandler := handlers.NewBlogHandler(svc.Blog, rs)
	inviteHandler := handlers.NewInviteHandler(svc.Invite, rs)
	auditHandler := handlers.NewAuditHandler(svc.Audit, rs)
	metricsHandler := handlers.NewMetricsHandler(svc.Metrics, rs)
	notificationHandler := handlers.NewNotificationHandler(svc.Notification, rs)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.Hybrid, deps.Users, rs, deps.Logger)

	// Authenticated local or linked provider identity with a known role
	protected := chi.Chain(
		middleware.Authenticate(deps.Hybrid, deps.Users, rec),
		userLimiter.Middleware(),
		middleware.RequireRoles(deps.Gate, rec, domain.AllRoles...),
		middleware.Audit(svc.Audit, deps.Logger),
	)
	providerOnly := middleware.Authenticate(deps.Provider, nil, rec)
	roles := func(allowed ...domain.Role) func(http.Handler) http.Handler {
		return middleware.RequireRoles(deps.Gate, rec, allowed...)
	}
	readers := roles(domain.RoleAdmin, domain.RoleNutritionist, domain.RolePatient)
	nutritionist := roles(domain.RoleNutritionist)
	staff := roles(domain.RoleNutritionist, domain.RoleAdmin)
	admin := roles(domain.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(generalLimiter.Middleware())

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authLimiter.Middleware())
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/forgot-password", authHandler.ForgotPassword)
				r.Post("/reset-password", authHandler.ResetPassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(protected.Handler)
				r.Get("/profile", authHandler.Profile)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Route("/firebase", func(r chi.Router) {
			r.Use(authLimiter.Middleware())
			r.Use(providerOnly)
			r.Post("/login", authHandler.FirebaseLogin)
			r.Get("/profile", authHandler.Profile)
		})

		r.Route("/hybrid", func(r chi.Router) {
			r.Use(authLimiter.Middleware())
			r.With(providerOnly).Post("/register", authHandler.HybridRegister)
			r.With(providerOnly).Post("/login", authHandler.HybridLogin)
			r.With(middleware.Authenticate(deps.Hybrid, deps.Users, rec)).Post("/refresh", authHandler.Refresh)
		})

		r.Route("/blog", func(r chi.Router) {
			r.Get("/", blogHandler.ListPublished)
			r.Get("/{slug}", blogHandler.GetPublished)

			r.Route("/posts", func(r chi.Router) {
				r.Use(protected.Handler)
				r.Use(staff)
				r.Get("/", blogHandler.ListManaged)
				r.Post("/", blogHandler.Create)
				r.Put("/{id}", blogHandler.Update)
				r.Post("/{id}/publish", blogHandler.Publish)
				r.Post("/{id}/unpublish", blogHandler.Unpublish)
				r.Delete("/{id}", blogHandler.Delete)
			})
		})

		r.Get("/ws", wsHandler.Handle)

		r.Group(func(r chi.Router) {
			r.Use(protected.Handler)

			r.Route("/users", func(r chi.Router) {
				r.Use(admin)
				r.Get("/", userHandler.List)
				r.Get("/{id}", userHandler.Get)
				r.Patch("/{id}/role", userHandler.UpdateRole)
				r.Post("/{id}/deactivate", userHandler.Deactivate)
				r.Post("/{id}/activate", userHandler.Activate)
			})

			mountRecords(r, "/patients", patientHandler, readers, nutritionist)
			mountRecords(r, "/nutritional-assessments", assessmentHandler, readers, nutritionist)
			mountRecords(r, "/diet-plans", dietPlanHandler, readers, nutritionist)
			mountRecords(r, "/consultations", consultationHandler, readers, nutritionist)

			r.Route("/invites", func(r chi.Router) {
				r.With(nutritionist).Get("/", inviteHandler.List)
				r.With(nutritionist).Post("/", inviteHandler.Create)
				r.With(roles(domain.RoleNutritionist, domain.RoleAdmin)).Post("/{id}/revoke", inviteHandler.Revoke)
				r.With(roles(domain.RolePatient)).Post("/accept", inviteHandler.Accept)
			})

			r.With(staff).Get("/audit", auditHandler.List)
			r.With(staff).Get("/metrics", metricsHandler.Summary)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.With(staff).Post("/", notificationHandler.Create)
				r.Get("/{id}", notificationHandler.Get)
				r.Post("/{id}/cancel", notificationHandler.Cancel)
			})
		})
	})

	return &Router{Handler: r, limiters: []*middleware.RateLimiter{generalLimiter, authLimiter, userLimiter}}
}

// recordRoutes is the handler set of one practice record resource
type recordRoutes interface {
	List(http.ResponseWriter, *http.Request)
	Get(http.ResponseWriter, *http.Request)
	Create(http.ResponseWriter, *http.Request)
	Update(http.ResponseWriter, *http.Request)
	Delete(http.ResponseWriter, *http.Request)
}

func mountRecords(r chi.Router, path string, h recordRoutes, read, write func(http.Handler) http.Handler) {
	r.Route(path, func(r chi.Router) {
		r.With(read).Get("/", h.List)
		r.With(read).Get("/{id}", h.Get)
		r.With(write).Post("/", h.Create)
		r.With(write).Put("/{id}", h.Update)
		r.With(write).Delete("/{id}", h.Delete)
	})
}
