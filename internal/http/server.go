package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetcal/internal/log"
	"budgetcal/internal/middleware/ratelimit"
	"budgetcal/internal/middleware/security"
	"budgetcal/internal/middleware/trace"
	"budgetcal/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Options configures the HTTP server.
type Options struct {
	Addr               string
	Tokens             map[string]string
	AllowedOrigins     []string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	Logger             *log.Logger
	// Ready backs /readyz; nil means always ready.
	Ready func(context.Context) error
}

// Services are the use cases the API exposes.
type Services struct {
	Budget    *services.BudgetService
	Templates *services.TemplateService
	Accounts  *services.AccountService
}

type Server struct {
	http.Server
	svc      Services
	ready    func(context.Context) error
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes, returning a ready-to-run server.
func NewServer(opts Options, svc Services) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if len(opts.Tokens) == 0 {
		logger.WithComponent(log.ComponentSecurity).Warn("No API tokens configured; every /api request will be rejected")
	}

	detector := security.NewDetector()
	s := &Server{
		svc:      svc,
		ready:    opts.Ready,
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Methods:           ratelimit.DefaultConfig().Methods,
		}),
	}

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
		MaxAge:         300,
	})

	r := chi.NewRouter()
	r.Use(log.Middleware(logger))
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware)
	r.Use(c.Handler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(withTimeout(opts.RequestTimeout))
		r.Use(s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			TooManyRequestsError("rate limit exceeded, try again later").Write(w)
		}))
		r.Use(BearerAuth(opts.Tokens))

		r.Get("/auth/validate", s.handleValidateToken)

		r.Route("/account", func(r chi.Router) {
			r.Get("/", s.handleGetAccount)
			r.Get("/starting-balance", s.handleGetStartingBalance)
			r.Put("/starting-balance", s.handleUpdateStartingBalance)
			r.Put("/name", s.handleUpdateAccountName)
			r.Post("/initialize", s.handleInitializeAccount)
		})

		r.Route("/budget", func(r chi.Router) {
			r.Get("/month/{year}/{month}", s.handleMonthlyBudget)
			r.Get("/balances/{year}/{month}", s.handleDailyBalances)
			r.Get("/calendar/{year}/{month}", s.handleCalendar)
			r.Post("/expense/from-template", s.handleCreateFromTemplate)
			r.Put("/expense/{id}/move", s.handleMoveExpense)
			r.Put("/income/{id}/move", s.handleMoveIncome)
		})

		r.Post("/expenses", s.handleCreateExpense)
		r.Patch("/expenses/{id}", s.handleUpdateExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)

		r.Post("/income", s.handleCreateIncome)
		r.Patch("/income/{id}", s.handleUpdateIncome)
		r.Delete("/income/{id}", s.handleDeleteIncome)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
			r.Get("/{id}/has-instances/{year}/{month}", s.handleHasInstances)
		})
	})

	s.Addr = opts.Addr
	s.Handler = r
	s.ReadHeaderTimeout = 10 * time.Second
	return s
}

// withTimeout bounds the request context; handlers report the deadline as 504.
func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WithComponent(log.ComponentHTTP).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("not ready").Write(w)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"username": UserFromContext(r.Context()),
	})
}
