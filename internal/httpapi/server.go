package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/YiberMelo/ChronosSuite/internal/config"
	"github.com/YiberMelo/ChronosSuite/internal/ratelimit"
	"github.com/YiberMelo/ChronosSuite/internal/service"
	"github.com/YiberMelo/ChronosSuite/internal/store"
)

type Server struct {
	cfg     config.Config
	store   store.Store
	visits  *service.VisitManager
	auth    *service.Authenticator
	twofa   *service.TwoFactorManager
	limiter ratelimit.Limiter
	tokens  *tokenIssuer
	bus     *eventBus
	log     *zap.Logger
	router  chi.Router
}

// NewServer wires the services over st. A nil limiter falls back to an
// in-process limiter sized from cfg.
func NewServer(cfg config.Config, st store.Store, limiter ratelimit.Limiter, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if limiter == nil {
		limiter = ratelimit.NewMemory(cfg.LoginAttemptsPerMinute)
	}
	tokens, err := newTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:   cfg,
		store: st,
		visits: service.NewVisitManager(st, service.VisitOptions{
			RequireFutureEntry: cfg.RequireFutureEntry,
		}, log.Named("visits")),
		auth:    service.NewAuthenticator(st, log.Named("auth")),
		twofa:   service.NewTwoFactorManager(st, service.TwoFactorOptions{Issuer: cfg.TOTPIssuer}, log.Named("twofactor")),
		limiter: limiter,
		tokens:  tokens,
		bus:     newEventBus(),
		log:     log,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log.Named("http")))
	r.Use(recoverMiddleware(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/2fa/login", s.handleTwoFactorLogin)
		r.Post("/auth/2fa/verify", s.handleTwoFactorVerify)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/2fa/setup", s.handleTwoFactorSetup)
			r.Post("/auth/2fa/verify-temp", s.handleTwoFactorVerifyTemp)
			r.Post("/auth/2fa/enable", s.handleTwoFactorEnable)

			r.Post("/visits", s.handleVisitCreate)
			r.Post("/visits/search", s.handleVisitSearch)
			r.Get("/visits/{id}", s.handleVisitGet)
			r.Delete("/visits/{id}", s.handleVisitDelete)
			r.Post("/visits/{id}/entry", s.handleVisitEntry)
			r.Post("/visits/{id}/exit", s.handleVisitExit)
			r.Post("/visits/{id}/report", s.handleVisitReport)
			r.Post("/visits/{id}/report/toggle", s.handleVisitReportToggle)
			r.Get("/visits/{id}/report", s.handleVisitReportStatus)

			r.Get("/dashboard", s.handleDashboard)
			r.Get("/stream", s.handleStream)

			s.registerDirectoryRoutes(r)
		})
	})

	s.router = r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
