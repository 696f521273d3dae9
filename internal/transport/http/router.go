package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-otp-auth/internal/application/auth"
	"github.com/go-otp-auth/internal/application/session"
	"github.com/go-otp-auth/internal/config"
	"github.com/go-otp-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-auth/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limit := func(next http.Handler) http.Handler { return next }
	if deps.RateLimiter != nil {
		limit = deps.RateLimiter.Limit
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo: deps.SessionRepo,
		Tokens:      deps.JWTProvider,
		TTL:         cfg.SessionTTL,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		AccountRepo: deps.AccountRepo,
		OTPRepo:     deps.OTPRepo,
		Sessions:    sessionSvc,
		Notifier:    deps.Notifier,
		OTPTTL:      cfg.OTPTTL,
	})

	healthH := handler.NewHealthHandler(deps.Pinger)
	authH := handler.NewAuthHandler(authSvc, sessionSvc, handler.CookieOptions{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
	})

	r.Get("/", handler.Index)
	r.Get("/health-check/{action}", healthH.Ping)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.With(limit).Post("/signup", authH.Signup)
	r.With(limit).Post("/verify-otp", authH.VerifyOTP)
	r.With(limit).Post("/signin", authH.Signin)

	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.Session(sessionSvc, cfg.SessionCookieName))

		r.Post("/signout", authH.Signout)
		r.Get("/session", authH.Session)
	})

	return r
}
