// Package http exposes the ledger and account services as a JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/media"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Ledger is the subset of the ledger service the API uses.
type Ledger interface {
	AddMoney(ctx context.Context, accountID string, amount core.Money) (core.Money, error)
	AddExpenditure(ctx context.Context, accountID string, e core.Expenditure) (core.Money, error)
	GetAccountSnapshot(ctx context.Context, accountID string) (core.Account, error)
}

// Accounts is the subset of the account service the API uses.
type Accounts interface {
	Signup(ctx context.Context, in services.SignupInput) (core.User, error)
	Login(ctx context.Context, email, password string) (string, auth.Session, error)
	Logout(ctx context.Context, sess auth.Session) error
	Profile(ctx context.Context, userID string) (services.Profile, error)
	UpdateSettings(ctx context.Context, userID string, in services.SettingsInput) (services.Profile, error)
	UploadProfilePicture(ctx context.Context, userID string, up media.Upload) (string, error)
}

type Config struct {
	Addr               string
	CORSAllowedOrigins []string
	UploadDir          string
	MaxUploadBytes     int64
}

type Deps struct {
	Ledger   Ledger
	Accounts Accounts
	Issuer   *auth.Issuer
	Denylist auth.Denylist
	// Limiter throttles API calls per client IP; nil disables throttling.
	Limiter ratelimit.Allower
	// Ready reports whether the backing store is reachable.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server

	ledger         Ledger
	accounts       Accounts
	limiter        ratelimit.Allower
	ready          func(ctx context.Context) error
	maxUploadBytes int64

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = media.DefaultMaxBytes
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:         deps.Ledger,
		accounts:       deps.Accounts,
		limiter:        deps.Limiter,
		ready:          deps.Ready,
		maxUploadBytes: maxUpload,
	}

	detector := security.NewDetector()

	r := chi.NewRouter()
	r.Use(trace.NewMiddleware(detector.ExtractClientIP, logger).Middleware)
	r.Use(log.Middleware(logger))
	r.Use(log.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.UploadDir != "" {
		files := http.StripPrefix("/"+media.URLPrefix+"/", http.FileServer(http.Dir(cfg.UploadDir)))
		r.With(security.StaticAssetMiddleware(3600)).Get("/"+media.URLPrefix+"/*", noDirListing(files))
	}

	authenticated := auth.Middleware(deps.Issuer, deps.Denylist, writeError)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter, detector.ExtractClientIP, writeTooManyRequests))
		}
		r.Use(security.NoStore)

		r.Post("/api/signup", s.handleSignup)
		r.Post("/api/login", s.handleLogin)

		r.Group(func(pr chi.Router) {
			pr.Use(authenticated)

			pr.Post("/api/logout", s.handleLogout)
			pr.Get("/api/profile", s.handleProfile)
			pr.Get("/get-username", s.handleProfile)
			pr.Get("/api/user-data", s.handleUserData)
			pr.Get("/api/transactions", s.handleTransactions)
			pr.Get("/api/report", s.handleReport)
			pr.Post("/api/add-money", s.handleAddMoney)
			pr.Post("/api/add-expenditure", s.handleAddExpenditure)
			pr.Put("/api/update-settings", s.handleUpdateSettings)
			pr.Post("/api/upload-profile-pic", s.handleUploadProfilePic)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiResponse{Status: statusError, Message: "Route not found", Code: "not_found"})
	})

	s.Handler = r
	return s
}

// Shutdown stops the local rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if stopper, ok := s.limiter.(interface{ Stop() }); ok {
			stopper.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// noDirListing hides directory indexes of the upload folder.
func noDirListing(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}
}
