package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"energy-dashboard/internal/auth"
	"energy-dashboard/internal/marketdata/refresh"
	"energy-dashboard/internal/metrics"
	"energy-dashboard/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
)

// Refresher is the part of the refresh loop the API drives.
type Refresher interface {
	Status() refresh.Status
	Trigger() bool
}

// Deps wires a Server. Snapshots, Refresher, Auth, Sessions and Hub are
// required.
type Deps struct {
	Snapshots model.SnapshotReader
	Refresher Refresher
	Auth      *auth.Authenticator
	Sessions  *auth.Sessions
	Hub       *Hub

	Health   *metrics.HealthStatus
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Location       *time.Location
	RequestTimeout time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server holds the HTTP handlers of the dashboard API.
type Server struct {
	snapshots model.SnapshotReader
	refresher Refresher
	auth      *auth.Authenticator
	sessions  *auth.Sessions
	hub       *Hub

	health   *metrics.HealthStatus
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	loc            *time.Location
	requestTimeout time.Duration
	allowedOrigins []string
	logger         *slog.Logger
	validate       *validator.Validate
	now            func() time.Time
}

// NewServer creates a server from d, filling defaults.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.Health == nil {
		d.Health = metrics.NewHealthStatus()
	}
	return &Server{
		snapshots:      d.Snapshots,
		refresher:      d.Refresher,
		auth:           d.Auth,
		sessions:       d.Sessions,
		hub:            d.Hub,
		health:         d.Health,
		metrics:        d.Metrics,
		gatherer:       d.Gatherer,
		loc:            d.Location,
		requestTimeout: d.RequestTimeout,
		allowedOrigins: d.AllowedOrigins,
		logger:         d.Logger.With(slog.String("component", "api")),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		now:            time.Now,
	}
}

// Routes builds the router.
//
//	GET  /api/v1/health
//	POST /api/v1/login
//	POST /api/v1/logout
//	GET  /api/v1/status
//	GET  /api/v1/options
//	GET  /api/v1/products?op=
//	GET  /api/v1/dashboard?op=&tf=&ind=&range=&a=&b=
//	GET  /api/v1/export/{file}?op=&tf=&ind=&range=
//	POST /api/v1/refresh
//	GET  /ws?last_seq=
//	GET  /metrics
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(traceRequest)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Handle("/metrics", metrics.Handler(s.gatherer))
	r.With(s.requireSession).Get("/ws", s.hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", s.handleHealth)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Post("/logout", s.handleLogout)
			r.Get("/status", s.handleStatus)
			r.Get("/options", s.handleOptions)
			r.Get("/products", s.handleProducts)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/export/{file}", s.handleExport)
			r.Post("/refresh", s.handleRefresh)
		})
	})
	return r
}
