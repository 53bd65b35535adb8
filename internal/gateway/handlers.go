package gateway

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"energy-dashboard/internal/dashboard"
	"energy-dashboard/internal/exporter"
	"energy-dashboard/internal/logger"
	"energy-dashboard/internal/marketdata/refresh"
	"energy-dashboard/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.health.ServeHTTP(w, r)
}

type loginRequest struct {
	Login    string `json:"login" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
	Code     string `json:"code" validate:"omitempty,numeric,len=6"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, s.logger, fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		renderError(w, r, s.logger, validationError(err))
		return
	}
	if err := s.auth.Check(req.Login, req.Password, req.Code); err != nil {
		args := append(logger.LogWithTrace(r.Context()), slog.String("reason", err.Error()))
		s.logger.WarnContext(r.Context(), "login rejected", args...)
		renderError(w, r, s.logger, err)
		return
	}

	sess := s.sessions.Create(req.Login)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	render.JSON(w, r, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := SessionFrom(r.Context()); ok {
		s.sessions.Revoke(sess.Token)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	Refresh  refresh.Status `json:"refresh"`
	Push     HubStats       `json:"push"`
	Sessions int            `json:"sessions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, statusResponse{
		Refresh:  s.refresher.Status(),
		Push:     s.hub.Stats(),
		Sessions: s.sessions.Len(),
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, dashboard.AvailableOptions())
}

type productsResponse struct {
	Operation  string          `json:"operation"`
	Products   []model.Product `json:"products"`
	SnapshotAt time.Time       `json:"snapshot_at"`
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		renderError(w, r, s.logger, err)
		return
	}
	batch := s.snapshots.Load()
	resp := productsResponse{
		Operation: q.Operation,
		Products:  dashboard.Products(batch, q.Operation),
	}
	if batch != nil {
		resp.SnapshotAt = batch.FetchedAt
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		renderError(w, r, s.logger, err)
		return
	}

	start := time.Now()
	view, err := dashboard.Build(s.snapshots.Load(), q, dashboard.LocalNow(s.now(), s.loc))
	if s.metrics != nil {
		s.metrics.DashboardBuildDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		renderError(w, r, s.logger, err)
		return
	}
	render.JSON(w, r, view)
}

// handleExport serves /export/{product}.{csv|xlsx|parquet}.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	dot := strings.LastIndexByte(file, '.')
	if dot <= 0 {
		renderError(w, r, s.logger, fmt.Errorf("%w: want {product}.{format}, got %q", errInvalidRequest, file))
		return
	}
	id, ext := file[:dot], file[dot+1:]

	format, err := exporter.ParseFormat(ext)
	if err != nil {
		renderError(w, r, s.logger, err)
		return
	}
	q, err := s.parseQuery(r)
	if err != nil {
		renderError(w, r, s.logger, err)
		return
	}
	batch := s.snapshots.Load()
	if batch == nil {
		renderError(w, r, s.logger, ErrNoSnapshot)
		return
	}

	series, err := dashboard.Product(batch, q, id, dashboard.LocalNow(s.now(), s.loc))
	if err != nil {
		renderError(w, r, s.logger, err)
		return
	}

	// Rendered into memory so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := exporter.Write(&buf, format, series); err != nil {
		renderError(w, r, s.logger, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ExportsTotal.WithLabelValues(string(format)).Inc()
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", exporter.Filename(series.Product.ID, q.Timeframe, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

type refreshResponse struct {
	Queued bool `json:"queued"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	queued := s.refresher.Trigger()
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, refreshResponse{Queued: queued})
}
