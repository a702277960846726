package gameserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/kater/internal/game/action"
	"github.com/cory-johannsen/kater/internal/game/scheduler"
)

const (
	shutdownTimeout  = 5 * time.Second
	readinessTimeout = 2 * time.Second
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMiddleware appends mw to the router's middleware stack.
func WithMiddleware(mw func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.middlewares = append(s.middlewares, mw) }
}

// WithMetricsGatherer serves g at /metrics.
func WithMetricsGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) { s.gatherer = g }
}

// WithReadiness makes /readyz report check's result.
func WithReadiness(check func(ctx context.Context, timeout time.Duration) error) ServerOption {
	return func(s *Server) { s.ready = check }
}

// WithLogLevel serves h at /api/v1/log/level for reading and changing the log
// level.
func WithLogLevel(h http.Handler) ServerOption {
	return func(s *Server) { s.logLevel = h }
}

// Server is the HTTP and websocket front of one Session.
type Server struct {
	session     *Session
	hub         *Hub
	logger      *zap.Logger
	middlewares []func(http.Handler) http.Handler
	gatherer    prometheus.Gatherer
	ready       func(context.Context, time.Duration) error
	logLevel    http.Handler
	upgrader    websocket.Upgrader
	handler     http.Handler
	httpServer  *http.Server
}

// NewServer builds the router for session and binds it to addr.
//
// Precondition: session, hub and logger must not be nil.
func NewServer(addr string, session *Session, hub *Hub, logger *zap.Logger, opts ...ServerOption) *Server {
	s := &Server{
		session: session,
		hub:     hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range s.middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/ws", s.serveWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/view", s.handleView)
		r.Get("/resources", s.handleResources)
		r.Get("/inventory", s.handleInventory)
		r.Get("/notifications", s.handleNotifications)
		r.Get("/actions", s.handleActions)
		r.Get("/actions/{category}", s.handleCategory)
		r.Post("/actions/{category}/{tier}", s.handleStart)
		r.Post("/save", s.handleSave)
		if s.logLevel != nil {
			r.Handle("/log/level", s.logLevel)
		}
	})
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the listener down, waiting up to shutdownTimeout for requests.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context(), readinessTimeout); err != nil {
			s.logger.Warn("not ready", zap.Error(err))
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.View())
}

func (s *Server) handleResources(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.View().Resources)
}

func (s *Server) handleInventory(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.View().Inventory)
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.session.View().Notifications)
}

type categoryBody struct {
	Status ActionView `json:"status"`
	Tiers  []tierBody `json:"tiers"`
}

func (s *Server) handleActions(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]categoryBody, action.NumCategories)
	for _, c := range action.Categories {
		out[c.String()] = categoryBody{
			Status: s.session.Status(c),
			Tiers:  tierBodies(s.session.Catalog().Tiers(c)),
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	c, err := action.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, categoryBody{
		Status: s.session.Status(c),
		Tiers:  tierBodies(s.session.Catalog().Tiers(c)),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	c, err := action.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	tier, err := strconv.Atoi(chi.URLParam(r, "tier"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "tier must be an integer")
		return
	}

	pa, err := s.session.TryStart(c, tier)
	if err != nil {
		var rej *scheduler.RejectedError
		switch {
		case errors.As(err, &rej):
			s.respondJSON(w, http.StatusConflict, rejectionBody(rej))
		case errors.Is(err, action.ErrUnknownTier), errors.Is(err, action.ErrUnknownCategory):
			s.respondError(w, http.StatusNotFound, err.Error())
		default:
			s.logger.Error("starting action", zap.Stringer("category", c), zap.Int("tier", tier), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	s.respondJSON(w, http.StatusCreated, startedBody(pa))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Save(r.Context()); err != nil {
		s.logger.Error("manual save", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "save failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade", zap.Error(err))
		return
	}
	c := newClient(s.hub, s.session, conn, s.logger)
	if !s.hub.join(c) {
		_ = conn.Close()
		return
	}
	c.reply(Envelope{Type: MsgView, Data: s.session.View()})
	go c.writePump()
	go c.readPump()
}
