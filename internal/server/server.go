package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/plannr/internal/auth"
	"github.com/dukerupert/plannr/internal/database"
	"github.com/dukerupert/plannr/internal/handler"
	"github.com/dukerupert/plannr/internal/middleware"
	"github.com/dukerupert/plannr/internal/store"
	ws "github.com/dukerupert/plannr/internal/websocket"
)

// Options carries the settings the router needs beyond the database.
type Options struct {
	Tokens         *auth.Tokens
	LoginRateLimit int
	AllowedOrigins []string
	// Now is the clock used for default calendar months and export stamps.
	Now func() time.Time
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tokens      *auth.Tokens
	userStore   *store.UserStore
	authH       *handler.AuthHandler
	labelH      *handler.LabelHandler
	eventH      *handler.EventHandler
	recurringH  *handler.RecurringEventHandler
	calendarH   *handler.CalendarHandler
	rateLimiter *middleware.RateLimiter
	origins     []string
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	labelStore := store.NewLabelStore(db)
	eventStore := store.NewEventStore(db)
	recurringStore := store.NewRecurringEventStore(db)

	limit := opts.LoginRateLimit
	if limit <= 0 {
		limit = 10
	}

	return &Server{
		db:          db,
		hub:         hub,
		tokens:      opts.Tokens,
		userStore:   userStore,
		authH:       handler.NewAuthHandler(userStore, opts.Tokens, logger.With("component", "auth")),
		labelH:      handler.NewLabelHandler(labelStore, hub, logger.With("component", "label")),
		eventH:      handler.NewEventHandler(eventStore, hub, logger.With("component", "event")),
		recurringH:  handler.NewRecurringEventHandler(recurringStore, hub, logger.With("component", "recurring_event")),
		calendarH:   handler.NewCalendarHandler(userStore, labelStore, eventStore, recurringStore, opts.Now, logger.With("component", "calendar")),
		rateLimiter: middleware.NewRateLimiter(limit, time.Minute),
		origins:     opts.AllowedOrigins,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	limited := middleware.RateLimit(s.rateLimiter)
	outerMux.Handle("POST /api/auth/register", limited(http.HandlerFunc(s.authH.Register)))
	outerMux.Handle("POST /api/auth/login", limited(http.HandlerFunc(s.authH.Login)))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return middleware.RequestID(logged)
}

type healthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int64  `json:"schema_version,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, code := healthResponse{Status: "ok"}, http.StatusOK
	v, err := database.SchemaVersion(r.Context(), s.db)
	if err != nil {
		s.logger.Error("health check", "error", err)
		resp, code = healthResponse{Status: "unavailable"}, http.StatusServiceUnavailable
	}
	resp.SchemaVersion = v
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("PUT /api/me/timezone", s.authH.UpdateTimezone)

	// Labels
	mux.HandleFunc("GET /api/labels", s.labelH.List)
	mux.HandleFunc("POST /api/labels", s.labelH.Create)
	mux.HandleFunc("PUT /api/labels/{id}", s.labelH.Update)
	mux.HandleFunc("DELETE /api/labels/{id}", s.labelH.Delete)

	// One-off events
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)
	mux.HandleFunc("POST /api/events/{id}/complete", s.eventH.Complete)
	mux.HandleFunc("DELETE /api/events/{id}/complete", s.eventH.Uncomplete)
	mux.HandleFunc("POST /api/events/{id}/confirm", s.eventH.Confirm)

	// Recurring events
	mux.HandleFunc("GET /api/recurring-events", s.recurringH.List)
	mux.HandleFunc("POST /api/recurring-events", s.recurringH.Create)
	mux.HandleFunc("GET /api/recurring-events/{id}", s.recurringH.Get)
	mux.HandleFunc("PUT /api/recurring-events/{id}", s.recurringH.Update)
	mux.HandleFunc("DELETE /api/recurring-events/{id}", s.recurringH.Delete)
	mux.HandleFunc("POST /api/recurring-events/{id}/confirm", s.recurringH.Confirm)
	mux.HandleFunc("POST /api/recurring-events/{id}/skip-days", s.recurringH.AddSkipDay)
	mux.HandleFunc("DELETE /api/recurring-events/{id}/skip-days/{date}", s.recurringH.RemoveSkipDay)

	// Calendar
	mux.HandleFunc("GET /api/calendar", s.calendarH.View)
	mux.HandleFunc("GET /api/calendar.ics", s.calendarH.Export)
	mux.HandleFunc("GET /api/occurrences", s.calendarH.Occurrences)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.origins, s.logger.With("component", "websocket")))
}
