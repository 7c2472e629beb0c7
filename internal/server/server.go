package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorewheel/internal/handler"
	"github.com/dukerupert/chorewheel/internal/lifecycle"
	"github.com/dukerupert/chorewheel/internal/media"
	"github.com/dukerupert/chorewheel/internal/middleware"
	"github.com/dukerupert/chorewheel/internal/scheduler"
	"github.com/dukerupert/chorewheel/internal/store"
	ws "github.com/dukerupert/chorewheel/internal/websocket"
)

// Config carries the knobs the server and its schedulers need.
type Config struct {
	AssignHour int
	CloseHour  int
	AssignSeed *int64
	Media      media.Config
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	userH        *handler.UserHandler
	choreH       *handler.ChoreHandler
	assignmentH  *handler.AssignmentHandler
	locationH    *handler.LocationHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	scheduler    *scheduler.Scheduler
	cron         *scheduler.Cron
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	choreStore := store.NewChoreStore(db)
	assignmentStore := store.NewAssignmentStore(db)
	locationStore := store.NewLocationStore(db)

	mediaStore := media.New(cfg.Media)
	if !mediaStore.Enabled() {
		logger.Warn("media storage not configured, evidence uploads disabled")
	}

	svc := lifecycle.NewService(assignmentStore, mediaStore, hub, logger.With("component", "lifecycle"))

	schedOpts := []scheduler.Option{scheduler.WithHub(hub)}
	if cfg.AssignSeed != nil {
		schedOpts = append(schedOpts, scheduler.WithSeed(*cfg.AssignSeed))
	}
	sched := scheduler.New(choreStore, assignmentStore, userStore, logger.With("component", "scheduler"), schedOpts...)

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		userH:        handler.NewUserHandler(userStore, logger.With("component", "user")),
		choreH:       handler.NewChoreHandler(choreStore, locationStore, logger.With("component", "chore")),
		assignmentH:  handler.NewAssignmentHandler(assignmentStore, svc, logger.With("component", "assignment")),
		locationH:    handler.NewLocationHandler(locationStore, logger.With("component", "location")),
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(),
		scheduler:    sched,
		cron:         scheduler.NewCron(sched, cfg.AssignHour, cfg.CloseHour),
		logger:       logger,
	}
}

// Cron returns the daily scheduler loop for startup and shutdown.
func (s *Server) Cron() *scheduler.Cron {
	return s.cron
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// User management (parent only)
	mux.Handle("POST /api/users", middleware.RequireParent(http.HandlerFunc(s.userH.Create)))
	mux.Handle("DELETE /api/users/{id}", middleware.RequireParent(http.HandlerFunc(s.userH.Deactivate)))
	mux.HandleFunc("GET /api/children", s.userH.ListChildren)

	// Chore management (parent only)
	mux.Handle("POST /api/chores", middleware.RequireParent(http.HandlerFunc(s.choreH.Create)))
	mux.Handle("PUT /api/chores/{id}", middleware.RequireParent(http.HandlerFunc(s.choreH.Update)))
	mux.Handle("DELETE /api/chores/{id}", middleware.RequireParent(http.HandlerFunc(s.choreH.Delete)))
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)

	// Assignments and lifecycle
	mux.HandleFunc("GET /api/children/{id}/assignments", s.assignmentH.ListForChild)
	mux.HandleFunc("GET /api/assignments/{id}", s.assignmentH.Get)
	mux.HandleFunc("PATCH /api/assignments/{id}/ready-for-approval", s.assignmentH.MarkReady)
	mux.HandleFunc("PATCH /api/assignments/{id}/mark-incomplete", s.assignmentH.MarkIncomplete)
	mux.HandleFunc("PATCH /api/assignments/{id}/approve", s.assignmentH.Approve)

	// Evidence
	mux.HandleFunc("POST /api/assignments/{id}/evidence", s.assignmentH.AttachEvidence)
	mux.HandleFunc("POST /api/assignments/{id}/evidence/batch", s.assignmentH.AttachEvidenceBatch)
	mux.HandleFunc("GET /api/assignments/{id}/evidence", s.assignmentH.ListEvidence)
	mux.HandleFunc("GET /api/assignments/{id}/evidence/{evidence_id}", s.assignmentH.GetEvidence)
	mux.HandleFunc("DELETE /api/assignments/{id}/evidence/{evidence_id}", s.assignmentH.DeleteEvidence)

	// Locations and equipment
	mux.Handle("POST /api/locations", middleware.RequireParent(http.HandlerFunc(s.locationH.CreateLocation)))
	mux.HandleFunc("GET /api/locations", s.locationH.ListLocations)
	mux.Handle("POST /api/equipment", middleware.RequireParent(http.HandlerFunc(s.locationH.CreateEquipment)))
	mux.HandleFunc("GET /api/equipment", s.locationH.ListEquipment)

	// Manual scheduler triggers (parent only)
	mux.Handle("POST /api/scheduler/run", middleware.RequireParent(http.HandlerFunc(s.runPassHandler)))
	mux.Handle("POST /api/scheduler/close", middleware.RequireParent(http.HandlerFunc(s.closeSweepHandler)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.logger.With("component", "websocket")))
}

func (s *Server) runPassHandler(w http.ResponseWriter, r *http.Request) {
	sum := s.scheduler.RunPass(r.Context(), time.Now().UTC())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"created":            sum.Created,
		"skipped_duplicates": sum.SkippedDuplicates,
		"failures":           sum.Failures,
	})
}

func (s *Server) closeSweepHandler(w http.ResponseWriter, r *http.Request) {
	closed, err := s.scheduler.CloseOverdue(r.Context(), time.Now().UTC())
	if err != nil {
		s.logger.Error("close sweep", "error", err)
		http.Error(w, "close sweep failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"closed": closed})
}
