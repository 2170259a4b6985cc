package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/YumaSeno/AIDeveloper/internal/config"
	"github.com/YumaSeno/AIDeveloper/internal/model"
	"github.com/YumaSeno/AIDeveloper/internal/natsbus"
	"github.com/YumaSeno/AIDeveloper/internal/orchestrator"
	"github.com/YumaSeno/AIDeveloper/internal/store"
)

//go:embed static
var staticFiles embed.FS

// RunState is the live view of the run being observed.
type RunState interface {
	Status() orchestrator.Status
	Team() []model.AgentProfile
}

type Server struct {
	store     *store.Store
	nats      *natsbus.Client
	run       RunState
	project   string
	hub       *Hub
	auth      *authenticator
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

// NewServer builds the observer UI. client may be nil, in which case the
// websocket stream stays silent.
func NewServer(s *store.Store, client *natsbus.Client, run RunState, project string, cfg config.WebConfig, version string) (*Server, error) {
	auth, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:     s,
		nats:      client,
		run:       run,
		project:   project,
		hub:       NewHub(),
		auth:      auth,
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	// Subscribe to NATS events and broadcast to WebSocket
	s.subscribeEvents()

	handler, err := s.Handler()
	if err != nil {
		return err
	}
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler assembles the routes behind the auth middleware.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	// Auth endpoints (public)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/check", s.handleAuthCheck)

	s.registerAPI(mux)

	mux.HandleFunc("/api/ws", s.handleWebSocket)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("static fs: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return s.withMiddleware(mux), nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && s.auth.enabled() {
			switch r.URL.Path {
			case "/api/login", "/api/logout", "/api/auth/check":
			default:
				if !s.auth.authorized(r) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.auth.enabled() {
		jsonResponse(w, map[string]string{"status": "ok"})
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !s.auth.verify(body.Password) {
		slog.Warn("web login rejected", "remote", r.RemoteAddr)
		jsonError(w, "invalid password", http.StatusUnauthorized)
		return
	}

	token, err := s.auth.issue()
	if err != nil {
		jsonError(w, "session creation failed", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, token)
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	// No auth configured, the UI skips login
	if !s.auth.enabled() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.auth.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) subscribeEvents() {
	if s.nats == nil {
		return
	}
	// Forward the project's events to WebSocket clients as they arrive
	_, err := s.nats.Subscribe(natsbus.TopicProjectAll(s.project), func(msg *nats.Msg) {
		var env natsbus.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			slog.Warn("invalid NATS event payload", "error", err)
			return
		}
		s.hub.Broadcast(env)
	})
	if err != nil {
		slog.Error("web server nats subscription failed", "error", err)
	}
}
