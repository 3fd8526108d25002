package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kcse-tutor/tutor/internal/handler"
	"github.com/kcse-tutor/tutor/internal/server/middleware"
	"github.com/kcse-tutor/tutor/internal/service"
	"github.com/kcse-tutor/tutor/internal/ui"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	StaticDir       string // empty serves the embedded placeholder page
	MaxBodySize     int64  // bytes
	VerifyPerMinute int
	LoginPerMinute  int
	TrustProxy      bool // take the client IP from X-Forwarded-For / X-Real-IP
	Version         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8000,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     50 * 1024 * 1024, // 50MB, photographed questions are large
		VerifyPerMinute: 20,
		LoginPerMinute:  10,
		Version:         "dev",
	}
}

// Server is the top-level HTTP server for the tutor. It owns the Chi router
// and the services behind the API.
type Server struct {
	cfg        Config
	router     chi.Router
	codes      *service.CodeService
	sessions   *service.SessionService
	answers    *service.AnswerService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, codes *service.CodeService, sessions *service.SessionService, answers *service.AnswerService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		codes:    codes,
		sessions: sessions,
		answers:  answers,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	// text/event-stream is left out so streamed answers are flushed as they arrive.
	r.Use(chimw.Compress(5, "application/json", "text/html", "text/css", "text/plain", "application/javascript"))
	r.Use(middleware.MaxBody(s.cfg.MaxBodySize))

	// --- Health checks ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.cfg.Version).ServeSpec)

	// --- API routes ---
	r.Route("/api", func(r chi.Router) {
		tutorHandler := handler.NewTutorHandler(s.answers, s.logger)
		accessHandler := handler.NewAccessHandler(s.codes)
		adminHandler := handler.NewAdminHandler(s.codes, s.sessions, s.logger)

		r.Post("/generate", tutorHandler.Generate)
		r.Post("/generate/stream", tutorHandler.GenerateStream)
		r.Get("/subjects", tutorHandler.Subjects)
		r.Post("/notes/extract", handler.NewNotesHandler().Extract)

		r.With(middleware.RateLimit(s.cfg.VerifyPerMinute)).Post("/verify-code", accessHandler.VerifyCode)

		r.Route("/admin", func(r chi.Router) {
			r.With(middleware.RateLimit(s.cfg.LoginPerMinute)).Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(s.sessions))

				r.Post("/logout", adminHandler.Logout)
				r.Get("/codes", adminHandler.ListCodes)
				r.Post("/generate-code", adminHandler.GenerateCode)
				r.Post("/delete-code", adminHandler.DeleteCode)
			})
		})
	})

	// --- Static UI ---
	s.mountUI(r)

	s.router = r
}

// mountUI serves the frontend with a fallback to index.html for client-side
// routes. Unknown /api paths still 404 as JSON.
func (s *Server) mountUI(r chi.Router) {
	var (
		uiFS fs.FS
		err  error
	)
	if s.cfg.StaticDir != "" {
		uiFS = os.DirFS(s.cfg.StaticDir)
	} else {
		uiFS, err = fs.Sub(ui.Dist, "dist")
		if err != nil {
			s.logger.Error("failed to create sub filesystem for UI", "error", err)
			return
		}
	}

	fileServer := http.FileServer(http.FS(uiFS))
	spaHandler := func(w http.ResponseWriter, r *http.Request) {
		f, err := uiFS.Open("index.html")
		if err != nil {
			http.Error(w, "UI not available", http.StatusNotFound)
			return
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			http.Error(w, "UI not available", http.StatusNotFound)
			return
		}
		rs, ok := f.(io.ReadSeeker)
		if !ok {
			http.Error(w, "UI not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, "index.html", stat.ModTime(), rs)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.Method != http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Not found"}`))
			return
		}
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" && name != "index.html" {
			if st, err := fs.Stat(uiFS, name); err == nil && !st.IsDir() {
				fileServer.ServeHTTP(w, r)
				return
			}
		}
		spaHandler(w, r)
	})
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the code store is
// reachable, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"codes": "ok"}

	if err := s.codes.Ready(r.Context()); err != nil {
		checks["codes"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// sweepSessions drops expired admin sessions once a minute until ctx is done.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sessions.Sweep(now); n > 0 {
				s.logger.Debug("expired admin sessions removed", "count", n)
			}
		}
	}
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: answers are bounded by the model timeout and
		// streams must stay open while chunks arrive.
		IdleTimeout: 120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.sessions.TTL() > 0 {
		go s.sweepSessions(ctx)
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "code_mode", s.codes.Mode())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
