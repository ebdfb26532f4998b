package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"auracal/internal/auth"
	"auracal/internal/capture"
	"auracal/internal/config"
	"auracal/internal/daily"
	appLog "auracal/internal/log"
	"auracal/internal/memorial"
)

// Options wires the server to the rest of the application.
type Options struct {
	Config *config.Config
	Store  *memorial.Store
	Daily  *daily.Service
	Poster *capture.Poster
}

// Server provides the mobile page, the poster document and the JSON API.
type Server struct {
	cfg    *config.Config
	store  *memorial.Store
	daily  *daily.Service
	poster *capture.Poster
	pages  *pages
	mux    *http.ServeMux

	// baseCtx parents background work started by requests (retry), so it
	// outlives the request but not the server.
	baseCtx context.Context
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	poster := opts.Poster
	if poster == nil {
		poster = capture.NewPoster(nil, capture.CaptureOptions{})
	}

	s := &Server{
		cfg:     cfg,
		store:   opts.Store,
		daily:   opts.Daily,
		poster:  poster,
		pages:   newPages(),
		mux:     http.NewServeMux(),
		baseCtx: context.Background(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if creds := s.credentials(); creds.Enabled() {
		appLog.Info("HTTP basic auth enabled", "user", creds.Username, "hashed", creds.PasswordHash != "")
		h = basicAuthMiddleware(creds, h)
	}
	return logRequests(h)
}

func (s *Server) credentials() auth.Credentials {
	if s.cfg.BasicAuth == nil {
		return auth.Credentials{}
	}
	return auth.Credentials{
		Username:     s.cfg.BasicAuth.Username,
		Password:     s.cfg.BasicAuth.Password,
		PasswordHash: s.cfg.BasicAuth.PasswordHash,
	}
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func basicAuthMiddleware(creds auth.Credentials, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health is always unauthenticated.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !creds.Check(u, p) {
			if ok {
				appLog.Info("basic auth rejected", "remote", r.RemoteAddr, "user", u)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="Aura Calendar", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).String(),
		)
	})
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /poster", s.handlePosterPage)

	s.mux.HandleFunc("GET /api/daily", s.handleDaily)
	s.mux.HandleFunc("POST /api/daily/retry", s.handleDailyRetry)
	s.mux.HandleFunc("GET /api/banner", s.handleBanner)

	s.mux.HandleFunc("GET /api/memorials", s.handleListMemorials)
	s.mux.HandleFunc("POST /api/memorials", s.handleAddMemorial)
	s.mux.HandleFunc("GET /api/memorials/nearest", s.handleNearest)
	s.mux.HandleFunc("GET /api/memorials/{id}/upcoming", s.handleUpcoming)
	s.mux.HandleFunc("DELETE /api/memorials/{id}", s.handleDeleteMemorial)
	s.mux.HandleFunc("POST /api/memorials/{id}/delete", s.handleDeleteMemorial)
	s.mux.HandleFunc("GET /api/memorials.ics", s.handleExportICS)
	s.mux.HandleFunc("POST /api/memorials/import", s.handleImportICS)

	s.mux.HandleFunc("POST /api/poster", s.handleCapturePoster)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
