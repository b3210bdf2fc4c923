// Package server exposes the session history catalog and the chat
// executor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"cc_session_hub/internal/config"
	"cc_session_hub/internal/history"
	"cc_session_hub/internal/manager"
	"cc_session_hub/internal/provider"
)

const (
	shutdownTimeout   = 5 * time.Second
	defaultKeepAlive  = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// App is the state shared by every handler
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Catalog   *history.Catalog
	Manager   *manager.Manager
	Providers *provider.Registry
}

// Server routes HTTP requests to the App
type Server struct {
	cfg       *config.Config
	log       *zap.Logger
	catalog   *history.Catalog
	manager   *manager.Manager
	providers *provider.Registry

	watchOpts history.WatchOptions
	keepAlive time.Duration

	mux *http.ServeMux
}

// New builds a server over app. Nil fields get empty defaults.
func New(app App) *Server {
	s := &Server{
		cfg:       app.Config,
		log:       app.Log,
		catalog:   app.Catalog,
		manager:   app.Manager,
		providers: app.Providers,
		keepAlive: defaultKeepAlive,
		mux:       http.NewServeMux(),
	}
	if s.cfg == nil {
		s.cfg = config.DefaultConfig()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.catalog == nil {
		s.catalog = history.NewCatalog(s.log, s.cfg.Roots())
	}
	if s.manager == nil {
		s.manager = manager.New(s.log)
	}
	if s.providers == nil {
		s.providers = provider.NewRegistry()
	}
	s.watchOpts = s.cfg.Watch
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("GET /api/projects/{encoded_name}/histories", s.handleListHistories)
	s.mux.HandleFunc("GET /api/projects/{encoded_name}/histories/{session_id}", s.handleGetConversation)
	s.mux.HandleFunc("GET /api/projects/{encoded_name}/active-session", s.handleActiveSession)

	s.mux.HandleFunc("POST /api/chat/native", s.handleChat)
	s.mux.HandleFunc("GET /api/chat/status", s.handleChatStatus)
	s.mux.HandleFunc("POST /api/abort/{request_id}", s.handleAbort)

	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/active", s.handleActiveProcesses)
	s.mux.HandleFunc("DELETE /api/sessions/{session_id}", s.handleDeleteSession)

	s.mux.HandleFunc("GET /api/sse/{encoded_project}/{session_id}", s.handleSSE)
}

// Handler returns the routes wrapped in CORS and request logging
func (s *Server) Handler() http.Handler {
	return CORS(s.logRequests(s.mux))
}

// Serve listens on addr until ctx ends, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve over an existing listener. It also runs the
// session janitor for as long as the server is up.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	if interval := s.cfg.Sessions.CleanupInterval; interval > 0 {
		go s.manager.RunJanitor(janitorCtx, interval, s.cfg.Sessions.MaxAge)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("Graceful shutdown timed out", zap.Error(err))
		_ = srv.Close()
	}
	<-errCh
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CORS allows browser clients on other origins
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush keeps streaming responses working behind the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.log.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
