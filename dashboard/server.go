package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/seven-shadow/sentinel-eye/config"
	"github.com/seven-shadow/sentinel-eye/errcode"
)

// maxConfigBodyBytes bounds a PUT config request body.
const maxConfigBodyBytes = 1 << 20

// Server exposes the cached snapshot, scheduler status, manual refresh,
// config read/write, health, metrics, and the static dashboard assets.
type Server struct {
	listen    string
	scheduler *Scheduler
	builder   *Builder
	assetRoot string
	apiToken  string
	logger    *slog.Logger
	metrics   *Metrics

	mu       sync.Mutex
	resolved *config.Resolved

	httpServer *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAssetRoot sets the static asset directory. Empty disables asset
// serving.
func WithAssetRoot(root string) ServerOption {
	return func(s *Server) {
		s.assetRoot = root
	}
}

// WithAPIToken requires a bearer token on the /api/v1 routes. Empty
// leaves the API open.
func WithAPIToken(token string) ServerOption {
	return func(s *Server) {
		s.apiToken = token
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithServerMetrics wires request accounting and the /metrics endpoint.
func WithServerMetrics(m *Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates the HTTP surface over a scheduler and its builder.
func NewServer(listen string, scheduler *Scheduler, builder *Builder, resolved *config.Resolved, opts ...ServerOption) *Server {
	s := &Server{
		listen:    listen,
		scheduler: scheduler,
		builder:   builder,
		resolved:  resolved,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/v1/dashboard/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/api/v1/dashboard/snapshot", s.withAuth(s.handleSnapshot))
	mux.HandleFunc("/api/v1/dashboard/refresh", s.withAuth(s.handleRefresh))
	mux.HandleFunc("/api/v1/dashboard/config", s.withAuth(s.handleConfig))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/", s.handleAssets)
	return s.withRequestLog(mux)
}

// Start binds the listener and serves until Shutdown. An occupied port
// maps to E_DASHBOARD_PORT_IN_USE, any other bind failure to
// E_DASHBOARD_SERVER_START.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return errcode.New(errcode.DashboardPortInUse, "address %s is already in use", s.listen).
				WithRemediation("stop the other process or pass a different --listen address")
		}
		return errcode.Wrap(errcode.DashboardServerStart, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errcode.Wrap(errcode.DashboardServerStart, err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the scheduler.
func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.Stop(ctx)
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Debug("request handled",
			"requestId", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started))
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.URL.Path, http.StatusText(rec.status))
		}
	})
}

// withAuth enforces the optional API bearer token.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" && r.Header.Get("Authorization") != "Bearer "+s.apiToken {
			writeError(w, errcode.New(errcode.DashboardAuthRequired, "missing or invalid API token").
				WithRemediation("send Authorization: Bearer <token>"))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	status := s.scheduler.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"ready":         status.Ready,
		"stale":         status.Stale,
		"generatedAt":   status.GeneratedAt,
		"nextRefreshAt": status.NextRefreshAt,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	snapshot := s.scheduler.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   s.scheduler.Status(),
		"snapshot": snapshot,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		resolved := s.resolved
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, configBody(resolved))
	case http.MethodPut:
		s.handleConfigPut(w, r)
	default:
		writeError(w, errcode.New(errcode.DashboardMethodNotAllowed, "%s not allowed on %s", r.Method, r.URL.Path))
	}
}

// handleConfigPut validates and persists a full replacement config, then
// swaps it into the builder and triggers a refresh.
func (s *Server) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBodyBytes))
	if err != nil {
		writeError(w, errcode.Wrap(errcode.ArgInvalid, err))
		return
	}
	var payload struct {
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Config) == 0 {
		writeError(w, errcode.New(errcode.ArgInvalid, "request body must be {\"config\": {...}}"))
		return
	}
	cfg, err := config.Parse(payload.Config)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	path := s.resolved.Path
	s.mu.Unlock()
	if err := config.Save(path, cfg); err != nil {
		writeError(w, err)
		return
	}
	resolved := &config.Resolved{Config: cfg, Path: path, Source: config.SourceFile}

	s.mu.Lock()
	s.resolved = resolved
	s.mu.Unlock()
	s.builder.SetConfig(cfg)
	go s.scheduler.Refresh(context.Background())

	s.logger.Info("config replaced", "path", path)
	writeJSON(w, http.StatusOK, configBody(resolved))
}

// handleAssets serves the static dashboard, falling back to index.html
// for client-side routes. Paths that escape the asset root are refused.
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.assetRoot == "" {
		writeError(w, errcode.New(errcode.DashboardAssetsMissing, "no asset root configured").
			WithRemediation("pass --asset-root pointing at the built dashboard"))
		return
	}
	root, err := filepath.Abs(s.assetRoot)
	if err != nil {
		writeError(w, errcode.Wrap(errcode.DashboardAssetsMissing, err))
		return
	}
	if _, err := os.Stat(root); err != nil {
		writeError(w, errcode.New(errcode.DashboardAssetsMissing, "asset root %s is not readable", s.assetRoot))
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/")
	if rel == "" {
		rel = "index.html"
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	clean, err := filepath.Abs(target)
	if err != nil || (clean != root && !strings.HasPrefix(clean, root+string(filepath.Separator))) {
		writeError(w, errcode.New(errcode.DashboardAssetForbidden, "path escapes the asset root"))
		return
	}

	if info, err := os.Stat(clean); err != nil || info.IsDir() {
		clean = filepath.Join(root, "index.html")
		if _, err := os.Stat(clean); err != nil {
			writeError(w, errcode.New(errcode.DashboardAssetsMissing, "index.html not found under %s", s.assetRoot))
			return
		}
	}
	http.ServeFile(w, r, clean)
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	writeError(w, errcode.New(errcode.DashboardMethodNotAllowed, "%s not allowed on %s", r.Method, r.URL.Path))
	return false
}

func configBody(resolved *config.Resolved) map[string]any {
	return map[string]any{
		"configPath": resolved.Path,
		"source":     resolved.Source,
		"config":     resolved.Config,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a coded error onto the wire error shape with the
// matching HTTP status.
func writeError(w http.ResponseWriter, err error) {
	se := newSectionError(err)
	writeJSON(w, httpStatusFor(se.Code), se)
}

func httpStatusFor(code string) int {
	switch code {
	case errcode.DashboardMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case errcode.DashboardAssetForbidden:
		return http.StatusForbidden
	case errcode.DashboardAssetsMissing, errcode.ConfigNotFound:
		return http.StatusNotFound
	case errcode.ArgRequired, errcode.ArgInvalid, errcode.ArgUnknown,
		errcode.ConfigInvalid, errcode.ConfigInvalidJSON:
		return http.StatusBadRequest
	case errcode.AuthMissing, errcode.DashboardAuthRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
