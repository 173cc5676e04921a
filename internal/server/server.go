package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobeyondidentity/gas-dashboard/internal/catalog"
	"github.com/gobeyondidentity/gas-dashboard/internal/config"
	"github.com/gobeyondidentity/gas-dashboard/internal/cronsync"
	"github.com/gobeyondidentity/gas-dashboard/internal/google"
	syncengine "github.com/gobeyondidentity/gas-dashboard/internal/sync"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Version is reported by /health and /version
const Version = "0.2.0"

// Server represents the HTTP server for the dashboard API
type Server struct {
	httpServer   *http.Server
	logger       *logrus.Logger
	config       *config.Config
	syncEngine   SyncEngine
	scriptStats  MetricsSource
	orchestrator *cronsync.Orchestrator
	scheduler    *Scheduler
	metrics      *Metrics
	startedAt    time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	LastSync    *time.Time        `json:"last_sync,omitempty"`
	NextSync    *time.Time        `json:"next_sync,omitempty"`
	SyncEnabled bool              `json:"sync_enabled"`
}

// ContentSyncResponse is returned by the content sync route
type ContentSyncResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Found     int       `json:"found"`
	Synced    int       `json:"synced"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionSyncResponse is returned by the execution-log sync route
type ExecutionSyncResponse struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Scripts    int       `json:"scripts"`
	Executions int       `json:"executions"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScriptListResponse is returned by the script list route
type ScriptListResponse struct {
	Scripts []*catalog.Script `json:"scripts"`
	Stats   catalog.Stats     `json:"stats"`
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	googleClient, err := google.NewClient(context.Background(), cfg.Google.ServiceAccountKeyPath, cfg.Google.DelegatedUser)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	syncEngine := syncengine.NewEngine(googleClient, catalog.New(), cfg, logger)

	downstream := cronsync.NewHTTPClient(cfg.ResolveBaseURL(), cfg.Cron.Secret, cfg.MaxDuration())
	logger.Infof("Cron sync will call the sync services at %s", downstream.BaseURL())
	orchestrator := cronsync.NewOrchestrator(downstream, cronsync.AuthFromSecret(cfg.Cron.Secret), cfg.MaxDuration(), logger)

	return newServer(cfg, logger, syncEngine, googleClient, orchestrator), nil
}

// newServer wires a server from its collaborators
func newServer(cfg *config.Config, logger *logrus.Logger, engine SyncEngine, scriptStats MetricsSource, orchestrator *cronsync.Orchestrator) *Server {
	metrics := NewMetrics()
	orchestrator.SetObserver(metrics)

	var scheduler *Scheduler
	if cfg.Server.ScheduleEnabled {
		scheduler = NewScheduler(cfg.Server.Schedule, orchestrator, logger)
	}

	server := &Server{
		logger:       logger,
		config:       cfg,
		syncEngine:   engine,
		scriptStats:  scriptStats,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		metrics:      metrics,
		startedAt:    time.Now(),
	}

	router := mux.NewRouter()
	server.registerRoutes(router)

	server.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// The cron route may run for the whole sync ceiling
		WriteTimeout: cfg.MaxDuration() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// registerRoutes sets up HTTP endpoints
func (s *Server) registerRoutes(router *mux.Router) {
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/version", s.handleVersion).Methods("GET")
	router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	// Cron sync: schedulers use GET, manual triggers POST
	router.Handle("/api/cron/sync", s.orchestrator).Methods("GET", "POST")

	router.HandleFunc("/api/sync", s.requireSecret(s.handleContentSync)).Methods("POST")
	router.HandleFunc("/api/sync/executions", s.requireSecret(s.handleExecutionSync)).Methods("POST")

	router.HandleFunc("/api/scripts", s.handleListScripts).Methods("GET")
	router.HandleFunc("/api/scripts/{id}", s.handleGetScript).Methods("GET")
	router.HandleFunc("/api/scripts/{id}/executions", s.handleScriptExecutions).Methods("GET")
	router.HandleFunc("/api/scripts/{id}/metrics", s.handleScriptMetrics).Methods("GET")

	if s.scheduler != nil {
		router.HandleFunc("/scheduler/start", s.handleSchedulerStart).Methods("POST")
		router.HandleFunc("/scheduler/stop", s.handleSchedulerStop).Methods("POST")
		router.HandleFunc("/scheduler/status", s.handleSchedulerStatus).Methods("GET")
	}
}

// Start starts the HTTP server and scheduler
func (s *Server) Start() error {
	s.logger.Infof("Starting dashboard server on port %d", s.config.Server.Port)

	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		s.logger.Info("Scheduler started successfully")
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("Dashboard server started successfully")

	s.waitForShutdown()

	return nil
}

// waitForShutdown waits for termination signals and performs graceful shutdown
func (s *Server) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	s.logger.Infof("Received signal %s, starting graceful shutdown...", sig)

	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("HTTP server shutdown error: %v", err)
	} else {
		s.logger.Info("HTTP server stopped gracefully")
	}
}

// requireSecret guards the sync services with the cron auth mode
func (s *Server) requireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.orchestrator.Auth().Authorize(cronsync.SecretFromRequest(r)); err != nil {
			s.logger.Warnf("Rejected %s %s: secret missing or mismatched", r.Method, r.URL.Path)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"catalog": "ok",
		"google":  "ok",
	}
	if s.scriptStats == nil {
		services["google"] = "not configured"
	}
	if s.orchestrator.Auth().IsOpen() {
		services["cron_auth"] = "open"
	} else {
		services["cron_auth"] = "secret"
	}

	response := HealthResponse{
		Status:      "healthy",
		Version:     Version,
		Timestamp:   time.Now(),
		Services:    services,
		LastSync:    s.metrics.LastRunTime(),
		SyncEnabled: s.scheduler != nil,
	}

	if s.scheduler != nil {
		response.NextSync = s.scheduler.GetNextRun()
	}

	writeJSON(w, http.StatusOK, response)
}

// handleContentSync refreshes script content from Google
func (s *Server) handleContentSync(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Content sync requested via API")

	result, err := s.syncEngine.SyncContent(r.Context())
	response := ContentSyncResponse{Timestamp: time.Now().UTC()}

	if err != nil {
		s.logger.Errorf("Content sync failed: %v", err)
		response.Message = "Script sync failed"
		response.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, response)
		return
	}

	response.Success = true
	response.Message = fmt.Sprintf("Synced %d of %d scripts", result.Synced(), result.ScriptsFound)
	response.Found = result.ScriptsFound
	response.Synced = result.Synced()
	response.Created = result.Created
	response.Updated = result.Updated
	response.Failed = len(result.Errors)
	response.Errors = errorStrings(result.Errors)

	writeJSON(w, http.StatusOK, response)
}

// handleExecutionSync refreshes execution history from Google
func (s *Server) handleExecutionSync(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Execution-log sync requested via API")

	result, err := s.syncEngine.SyncExecutions(r.Context())
	response := ExecutionSyncResponse{Timestamp: time.Now().UTC()}
	if result != nil {
		response.Scripts = result.ScriptsProcessed
		response.Executions = result.Executions
		response.Failed = len(result.Errors)
		response.Errors = errorStrings(result.Errors)
	}

	if err != nil {
		s.logger.Errorf("Execution-log sync failed: %v", err)
		response.Message = "Execution sync failed"
		response.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, response)
		return
	}

	response.Success = true
	response.Message = fmt.Sprintf("Synced %d executions across %d scripts", result.Executions, result.ScriptsProcessed)
	writeJSON(w, http.StatusOK, response)
}

// handleListScripts lists catalogued scripts with summary stats
func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	store := s.syncEngine.Catalog()
	writeJSON(w, http.StatusOK, ScriptListResponse{
		Scripts: store.Scripts(),
		Stats:   store.Stats(),
	})
}

// handleGetScript returns one script
func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	script, ok := s.syncEngine.Catalog().Script(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("script %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, script)
}

// handleScriptExecutions returns the execution history of a script
func (s *Server) handleScriptExecutions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	store := s.syncEngine.Catalog()

	if _, ok := store.Script(id); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("script %s not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scriptId":   id,
		"executions": store.Executions(id),
	})
}

// handleScriptMetrics proxies Apps Script usage metrics
func (s *Server) handleScriptMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if s.scriptStats == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Google client not configured"})
		return
	}

	granularity := r.URL.Query().Get("granularity")
	switch granularity {
	case "":
		granularity = "DAILY"
	case "DAILY", "WEEKLY":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "granularity must be DAILY or WEEKLY"})
		return
	}

	metrics, err := s.scriptStats.GetMetrics(r.Context(), id, granularity)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case google.IsNotFound(err):
			status = http.StatusNotFound
		case google.IsPermissionDenied(err):
			status = http.StatusForbidden
		}
		s.logger.Errorf("Failed to fetch metrics for %s: %v", id, err)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, metrics)
}

// handleMetrics handles metrics requests
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.GetStats())
}

// handleSchedulerStart handles scheduler start requests
func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Start(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to start scheduler: %v", err), http.StatusConflict)
		return
	}

	s.logger.Info("Scheduler started via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// handleSchedulerStop handles scheduler stop requests
func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	s.logger.Info("Scheduler stopped via API")

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleSchedulerStatus handles scheduler status requests
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"running":  s.scheduler.IsRunning(),
		"schedule": s.scheduler.Schedule(),
		"last_run": s.scheduler.GetLastRun(),
		"next_run": s.scheduler.GetNextRun(),
	}

	writeJSON(w, http.StatusOK, status)
}

// handleVersion handles version requests
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	version := map[string]string{
		"version":    Version,
		"started_at": s.startedAt.Format(time.RFC3339),
		"mode":       "server",
	}

	writeJSON(w, http.StatusOK, version)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorStrings converts a slice of errors to a slice of strings
func errorStrings(errors []error) []string {
	if len(errors) == 0 {
		return nil
	}

	result := make([]string, len(errors))
	for i, err := range errors {
		result[i] = err.Error()
	}
	return result
}
