package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samijaber1/sitepulse/internal/progress"
	"github.com/samijaber1/sitepulse/internal/query"
	"github.com/samijaber1/sitepulse/internal/scheduler"
	"github.com/samijaber1/sitepulse/internal/storage"
)

// Server is the HTTP API server
type Server struct {
	scheduler *scheduler.Scheduler
	query     *query.Service
	server    *http.Server
}

// NewServer creates a new API server. When gatherer is non-nil its
// metrics are exposed on /metrics.
func NewServer(sched *scheduler.Scheduler, addr string, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		scheduler: sched,
		query:     query.NewService(sched, sched.GetTrendStorage()),
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/health", s.handleStatus)

	// Data endpoints
	mux.HandleFunc("/api/data/refresh", s.handleRefresh)
	mux.HandleFunc("/api/data/summary", s.handleSummary)
	mux.HandleFunc("/api/data/sites", s.handleDataSites)
	mux.HandleFunc("/api/data/tasks", s.handleDataTasks)
	mux.HandleFunc("/api/data/refreshes", s.handleRefreshes)

	// Filter dropdowns
	mux.HandleFunc("/api/filters/packages", s.handleFilterPackages)
	mux.HandleFunc("/api/filters/districts", s.handleFilterDistricts)
	mux.HandleFunc("/api/filters/sites", s.handleFilterSites)
	mux.HandleFunc("/api/filters/statuses", s.handleFilterStatuses)

	// Situation room
	mux.HandleFunc("/api/situation-room/kpis", s.handleKPIs)
	mux.HandleFunc("/api/situation-room/delay-distribution", s.handleDelayDistribution)
	mux.HandleFunc("/api/situation-room/status-breakdown", s.handleStatusBreakdown)
	mux.HandleFunc("/api/situation-room/compliance", s.handleCompliance)
	mux.HandleFunc("/api/situation-room/progress-by-package", s.handleProgressByPackage)
	mux.HandleFunc("/api/situation-room/red-list", s.handleRedList)

	// Packages
	mux.HandleFunc("/api/packages", s.handlePackageList)
	mux.HandleFunc("/api/packages/", s.handlePackage)

	// Risk and recovery
	mux.HandleFunc("/api/risk/scores", s.handleRiskScores)
	mux.HandleFunc("/api/risk/distribution", s.handleRiskDistribution)
	mux.HandleFunc("/api/risk/recovery-candidates", s.handleRecoveryCandidates)
	mux.HandleFunc("/api/risk/trends", s.handleTrends)

	// Site command center
	mux.HandleFunc("/api/sites/detail", s.handleSiteDetail)
	mux.HandleFunc("/api/sites/tasks", s.handleSiteTasks)
	mux.HandleFunc("/api/sites/ipc", s.handleSiteIPC)
	mux.HandleFunc("/api/sites/photos", s.handleSitePhotos)

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady handles GET /readyz
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	resp := ReadyResponse{Reasons: []string{}}
	snapshot, err := s.scheduler.Snapshot()
	if err != nil {
		resp.Reasons = append(resp.Reasons, "no snapshot loaded yet")
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Ready = true
	resp.Version = snapshot.Version
	respondJSON(w, http.StatusOK, resp)
}

// handleStatus handles GET /api/health
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	respondJSON(w, http.StatusOK, s.scheduler.Health())
}

// handleRefresh handles POST /api/data/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	result, err := s.scheduler.Refresh(r.Context())
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, result)
	case result != nil:
		// The pipeline ran and failed; the previous snapshot stays live
		respondJSON(w, http.StatusBadGateway, result)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, fmt.Sprintf("refresh timed out: %v", err))
	default:
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("refresh aborted: %v", err))
	}
}

// handleSummary handles GET /api/data/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	respondJSON(w, http.StatusOK, s.query.View().Summary())
}

// handleDataSites handles GET /api/data/sites
func (s *Server) handleDataSites(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	respondJSON(w, http.StatusOK, s.query.View().Sites(filterFromQuery(r)))
}

// handleDataTasks handles GET /api/data/tasks
func (s *Server) handleDataTasks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	respondJSON(w, http.StatusOK, s.query.View().Tasks(filterFromQuery(r)))
}

// handleRefreshes handles GET /api/data/refreshes
func (s *Server) handleRefreshes(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	auditStorage := s.scheduler.GetAuditStorage()
	if auditStorage == nil {
		respondError(w, http.StatusServiceUnavailable, "refresh audit storage not configured")
		return
	}

	// Parse query parameters
	params := r.URL.Query()
	filter := storage.RefreshFilter{
		Status: storage.RefreshStatus(params.Get("status")),
		Limit:  intParam(r, "limit", 0),
		Offset: intParam(r, "offset", 0),
	}

	if startTimeStr := params.Get("startTime"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			filter.StartTime = &startTime
		}
	}

	if endTimeStr := params.Get("endTime"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			filter.EndTime = &endTime
		}
	}

	records, err := auditStorage.QueryRefreshes(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query refreshes: %v", err))
		return
	}

	responseRecords := make([]RefreshRecordResponse, len(records))
	for i, record := range records {
		responseRecords[i] = newRefreshRecordResponse(record)
	}

	respondJSON(w, http.StatusOK, RefreshListResponse{
		Records: responseRecords,
		Total:   len(responseRecords),
	})
}

// Helper functions

// filterFromQuery reads the optional package_name, district, site_name
// and status parameters
func filterFromQuery(r *http.Request) query.Filter {
	params := r.URL.Query()
	return query.Filter{
		Package:  params.Get("package_name"),
		District: params.Get("district"),
		Site:     params.Get("site_name"),
		Status:   progress.SiteStatus(params.Get("status")),
	}
}

// siteKeyFromQuery reads the required site key parameters
func siteKeyFromQuery(r *http.Request) (progress.SiteKey, error) {
	params := r.URL.Query()
	key := progress.SiteKey{
		Package:  params.Get("package_name"),
		District: params.Get("district"),
		Site:     params.Get("site_name"),
	}
	if key.Package == "" || key.District == "" || key.Site == "" {
		return key, fmt.Errorf("package_name, district and site_name are required")
	}
	return key, nil
}

// intParam parses an integer parameter, falling back to def when it is
// absent or malformed
func intParam(r *http.Request, name string, def int) int {
	if value := r.URL.Query().Get(name); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return def
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
