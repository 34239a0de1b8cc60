package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/samijaber1/sitepulse/internal/query"
)

// handleFilterPackages handles GET /api/filters/packages
func (s *Server) handleFilterPackages(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().Packages())
}

// handleFilterDistricts handles GET /api/filters/districts
func (s *Server) handleFilterDistricts(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().Districts(r.URL.Query().Get("package_name")))
}

// handleFilterSites handles GET /api/filters/sites
func (s *Server) handleFilterSites(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	params := r.URL.Query()
	respondJSON(w, http.StatusOK, s.query.View().SiteNames(params.Get("package_name"), params.Get("district")))
}

// handleFilterStatuses handles GET /api/filters/statuses
func (s *Server) handleFilterStatuses(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().Statuses())
}

// handleKPIs handles GET /api/situation-room/kpis
func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().KPIs(r.URL.Query().Get("package_name")))
}

// handleDelayDistribution handles GET /api/situation-room/delay-distribution
func (s *Server) handleDelayDistribution(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().DelayHistogram(r.URL.Query().Get("package_name")))
}

// handleStatusBreakdown handles GET /api/situation-room/status-breakdown
func (s *Server) handleStatusBreakdown(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().StatusHistogram(r.URL.Query().Get("package_name")))
}

// handleCompliance handles GET /api/situation-room/compliance
func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().Compliance(r.URL.Query().Get("package_name")))
}

// handleProgressByPackage handles GET /api/situation-room/progress-by-package
func (s *Server) handleProgressByPackage(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().ProgressByPackage())
}

// handleRedList handles GET /api/situation-room/red-list
func (s *Server) handleRedList(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	limit := intParam(r, "limit", query.DefaultRedListLimit)
	respondJSON(w, http.StatusOK, s.query.View().RedList(r.URL.Query().Get("package_name"), limit))
}

// handlePackageList handles GET /api/packages
func (s *Server) handlePackageList(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().PackageSummaries())
}

// handlePackage handles GET /api/packages/{name}[/districts|/sites|/delay-chart]
func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	// Extract package name and sub-resource from path
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/packages/"), "/")
	if path == "" {
		respondJSON(w, http.StatusOK, s.query.View().PackageSummaries())
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		respondError(w, http.StatusBadRequest, "invalid path format, expected /api/packages/{name}[/districts|/sites|/delay-chart]")
		return
	}

	name := parts[0]
	view := s.query.View()

	if len(parts) == 1 {
		respondJSON(w, http.StatusOK, view.PackageDetail(name))
		return
	}

	switch parts[1] {
	case "districts":
		respondJSON(w, http.StatusOK, view.PackageDistricts(name))
	case "sites":
		respondJSON(w, http.StatusOK, view.PackageSites(name, r.URL.Query().Get("district")))
	case "delay-chart":
		respondJSON(w, http.StatusOK, view.DelayHistogram(name))
	default:
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown package resource: %s", parts[1]))
	}
}

// handleRiskScores handles GET /api/risk/scores
func (s *Server) handleRiskScores(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().RiskScores(filterFromQuery(r)))
}

// handleRiskDistribution handles GET /api/risk/distribution
func (s *Server) handleRiskDistribution(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().RiskDistribution(filterFromQuery(r)))
}

// handleRecoveryCandidates handles GET /api/risk/recovery-candidates
func (s *Server) handleRecoveryCandidates(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	limit := intParam(r, "limit", query.DefaultRecoveryLimit)
	respondJSON(w, http.StatusOK, s.query.View().RecoveryCandidates(filterFromQuery(r), limit))
}

// handleTrends handles GET /api/risk/trends
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	points, err := s.query.Trends()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, points)
}

// handleSiteDetail handles GET /api/sites/detail
func (s *Server) handleSiteDetail(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	key, err := siteKeyFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, ok := s.query.View().SiteDetail(key)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("site not found: %s", key))
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// handleSiteTasks handles GET /api/sites/tasks
func (s *Server) handleSiteTasks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	key, err := siteKeyFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().SiteTasks(key))
}

// handleSiteIPC handles GET /api/sites/ipc
func (s *Server) handleSiteIPC(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	key, err := siteKeyFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ipc, ok := s.query.View().SiteIPC(key)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("site not found: %s", key))
		return
	}
	respondJSON(w, http.StatusOK, ipc)
}

// handleSitePhotos handles GET /api/sites/photos
func (s *Server) handleSitePhotos(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	key, err := siteKeyFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.query.View().SitePhotos(key))
}
