package query

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samijaber1/sitepulse/internal/progress"
	"github.com/samijaber1/sitepulse/internal/rollup"
	"github.com/samijaber1/sitepulse/internal/scheduler"
	"github.com/samijaber1/sitepulse/internal/storage"
)

// Default list limits for the red list and recovery candidates
const (
	DefaultRedListLimit  = 20
	DefaultRecoveryLimit = 20

	// RecoveryRiskThreshold is the minimum risk score of a recovery candidate
	RecoveryRiskThreshold = 40
)

// SnapshotSource provides the live snapshot
type SnapshotSource interface {
	Snapshot() (*scheduler.Snapshot, error)
}

// Service answers read queries over the live snapshot
type Service struct {
	source SnapshotSource
	trends storage.TrendStorage
}

// NewService creates a query service. trends may be nil.
func NewService(source SnapshotSource, trends storage.TrendStorage) *Service {
	return &Service{source: source, trends: trends}
}

// View captures the live snapshot. Every read on the returned view sees
// the same data, even if a refresh publishes a new snapshot meanwhile.
func (s *Service) View() *View {
	snapshot, err := s.source.Snapshot()
	if err != nil {
		// Before the first refresh every read is empty
		snapshot = nil
	}
	return &View{snapshot: snapshot}
}

// Trends returns the trend series in timestamp order
func (s *Service) Trends() ([]storage.TrendPoint, error) {
	if s.trends == nil {
		return []storage.TrendPoint{}, nil
	}
	points, err := s.trends.TrendPoints()
	if err != nil {
		return nil, fmt.Errorf("failed to read trend points: %w", err)
	}
	return points, nil
}

// View is a read-only view of one snapshot
type View struct {
	snapshot *scheduler.Snapshot
}

// NewView creates a view over snapshot; nil gives an empty view
func NewView(snapshot *scheduler.Snapshot) *View {
	return &View{snapshot: snapshot}
}

// Loaded reports whether the view holds a snapshot
func (v *View) Loaded() bool {
	return v.snapshot != nil
}

// Filter selects sites. Empty fields match everything.
type Filter struct {
	Package  string
	District string
	Site     string
	Status   progress.SiteStatus
}

// Matches reports whether site passes the filter
func (f Filter) Matches(site progress.SiteRecord) bool {
	if f.Package != "" && site.PackageName != f.Package {
		return false
	}
	if f.District != "" && site.District != f.District {
		return false
	}
	if f.Site != "" && site.SiteName != f.Site {
		return false
	}
	if f.Status != "" && site.Status != f.Status {
		return false
	}
	return true
}

// ErrSiteNotFound is returned when a site key matches no site
var ErrSiteNotFound = errors.New("site not found")

// Sites returns the sites matching f, in key order
func (v *View) Sites(f Filter) []progress.SiteRecord {
	sites := []progress.SiteRecord{}
	if v.snapshot == nil {
		return sites
	}
	for _, site := range v.snapshot.Sites {
		if f.Matches(site) {
			sites = append(sites, site)
		}
	}
	return sites
}

// find returns the site with the exact key
func (v *View) find(key progress.SiteKey) (progress.SiteRecord, error) {
	if v.snapshot == nil {
		return progress.SiteRecord{}, ErrSiteNotFound
	}
	site, ok := v.snapshot.Find(key)
	if !ok {
		return progress.SiteRecord{}, ErrSiteNotFound
	}
	return site, nil
}

// DataSummary is the global rollup with cache metadata
type DataSummary struct {
	rollup.Summary
	CacheTimestamp *time.Time `json:"cache_timestamp"`
	Warnings       []string   `json:"warnings"`
}

// Summary returns the global rollup of the snapshot
func (v *View) Summary() DataSummary {
	summary := DataSummary{Summary: rollup.Summarize(nil), Warnings: []string{}}
	if v.snapshot == nil {
		return summary
	}
	loadedAt := v.snapshot.LoadedAt
	summary.Summary = v.snapshot.Global
	summary.CacheTimestamp = &loadedAt
	if v.snapshot.Warnings != nil {
		summary.Warnings = v.snapshot.Warnings
	}
	return summary
}

// SiteTask is a task together with the key of its site
type SiteTask struct {
	PackageName string `json:"package_name"`
	District    string `json:"district"`
	SiteName    string `json:"site_name"`
	progress.TaskRecord
}

// Tasks returns the tasks of every site matching f
func (v *View) Tasks(f Filter) []SiteTask {
	tasks := []SiteTask{}
	for _, site := range v.Sites(f) {
		for _, task := range site.Tasks {
			tasks = append(tasks, SiteTask{
				PackageName: site.PackageName,
				District:    site.District,
				SiteName:    site.SiteName,
				TaskRecord:  task,
			})
		}
	}
	return tasks
}

// byRisk orders sites by risk descending, then delay descending, then key
func byRisk(sites []progress.SiteRecord) {
	sort.SliceStable(sites, func(i, j int) bool {
		a, b := sites[i], sites[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DelayOrMinusOne() != b.DelayOrMinusOne() {
			return a.DelayOrMinusOne() > b.DelayOrMinusOne()
		}
		return a.Key().Less(b.Key())
	})
}

// truncate caps sites at limit; a non-positive limit keeps everything
func truncate(sites []progress.SiteRecord, limit int) []progress.SiteRecord {
	if limit > 0 && len(sites) > limit {
		return sites[:limit]
	}
	return sites
}
