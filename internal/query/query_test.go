package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samijaber1/sitepulse/internal/progress"
	"github.com/samijaber1/sitepulse/internal/rollup"
	"github.com/samijaber1/sitepulse/internal/scheduler"
	"github.com/samijaber1/sitepulse/internal/storage"
	"github.com/samijaber1/sitepulse/internal/storage/memory"
)

type staticSource struct {
	snapshot *scheduler.Snapshot
}

func (s *staticSource) Snapshot() (*scheduler.Snapshot, error) {
	if s.snapshot == nil {
		return nil, scheduler.ErrNoSnapshot
	}
	return s.snapshot, nil
}

func pct(v float64) *float64 { return &v }

func days(v int) *int { return &v }

func str(v string) *string { return &v }

func site(pkg, district, name string, status progress.SiteStatus, score, delay int, mutate func(*progress.SiteRecord)) progress.SiteRecord {
	s := progress.SiteRecord{
		PackageName: pkg,
		District:    district,
		SiteName:    name,
		Status:      status,
		DelayDays:   days(delay),
		TaskCount:   1,
	}
	s.Score = score
	s.DelayBucket = progress.BucketFor(s.DelayDays)
	if mutate != nil {
		mutate(&s)
	}
	return s
}

// snapshotOf assembles a snapshot the way a refresh does. Sites must be
// given in key order.
func snapshotOf(sites ...progress.SiteRecord) *scheduler.Snapshot {
	return &scheduler.Snapshot{
		Version:   1,
		LoadedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Sites:     sites,
		Global:    rollup.Summarize(sites),
		Packages:  rollup.ByPackage(sites),
		Districts: rollup.ByDistrict(sites),
		Warnings:  []string{"Loaded 1/1 sources successfully"},
	}
}

func fixtureSnapshot() *scheduler.Snapshot {
	return snapshotOf(
		site("Pkg-1", "Dir", "GPS Timergara", progress.SiteActive, 45, 10, func(s *progress.SiteRecord) {
			s.Progress = pct(40)
			s.Compliance.CESMPS = progress.FlagYes
			s.IPC.Stages[0] = progress.IPCReleased
			s.IPC.Stages[1] = progress.IPCSubmitted
			s.Tasks = []progress.TaskRecord{
				{Discipline: "Civil", TaskName: "Roofing", Photos: progress.PhotoLinks{BeforeShareURL: str("https://drive.example/before")}},
				{Discipline: "Electrical", TaskName: "Wiring"},
			}
			s.TaskCount = 2
		}),
		site("Pkg-1", "Swat", "BHU Kalam", progress.SiteActive, 81, 75, func(s *progress.SiteRecord) {
			s.Progress = pct(10)
			s.Compliance.CESMPS = progress.FlagNo
		}),
		site("Pkg-1", "Swat", "BHU Madyan", progress.SiteCompleted, 10, 0, func(s *progress.SiteRecord) {
			s.Progress = pct(100)
		}),
		site("Pkg-2", "Chitral", "RHC Drosh", progress.SiteInactive, 81, 40, func(s *progress.SiteRecord) {
			s.Progress = pct(20)
		}),
	)
}

func keysOf(sites []progress.SiteRecord) []string {
	keys := make([]string, len(sites))
	for i, s := range sites {
		keys[i] = s.Key().String()
	}
	return keys
}

func TestFilters(t *testing.T) {
	view := NewView(fixtureSnapshot())

	assert.Equal(t, []string{"Pkg-1", "Pkg-2"}, view.Packages())
	assert.Equal(t, []string{"Chitral", "Dir", "Swat"}, view.Districts(""))
	assert.Equal(t, []string{"Dir", "Swat"}, view.Districts("Pkg-1"))
	assert.Equal(t, []string{"BHU Kalam", "BHU Madyan"}, view.SiteNames("Pkg-1", "Swat"))
	assert.Equal(t, []string{"Active", "Completed", "Inactive"}, view.Statuses())
}

func TestFilters_UnknownPackageIsEmpty(t *testing.T) {
	view := NewView(fixtureSnapshot())

	districts := view.Districts("Pkg-9")
	require.NotNil(t, districts)
	assert.Empty(t, districts)

	assert.Empty(t, view.PackageDistricts("Pkg-9"))
	assert.Empty(t, view.SiteNames("Pkg-9", "Swat"))
	assert.Empty(t, view.Sites(Filter{Package: "Pkg-9"}))
}

func TestFilter_Matches(t *testing.T) {
	s := site("Pkg-1", "Swat", "BHU Kalam", progress.SiteActive, 0, 0, nil)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"package", Filter{Package: "Pkg-1"}, true},
		{"package case sensitive", Filter{Package: "pkg-1"}, false},
		{"full key", Filter{Package: "Pkg-1", District: "Swat", Site: "BHU Kalam"}, true},
		{"wrong district", Filter{Package: "Pkg-1", District: "Dir"}, false},
		{"status", Filter{Status: progress.SiteActive}, true},
		{"wrong status", Filter{Status: progress.SiteCompleted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(s))
		})
	}
}

func TestSituation(t *testing.T) {
	view := NewView(fixtureSnapshot())

	global := view.KPIs("")
	assert.Equal(t, 4, global.TotalSites)
	assert.Equal(t, global.TotalSites, global.ActiveSites+global.CompletedSites+global.InactiveSites)

	pkg := view.KPIs("Pkg-1")
	assert.Equal(t, 3, pkg.TotalSites)
	assert.Equal(t, 50.0, pkg.AvgProgress)
	assert.Equal(t, 1, pkg.SitesGT60Delayed)

	compliance := view.Compliance("Pkg-1")
	require.NotNil(t, compliance.CESMPS)
	assert.Equal(t, 50.0, *compliance.CESMPS)
	assert.Nil(t, compliance.OHS)

	hist := view.DelayHistogram("Pkg-2")
	require.Len(t, hist, len(progress.DelayBuckets))
	assert.Equal(t, 1, hist[2].Count)

	status := view.StatusHistogram("")
	assert.Equal(t, []rollup.StatusCount{
		{Status: progress.SiteActive, Count: 2},
		{Status: progress.SiteCompleted, Count: 1},
		{Status: progress.SiteInactive, Count: 1},
	}, status)

	progressRows := view.ProgressByPackage()
	require.Len(t, progressRows, 2)
	assert.Equal(t, "Pkg-1", progressRows[0].PackageName)
	assert.Equal(t, 3, progressRows[0].TotalSites)
}

func TestRedList_Ordering(t *testing.T) {
	view := NewView(fixtureSnapshot())

	assert.Equal(t, []string{
		"Pkg-1/Swat/BHU Kalam",
		"Pkg-2/Chitral/RHC Drosh",
		"Pkg-1/Dir/GPS Timergara",
		"Pkg-1/Swat/BHU Madyan",
	}, keysOf(view.RedList("", 0)))

	assert.Equal(t, []string{
		"Pkg-1/Swat/BHU Kalam",
		"Pkg-2/Chitral/RHC Drosh",
	}, keysOf(view.RedList("", 2)))

	assert.Equal(t, []string{"Pkg-2/Chitral/RHC Drosh"}, keysOf(view.RedList("Pkg-2", 5)))
}

func TestRedList_DoesNotReorderSnapshot(t *testing.T) {
	snapshot := fixtureSnapshot()
	before := keysOf(snapshot.Sites)

	NewView(snapshot).RedList("", 1)

	assert.Equal(t, before, keysOf(snapshot.Sites))
}

func TestRecoveryCandidates(t *testing.T) {
	view := NewView(snapshotOf(
		site("P", "D", "a", progress.SiteActive, 10, 0, nil),
		site("P", "D", "b", progress.SiteActive, 45, 0, nil),
		site("P", "D", "c", progress.SiteCompleted, 90, 0, nil),
	))

	candidates := view.RecoveryCandidates(Filter{}, DefaultRecoveryLimit)
	require.Len(t, candidates, 1)
	assert.Equal(t, "b", candidates[0].SiteName)
	assert.Equal(t, 45, candidates[0].Score)
}

func TestRecoveryCandidates_OrderAndLimit(t *testing.T) {
	view := NewView(fixtureSnapshot())

	assert.Equal(t, []string{
		"Pkg-1/Swat/BHU Kalam",
		"Pkg-1/Dir/GPS Timergara",
	}, keysOf(view.RecoveryCandidates(Filter{}, 0)))

	assert.Equal(t, []string{"Pkg-1/Swat/BHU Kalam"}, keysOf(view.RecoveryCandidates(Filter{}, 1)))
	assert.Empty(t, view.RecoveryCandidates(Filter{Package: "Pkg-2"}, 0))
}

func TestRisk(t *testing.T) {
	view := NewView(fixtureSnapshot())

	scores := view.RiskScores(Filter{Package: "Pkg-1", District: "Swat"})
	assert.Equal(t, []string{"Pkg-1/Swat/BHU Kalam", "Pkg-1/Swat/BHU Madyan"}, keysOf(scores))

	dist := view.RiskDistribution(Filter{})
	require.Len(t, dist, len(rollup.RiskBrackets))
	counts := make([]int, len(dist))
	for i, b := range dist {
		counts[i] = b.Count
	}
	assert.Equal(t, []int{1, 0, 1, 0, 2}, counts)
}

func TestPackages(t *testing.T) {
	view := NewView(fixtureSnapshot())

	summaries := view.PackageSummaries()
	require.Len(t, summaries, 2)

	detail := view.PackageDetail("Pkg-1")
	require.NotNil(t, detail.Package)
	assert.Equal(t, 3, detail.Package.TotalSites)
	assert.Len(t, detail.Districts, 2)
	assert.Len(t, detail.Sites, 3)

	assert.Len(t, view.PackageSites("Pkg-1", "Swat"), 2)

	missing := view.PackageDetail("Pkg-9")
	assert.Nil(t, missing.Package)
	assert.Empty(t, missing.Districts)
	assert.Empty(t, missing.Sites)
}

func TestSiteDetail(t *testing.T) {
	view := NewView(fixtureSnapshot())
	key := progress.SiteKey{Package: "Pkg-1", District: "Dir", Site: "GPS Timergara"}

	detail, ok := view.SiteDetail(key)
	require.True(t, ok)
	assert.Equal(t, key, detail.Site.Key())
	assert.Len(t, detail.Tasks, 2)

	require.Len(t, detail.Photos, 1)
	assert.Equal(t, "Roofing", detail.Photos[0].TaskName)
	assert.Equal(t, "https://drive.example/before", *detail.Photos[0].BeforeShareURL)
	assert.Nil(t, detail.Photos[0].AfterDirectURL)

	require.Len(t, detail.IPC.Milestones, progress.IPCCount)
	assert.Equal(t, "ipc_1", detail.IPC.Milestones[0].Milestone)
	assert.Equal(t, progress.IPCReleased, detail.IPC.BestStage)
	assert.Equal(t, progress.IPCReleased.Color(), detail.IPC.BestColor)
	assert.True(t, detail.IPC.Released)
	assert.Equal(t, progress.IPCNotSubmitted, detail.IPC.Milestones[5].Stage)

	assert.Len(t, view.SiteTasks(key), 2)
	assert.Len(t, view.SitePhotos(key), 1)
}

func TestSiteDetail_NotFound(t *testing.T) {
	view := NewView(fixtureSnapshot())
	key := progress.SiteKey{Package: "Pkg-1", District: "Swat", Site: "GPS Timergara"}

	_, ok := view.SiteDetail(key)
	assert.False(t, ok)

	_, ok = view.SiteIPC(key)
	assert.False(t, ok)

	assert.Empty(t, view.SiteTasks(key))
	assert.Empty(t, view.SitePhotos(key))
}

func TestData(t *testing.T) {
	view := NewView(fixtureSnapshot())

	summary := view.Summary()
	assert.Equal(t, 4, summary.TotalSites)
	assert.Equal(t, 5, summary.TotalTasks)
	require.NotNil(t, summary.CacheTimestamp)
	assert.Equal(t, []string{"Loaded 1/1 sources successfully"}, summary.Warnings)

	tasks := view.Tasks(Filter{Package: "Pkg-1", District: "Dir"})
	require.Len(t, tasks, 2)
	assert.Equal(t, "GPS Timergara", tasks[0].SiteName)
	assert.Equal(t, "Roofing", tasks[0].TaskName)

	inactive := view.Sites(Filter{Status: progress.SiteInactive})
	assert.Equal(t, []string{"Pkg-2/Chitral/RHC Drosh"}, keysOf(inactive))
}

func TestService_BeforeFirstRefresh(t *testing.T) {
	service := NewService(&staticSource{}, nil)
	view := service.View()

	assert.False(t, view.Loaded())
	assert.Empty(t, view.Packages())
	assert.Empty(t, view.RedList("", 10))
	assert.Equal(t, 0, view.KPIs("").TotalSites)
	assert.Nil(t, view.Summary().CacheTimestamp)
	assert.Len(t, view.DelayHistogram(""), len(progress.DelayBuckets))

	_, ok := view.SiteDetail(progress.SiteKey{Package: "P", District: "D", Site: "S"})
	assert.False(t, ok)

	points, err := service.Trends()
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestService_ViewIsStable(t *testing.T) {
	source := &staticSource{snapshot: fixtureSnapshot()}
	service := NewService(source, nil)

	view := service.View()
	source.snapshot = snapshotOf(site("Pkg-3", "Kohat", "GGHS", progress.SiteActive, 0, 0, nil))

	assert.Equal(t, []string{"Pkg-1", "Pkg-2"}, view.Packages())
	assert.Equal(t, []string{"Pkg-3"}, service.View().Packages())
}

func TestService_Trends(t *testing.T) {
	store := memory.NewStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendTrendPoint(storage.TrendPoint{
			RefreshID:   "r",
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			AvgProgress: float64(10 * i),
			TotalSites:  4,
		}))
	}

	service := NewService(&staticSource{}, store)
	points, err := service.Trends()
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].Timestamp.After(points[i-1].Timestamp))
	}
}
