package query

import (
	"github.com/samijaber1/sitepulse/internal/progress"
	"github.com/samijaber1/sitepulse/internal/rollup"
)

// KPIs returns the rollup of all sites, or of one package when pkg is set
func (v *View) KPIs(pkg string) rollup.Summary {
	if pkg == "" && v.snapshot != nil {
		return v.snapshot.Global
	}
	return rollup.Summarize(v.Sites(Filter{Package: pkg}))
}

// DelayHistogram counts sites per delay bucket
func (v *View) DelayHistogram(pkg string) []rollup.BucketCount {
	return rollup.DelayHistogram(v.Sites(Filter{Package: pkg}))
}

// StatusHistogram counts sites per status
func (v *View) StatusHistogram(pkg string) []rollup.StatusCount {
	return rollup.StatusHistogram(v.Sites(Filter{Package: pkg}))
}

// Compliance is the share of sites answering Yes per checklist flag.
// A nil value means no site reported the flag.
type Compliance struct {
	CESMPS   *float64 `json:"cesmps"`
	OHS      *float64 `json:"ohs"`
	RFBStaff *float64 `json:"rfb"`
}

// Compliance summarizes the checklist flags
func (v *View) Compliance(pkg string) Compliance {
	summary := v.KPIs(pkg)
	return Compliance{
		CESMPS:   summary.CESMPSPctYes,
		OHS:      summary.OHSPctYes,
		RFBStaff: summary.RFBStaffPctYes,
	}
}

// PackageProgress is one bar of the progress-by-package chart
type PackageProgress struct {
	PackageName    string  `json:"package_name"`
	AvgProgress    float64 `json:"avg_progress"`
	TotalSites     int     `json:"total_sites"`
	ActiveSites    int     `json:"active_sites"`
	CompletedSites int     `json:"completed_sites"`
	InactiveSites  int     `json:"inactive_sites"`
}

// ProgressByPackage returns the average progress of every package
func (v *View) ProgressByPackage() []PackageProgress {
	result := []PackageProgress{}
	for _, pkg := range v.PackageSummaries() {
		result = append(result, PackageProgress{
			PackageName:    pkg.PackageName,
			AvgProgress:    pkg.AvgProgress,
			TotalSites:     pkg.TotalSites,
			ActiveSites:    pkg.ActiveSites,
			CompletedSites: pkg.CompletedSites,
			InactiveSites:  pkg.InactiveSites,
		})
	}
	return result
}

// RedList returns the riskiest sites, highest risk first, ties broken by
// delay descending. A non-positive limit returns every site.
func (v *View) RedList(pkg string, limit int) []progress.SiteRecord {
	sites := v.Sites(Filter{Package: pkg})
	byRisk(sites)
	return truncate(sites, limit)
}
