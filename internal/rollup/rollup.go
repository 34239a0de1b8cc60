package rollup

import (
	"math"
	"sort"

	"github.com/samijaber1/sitepulse/internal/progress"
)

// Summary is the KPI rollup over a set of sites
type Summary struct {
	TotalSites int `json:"total_sites"`
	TotalTasks int `json:"total_tasks"`

	AvgProgress  float64 `json:"avg_progress"`
	AvgRiskScore float64 `json:"avg_risk_score"`

	ActiveSites    int `json:"active_sites"`
	CompletedSites int `json:"completed_sites"`
	InactiveSites  int `json:"inactive_sites"`

	SitesGT30Delayed int `json:"sites_gt30_delayed"`
	SitesGT60Delayed int `json:"sites_gt60_delayed"`

	MobilizedLowProgressCount int `json:"mobilized_low_progress_count"`
	NoIPCReleasedCount        int `json:"no_ipc_released_count"`

	// Compliance percentages are nil when no site reported the flag
	CESMPSPctYes   *float64 `json:"cesmps_pct_yes"`
	OHSPctYes      *float64 `json:"ohs_pct_yes"`
	RFBStaffPctYes *float64 `json:"rfb_staff_pct_yes"`
}

// PackageSummary is the rollup of one package
type PackageSummary struct {
	PackageName string `json:"package_name"`
	Summary
}

// DistrictSummary is the rollup of one district within a package
type DistrictSummary struct {
	PackageName string `json:"package_name"`
	District    string `json:"district"`
	Summary
}

// Summarize rolls a set of sites up into a Summary. Sites with no
// progress still count in TotalSites but not in AvgProgress.
func Summarize(sites []progress.SiteRecord) Summary {
	var s Summary
	s.TotalSites = len(sites)

	var progressSum, riskSum float64
	var progressN int
	var cesmps, ohs, rfb ratio

	for _, site := range sites {
		s.TotalTasks += site.TaskCount
		riskSum += float64(site.Score)

		if site.Progress != nil {
			progressSum += *site.Progress
			progressN++
		}

		switch site.Status {
		case progress.SiteActive:
			s.ActiveSites++
		case progress.SiteCompleted:
			s.CompletedSites++
		case progress.SiteInactive:
			s.InactiveSites++
		}

		switch site.DelayBucket {
		case progress.BucketOver60:
			s.SitesGT60Delayed++
			s.SitesGT30Delayed++
		case progress.Bucket31To60:
			s.SitesGT30Delayed++
		}

		if site.MobilizedLowProgress {
			s.MobilizedLowProgressCount++
		}
		if site.NoIPCReleased {
			s.NoIPCReleasedCount++
		}

		cesmps.observe(site.Compliance.CESMPS)
		ohs.observe(site.Compliance.OHS.Flag)
		rfb.observe(site.Compliance.RFBStaff.Flag)
	}

	if progressN > 0 {
		s.AvgProgress = Round1(progressSum / float64(progressN))
	}
	if s.TotalSites > 0 {
		s.AvgRiskScore = Round1(riskSum / float64(s.TotalSites))
	}
	s.CESMPSPctYes = cesmps.pct()
	s.OHSPctYes = ohs.pct()
	s.RFBStaffPctYes = rfb.pct()

	return s
}

// ByPackage rolls sites up per package, ordered by package name
func ByPackage(sites []progress.SiteRecord) []PackageSummary {
	groups := make(map[string][]progress.SiteRecord)
	for _, site := range sites {
		groups[site.PackageName] = append(groups[site.PackageName], site)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]PackageSummary, 0, len(names))
	for _, name := range names {
		result = append(result, PackageSummary{PackageName: name, Summary: Summarize(groups[name])})
	}
	return result
}

// ByDistrict rolls sites up per (package, district), ordered by
// package then district
func ByDistrict(sites []progress.SiteRecord) []DistrictSummary {
	type key struct{ pkg, district string }

	groups := make(map[key][]progress.SiteRecord)
	for _, site := range sites {
		k := key{site.PackageName, site.District}
		groups[k] = append(groups[k], site)
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].pkg != keys[j].pkg {
			return keys[i].pkg < keys[j].pkg
		}
		return keys[i].district < keys[j].district
	})

	result := make([]DistrictSummary, 0, len(keys))
	for _, k := range keys {
		result = append(result, DistrictSummary{
			PackageName: k.pkg,
			District:    k.district,
			Summary:     Summarize(groups[k]),
		})
	}
	return result
}

// Round1 rounds to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ratio counts Yes answers among known observations
type ratio struct {
	yes, known int
}

func (r *ratio) observe(flag progress.Flag) {
	if !flag.Known() {
		return
	}
	r.known++
	if flag == progress.FlagYes {
		r.yes++
	}
}

func (r ratio) pct() *float64 {
	if r.known == 0 {
		return nil
	}
	v := Round1(100 * float64(r.yes) / float64(r.known))
	return &v
}
