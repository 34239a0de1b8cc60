package query

import (
	"github.com/samijaber1/sitepulse/internal/progress"
	"github.com/samijaber1/sitepulse/internal/rollup"
)

// PackageSummaries returns the rollup of every package, by name
func (v *View) PackageSummaries() []rollup.PackageSummary {
	if v.snapshot == nil {
		return []rollup.PackageSummary{}
	}
	return v.snapshot.Packages
}

// PackageSummary returns the rollup of one package
func (v *View) PackageSummary(pkg string) (rollup.PackageSummary, bool) {
	for _, summary := range v.PackageSummaries() {
		if summary.PackageName == pkg {
			return summary, true
		}
	}
	return rollup.PackageSummary{}, false
}

// PackageDistricts returns the district rollups within a package. An
// unknown package yields an empty list.
func (v *View) PackageDistricts(pkg string) []rollup.DistrictSummary {
	districts := []rollup.DistrictSummary{}
	if v.snapshot == nil {
		return districts
	}
	for _, d := range v.snapshot.Districts {
		if d.PackageName == pkg {
			districts = append(districts, d)
		}
	}
	return districts
}

// PackageSites returns the sites of a package, optionally scoped to a district
func (v *View) PackageSites(pkg, district string) []progress.SiteRecord {
	return v.Sites(Filter{Package: pkg, District: district})
}

// PackageDetail is a package rollup with its districts and sites
type PackageDetail struct {
	Package   *rollup.PackageSummary   `json:"package"`
	Districts []rollup.DistrictSummary `json:"districts"`
	Sites     []progress.SiteRecord    `json:"sites"`
}

// PackageDetail returns everything known about one package. Package is
// nil when the package has no sites.
func (v *View) PackageDetail(pkg string) PackageDetail {
	detail := PackageDetail{
		Districts: v.PackageDistricts(pkg),
		Sites:     v.PackageSites(pkg, ""),
	}
	if summary, ok := v.PackageSummary(pkg); ok {
		detail.Package = &summary
	}
	return detail
}
