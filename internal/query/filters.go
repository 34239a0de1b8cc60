package query

import (
	"sort"

	"github.com/samijaber1/sitepulse/internal/progress"
)

// Packages lists distinct package names
func (v *View) Packages() []string {
	return v.distinct(Filter{}, func(s progress.SiteRecord) string { return s.PackageName })
}

// Districts lists distinct districts, optionally scoped to a package
func (v *View) Districts(pkg string) []string {
	return v.distinct(Filter{Package: pkg}, func(s progress.SiteRecord) string { return s.District })
}

// SiteNames lists distinct site names within a package and district
func (v *View) SiteNames(pkg, district string) []string {
	return v.distinct(Filter{Package: pkg, District: district}, func(s progress.SiteRecord) string { return s.SiteName })
}

// Statuses lists the site statuses present in the snapshot
func (v *View) Statuses() []string {
	return v.distinct(Filter{}, func(s progress.SiteRecord) string { return string(s.Status) })
}

func (v *View) distinct(f Filter, field func(progress.SiteRecord) string) []string {
	seen := make(map[string]bool)
	values := []string{}
	for _, site := range v.Sites(f) {
		value := field(site)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}
