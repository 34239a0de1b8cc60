package query

import (
	"github.com/samijaber1/sitepulse/internal/progress"
	"github.com/samijaber1/sitepulse/internal/rollup"
)

// RiskScores returns the matching sites ordered by risk
func (v *View) RiskScores(f Filter) []progress.SiteRecord {
	sites := v.Sites(f)
	byRisk(sites)
	return sites
}

// RiskDistribution counts matching sites per risk bracket
func (v *View) RiskDistribution(f Filter) []rollup.BracketCount {
	return rollup.RiskDistribution(v.Sites(f))
}

// RecoveryCandidates returns active sites with risk of at least
// RecoveryRiskThreshold, ordered like the red list
func (v *View) RecoveryCandidates(f Filter, limit int) []progress.SiteRecord {
	f.Status = progress.SiteActive
	candidates := []progress.SiteRecord{}
	for _, site := range v.Sites(f) {
		if site.Score >= RecoveryRiskThreshold {
			candidates = append(candidates, site)
		}
	}
	byRisk(candidates)
	return truncate(candidates, limit)
}
