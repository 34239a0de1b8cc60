package rollup

import (
	"github.com/samijaber1/sitepulse/internal/progress"
)

// BucketCount is one bar of the delay histogram
type BucketCount struct {
	Bucket progress.DelayBucket `json:"bucket"`
	Count  int                  `json:"count"`
	Color  string               `json:"color"`
}

// StatusCount is one slice of the status breakdown
type StatusCount struct {
	Status progress.SiteStatus `json:"status"`
	Count  int                 `json:"count"`
}

// Bracket is a half-open risk score range [Min, Max)
type Bracket struct {
	Label string `json:"bracket"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
}

// RiskBrackets partitions risk scores for the distribution chart
var RiskBrackets = []Bracket{
	{Label: "Low (0-20)", Min: 0, Max: 20},
	{Label: "Medium-Low (20-40)", Min: 20, Max: 40},
	{Label: "Medium (40-60)", Min: 40, Max: 60},
	{Label: "Medium-High (60-80)", Min: 60, Max: 80},
	{Label: "High (80+)", Min: 80, Max: 200},
}

// BracketCount is one bar of the risk distribution
type BracketCount struct {
	Bracket
	Count int `json:"count"`
}

// DelayHistogram counts sites per delay bucket. Every bucket is
// present, in reporting order.
func DelayHistogram(sites []progress.SiteRecord) []BucketCount {
	counts := make(map[progress.DelayBucket]int, len(progress.DelayBuckets))
	for _, site := range sites {
		counts[site.DelayBucket]++
	}

	result := make([]BucketCount, 0, len(progress.DelayBuckets))
	for _, bucket := range progress.DelayBuckets {
		result = append(result, BucketCount{Bucket: bucket, Count: counts[bucket], Color: bucket.Color()})
	}
	return result
}

// StatusHistogram counts sites per status. Every status is present.
func StatusHistogram(sites []progress.SiteRecord) []StatusCount {
	counts := make(map[progress.SiteStatus]int, len(progress.SiteStatuses))
	for _, site := range sites {
		counts[site.Status]++
	}

	result := make([]StatusCount, 0, len(progress.SiteStatuses))
	for _, status := range progress.SiteStatuses {
		result = append(result, StatusCount{Status: status, Count: counts[status]})
	}
	return result
}

// RiskDistribution counts sites per risk bracket
func RiskDistribution(sites []progress.SiteRecord) []BracketCount {
	result := make([]BracketCount, len(RiskBrackets))
	for i, b := range RiskBrackets {
		result[i].Bracket = b
	}
	for _, site := range sites {
		for i, b := range RiskBrackets {
			if site.Score >= b.Min && site.Score < b.Max {
				result[i].Count++
				break
			}
		}
	}
	return result
}
