package derive

import (
	"math"
	"sort"
	"time"

	"github.com/samijaber1/sitepulse/internal/progress"
)

// Engine turns cleaned task rows into site records
type Engine struct {
	policy Policy
}

// NewEngine creates a new engine with the given policy
func NewEngine(policy Policy) *Engine {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Engine{policy: policy}
}

// Policy returns the policy the engine was built with
func (e *Engine) Policy() Policy {
	return e.policy
}

// Today returns the calendar date of now in the policy location,
// expressed as midnight UTC so it compares directly with parsed dates.
func (e *Engine) Today(now time.Time) time.Time {
	local := now.In(e.policy.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Derive builds one SiteRecord per distinct (package, district, site),
// sorted by key. Input rows are not modified.
func (e *Engine) Derive(rows []progress.TaskRow, now time.Time) []progress.SiteRecord {
	today := e.Today(now)

	groups := make(map[progress.SiteKey][]progress.TaskRow)
	keys := make([]progress.SiteKey, 0)
	for _, row := range rows {
		key := row.Key()
		if _, exists := groups[key]; !exists {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	sites := make([]progress.SiteRecord, 0, len(keys))
	for _, key := range keys {
		sites = append(sites, e.deriveSite(key, groups[key], today))
	}
	return sites
}

// DeriveTask computes the delay and status of a single task
func (e *Engine) DeriveTask(row progress.TaskRow, today time.Time) progress.TaskRecord {
	task := progress.TaskRecord{
		Discipline:    row.Discipline,
		TaskName:      row.TaskName,
		PlannedStart:  row.PlannedStart,
		PlannedFinish: row.PlannedFinish,
		ActualStart:   row.ActualStart,
		ActualFinish:  row.ActualFinish,
		ProgressPct:   row.ProgressPct,
		Remarks:       row.Remarks,
		Photos:        row.Photos,
	}

	if row.PlannedStart != nil && row.PlannedFinish != nil {
		duration := max(1, daysBetween(*row.PlannedStart, *row.PlannedFinish))
		task.PlannedDurationDays = &duration
	}

	completed := row.ActualFinish != nil || (row.ProgressPct != nil && *row.ProgressPct >= 100)

	// Missing planned finish leaves the delay null
	if row.PlannedFinish != nil {
		delay := 0
		if !completed {
			delay = max(0, daysBetween(*row.PlannedFinish, today))
		}
		task.DelayDays = &delay
	}

	switch {
	case completed:
		task.Status = progress.TaskCompleted
	case task.DelayDays != nil && *task.DelayDays > 0:
		task.Status = progress.TaskDelayed
	case started(row):
		task.Status = progress.TaskInProgress
	default:
		task.Status = progress.TaskNotStarted
	}

	return task
}

func (e *Engine) deriveSite(key progress.SiteKey, rows []progress.TaskRow, today time.Time) progress.SiteRecord {
	site := progress.SiteRecord{
		PackageName: key.Package,
		District:    key.District,
		SiteName:    key.Site,
		TaskCount:   len(rows),
		Tasks:       make([]progress.TaskRecord, 0, len(rows)),
	}

	var progressSum float64
	var progressN int
	anyStarted := false
	allCompleted := len(rows) > 0

	for _, row := range rows {
		task := e.DeriveTask(row, today)
		site.Tasks = append(site.Tasks, task)

		if task.ProgressPct != nil {
			progressSum += *task.ProgressPct
			progressN++
		}
		if task.DelayDays != nil && (site.DelayDays == nil || *task.DelayDays > *site.DelayDays) {
			d := *task.DelayDays
			site.DelayDays = &d
		}
		if task.Status != progress.TaskCompleted {
			allCompleted = false
		}
		if started(row) {
			anyStarted = true
		}

		site.EarliestPlannedStart = minTime(site.EarliestPlannedStart, row.PlannedStart)
		site.LastUpdated = maxTime(site.LastUpdated, row.LastUpdated)

		if site.PackageID == "" {
			site.PackageID = row.PackageID
		}
		if site.SiteID == "" {
			site.SiteID = row.SiteID
		}
		if !site.MobilizationTaken.Known() {
			site.MobilizationTaken = row.MobilizationTaken
		}
		mergeCompliance(&site.Compliance, row.Compliance)
		for i, stage := range row.IPC.Stages {
			if stage > site.IPC.Stages[i] {
				site.IPC.Stages[i] = stage
			}
		}
	}

	if progressN > 0 {
		mean := progressSum / float64(progressN)
		site.Progress = &mean
	}

	site.DelayBucket = progress.BucketFor(site.DelayDays)
	site.Status = e.siteStatus(site, anyStarted, allCompleted, today)
	site.MobilizedLowProgress = site.MobilizationTaken == progress.FlagYes &&
		site.Progress != nil && *site.Progress < e.policy.LowProgressPct
	site.RiskScore = e.Risk(site.DelayDays, site.Progress, site.MobilizedLowProgress)
	site.NoIPCReleased = !site.IPC.AnyReleased()

	return site
}

func (e *Engine) siteStatus(site progress.SiteRecord, anyStarted, allCompleted bool, today time.Time) progress.SiteStatus {
	if allCompleted || (site.Progress != nil && *site.Progress >= e.policy.CompletionPct) {
		return progress.SiteCompleted
	}
	if !anyStarted && site.EarliestPlannedStart != nil &&
		today.Sub(*site.EarliestPlannedStart) > e.policy.InactiveGrace {
		return progress.SiteInactive
	}
	return progress.SiteActive
}

// Risk combines the delay, progress and mobilization components.
// Every component and the combined score are clamped to [0,100].
func (e *Engine) Risk(delayDays *int, siteProgress *float64, mobilizedLowProgress bool) progress.RiskScore {
	delayScore := 0.0
	if delayDays != nil {
		delayScore = clamp(float64(*delayDays))
	}

	progressScore := clamp(e.policy.UnknownProgressScore)
	if siteProgress != nil {
		progressScore = clamp(100 - *siteProgress)
	}

	mobilizationScore := clamp(e.policy.BaselineMobilizationScore)
	if mobilizedLowProgress {
		mobilizationScore = clamp(e.policy.MobilizedLowProgressScore)
	}

	w := e.policy.Weights
	combined := w.Delay*delayScore + w.Progress*progressScore + w.Mobilization*mobilizationScore

	return progress.RiskScore{
		Score:             int(clamp(math.Round(combined))),
		DelayScore:        delayScore,
		ProgressScore:     progressScore,
		MobilizationScore: mobilizationScore,
	}
}

// started reports whether any work on the task has been recorded
func started(row progress.TaskRow) bool {
	return row.ActualStart != nil || row.ActualFinish != nil ||
		(row.ProgressPct != nil && *row.ProgressPct > 0)
}

// mergeCompliance keeps the first observed value of each flag
func mergeCompliance(dst *progress.Compliance, src progress.Compliance) {
	if !dst.CESMPS.Known() {
		dst.CESMPS = src.CESMPS
	}
	if !dst.OHS.Flag.Known() {
		dst.OHS = src.OHS
	}
	if !dst.RFBStaff.Flag.Known() {
		dst.RFBStaff = src.RFBStaff
	}
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func minTime(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.Before(*current) {
		t := *candidate
		return &t
	}
	return current
}

func maxTime(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		t := *candidate
		return &t
	}
	return current
}
