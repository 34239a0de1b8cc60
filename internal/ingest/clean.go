package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/samijaber1/sitepulse/internal/progress"
)

// Canonical column names consumed by the cleaner
const (
	ColPackageName   = "package_name"
	ColDistrict      = "district"
	ColSiteName      = "site_name"
	ColPackageID     = "package_id"
	ColSiteID        = "site_id"
	ColDiscipline    = "discipline"
	ColTaskName      = "task_name"
	ColPlannedStart  = "planned_start"
	ColPlannedFinish = "planned_finish"
	ColActualStart   = "actual_start"
	ColActualFinish  = "actual_finish"
	ColLastUpdated   = "last_updated"
	ColProgress      = "progress_pct"
	ColMobilization  = "mobilization_taken"
	ColCESMPS        = "cesmps"
	ColOHS           = "ohs"
	ColRFBStaff      = "rfb_staff"
	ColRemarks       = "remarks"
	ColBeforeShare   = "before_photo_share_url"
	ColBeforeDirect  = "before_photo_direct_url"
	ColAfterShare    = "after_photo_share_url"
	ColAfterDirect   = "after_photo_direct_url"
)

// dateLayouts are tried in order; day-first forms come before ISO
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 January 2006",
}

// Cleaner converts raw rows into typed task rows. A Cleaner is not safe
// for concurrent use.
type Cleaner struct {
	fold cases.Caser
}

// NewCleaner creates a new cleaner
func NewCleaner() *Cleaner {
	return &Cleaner{fold: cases.Fold()}
}

// Clean converts rows with a fresh Cleaner
func Clean(rows []RawRow) ([]progress.TaskRow, []Warning) {
	return NewCleaner().Clean(rows)
}

// Clean converts every row it can. Rows with missing identifiers,
// unparseable dates or out-of-range progress are skipped and reported.
func (c *Cleaner) Clean(rows []RawRow) ([]progress.TaskRow, []Warning) {
	tasks := make([]progress.TaskRow, 0, len(rows))
	var warnings []Warning

	for _, raw := range rows {
		task, rowWarnings, err := c.cleanRow(raw)
		warnings = append(warnings, rowWarnings...)
		if err != nil {
			warnings = append(warnings, Warning{
				Source:  raw.Source,
				Line:    raw.Line,
				Message: "skipped: " + err.Error(),
			})
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks, warnings
}

func (c *Cleaner) cleanRow(raw RawRow) (progress.TaskRow, []Warning, error) {
	task := progress.TaskRow{
		Source:      raw.Source,
		Line:        raw.Line,
		PackageName: raw.Get(ColPackageName),
		District:    raw.Get(ColDistrict),
		SiteName:    raw.Get(ColSiteName),
		PackageID:   raw.Get(ColPackageID),
		SiteID:      raw.Get(ColSiteID),
		Discipline:  raw.Get(ColDiscipline),
		TaskName:    raw.Get(ColTaskName),
		Remarks:     raw.Get(ColRemarks),
	}

	var missing []string
	if task.PackageName == "" {
		missing = append(missing, ColPackageName)
	}
	if task.District == "" {
		missing = append(missing, ColDistrict)
	}
	if task.SiteName == "" {
		missing = append(missing, ColSiteName)
	}
	if len(missing) > 0 {
		return task, nil, fmt.Errorf("missing identifiers: %s", strings.Join(missing, ", "))
	}

	dates := []struct {
		column string
		target **time.Time
	}{
		{ColPlannedStart, &task.PlannedStart},
		{ColPlannedFinish, &task.PlannedFinish},
		{ColActualStart, &task.ActualStart},
		{ColActualFinish, &task.ActualFinish},
		{ColLastUpdated, &task.LastUpdated},
	}
	for _, d := range dates {
		parsed, err := ParseDate(raw.Get(d.column))
		if err != nil {
			return task, nil, fmt.Errorf("%s: %w", d.column, err)
		}
		*d.target = parsed
	}

	pct, err := ParseProgress(raw.Get(ColProgress))
	if err != nil {
		return task, nil, fmt.Errorf("%s: %w", ColProgress, err)
	}
	task.ProgressPct = pct

	task.MobilizationTaken = c.parseFlag(raw.Get(ColMobilization))
	task.Compliance = progress.Compliance{
		CESMPS:   c.parseFlag(raw.Get(ColCESMPS)),
		OHS:      c.parseMonthlyFlag(raw.Get(ColOHS)),
		RFBStaff: c.parseMonthlyFlag(raw.Get(ColRFBStaff)),
	}

	var warnings []Warning
	warn := func(format string, args ...any) {
		warnings = append(warnings, Warning{Source: raw.Source, Line: raw.Line, Message: fmt.Sprintf(format, args...)})
	}

	for i := 0; i < progress.IPCCount; i++ {
		column := fmt.Sprintf("ipc_%d", i+1)
		value := raw.Get(column)
		if isBlank(value) {
			continue
		}
		stage, ok := progress.ParseIPCStage(c.fold.String(value))
		if !ok {
			warn("%s: unknown IPC status %q, treated as %s", column, value, progress.IPCNotSubmitted)
		}
		task.IPC.Stages[i] = stage
	}

	task.Photos = progress.PhotoLinks{
		BeforeShareURL:  optionalString(raw.Get(ColBeforeShare)),
		BeforeDirectURL: optionalString(raw.Get(ColBeforeDirect)),
		AfterShareURL:   optionalString(raw.Get(ColAfterShare)),
		AfterDirectURL:  optionalString(raw.Get(ColAfterDirect)),
	}

	if task.PlannedStart != nil && task.PlannedFinish != nil && task.PlannedStart.After(*task.PlannedFinish) {
		warn("planned_start is after planned_finish")
	}
	if task.ActualStart != nil && task.ActualFinish != nil && task.ActualStart.After(*task.ActualFinish) {
		warn("actual_start is after actual_finish")
	}

	return task, warnings, nil
}

// parseFlag accepts yes/no in any case; anything else is absent
func (c *Cleaner) parseFlag(value string) progress.Flag {
	switch c.fold.String(trim(value)) {
	case "yes":
		return progress.FlagYes
	case "no":
		return progress.FlagNo
	default:
		return progress.FlagUnknown
	}
}

// parseMonthlyFlag splits the "January - Yes" form
func (c *Cleaner) parseMonthlyFlag(value string) progress.MonthlyFlag {
	value = trim(value)
	if month, flag, ok := strings.Cut(value, " - "); ok {
		return progress.MonthlyFlag{Month: trim(month), Flag: c.parseFlag(flag)}
	}
	return progress.MonthlyFlag{Flag: c.parseFlag(value)}
}

// ParseDate parses a day-first date. Blank values yield nil.
func ParseDate(value string) (*time.Time, error) {
	value = trim(value)
	if isBlank(value) {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day, nil
		}
	}
	return nil, fmt.Errorf("unparseable date %q", value)
}

// ParseProgress parses a percentage such as "45", "45.5" or "45%".
// Blank values yield nil; values outside [0,100] are rejected.
func ParseProgress(value string) (*float64, error) {
	value = trim(strings.ReplaceAll(value, "%", ""))
	if isBlank(value) {
		return nil, nil
	}
	pct, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(pct) || math.IsInf(pct, 0) {
		return nil, fmt.Errorf("invalid progress %q", value)
	}
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("progress %v outside [0, 100]", pct)
	}
	return &pct, nil
}

func optionalString(value string) *string {
	if isBlank(value) {
		return nil
	}
	return &value
}

// isBlank treats spreadsheet null markers as empty
func isBlank(value string) bool {
	switch strings.ToLower(value) {
	case "", "nan", "nat", "none", "null", "n/a", "-":
		return true
	}
	return false
}
