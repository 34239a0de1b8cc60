package progress

import (
	"time"
)

// TaskRow is one cleaned input row, as produced by ingest
type TaskRow struct {
	Source string
	Line   int

	PackageName string
	District    string
	SiteName    string
	PackageID   string
	SiteID      string

	Discipline string
	TaskName   string

	PlannedStart  *time.Time
	PlannedFinish *time.Time
	ActualStart   *time.Time
	ActualFinish  *time.Time
	LastUpdated   *time.Time

	ProgressPct *float64

	MobilizationTaken Flag
	Compliance        Compliance
	IPC               IPCStatus

	Remarks string
	Photos  PhotoLinks
}

// Key returns the composite site key of the row
func (r TaskRow) Key() SiteKey {
	return SiteKey{Package: r.PackageName, District: r.District, Site: r.SiteName}
}

// PhotoLinks holds the before/after photo URLs of a task
type PhotoLinks struct {
	BeforeShareURL  *string `json:"before_photo_share_url"`
	BeforeDirectURL *string `json:"before_photo_direct_url"`
	AfterShareURL   *string `json:"after_photo_share_url"`
	AfterDirectURL  *string `json:"after_photo_direct_url"`
}

// HasAny reports whether at least one photo URL is present
func (p PhotoLinks) HasAny() bool {
	return p.BeforeShareURL != nil || p.BeforeDirectURL != nil ||
		p.AfterShareURL != nil || p.AfterDirectURL != nil
}

// SiteKey identifies a site by package, district and site name
type SiteKey struct {
	Package  string
	District string
	Site     string
}

// Less orders keys by package, then district, then site
func (k SiteKey) Less(other SiteKey) bool {
	if k.Package != other.Package {
		return k.Package < other.Package
	}
	if k.District != other.District {
		return k.District < other.District
	}
	return k.Site < other.Site
}

func (k SiteKey) String() string {
	return k.Package + "/" + k.District + "/" + k.Site
}

// TaskRecord is a task with its derived delay and status
type TaskRecord struct {
	Discipline          string     `json:"discipline"`
	TaskName            string     `json:"task_name"`
	PlannedStart        *time.Time `json:"planned_start"`
	PlannedFinish       *time.Time `json:"planned_finish"`
	ActualStart         *time.Time `json:"actual_start"`
	ActualFinish        *time.Time `json:"actual_finish"`
	PlannedDurationDays *int       `json:"planned_duration_days"`
	ProgressPct         *float64   `json:"progress_pct"`
	DelayDays           *int       `json:"task_delay_days"`
	Status              TaskStatus `json:"task_status"`
	Remarks             string     `json:"remarks,omitempty"`
	Photos              PhotoLinks `json:"-"`
}

// RiskScore is the combined risk score of a site and its components
type RiskScore struct {
	Score             int     `json:"risk_score"`
	DelayScore        float64 `json:"delay_score"`
	ProgressScore     float64 `json:"progress_score"`
	MobilizationScore float64 `json:"mobilization_score"`
}

// SiteRecord is the derived view of one site. Records are never
// mutated after the snapshot holding them is published.
type SiteRecord struct {
	PackageName string `json:"package_name"`
	District    string `json:"district"`
	SiteName    string `json:"site_name"`
	PackageID   string `json:"package_id,omitempty"`
	SiteID      string `json:"site_id,omitempty"`

	Progress    *float64    `json:"site_progress"`
	DelayDays   *int        `json:"site_delay_days"`
	DelayBucket DelayBucket `json:"delay_bucket"`
	RiskScore
	Status SiteStatus `json:"site_status"`

	MobilizationTaken    Flag       `json:"mobilization_taken"`
	MobilizedLowProgress bool       `json:"mobilized_low_progress"`
	Compliance           Compliance `json:"compliance"`
	IPC                  IPCStatus  `json:"ipc"`
	NoIPCReleased        bool       `json:"no_ipc_released"`

	TaskCount            int        `json:"task_count"`
	EarliestPlannedStart *time.Time `json:"earliest_planned_start"`
	LastUpdated          *time.Time `json:"last_updated"`

	Tasks []TaskRecord `json:"-"`
}

// Key returns the composite key of the site
func (s SiteRecord) Key() SiteKey {
	return SiteKey{Package: s.PackageName, District: s.District, Site: s.SiteName}
}

// DelayOrMinusOne returns the delay days, with -1 standing in for null.
// Used for ordering only.
func (s SiteRecord) DelayOrMinusOne() int {
	if s.DelayDays == nil {
		return -1
	}
	return *s.DelayDays
}
