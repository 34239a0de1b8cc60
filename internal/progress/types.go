package progress

import (
	"encoding/json"
)

// TaskStatus is the derived state of a single task
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "Not Started"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
	TaskDelayed    TaskStatus = "Delayed"
)

// SiteStatus is the derived state of a site
type SiteStatus string

const (
	SiteActive    SiteStatus = "Active"
	SiteCompleted SiteStatus = "Completed"
	SiteInactive  SiteStatus = "Inactive"
)

// SiteStatuses lists every site status in reporting order
var SiteStatuses = []SiteStatus{SiteActive, SiteCompleted, SiteInactive}

// DelayBucket classifies site delay days
type DelayBucket string

const (
	BucketOnTrack DelayBucket = "On Track"
	Bucket1To30   DelayBucket = "1-30"
	Bucket31To60  DelayBucket = "31-60"
	BucketOver60  DelayBucket = ">60"
)

// DelayBuckets lists every bucket in reporting order
var DelayBuckets = []DelayBucket{BucketOnTrack, Bucket1To30, Bucket31To60, BucketOver60}

// BucketFor maps delay days onto the bucket partition. Null and
// non-positive delays are On Track.
func BucketFor(delayDays *int) DelayBucket {
	switch {
	case delayDays == nil || *delayDays <= 0:
		return BucketOnTrack
	case *delayDays <= 30:
		return Bucket1To30
	case *delayDays <= 60:
		return Bucket31To60
	default:
		return BucketOver60
	}
}

// Color returns the RAG color used for the bucket
func (b DelayBucket) Color() string {
	switch b {
	case Bucket1To30:
		return "#f39c12"
	case Bucket31To60:
		return "#e67e22"
	case BucketOver60:
		return "#e74c3c"
	default:
		return "#2ecc71"
	}
}

// Flag is a yes/no observation that may be absent
type Flag string

const (
	FlagUnknown Flag = ""
	FlagYes     Flag = "Yes"
	FlagNo      Flag = "No"
)

// Known reports whether the flag was observed
func (f Flag) Known() bool {
	return f == FlagYes || f == FlagNo
}

// MarshalJSON encodes an unobserved flag as null
func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(string(f))
}

// MonthlyFlag is a flag reported against a month, e.g. "January - Yes"
type MonthlyFlag struct {
	Month string `json:"month,omitempty"`
	Flag  Flag   `json:"flag"`
}

// Compliance holds the checklist flags recorded for a site
type Compliance struct {
	CESMPS   Flag        `json:"cesmps"`
	OHS      MonthlyFlag `json:"ohs"`
	RFBStaff MonthlyFlag `json:"rfb_staff"`
}
