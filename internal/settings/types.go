package settings

// Settings is the parsed dashboard configuration
type Settings struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

// Metadata names the dashboard
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Spec holds the sources, refresh cadence, thresholds and risk weights
type Spec struct {
	Timezone   string     `yaml:"timezone,omitempty"`
	Sources    []Source   `yaml:"sources"`
	Fetch      Fetch      `yaml:"fetch,omitempty"`
	Refresh    Refresh    `yaml:"refresh,omitempty"`
	Thresholds Thresholds `yaml:"thresholds,omitempty"`
	Risk       Risk       `yaml:"risk,omitempty"`
}

// Source is one task sheet, either a published CSV URL or a local file
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url,omitempty"`
	File string `yaml:"file,omitempty"`
}

// Fetch tunes the HTTP loader
type Fetch struct {
	Timeout        string `yaml:"timeout,omitempty"`
	MaxConcurrency int64  `yaml:"maxConcurrency,omitempty"`
	RetryCount     *int   `yaml:"retryCount,omitempty"`
	RetryDelay     string `yaml:"retryDelay,omitempty"`
}

// Refresh controls the periodic refresh loop
type Refresh struct {
	Interval    string `yaml:"interval,omitempty"`
	LoadTimeout string `yaml:"loadTimeout,omitempty"`
}

// Thresholds override the derivation thresholds
type Thresholds struct {
	CompletionPct  *float64 `yaml:"completionPct,omitempty"`
	LowProgressPct *float64 `yaml:"lowProgressPct,omitempty"`
	InactiveGrace  string   `yaml:"inactiveGrace,omitempty"`
}

// Risk overrides the risk score weights and component scores
type Risk struct {
	Weights                   *Weights `yaml:"weights,omitempty"`
	UnknownProgressScore      *float64 `yaml:"unknownProgressScore,omitempty"`
	MobilizedLowProgressScore *float64 `yaml:"mobilizedLowProgressScore,omitempty"`
	BaselineMobilizationScore *float64 `yaml:"baselineMobilizationScore,omitempty"`
}

// Weights are the risk component multipliers
type Weights struct {
	Delay        float64 `yaml:"delay"`
	Progress     float64 `yaml:"progress"`
	Mobilization float64 `yaml:"mobilization"`
}

// Defaults applied when a field is omitted
const (
	DefaultTimezone        = "Asia/Karachi"
	DefaultRefreshInterval = "1h"
	DefaultLoadTimeout     = "2m"
)

// ValidationError represents a validation error for a specific file
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}
