package settings

import (
	"fmt"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/samijaber1/sitepulse/internal/adapter/fixture"
	"github.com/samijaber1/sitepulse/internal/adapter/sheets"
	"github.com/samijaber1/sitepulse/internal/derive"
	"github.com/samijaber1/sitepulse/internal/ingest"
	"github.com/samijaber1/sitepulse/internal/scheduler"
	"github.com/samijaber1/sitepulse/internal/storage"
)

// Location resolves the configured timezone
func (s *Settings) Location() (*time.Location, error) {
	name := s.Spec.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// Policy builds the derivation policy, starting from the defaults
func (s *Settings) Policy() (derive.Policy, error) {
	policy := derive.DefaultPolicy()

	loc, err := s.Location()
	if err != nil {
		return policy, err
	}
	policy.Location = loc

	t := s.Spec.Thresholds
	if t.CompletionPct != nil {
		policy.CompletionPct = *t.CompletionPct
	}
	if t.LowProgressPct != nil {
		policy.LowProgressPct = *t.LowProgressPct
	}
	if policy.InactiveGrace, err = parseDurationOr(t.InactiveGrace, policy.InactiveGrace); err != nil {
		return policy, fmt.Errorf("thresholds.inactiveGrace: %w", err)
	}

	r := s.Spec.Risk
	if r.Weights != nil {
		policy.Weights = derive.Weights{
			Delay:        r.Weights.Delay,
			Progress:     r.Weights.Progress,
			Mobilization: r.Weights.Mobilization,
		}
	}
	if r.UnknownProgressScore != nil {
		policy.UnknownProgressScore = *r.UnknownProgressScore
	}
	if r.MobilizedLowProgressScore != nil {
		policy.MobilizedLowProgressScore = *r.MobilizedLowProgressScore
	}
	if r.BaselineMobilizationScore != nil {
		policy.BaselineMobilizationScore = *r.BaselineMobilizationScore
	}

	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

// SchedulerOptions builds the refresh loop options
func (s *Settings) SchedulerOptions() (scheduler.Options, error) {
	var opts scheduler.Options
	var err error

	def, _ := ParseDuration(DefaultRefreshInterval)
	if opts.Interval, err = parseDurationOr(s.Spec.Refresh.Interval, def); err != nil {
		return opts, fmt.Errorf("refresh.interval: %w", err)
	}

	def, _ = ParseDuration(DefaultLoadTimeout)
	if opts.LoadTimeout, err = parseDurationOr(s.Spec.Refresh.LoadTimeout, def); err != nil {
		return opts, fmt.Errorf("refresh.loadTimeout: %w", err)
	}

	return opts, nil
}

// NewLoader builds the loader for the configured sources. Relative file
// paths are resolved against baseDir.
func (s *Settings) NewLoader(baseDir string) (ingest.Loader, error) {
	if len(s.Spec.Sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	if s.Spec.Sources[0].File != "" {
		adapter := fixture.NewAdapter()
		for _, src := range s.Spec.Sources {
			if src.File == "" {
				return nil, fmt.Errorf("source %s: sources must all use url or all use file", src.Name)
			}
			path := src.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			adapter.AddFile(src.Name, path)
		}
		return adapter, nil
	}

	var sources []sheets.Source
	for _, src := range s.Spec.Sources {
		if src.URL == "" {
			return nil, fmt.Errorf("source %s: sources must all use url or all use file", src.Name)
		}
		sources = append(sources, sheets.Source{Name: src.Name, URL: src.URL})
	}

	config := sheets.DefaultConfig(sources)
	f := s.Spec.Fetch
	var err error
	if config.Timeout, err = parseDurationOr(f.Timeout, config.Timeout); err != nil {
		return nil, fmt.Errorf("fetch.timeout: %w", err)
	}
	if config.RetryDelay, err = parseDurationOr(f.RetryDelay, config.RetryDelay); err != nil {
		return nil, fmt.Errorf("fetch.retryDelay: %w", err)
	}
	if f.MaxConcurrency > 0 {
		config.MaxConcurrency = f.MaxConcurrency
	}
	if f.RetryCount != nil {
		config.RetryCount = *f.RetryCount
	}

	return sheets.NewAdapter(config), nil
}

// NewScheduler wires the loader, derivation policy and refresh options
// into a scheduler. Relative source files are resolved against baseDir.
func (s *Settings) NewScheduler(baseDir string, trends storage.TrendStorage) (*scheduler.Scheduler, error) {
	loader, err := s.NewLoader(baseDir)
	if err != nil {
		return nil, err
	}

	policy, err := s.Policy()
	if err != nil {
		return nil, err
	}

	opts, err := s.SchedulerOptions()
	if err != nil {
		return nil, err
	}

	return scheduler.NewScheduler(loader, derive.NewEngine(policy), trends, opts), nil
}
